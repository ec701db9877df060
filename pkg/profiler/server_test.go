package profiler

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, register func(s *Server)) *Server {
	t.Helper()
	server := New("127.0.0.1:0", zerolog.Nop())
	if register != nil {
		register(server)
	}
	require.NoError(t, server.Start(context.Background()), "Start() error")
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	})
	return server
}

func TestServer_StartAndShutdown(t *testing.T) {
	server := New("127.0.0.1:0", zerolog.Nop())
	require.NoError(t, server.Start(context.Background()), "Start() error")
	assert.NotEmpty(t, server.Addr())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, server.Shutdown(shutdownCtx), "Shutdown() error")
}

func TestServer_AddrBeforeStart(t *testing.T) {
	assert.Empty(t, New("127.0.0.1:0", zerolog.Nop()).Addr())
}

func TestServer_PprofEndpoints(t *testing.T) {
	server := startServer(t, nil)
	baseURL := "http://" + server.Addr()

	tests := []struct {
		name     string
		endpoint string
	}{
		{
			name:     "index",
			endpoint: "/debug/pprof/",
		},
		{
			name:     "cmdline",
			endpoint: "/debug/pprof/cmdline",
		},
		{
			name:     "symbol",
			endpoint: "/debug/pprof/symbol",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(baseURL + tt.endpoint)
			require.NoError(t, err, "GET %s error", tt.endpoint)
			defer func() {
				_ = resp.Body.Close()
			}()

			assert.Equal(t, http.StatusOK, resp.StatusCode, "GET %s status = %v, want %v", tt.endpoint, resp.StatusCode, http.StatusOK)
		})
	}
}

func TestServer_Handle(t *testing.T) {
	server := startServer(t, func(s *Server) {
		s.Handle("/debug/blocks", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "[]")
		}))
	})

	resp, err := http.Get("http://" + server.Addr() + "/debug/blocks")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(body))
}
