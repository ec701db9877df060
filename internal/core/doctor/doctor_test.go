package doctor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/texcomments/internal/core/config"
)

type stubTeX struct {
	err error
}

func (s stubTeX) Typeset(string) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []byte("dvi"), nil
}

type staticCheck struct {
	name  string
	items []CheckItem
}

func (c staticCheck) Name() string { return c.name }

func (c staticCheck) Run(context.Context) Result {
	return Result{Name: c.name, Items: c.items}
}

func TestRunAllAndSummary(t *testing.T) {
	results := RunAll(context.Background(), []Check{
		staticCheck{name: "a", items: []CheckItem{{Status: StatusPass}, {Status: StatusWarn}}},
		staticCheck{name: "b", items: []CheckItem{{Status: StatusFail}, {Status: StatusPass}}},
	})

	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].Name)

	passed, warned, failed := Summary(results)
	assert.Equal(t, 2, passed)
	assert.Equal(t, 1, warned)
	assert.Equal(t, 1, failed)
}

func TestCacheCheck(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")

	result := NewCacheCheck(dir).Run(context.Background())
	require.Len(t, result.Items, 1)
	assert.Equal(t, StatusPass, result.Items[0].Status)
	assert.Equal(t, "0 cached image(s)", result.Items[0].Detail)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary file is removed")
}

func TestCacheCheck_PathIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "cache")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	result := NewCacheCheck(file).Run(context.Background())
	require.Len(t, result.Items, 1)
	assert.Equal(t, StatusFail, result.Items[0].Status)
}

func TestTeXCheck(t *testing.T) {
	ok := NewTeXCheck(stubTeX{}).Run(context.Background())
	require.Len(t, ok.Items, 1)
	assert.Equal(t, StatusPass, ok.Items[0].Status)

	bad := NewTeXCheck(stubTeX{err: errors.New("undefined control sequence")}).Run(context.Background())
	require.Len(t, bad.Items, 1)
	assert.Equal(t, StatusFail, bad.Items[0].Status)
	assert.Contains(t, bad.Items[0].Detail, "undefined control sequence")
}

func TestConfigCheck(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()

	result := NewConfigCheck(&cfg, filepath.Join(t.TempDir(), "config.yaml")).Run(context.Background())
	require.Len(t, result.Items, 1)
	assert.Equal(t, StatusPass, result.Items[0].Status)
	assert.Equal(t, "defaults", result.Items[0].Label)

	cfg.Watch.Include = []string{"[a-"}
	cfg.Render.Workers = 32
	result = NewConfigCheck(&cfg, "").Run(context.Background())
	require.Len(t, result.Items, 2)
	assert.Equal(t, StatusFail, result.Items[0].Status)
	assert.Equal(t, StatusWarn, result.Items[1].Status)
}
