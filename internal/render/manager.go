package render

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/colonyops/texcomments/pkg/kv"
)

const cacheExt = ".png"

// Config configures a Manager.
type Config struct {
	CacheDir string        // directory holding rendered PNGs
	Workers  int           // concurrent typesetting runs
	DPIScale float64       // pixel density multiplier applied on top of zoom
	Preamble string        // TeX preamble; DefaultPreamble when empty
	Timeout  time.Duration // upper bound for one render including queueing
	Memo     int           // rendered images kept in memory
}

// Manager renders comment text in the background with an in-memory and an
// on-disk cache keyed by content. Identical concurrent requests share one
// render.
type Manager struct {
	cfg    Config
	scale  ScaleSource
	tex    Typesetter
	memo   *kv.Store[string, Result]
	group  singleflight.Group
	sem    *semaphore.Weighted
	log    zerolog.Logger

	mu     sync.Mutex // guards closed and wg.Add
	closed bool
	wg     sync.WaitGroup
}

var _ Renderer = (*Manager)(nil)

// NewManager creates the cache directory and returns a Manager. If tex is nil
// a star-tex typesetter is used.
func NewManager(cfg Config, scale ScaleSource, tex Typesetter, logger zerolog.Logger) (*Manager, error) {
	if cfg.CacheDir == "" {
		return nil, fmt.Errorf("cache directory cannot be empty")
	}
	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.DPIScale <= 0 {
		cfg.DPIScale = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Memo <= 0 {
		cfg.Memo = 256
	}
	if scale == nil {
		scale = FixedScale(1)
	}
	if tex == nil {
		tex = NewTeX(cfg.Preamble)
	}

	return &Manager{
		cfg:   cfg,
		scale: scale,
		tex:   tex,
		memo:  kv.NewBounded[string, Result](cfg.Memo),
		sem:   semaphore.NewWeighted(int64(cfg.Workers)),
		log:   logger,
	}, nil
}

// RequestRender implements Renderer.
func (m *Manager) RequestRender(ctx context.Context, text string, done Callback) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		go done(Result{}, ErrClosed)
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		res, err := m.Render(ctx, text)
		done(res, err)
	}()
}

// Render renders text synchronously at the current zoom scale.
func (m *Manager) Render(ctx context.Context, text string) (Result, error) {
	formula := strings.TrimSpace(text)
	if formula == "" {
		return Result{}, ErrEmptyFormula
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	scale := m.scale.Get()
	key := m.key(formula, scale)
	if res, ok := m.memo.Get(key); ok {
		return res, nil
	}

	v, err, shared := m.group.Do(key, func() (any, error) {
		return m.produce(key, formula, scale)
	})
	if err != nil {
		m.log.Debug().Ctx(ctx).Err(err).Str("key", key).Msg("render failed")
		return Result{}, err
	}
	if shared {
		m.log.Debug().Ctx(ctx).Str("key", key).Msg("joined in-flight render")
	}

	// Shared work always completes; cancellation is reported afterwards.
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

// CachePath returns where text rendered at the current zoom is or would be
// cached, and whether the file exists.
func (m *Manager) CachePath(text string) (string, bool) {
	path := m.path(m.key(strings.TrimSpace(text), m.scale.Get()))
	_, err := os.Stat(path)
	return path, err == nil
}

// ClearCache drops every cached render and returns the number of files removed.
func (m *Manager) ClearCache() (int, error) {
	m.memo.Clear()

	matches, err := filepath.Glob(filepath.Join(m.cfg.CacheDir, "*"+cacheExt))
	if err != nil {
		return 0, fmt.Errorf("list cache: %w", err)
	}

	removed := 0
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("remove %s: %w", path, err)
		}
		removed++
	}
	return removed, nil
}

// Close rejects new requests and waits for in-flight ones to finish.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Manager) produce(key, formula string, scale float64) (Result, error) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.Timeout)
	defer cancel()

	if err := m.sem.Acquire(ctx, 1); err != nil {
		return Result{}, fmt.Errorf("wait for render worker: %w", err)
	}
	defer m.sem.Release(1)

	path := m.path(key)
	if img, err := loadPNG(path); err == nil {
		res := newResult(img, scale, path)
		m.memo.Set(key, res)
		m.log.Debug().Str("token", path).Msg("render cache hit")
		return res, nil
	}

	start := time.Now()
	dvi, err := m.tex.Typeset(formula)
	if err != nil {
		return Result{}, err
	}

	img, err := Rasterize(dvi, scale*m.cfg.DPIScale)
	if err != nil {
		return Result{}, fmt.Errorf("draw %q: %w", formula, err)
	}
	if err := writePNG(path, img); err != nil {
		return Result{}, err
	}

	res := newResult(img, scale, path)
	m.memo.Set(key, res)

	m.log.Debug().
		Str("token", path).
		Int("dvi_bytes", len(dvi)).
		Dur("took", time.Since(start)).
		Msg("rendered formula")
	return res, nil
}

func (m *Manager) key(formula string, scale float64) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%s\x00%g\x00%g\x00%s", formula, scale, m.cfg.DPIScale, m.cfg.Preamble))
	return hex.EncodeToString(sum[:16])
}

func (m *Manager) path(key string) string {
	return filepath.Join(m.cfg.CacheDir, key+cacheExt)
}

func newResult(img image.Image, scale float64, token string) Result {
	b := img.Bounds()
	return Result{
		Image:      img,
		Width:      b.Dx(),
		Height:     b.Dy(),
		Scale:      scale,
		CacheToken: token,
	}
}

func loadPNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// writePNG writes through a temporary file so readers never see a partial
// image.
func writePNG(path string, img image.Image) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".render-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if err := png.Encode(tmp, img); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("encode png: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("move into cache: %w", err)
	}
	return nil
}
