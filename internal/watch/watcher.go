// Package watch reports debounced changes to the source files whose TeX
// comments are rendered.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is the quiet period used when Config.Debounce is zero.
const DefaultDebounce = 200 * time.Millisecond

// ErrClosed is returned by Next after Close.
var ErrClosed = errors.New("watcher closed")

// Config selects what to watch. Include and Exclude are doublestar patterns
// matched against slash separated paths relative to each root directory.
type Config struct {
	Roots    []string
	Include  []string
	Exclude  []string
	Debounce time.Duration
}

// Batch is the set of matching files that changed during one debounce window.
type Batch struct {
	Changed []string
	Deleted []string
}

// Empty reports whether the batch holds no paths.
func (b Batch) Empty() bool {
	return len(b.Changed) == 0 && len(b.Deleted) == 0
}

// Watcher watches a set of roots recursively.
type Watcher struct {
	watcher  *fsnotify.Watcher
	dirs     []string
	files    map[string]bool
	include  []string
	exclude  []string
	debounce time.Duration
	log      zerolog.Logger
}

// New validates the patterns and starts watching the roots. A root can be a
// directory or a single file.
func New(cfg Config, logger zerolog.Logger) (*Watcher, error) {
	if len(cfg.Roots) == 0 {
		return nil, errors.New("no paths to watch")
	}
	for _, p := range slices.Concat(cfg.Include, cfg.Exclude) {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid pattern %q", p)
		}
	}

	include := cfg.Include
	if len(include) == 0 {
		include = []string{"**/*.go"}
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		watcher:  fw,
		files:    make(map[string]bool),
		include:  include,
		exclude:  cfg.Exclude,
		debounce: debounce,
		log:      logger.With().Str("component", "watcher").Logger(),
	}

	for _, root := range cfg.Roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("resolve %s: %w", root, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("stat %s: %w", root, err)
		}

		if !info.IsDir() {
			w.files[abs] = true
			if err := fw.Add(filepath.Dir(abs)); err != nil {
				_ = fw.Close()
				return nil, fmt.Errorf("watch %s: %w", root, err)
			}
			continue
		}

		w.dirs = append(w.dirs, abs)
		if err := w.addRecursive(abs); err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("watch %s: %w", root, err)
		}
	}

	return w, nil
}

// Match reports whether path is one of the watched files.
func (w *Watcher) Match(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	if w.files[abs] {
		return true
	}

	for _, dir := range w.dirs {
		rel, err := filepath.Rel(dir, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		if w.matchRel(filepath.ToSlash(rel)) {
			return true
		}
	}
	return false
}

func (w *Watcher) matchRel(rel string) bool {
	if hidden(rel) {
		return false
	}
	for _, p := range w.exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return false
		}
	}
	for _, p := range w.include {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// Files lists the watched files currently on disk, sorted.
func (w *Watcher) Files() ([]string, error) {
	seen := make(map[string]bool)
	for f := range w.files {
		if _, err := os.Stat(f); err == nil {
			seen[f] = true
		}
	}

	for _, dir := range w.dirs {
		fsys := os.DirFS(dir)
		for _, pattern := range w.include {
			matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
			if err != nil {
				return nil, fmt.Errorf("glob %s in %s: %w", pattern, dir, err)
			}
			for _, m := range matches {
				if w.matchRel(m) {
					seen[filepath.Join(dir, filepath.FromSlash(m))] = true
				}
			}
		}
	}

	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	slices.Sort(out)
	return out, nil
}

// Next blocks until matching files change and returns them once the changes
// have been quiet for the debounce period.
func (w *Watcher) Next(ctx context.Context) (Batch, error) {
	for {
		select {
		case <-ctx.Done():
			return Batch{}, ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return Batch{}, ErrClosed
			}

			changed := map[string]bool{}
			deleted := map[string]bool{}
			w.classify(event, changed, deleted)

			debounce := time.NewTimer(w.debounce)
		collect:
			for {
				select {
				case <-ctx.Done():
					debounce.Stop()
					return Batch{}, ctx.Err()
				case e, ok := <-w.watcher.Events:
					if !ok {
						debounce.Stop()
						return Batch{}, ErrClosed
					}
					w.classify(e, changed, deleted)
					debounce.Reset(w.debounce)
				case <-debounce.C:
					break collect
				}
			}

			for p := range deleted {
				delete(changed, p)
			}

			batch := Batch{Changed: sortedKeys(changed), Deleted: sortedKeys(deleted)}
			if batch.Empty() {
				continue
			}
			return batch, nil

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return Batch{}, ErrClosed
			}
			w.log.Error().Err(err).Msg("watcher error")
		}
	}
}

// Run calls fn for every batch until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context, fn func(Batch)) error {
	for {
		batch, err := w.Next(ctx)
		if err != nil {
			if errors.Is(err, ErrClosed) {
				return nil
			}
			return err
		}
		fn(batch)
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) classify(event fsnotify.Event, changed, deleted map[string]bool) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				w.log.Debug().Err(err).Str("dir", event.Name).Msg("failed to watch new directory")
			}
			return
		}
	}

	if !w.Match(event.Name) {
		return
	}

	w.log.Debug().
		Str("path", event.Name).
		Str("op", event.Op.String()).
		Msg("file system event")

	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		deleted[event.Name] = true
		return
	}
	delete(deleted, event.Name)
	changed[event.Name] = true
}

func (w *Watcher) addRecursive(path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			w.log.Debug().Err(err).Str("path", p).Msg("skipping path during walk")
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != path && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.watcher.Add(p)
	})
}

func hidden(rel string) bool {
	for part := range strings.SplitSeq(rel, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
