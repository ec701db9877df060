package document

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/rs/zerolog"

	"github.com/colonyops/texcomments/internal/core/uiloop"
	"github.com/colonyops/texcomments/internal/core/zoom"
	"github.com/colonyops/texcomments/internal/render"
)

// Workspace keeps one Document per file on disk. Like Document it is
// confined to the UI loop.
type Workspace struct {
	renderer render.Renderer
	zoom     *zoom.Setting
	exec     uiloop.Executor
	listener Listener
	log      zerolog.Logger

	docs map[string]*Document
}

// NewWorkspace creates an empty workspace.
func NewWorkspace(renderer render.Renderer, zs *zoom.Setting, exec uiloop.Executor, listener Listener, logger zerolog.Logger) *Workspace {
	return &Workspace{
		renderer: renderer,
		zoom:     zs,
		exec:     exec,
		listener: listener,
		log:      logger,
		docs:     make(map[string]*Document),
	}
}

// Load reads path and syncs its document, creating it on first use.
func (w *Workspace) Load(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	doc, ok := w.docs[path]
	if !ok {
		doc = New(path, w.renderer, w.zoom, w.exec, w.listener, w.log)
		w.docs[path] = doc
	}
	doc.SyncSource(string(src))

	w.log.Debug().Str("document", path).Int("blocks", len(doc.blocks)).Msg("document synced")
	return nil
}

// Remove closes the document of path, if any.
func (w *Workspace) Remove(path string) {
	if doc, ok := w.docs[path]; ok {
		doc.Close()
		delete(w.docs, path)
	}
}

// Apply loads changed files and removes deleted ones. Files that fail to
// load are removed and reported in the returned error.
func (w *Workspace) Apply(changed, deleted []string) error {
	var errs []error
	for _, p := range deleted {
		w.Remove(p)
	}
	for _, p := range changed {
		if err := w.Load(p); err != nil {
			w.Remove(p)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("apply changes: %w", errors.Join(errs...))
	}
	return nil
}

// Document returns the document of path.
func (w *Workspace) Document(path string) (*Document, bool) {
	doc, ok := w.docs[path]
	return doc, ok
}

// Paths returns the loaded paths, sorted.
func (w *Workspace) Paths() []string {
	return slices.Sorted(maps.Keys(w.docs))
}

// Settled reports whether every document is settled.
func (w *Workspace) Settled() bool {
	for _, doc := range w.docs {
		if !doc.Settled() {
			return false
		}
	}
	return true
}

// InvalidateAll re-renders every block of every document.
func (w *Workspace) InvalidateAll() {
	for _, doc := range w.docs {
		doc.InvalidateAll()
	}
}

// Snapshot describes every document, keyed by path.
func (w *Workspace) Snapshot() map[string][]BlockInfo {
	out := make(map[string][]BlockInfo, len(w.docs))
	for p, doc := range w.docs {
		out[p] = doc.Snapshot()
	}
	return out
}

// Close closes every document.
func (w *Workspace) Close() {
	for p, doc := range w.docs {
		doc.Close()
		delete(w.docs, p)
	}
}
