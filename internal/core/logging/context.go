package logging

import "context"

type contextKey string

const (
	documentKey contextKey = "document"
	blockIDKey  contextKey = "block"
)

// WithDocument adds a document name to the context.
func WithDocument(ctx context.Context, document string) context.Context {
	return context.WithValue(ctx, documentKey, document)
}

// WithBlockID adds a block debug index to the context.
func WithBlockID(ctx context.Context, id int) context.Context {
	return context.WithValue(ctx, blockIDKey, id)
}

// GetDocument retrieves the document name from the context.
// Returns empty string if not present.
func GetDocument(ctx context.Context) string {
	if doc, ok := ctx.Value(documentKey).(string); ok {
		return doc
	}
	return ""
}

// GetBlockID retrieves the block debug index from the context.
func GetBlockID(ctx context.Context) (int, bool) {
	id, ok := ctx.Value(blockIDKey).(int)
	return id, ok
}
