package engine

import "context"

// Engine abstracts a local inference backend. The turn loop and the serve
// path use this interface instead of depending on a concrete client.
type Engine interface {
	// Generate produces a completion for the conditioning prompt.
	Generate(ctx context.Context, model, prompt string, opts GenerateOptions) (string, error)

	// IsRunning reports whether the inference backend is reachable.
	IsRunning(ctx context.Context) bool

	// ListModels returns the names of all locally available models.
	ListModels(ctx context.Context) ([]string, error)

	// HasModel reports whether the given model name is available locally.
	HasModel(ctx context.Context, name string) bool

	// PullModel downloads a model. The optional callback receives progress updates.
	PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error
}
