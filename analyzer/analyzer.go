package analyzer

import "context"

// Analyzer sends a portrait to a hosted vision-language model.
type Analyzer interface {
	// Name returns the name of the backend, e.g. "gemini" or "llama"
	Name() string

	// Model returns the model identifier requests are sent to.
	Model() string

	// Analyze sends req to the model and returns the raw text of its reply.
	// Exactly one request is made per call, there is no retry. The provided
	// ctx is used as a parent context for the request to the model server.
	Analyze(ctx context.Context, req *Request) (string, error)

	// IsHealthy returns whether the model server is reachable.
	IsHealthy(ctx context.Context) bool
}
