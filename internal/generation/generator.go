package generation

import "context"

// Generator defines the interface for producing text from a prompt.
// This interface serves as a boundary between the application core and
// external AI/LLM services, following the hexagonal architecture pattern.
type Generator interface {
	// Generate sends prompt to the model and returns its raw text reply.
	// Callers that asked for JSON are responsible for parsing it.
	//
	// Errors wrap one of the sentinels in errors.go so callers can tell a
	// blocked or malformed reply from a transient outage.
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts an ordinary function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
