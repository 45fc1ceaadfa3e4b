// Package gemini provides an implementation of the generation.Generator
// interface backed by Google's Gemini API.
//
// The generator is a thin adapter: it sends a single prompt, asks for a
// JSON reply, and returns the raw text. Prompt construction and response
// parsing belong to the recipe pipeline.
//
// Error handling:
//   - Transport failures and 429/5xx responses are retried with
//     exponential backoff and jitter, then reported as
//     generation.ErrTransientFailure.
//   - Replies stopped by safety filters return generation.ErrContentBlocked.
//   - Empty replies return generation.ErrInvalidResponse.
//   - Other 4xx responses return generation.ErrGenerationFailed without retrying.
package gemini
