// Package generation defines the boundary between the recipe pipeline and
// external AI/LLM services. The Gemini implementation lives in
// internal/platform/gemini; tests substitute a GeneratorFunc or the
// scripted generator in internal/mocks.
package generation
