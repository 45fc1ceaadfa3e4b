// Package recipe implements the content pipeline run by the task queue.
//
// A Pipeline turns a free-text request into a GenerationResult in four
// stages: a base recipe is generated, cooking inspiration is gathered, the
// recipe is enhanced, and finally nutrition and quality are analyzed
// concurrently. Only the first stage is fatal; the later ones degrade to
// local heuristics when the model misbehaves.
//
// All model access goes through generation.Generator, so tests drive the
// pipeline with scripted replies.
package recipe
