// Package config handles configuration loading, parsing, and validation
// from defaults, an optional config.yaml and RECIPES_ prefixed environment
// variables. It provides type-safe access to server, archive, LLM and queue
// settings while keeping configuration details separate from business logic.
package config
