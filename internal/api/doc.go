// Package api exposes the recipe generation queue and the recipe archive
// over HTTP. Handlers decode and validate requests, call the task service
// or the archive store and map their sentinel errors onto status codes.
package api
