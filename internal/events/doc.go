// Package events provides types and interfaces for an event-driven architecture.
//
// This package defines event types and handler interfaces that allow for loose coupling
// between components in the system. The task queue emits an event whenever a task reaches
// a terminal state without knowing which handlers will process it; the recipe archive is
// one such handler.
//
// The primary components are:
// - TaskEvent: Describes the terminal outcome of a background task
// - EventHandler: Interface for components that can handle events
// - EventEmitter: Interface for components that can emit events
package events
