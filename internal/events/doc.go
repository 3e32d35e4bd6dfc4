// Package events carries pipeline notifications between components.
//
// Services emit an Event after the unit of work that caused it commits.
// Handlers registered on an InMemoryEventEmitter receive every event; the
// AlertHandler turns failures into operator-facing log records.
//
// The primary components are:
// - Event: a typed pipeline notification with a JSON payload
// - EventHandler: interface for components that can handle events
// - EventEmitter: interface for components that can emit events
package events
