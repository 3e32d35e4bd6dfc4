// Package api handles incoming HTTP requests for the question pipeline:
// PDF upload intake, generation control, question review and publishing,
// and the operator overview. Handlers decode and validate requests, call
// the services, and map domain and store errors to HTTP responses without
// leaking internal details.
package api
