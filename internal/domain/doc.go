// Package domain contains the core entities of the question generation
// pipeline: uploads, pages and their status state machine, generation
// attempts, review questions, published bank entries and usage telemetry.
// It is independent of any storage or delivery mechanism.
package domain
