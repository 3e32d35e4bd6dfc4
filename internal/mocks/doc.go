// Package mocks provides shared test doubles for the generation pipeline.
//
// Instead of defining inline fakes in individual test files, tests reuse
// these implementations:
//
//   - MockGenerator answers generation.Generator calls from a list of steps
//     and records every request.
//   - RecordingHandler collects the events an events.EventEmitter dispatches.
//
// Usage:
//
//	gen := mocks.NewMockGeneratorWithSteps(
//	    mocks.Fail(generation.ErrProviderFailure),
//	    mocks.Succeed(resp),
//	)
//	handler := &mocks.RecordingHandler{}
//	emitter.RegisterHandler(handler)
package mocks
