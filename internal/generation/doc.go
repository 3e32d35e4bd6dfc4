// Package generation defines the boundary to the LLM that writes questions
// for a page: the request and response contract, schema validation of the
// response, provider error kinds, and usage cost estimation. Provider
// implementations live under internal/platform.
package generation
