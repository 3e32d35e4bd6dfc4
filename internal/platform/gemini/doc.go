// Package gemini implements generation.Generator on Google's Gemini API.
//
// A Generator renders the versioned prompt template for a page, attaches
// the page image by URI, and asks the model for a JSON reply. Calls are
// rate limited per process. The reply is decoded into a
// generation.Response and token counts are taken from the usage metadata.
// Schema checks are left to generation.Validate, and retries are owned by
// the caller's job scheduling, so a Generator makes exactly one call per
// Generate.
package gemini
