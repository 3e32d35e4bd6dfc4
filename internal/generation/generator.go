package generation

import (
	"context"

	"github.com/google/uuid"
)

// Request identifies the page to generate questions for.
type Request struct {
	PageID     uuid.UUID
	UploadID   uuid.UUID
	PageNumber int
	// Language is the page's known language, empty when not yet detected.
	Language string
	// ImageURI locates the rendered page image, when the provider can read it.
	ImageURI string
}

// Generator is the boundary to the LLM provider.
type Generator interface {
	// Generate returns the provider's raw answer for the page. Transport and
	// provider errors wrap ErrProviderFailure; a body that cannot be decoded
	// wraps ErrInvalidResponse. Schema checks are left to Validate.
	Generate(ctx context.Context, req Request) (*Response, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req Request) (*Response, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}

// Response is the provider's answer for one page.
type Response struct {
	Questions []GeneratedQuestion `json:"questions"           validate:"required,min=1,dive"`
	Language  string              `json:"language,omitempty"  validate:"omitempty,oneof=bn en"`
	TokensIn  *int                `json:"tokensIn,omitempty"  validate:"omitempty,gte=0"`
	TokensOut *int                `json:"tokensOut,omitempty" validate:"omitempty,gte=0"`
}

// GeneratedQuestion is one question as returned by the provider.
type GeneratedQuestion struct {
	LineIndex     int               `json:"lineIndex"     validate:"gte=0"`
	Stem          string            `json:"stem"          validate:"required"`
	Difficulty    string            `json:"difficulty"    validate:"required,oneof=easy medium hard"`
	Options       []GeneratedOption `json:"options"       validate:"len=4,unique=Key,dive"`
	CorrectOption string            `json:"correctOption" validate:"required,oneof=a b c d"`
	Explanation   string            `json:"explanation"   validate:"required"`
}

// GeneratedOption is one answer choice.
type GeneratedOption struct {
	Key  string `json:"key"  validate:"required,oneof=a b c d"`
	Text string `json:"text" validate:"required"`
}
