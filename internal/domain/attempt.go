package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// responseExcerptStems is how many question stems go into a response excerpt.
const responseExcerptStems = 3

// GenerationAttempt records one LLM invocation for a page. Rows are
// append-only; only the outcome fields are set after creation.
type GenerationAttempt struct {
	ID              uuid.UUID `json:"id"`
	PageID          uuid.UUID `json:"page_id"`
	AttemptNo       int       `json:"attempt_no"`
	Model           string    `json:"model"`
	PromptVersion   string    `json:"prompt_version"`
	IsSuccess       bool      `json:"is_success"`
	ErrorMessage    *string   `json:"error_message,omitempty"`
	RequestExcerpt  string    `json:"request_excerpt"`
	ResponseExcerpt *string   `json:"response_excerpt,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// RequestExcerpt is the deterministic prompt summary stored on an attempt.
func RequestExcerpt(uploadID uuid.UUID, pageNumber int) string {
	return fmt.Sprintf("Generate MCQs for upload %s page %d", uploadID, pageNumber)
}

// ResponseExcerpt summarizes the first few questions of a successful attempt.
func ResponseExcerpt(questions []*Question) string {
	n := min(len(questions), responseExcerptStems)
	parts := make([]string, 0, n)
	for _, q := range questions[:n] {
		parts = append(parts, fmt.Sprintf("%d: %s", q.LineIndex, q.Stem))
	}
	return strings.Join(parts, " | ")
}

// UsageEvent is append-only telemetry for one successful attempt.
type UsageEvent struct {
	ID               uuid.UUID `json:"id"`
	PageID           uuid.UUID `json:"page_id"`
	AttemptID        uuid.UUID `json:"attempt_id"`
	Model            string    `json:"model"`
	TokensIn         *int      `json:"tokens_in,omitempty"`
	TokensOut        *int      `json:"tokens_out,omitempty"`
	EstimatedCostUSD float64   `json:"estimated_cost_usd"`
	CreatedAt        time.Time `json:"created_at"`
}
