package domain

import (
	"time"

	"github.com/google/uuid"
)

// QuestionStatus is the editorial review state of a question.
type QuestionStatus string

// Possible question status values.
const (
	QuestionStatusNotChecked QuestionStatus = "not_checked"
	QuestionStatusApproved   QuestionStatus = "approved"
	QuestionStatusRejected   QuestionStatus = "rejected"
	QuestionStatusNeedsFix   QuestionStatus = "needs_fix"
)

// Valid reports whether s is a known question status.
func (s QuestionStatus) Valid() bool {
	switch s {
	case QuestionStatusNotChecked, QuestionStatusApproved,
		QuestionStatusRejected, QuestionStatusNeedsFix:
		return true
	default:
		return false
	}
}

// Difficulty of a question.
type Difficulty string

// Difficulty levels.
const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// OptionKey names one of the four answer options.
type OptionKey string

// Option keys, in display order.
const (
	OptionA OptionKey = "a"
	OptionB OptionKey = "b"
	OptionC OptionKey = "c"
	OptionD OptionKey = "d"
)

// OptionKeys lists the option keys in display order.
var OptionKeys = []OptionKey{OptionA, OptionB, OptionC, OptionD}

// Options holds the four answer texts.
type Options struct {
	A string `json:"a"`
	B string `json:"b"`
	C string `json:"c"`
	D string `json:"d"`
}

// Set stores text under key. Unknown keys are ignored.
func (o *Options) Set(key OptionKey, text string) {
	switch key {
	case OptionA:
		o.A = text
	case OptionB:
		o.B = text
	case OptionC:
		o.C = text
	case OptionD:
		o.D = text
	}
}

// Question is a generated multiple-choice question in the review pool.
// The pipeline replaces a page's questions wholesale; once a question is
// published to the bank it is locked and the page's set is frozen.
type Question struct {
	ID               uuid.UUID      `json:"id"`
	PageID           uuid.UUID      `json:"page_id"`
	Classification   Classification `json:"classification"`
	Status           QuestionStatus `json:"status"`
	Difficulty       Difficulty     `json:"difficulty"`
	Language         Language       `json:"language"`
	LineIndex        int            `json:"line_index"`
	Stem             string         `json:"stem"`
	Options          Options        `json:"options"`
	CorrectOption    OptionKey      `json:"correct_option"`
	Explanation      string         `json:"explanation"`
	IsLockedAfterAdd bool           `json:"is_locked_after_add"`
	ReviewedBy       *uuid.UUID     `json:"reviewed_by,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// AnyLocked reports whether any question in qs is locked.
func AnyLocked(qs []*Question) bool {
	for _, q := range qs {
		if q.IsLockedAfterAdd {
			return true
		}
	}
	return false
}

// BankEntry is a permanent, published copy of a locked question.
type BankEntry struct {
	ID               uuid.UUID `json:"id"`
	SourceQuestionID uuid.UUID `json:"source_question_id"`
	SubjectID        uuid.UUID `json:"subject_id"`
	SubjectCode      string    `json:"subject_code"`
	SequenceNo       int64     `json:"sequence_no"`
	CreatedAt        time.Time `json:"created_at"`
}
