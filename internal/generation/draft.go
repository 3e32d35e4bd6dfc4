package generation

import (
	"context"
	"fmt"
)

// Draft is a Generator that needs no provider. It returns three placeholder
// questions per page and is used for local runs and tests.
type Draft struct{}

// Generate implements Generator.
func (Draft) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderFailure, err)
	}

	lang := req.Language
	if lang == "" {
		lang = "en"
	}
	difficulties := []string{"easy", "medium", "hard"}
	questions := make([]GeneratedQuestion, 0, len(difficulties))
	for i, d := range difficulties {
		questions = append(questions, GeneratedQuestion{
			LineIndex:  i,
			Stem:       fmt.Sprintf("Draft question %d for page %d", i+1, req.PageNumber),
			Difficulty: d,
			Options: []GeneratedOption{
				{Key: "a", Text: "Option A"},
				{Key: "b", Text: "Option B"},
				{Key: "c", Text: "Option C"},
				{Key: "d", Text: "Option D"},
			},
			CorrectOption: "a",
			Explanation:   "Placeholder explanation.",
		})
	}
	in, out := 0, 0
	return &Response{Questions: questions, Language: lang, TokensIn: &in, TokensOut: &out}, nil
}
