package gemini

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"

	"github.com/phrazzld/quizgen-api/internal/generation"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

type promptData struct {
	UploadID     string
	PageNumber   int
	Language     string
	LanguageName string
}

var languageNames = map[string]string{
	"bn": "Bangla",
	"en": "English",
}

// loadPrompt parses the embedded template for a prompt version.
func loadPrompt(version string) (*template.Template, error) {
	name := fmt.Sprintf("prompts/mcq_%s.tmpl", version)
	tmpl, err := template.ParseFS(promptFS, name)
	if err != nil {
		return nil, fmt.Errorf("%w: prompt version %q: %v", generation.ErrInvalidConfig, version, err)
	}
	return tmpl, nil
}

func renderPrompt(tmpl *template.Template, req generation.Request) (string, error) {
	data := promptData{
		UploadID:     req.UploadID.String(),
		PageNumber:   req.PageNumber,
		Language:     req.Language,
		LanguageName: languageNames[req.Language],
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}
