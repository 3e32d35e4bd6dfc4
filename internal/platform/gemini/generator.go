package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"
	"time"

	"github.com/phrazzld/quizgen-api/internal/config"
	"github.com/phrazzld/quizgen-api/internal/generation"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// contentGenerator is the part of genai.Models the Generator uses.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Generator implements generation.Generator using the Gemini API.
type Generator struct {
	logger  *slog.Logger
	models  contentGenerator
	model   string
	prompt  *template.Template
	limiter *rate.Limiter
	timeout time.Duration
}

var _ generation.Generator = (*Generator)(nil)

// NewGenerator creates a Gemini client and wraps it in a Generator.
func NewGenerator(
	ctx context.Context,
	logger *slog.Logger,
	llm config.LLMConfig,
	promptVersion string,
) (*Generator, error) {
	if llm.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  llm.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	return newGenerator(logger, client.Models, llm, promptVersion)
}

func newGenerator(
	logger *slog.Logger,
	models contentGenerator,
	llm config.LLMConfig,
	promptVersion string,
) (*Generator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if llm.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}
	if llm.RequestsPerMinute <= 0 {
		return nil, fmt.Errorf("%w: requests per minute must be positive", generation.ErrInvalidConfig)
	}

	prompt, err := loadPrompt(promptVersion)
	if err != nil {
		return nil, err
	}

	perSecond := rate.Limit(float64(llm.RequestsPerMinute) / 60)
	return &Generator{
		logger:  logger.With("component", "gemini"),
		models:  models,
		model:   llm.ModelName,
		prompt:  prompt,
		limiter: rate.NewLimiter(perSecond, 1),
		timeout: llm.Timeout,
	}, nil
}

// Generate makes one model call for the page.
func (g *Generator) Generate(ctx context.Context, req generation.Request) (*generation.Response, error) {
	text, err := renderPrompt(g.prompt, req)
	if err != nil {
		return nil, err
	}

	parts := []*genai.Part{genai.NewPartFromText(text)}
	if req.ImageURI != "" {
		parts = append(parts, genai.NewPartFromURI(req.ImageURI, "image/png"))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %w", generation.ErrTransientFailure, err)
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	started := time.Now()
	resp, err := g.models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.2),
	})
	if err != nil {
		g.logger.ErrorContext(ctx, "Gemini API call failed",
			"page_id", req.PageID.String(),
			"error", err)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
		}
		return nil, fmt.Errorf("%w: %v", generation.ErrProviderFailure, err)
	}

	out, err := parseResponse(resp)
	if err != nil {
		g.logger.WarnContext(ctx, "Unusable Gemini response",
			"page_id", req.PageID.String(),
			"error", err)
		return nil, err
	}

	g.logger.InfoContext(ctx, "Gemini API call succeeded",
		"page_id", req.PageID.String(),
		"question_count", len(out.Questions),
		"duration_ms", time.Since(started).Milliseconds())
	return out, nil
}

// parseResponse decodes the first candidate's JSON text.
func parseResponse(resp *genai.GenerateContentResponse) (*generation.Response, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: nil response", generation.ErrInvalidResponse)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("%w: prompt blocked: %s", generation.ErrContentBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, generation.ErrContentBlocked
	}
	if candidate.Content == nil {
		return nil, fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}

	body := stripFences(sb.String())
	if body == "" {
		return nil, fmt.Errorf("%w: empty text in response", generation.ErrInvalidResponse)
	}

	var out generation.Response
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		return nil, fmt.Errorf("%w: failed to parse JSON response: %v", generation.ErrInvalidResponse, err)
	}

	if usage := resp.UsageMetadata; usage != nil {
		in := int(usage.PromptTokenCount)
		outTokens := int(usage.CandidatesTokenCount)
		out.TokensIn = &in
		out.TokensOut = &outTokens
	}
	return &out, nil
}

// stripFences removes a markdown code fence the model sometimes wraps
// around JSON despite the response MIME type.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
