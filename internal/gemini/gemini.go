package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/chriskillpack/human360/analyzer"
	"github.com/chriskillpack/human360/internal/ratelimit"

	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.5-flash"

type Options struct {
	APIKey     string
	Model      string
	HTTPClient *http.Client
	Limiter    *ratelimit.Limiter

	// BaseURL overrides the Gemini API endpoint, leave empty for the default.
	BaseURL string
}

type gemini struct {
	client *genai.Client
	model  string
	rl     *ratelimit.Limiter
}

var _ analyzer.Analyzer = &gemini{}

func Init(ctx context.Context, opts Options) (*gemini, error) {
	if opts.APIKey == "" {
		return nil, errors.New("gemini: missing API key")
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      opts.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  opts.HTTPClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: opts.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: creating client: %w", err)
	}

	return &gemini{client: client, model: opts.Model, rl: opts.Limiter}, nil
}

func (g *gemini) Name() string { return "gemini" }

func (g *gemini) Model() string { return g.model }

// IsHealthy reports whether a client is configured. The Gemini API has no
// cheap unauthenticated health check, so this never reports false once Init
// succeeds.
func (g *gemini) IsHealthy(ctx context.Context) bool { return g.client != nil }

func (g *gemini) Analyze(ctx context.Context, req *analyzer.Request) (string, error) {
	if err := g.rl.Acquire(ctx); err != nil {
		return "", err
	}

	parts := []*genai.Part{
		genai.NewPartFromText(req.Prompt),
		genai.NewPartFromBytes(req.Data, req.MIMEType),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{})
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("gemini: prompt blocked: %s", resp.PromptFeedback.BlockReason)
		}
		return "", errors.New("gemini: no candidates in response")
	}

	// Safety and recitation blocks come back as a candidate with no content
	cand := resp.Candidates[0]
	switch cand.FinishReason {
	case "", genai.FinishReasonStop, genai.FinishReasonMaxTokens:
	default:
		return "", fmt.Errorf("gemini: response finished with %s", cand.FinishReason)
	}
	if cand.Content == nil || len(cand.Content.Parts) == 0 {
		return "", errors.New("gemini: response has no content")
	}

	return resp.Text(), nil
}
