package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/chriskillpack/human360/analyzer"
	"github.com/chriskillpack/human360/internal/ratelimit"

	oagc "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const DefaultModel = oagc.ChatModelGPT4oMini

// Upper bound on the reply. The attribute list is twelve short lines.
const maxTokens = 500

type Options struct {
	APIKey     string
	Model      string
	HTTPClient *http.Client
	Limiter    *ratelimit.Limiter

	// BaseURL overrides the OpenAI API endpoint, leave empty for the default.
	BaseURL string
}

type openai struct {
	oac   oagc.Client
	model string
	rl    *ratelimit.Limiter
}

var _ analyzer.Analyzer = &openai{}

func Init(opts Options) (*openai, error) {
	if opts.APIKey == "" {
		return nil, errors.New("openai: missing API key")
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}

	ropts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		// One upload is one request, failures go back to the user.
		option.WithMaxRetries(0),
	}
	if opts.HTTPClient != nil {
		ropts = append(ropts, option.WithHTTPClient(opts.HTTPClient))
	}
	if opts.BaseURL != "" {
		ropts = append(ropts, option.WithBaseURL(opts.BaseURL))
	}

	return &openai{
		oac:   oagc.NewClient(ropts...),
		model: opts.Model,
		rl:    opts.Limiter,
	}, nil
}

func (o *openai) Name() string { return "openai" }

func (o *openai) Model() string { return o.model }

// IsHealthy always reports true, Init has already checked the credentials
// are present.
func (o *openai) IsHealthy(ctx context.Context) bool { return true }

func (o *openai) Analyze(ctx context.Context, req *analyzer.Request) (string, error) {
	// Rate limit use of the OpenAI API
	if err := o.rl.Acquire(ctx); err != nil {
		return "", err
	}

	params := oagc.ChatCompletionNewParams{
		Model: o.model,
		Messages: []oagc.ChatCompletionMessageParamUnion{
			oagc.UserMessage([]oagc.ChatCompletionContentPartUnionParam{
				oagc.TextContentPart(req.Prompt),
				oagc.ImageContentPart(oagc.ChatCompletionContentPartImageImageURLParam{
					URL: req.DataURL(),
				}),
			}),
		},
		MaxCompletionTokens: oagc.Int(maxTokens),
	}
	resp, err := o.oac.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices in response")
	}

	if reason := resp.Choices[0].FinishReason; reason == "content_filter" {
		return "", fmt.Errorf("openai: response finished with %s", reason)
	}

	msg := resp.Choices[0].Message
	if msg.Refusal != "" {
		return "", fmt.Errorf("openai: model refused: %s", msg.Refusal)
	}

	return msg.Content, nil
}
