package human360

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/chriskillpack/human360/analyzer"
	"github.com/chriskillpack/human360/internal/gemini"
	"github.com/chriskillpack/human360/internal/llama"
	"github.com/chriskillpack/human360/internal/metrics"
	"github.com/chriskillpack/human360/internal/openai"
	"github.com/chriskillpack/human360/internal/ratelimit"
	"github.com/chriskillpack/human360/report"

	"go.uber.org/zap"
)

var (
	ErrNoBackend        = errors.New("no backend selected")
	ErrMultipleBackends = errors.New("multiple backends selected, only one allowed")
)

// InitOptions selects exactly one backend. A backend is selected by
// providing its credential (GeminiAPIKey, OpenAIAPIKey) or server
// (LlamaServer), or by passing a ready made Analyzer.
type InitOptions struct {
	GeminiAPIKey string
	GeminiModel  string // if empty uses gemini.DefaultModel

	OpenAIAPIKey string
	OpenAIModel  string // if empty uses openai.DefaultModel

	LlamaServer string
	LlamaSeed   int

	Analyzer analyzer.Analyzer

	// Requests allowed to a hosted API per RateWindow, 0 disables the limit.
	RateLimit  int
	RateWindow time.Duration

	// Bounds each model call, 0 for no timeout.
	Timeout time.Duration

	HttpClient *http.Client // if nil uses http.DefaultClient
	Logger     *zap.Logger  // if nil logging is discarded
}

type Human360 struct {
	analyzer.Analyzer

	timeout time.Duration
	log     *zap.Logger
}

// Analysis is the outcome of one successful portrait analysis.
type Analysis struct {
	Report     report.Report
	Validation report.Validation
	Confidence report.Confidence

	Raw           string // the model's reply, unparsed
	Backend       string
	Model         string
	ImageMIMEType string
	AnalyzedAt    time.Time
}

// Export returns the schema-checked JSON document for the analysis.
func (a *Analysis) Export() ([]byte, error) {
	return report.Export(a.Report, a.Validation, a.Confidence)
}

func Init(ctx context.Context, hio InitOptions) (*Human360, error) {
	h := &Human360{timeout: hio.Timeout, log: hio.Logger}
	if h.log == nil {
		h.log = zap.NewNop()
	}

	httpClient := hio.HttpClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	var n int
	for _, selected := range []bool{hio.GeminiAPIKey != "", hio.OpenAIAPIKey != "", hio.LlamaServer != "", hio.Analyzer != nil} {
		if selected {
			n++
		}
	}
	switch n {
	case 0:
		return nil, ErrNoBackend
	case 1:
		// no-op
	default:
		return nil, ErrMultipleBackends
	}

	rl := ratelimit.New(hio.RateLimit, hio.RateWindow)

	var err error
	switch {
	case hio.Analyzer != nil:
		h.Analyzer = hio.Analyzer
	case hio.GeminiAPIKey != "":
		h.Analyzer, err = gemini.Init(ctx, gemini.Options{
			APIKey:     hio.GeminiAPIKey,
			Model:      hio.GeminiModel,
			HTTPClient: httpClient,
			Limiter:    rl,
		})
	case hio.OpenAIAPIKey != "":
		h.Analyzer, err = openai.Init(openai.Options{
			APIKey:     hio.OpenAIAPIKey,
			Model:      hio.OpenAIModel,
			HTTPClient: httpClient,
			Limiter:    rl,
		})
	case hio.LlamaServer != "":
		h.Analyzer = llama.Init(hio.LlamaServer, hio.LlamaSeed, httpClient)
	}
	if err != nil {
		return nil, err
	}

	return h, nil
}

// AnalyzePortrait runs one upload through the model: it builds the request,
// makes exactly one backend call and parses and validates the reply. Every
// failure is returned as an *AnalysisError.
func (h *Human360) AnalyzePortrait(ctx context.Context, image []byte) (*Analysis, error) {
	start := time.Now()
	log := h.log.With(zap.String("backend", h.Name()), zap.String("model", h.Model()))

	fail := func(err error) error {
		metrics.ObserveAnalysis(h.Name(), time.Since(start), nil, err)
		log.Warn("analysis failed", zap.Duration("took", time.Since(start)), zap.Error(err))
		return &AnalysisError{Cause: err}
	}

	req, err := analyzer.NewRequest(image)
	if err != nil {
		return nil, fail(err)
	}

	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	raw, err := h.Analyze(ctx, req)
	if err != nil {
		return nil, fail(err)
	}

	r := report.Parse(raw)
	a := &Analysis{
		Report:        r,
		Validation:    report.Validate(r),
		Confidence:    r.Confidence(),
		Raw:           raw,
		Backend:       h.Name(),
		Model:         h.Model(),
		ImageMIMEType: req.MIMEType,
		AnalyzedAt:    start,
	}

	took := time.Since(start)
	metrics.ObserveAnalysis(h.Name(), took, a.Validation, nil)
	log.Info("analysis complete",
		zap.Duration("took", took),
		zap.String("mime_type", req.MIMEType),
		zap.Int("fields", len(r)),
		zap.Strings("missing", a.Validation.Missing()),
		zap.Strings("invalid", a.Validation.Invalid()),
	)

	return a, nil
}
