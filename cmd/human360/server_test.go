package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chriskillpack/human360"
	"github.com/chriskillpack/human360/analyzer"
	"github.com/chriskillpack/human360/internal/config"
	"github.com/chriskillpack/human360/internal/logger"
	"github.com/chriskillpack/human360/report"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const modelReply = `Gender: Female
Age Estimate: 34 years
Ethnicity: East Asian
Mood: Focused
Facial Expression: Neutral
Glasses: Yes
Beard: No
Hair Color: Black
Headwear: No
Emotions Detected: concentration, calm
Confidence Level: 92%`

type fakeAnalyzer struct {
	reply   string
	err     error
	healthy bool
}

func (f *fakeAnalyzer) Name() string                       { return "fake" }
func (f *fakeAnalyzer) Model() string                      { return "fake-vision" }
func (f *fakeAnalyzer) IsHealthy(ctx context.Context) bool { return f.healthy }

func (f *fakeAnalyzer) Analyze(ctx context.Context, req *analyzer.Request) (string, error) {
	return f.reply, f.err
}

func newTestServer(t *testing.T, fa *fakeAnalyzer) *Server {
	t.Helper()

	h, err := human360.Init(t.Context(), human360.InitOptions{Analyzer: fa})
	require.NoError(t, err)
	return NewServer(h, "127.0.0.1:0", 1<<20, logger.NewNop())
}

func jpegImage(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 3, 4))
	img.Set(0, 0, color.RGBA{G: 128, A: 255})
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func uploadRequest(t *testing.T, target, field string, data []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, "portrait.jpg")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.hs.Handler.ServeHTTP(rec, req)
	return rec
}

func TestServeRoot(t *testing.T) {
	s := newTestServer(t, &fakeAnalyzer{})

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Supported formats: JPEG, PNG • Max size: 5MB • Ideal ratio: 3:4")
	assert.Contains(t, rec.Body.String(), `name="portrait"`)
}

func TestServeAnalyze(t *testing.T) {
	s := newTestServer(t, &fakeAnalyzer{reply: modelReply})

	rec := serve(s, uploadRequest(t, "/analyze", uploadField, jpegImage(t)))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()

	for _, want := range []string{
		"Demographic Profile", "Physical Characteristics", "Emotional Profile",
		"Primary Mood", "Focused", "East Asian", "92%",
		"width: 92%",
		`src="data:image/jpeg;base64,`,
		`href="data:application/json;base64,`,
		`download="attribute_analysis.json"`,
		"Technical Details",
	} {
		assert.Contains(t, body, want)
	}

	// Eye Color was left out of the reply
	assert.Contains(t, body, "N/A")
	assert.Contains(t, body, "Missing: Eye Color")
}

func TestServeAnalyzeFailure(t *testing.T) {
	s := newTestServer(t, &fakeAnalyzer{err: errors.New("model unavailable")})

	rec := serve(s, uploadRequest(t, "/analyze", uploadField, jpegImage(t)))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Analysis Failed")
	assert.Contains(t, body, "No clear face detected")
	assert.Contains(t, body, "model unavailable")
}

func TestServeAnalyzeBadUpload(t *testing.T) {
	s := newTestServer(t, &fakeAnalyzer{reply: modelReply})

	t.Run("wrong field", func(t *testing.T) {
		rec := serve(s, uploadRequest(t, "/analyze", "image", jpegImage(t)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Analysis Failed")
	})

	t.Run("too large", func(t *testing.T) {
		rec := serve(s, uploadRequest(t, "/analyze", uploadField, make([]byte, 2<<20)))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("empty file", func(t *testing.T) {
		rec := serve(s, uploadRequest(t, "/analyze", uploadField, nil))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, rec.Body.String(), analyzer.ErrEmptyImage.Error())
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := serve(s, httptest.NewRequest(http.MethodGet, "/analyze", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestServeAnalyzeDefaultUploadLimit(t *testing.T) {
	h, err := human360.Init(t.Context(), human360.InitOptions{Analyzer: &fakeAnalyzer{reply: modelReply}})
	require.NoError(t, err)
	s := NewServer(h, "127.0.0.1:0", config.DefaultMaxUploadBytes, logger.NewNop())

	// The upload page suggests 5MB but larger portraits are still accepted
	img := jpegImage(t)
	img = append(img, make([]byte, 6<<20-len(img))...)

	rec := serve(s, uploadRequest(t, "/api/analyze", uploadField, img))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServeAnalyzeNonImageUpload(t *testing.T) {
	s := newTestServer(t, &fakeAnalyzer{reply: modelReply})

	rec := serve(s, uploadRequest(t, "/analyze", uploadField, []byte(`<html><script>alert(1)</script></html>`)))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.NotContains(t, body, "data:text/html")
	assert.NotContains(t, body, `alt="Uploaded Portrait"`)
	assert.Contains(t, body, "Analysis Report")
}

func TestNewResultsPage(t *testing.T) {
	h, err := human360.Init(t.Context(), human360.InitOptions{Analyzer: &fakeAnalyzer{reply: modelReply}})
	require.NoError(t, err)
	a, err := h.AnalyzePortrait(t.Context(), jpegImage(t))
	require.NoError(t, err)
	doc, err := a.Export()
	require.NoError(t, err)

	page := newResultsPage(a, jpegImage(t), doc)
	require.Len(t, page.Sections, len(report.Sections))

	var withConfidence []string
	for _, sec := range page.Sections {
		if sec.ShowConfidence {
			withConfidence = append(withConfidence, sec.Title)
		}
	}
	assert.Equal(t, []string{report.Sections[len(report.Sections)-1].Title}, withConfidence)
	assert.True(t, strings.HasPrefix(string(page.PortraitURL), "data:image/jpeg;base64,"))

	page = newResultsPage(a, []byte("plain text"), doc)
	assert.Empty(t, page.PortraitURL)
}

func TestServeAPIAnalyze(t *testing.T) {
	s := newTestServer(t, &fakeAnalyzer{reply: modelReply})

	rec := serve(s, uploadRequest(t, "/api/analyze", uploadField, jpegImage(t)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Empty(t, rec.Header().Get("Content-Disposition"))

	var doc report.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "Female", doc.Attributes[report.KeyGender])
	require.NotNil(t, doc.ConfidencePercent)
	assert.Equal(t, 92, *doc.ConfidencePercent)
	assert.Equal(t, []string{report.KeyEyeColor}, doc.MissingAttributes)

	rec = serve(s, uploadRequest(t, "/api/analyze?download=1", uploadField, jpegImage(t)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="attribute_analysis.json"`, rec.Header().Get("Content-Disposition"))
}

func TestServeAPIAnalyzeFailure(t *testing.T) {
	s := newTestServer(t, &fakeAnalyzer{err: errors.New("quota exceeded")})

	rec := serve(s, uploadRequest(t, "/api/analyze", uploadField, jpegImage(t)))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body struct {
		Error   string   `json:"error"`
		Reasons []string `json:"reasons"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "quota exceeded")
	assert.Len(t, body.Reasons, 3)
}

func TestServeHealth(t *testing.T) {
	rec := serve(newTestServer(t, &fakeAnalyzer{healthy: true}), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(newTestServer(t, &fakeAnalyzer{}), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServeMetricsAndStatic(t *testing.T) {
	s := newTestServer(t, &fakeAnalyzer{reply: modelReply})
	serve(s, uploadRequest(t, "/api/analyze", uploadField, jpegImage(t)))

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `human360_analyses_total{backend="fake",status="success"}`)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/static/style.css", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ".confidence-fill")

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunAnalyze(t *testing.T) {
	h, err := human360.Init(t.Context(), human360.InitOptions{Analyzer: &fakeAnalyzer{reply: modelReply}})
	require.NoError(t, err)

	dir := t.TempDir()
	path := filepath.Join(dir, "portrait.jpg")
	require.NoError(t, os.WriteFile(path, jpegImage(t), 0o644))

	t.Run("stdout", func(t *testing.T) {
		var stdout bytes.Buffer
		require.NoError(t, runAnalyze(t.Context(), h, path, "", &stdout, io.Discard))
		assert.True(t, json.Valid(stdout.Bytes()))
		assert.Contains(t, stdout.String(), `"confidence_percent": 92`)
	})

	t.Run("output file", func(t *testing.T) {
		out := filepath.Join(dir, report.ExportFilename)
		var stderr bytes.Buffer
		require.NoError(t, runAnalyze(t.Context(), h, path, out, io.Discard, &stderr))

		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.True(t, json.Valid(data))
		assert.Contains(t, stderr.String(), "confidence 92%")
	})

	t.Run("missing file", func(t *testing.T) {
		err := runAnalyze(t.Context(), h, filepath.Join(dir, "nope.jpg"), "", io.Discard, io.Discard)
		assert.Error(t, err)
	})

	t.Run("analysis failure", func(t *testing.T) {
		fh, err := human360.Init(t.Context(), human360.InitOptions{Analyzer: &fakeAnalyzer{err: errors.New("boom")}})
		require.NoError(t, err)

		var stderr bytes.Buffer
		err = runAnalyze(t.Context(), fh, path, "", io.Discard, &stderr)
		var ae *human360.AnalysisError
		assert.ErrorAs(t, err, &ae)
		assert.True(t, strings.Contains(stderr.String(), "Low image quality"))
	})
}
