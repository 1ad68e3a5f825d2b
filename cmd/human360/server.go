package main

import (
	"context"
	"embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/chriskillpack/human360"
	"github.com/chriskillpack/human360/report"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Multipart form field carrying the uploaded image
const uploadField = "portrait"

var (
	//go:embed tmpl/*.html
	tmplFS embed.FS

	//go:embed static
	staticFS embed.FS

	indexTmpl   *template.Template
	resultsTmpl *template.Template
	failedTmpl  *template.Template
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web UI",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		return runServe(cmd.Context())
	},
}

func init() {
	indexTmpl = template.Must(template.ParseFS(tmplFS, "tmpl/index.html"))
	resultsTmpl = template.Must(template.ParseFS(tmplFS, "tmpl/_results.html"))
	failedTmpl = template.Must(template.ParseFS(tmplFS, "tmpl/_failed.html"))

	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	h, err := newHuman360(ctx, cfg, log)
	if err != nil {
		return err
	}

	srv := NewServer(h, cfg.Server.Addr(), cfg.Upload.MaxBytes, log)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.hs.Addr), zap.String("backend", h.Name()), zap.String("model", h.Model()))
		if err := srv.Start(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	return g.Wait()
}

type Server struct {
	hs       *http.Server
	h        *human360.Human360
	maxBytes int64
	logger   *zap.Logger
}

func NewServer(h *human360.Human360, addr string, maxBytes int64, logger *zap.Logger) *Server {
	srv := &Server{
		h:        h,
		maxBytes: maxBytes,
		logger:   logger,
	}

	srv.hs = &http.Server{
		Addr:              addr,
		Handler:           srv.serveHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return srv
}

func (s *Server) Start() error {
	return s.hs.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.hs.Shutdown(ctx)
}

func (s *Server) serveHandler() http.Handler {
	r := mux.NewRouter()
	r.PathPrefix("/static/").Handler(http.FileServerFS(staticFS)).Methods(http.MethodGet)
	r.Handle("/analyze", s.serveAnalyze()).Methods(http.MethodPost)
	r.Handle("/api/analyze", s.serveAPIAnalyze()).Methods(http.MethodPost)
	r.Handle("/healthz", s.serveHealth()).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.Handle("/", s.serveRoot()).Methods(http.MethodGet)

	return r
}

func (s *Server) serveRoot() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		s.render(w, http.StatusOK, indexTmpl, nil)
	}
}

type field struct {
	Label string
	Value string
	// Empty when the value passed validation
	Problem string
}

type section struct {
	Title          string
	Fields         []field
	ShowConfidence bool
}

type resultsPage struct {
	PortraitURL template.URL
	Sections    []section
	Extra       []field
	Confidence  report.Confidence
	Missing     []string
	Invalid     []string
	Backend     string
	Model       string
	ExportJSON  string
	DownloadURL template.URL
	Filename    string
}

type failedPage struct {
	Reasons []string
	Detail  string
}

func (s *Server) serveAnalyze() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		img, status, err := s.readUpload(w, req)
		if err != nil {
			s.render(w, status, failedTmpl, failedPage{Detail: err.Error()})
			return
		}

		a, err := s.h.AnalyzePortrait(req.Context(), img)
		if err != nil {
			page := failedPage{Detail: err.Error()}
			var ae *human360.AnalysisError
			if errors.As(err, &ae) {
				page.Reasons = ae.Reasons()
			}
			s.render(w, http.StatusUnprocessableEntity, failedTmpl, page)
			return
		}

		doc, err := a.Export()
		if err != nil {
			s.logger.Error("export failed", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		s.render(w, http.StatusOK, resultsTmpl, newResultsPage(a, img, doc))
	}
}

func newResultsPage(a *human360.Analysis, img, doc []byte) resultsPage {
	page := resultsPage{
		PortraitURL: portraitURL(img),
		Confidence:  a.Confidence,
		Missing:     a.Validation.Missing(),
		Invalid:     a.Validation.Invalid(),
		Backend:     a.Backend,
		Model:       a.Model,
		ExportJSON:  string(doc),
		// Built here from the schema-checked export
		DownloadURL: template.URL(dataURL("application/json", doc)),
		Filename:    report.ExportFilename,
	}

	for i, sec := range report.Sections {
		// The confidence bar closes the last section
		ps := section{Title: sec.Title, ShowConfidence: i == len(report.Sections)-1}
		for _, e := range sec.Entries {
			f := field{Label: e.Label, Value: a.Report.Get(e.Key, "N/A")}
			if fr, ok := a.Validation.Field(e.Key); ok && fr.Status == report.FieldInvalid {
				f.Problem = fr.Problem
			}
			ps.Fields = append(ps.Fields, f)
		}
		page.Sections = append(page.Sections, ps)
	}
	for _, k := range a.Report.Extra() {
		page.Extra = append(page.Extra, field{Label: k, Value: a.Report[k]})
	}

	return page
}

func (s *Server) serveAPIAnalyze() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		img, status, err := s.readUpload(w, req)
		if err != nil {
			writeJSONError(w, status, err.Error(), nil)
			return
		}

		a, err := s.h.AnalyzePortrait(req.Context(), img)
		if err != nil {
			var reasons []string
			var ae *human360.AnalysisError
			if errors.As(err, &ae) {
				reasons = ae.Reasons()
			}
			writeJSONError(w, http.StatusUnprocessableEntity, err.Error(), reasons)
			return
		}

		doc, err := a.Export()
		if err != nil {
			s.logger.Error("export failed", zap.Error(err))
			writeJSONError(w, http.StatusInternalServerError, "export failed", nil)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if req.URL.Query().Get("download") == "1" {
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.ExportFilename))
		}
		w.Write(doc)
	}
}

func (s *Server) serveHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if !s.h.IsHealthy(req.Context()) {
			http.Error(w, "backend unavailable", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintln(w, "ok")
	}
}

// readUpload returns the bytes of the uploaded portrait. On error the
// returned status is the one to respond with.
func (s *Server) readUpload(w http.ResponseWriter, req *http.Request) ([]byte, int, error) {
	// Allow some headroom over the image for the multipart framing
	req.Body = http.MaxBytesReader(w, req.Body, s.maxBytes+64<<10)

	f, _, err := req.FormFile(uploadField)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, http.StatusRequestEntityTooLarge, fmt.Errorf("upload exceeds %d bytes", s.maxBytes)
		}
		return nil, http.StatusBadRequest, fmt.Errorf("missing %q upload: %w", uploadField, err)
	}
	defer f.Close()

	img, err := io.ReadAll(io.LimitReader(f, s.maxBytes+1))
	if err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(img)) > s.maxBytes {
		return nil, http.StatusRequestEntityTooLarge, fmt.Errorf("upload exceeds %d bytes", s.maxBytes)
	}

	return img, http.StatusOK, nil
}

func (s *Server) render(w http.ResponseWriter, status int, tmpl *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.Execute(w, data); err != nil {
		s.logger.Error("template execution failed", zap.String("template", tmpl.Name()), zap.Error(err))
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string, reasons []string) {
	if reasons == nil {
		reasons = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(struct {
		Error   string   `json:"error"`
		Reasons []string `json:"reasons"`
	}{msg, reasons})
}

// portraitURL returns the upload as a data: URL for an <img> tag. Uploads
// that don't sniff as an image get no URL.
func portraitURL(img []byte) template.URL {
	mimeType := http.DetectContentType(img)
	if !strings.HasPrefix(mimeType, "image/") {
		return ""
	}
	return template.URL(dataURL(mimeType, img))
}

func dataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
