package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/metrics"
)

// Notices shown instead of charts.
const (
	NoticeNoData  = "data file not found"
	NoticeNoMatch = "no rows match the selected filters"
)

// Server wires HTTP handlers to the dataset loader.
type Server struct {
	router chi.Router
	loader *Loader
	cfg    SummaryConfig
	logger *zap.Logger
	page   *template.Template
}

// NewServer constructs a Server with middleware and routes.
func NewServer(loader *Loader, cfg SummaryConfig, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		loader: loader,
		cfg:    cfg,
		logger: logger,
		page:   template.Must(template.New("index").Funcs(templateFuncs).Parse(indexTemplate)),
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(30 * time.Second))

	r.Get("/", s.index)
	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())
	r.Route("/api", func(r chi.Router) {
		r.Get("/summary", s.summary)
		r.Get("/options", s.options)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", zap.String("addr", addr), zap.String("data_path", s.loader.Path()))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve dashboard: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown dashboard: %w", err)
	}
	return nil
}

type summaryResponse struct {
	Filter  Filter   `json:"filter"`
	Notice  string   `json:"notice,omitempty"`
	Summary *Summary `json:"summary,omitempty"`
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if _, err := s.loader.Rows(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) options(w http.ResponseWriter, _ *http.Request) {
	rows, err := s.loader.Rows()
	if err != nil {
		s.writeLoadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BuildOptions(rows))
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := s.loader.Rows()
	if err != nil {
		s.writeLoadError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.evaluate(filter, rows))
}

func (s *Server) evaluate(filter Filter, rows []Row) summaryResponse {
	resp := summaryResponse{Filter: filter}
	matched := filter.Apply(rows)
	if len(matched) == 0 {
		resp.Notice = NoticeNoMatch
		return resp
	}
	sum := Summarize(matched, s.cfg)
	resp.Summary = &sum
	return resp
}

func (s *Server) writeLoadError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrDataNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": NoticeNoData, "path": s.loader.Path()})
		return
	}
	s.logger.Error("dataset load failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "failed to load dataset")
}

type indexView struct {
	Path    string
	Error   string
	Options Options
	summaryResponse
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	view := indexView{Path: s.loader.Path()}
	status := http.StatusOK

	filter, err := ParseFilter(r.URL.Query())
	rows, loadErr := s.loader.Rows()
	switch {
	case errors.Is(loadErr, ErrDataNotFound):
		view.Error = NoticeNoData
		status = http.StatusNotFound
	case loadErr != nil:
		s.logger.Error("dataset load failed", zap.Error(loadErr))
		view.Error = "failed to load dataset"
		status = http.StatusInternalServerError
	case err != nil:
		view.Error = err.Error()
		view.Options = BuildOptions(rows)
		status = http.StatusBadRequest
	default:
		view.Options = BuildOptions(rows)
		view.summaryResponse = s.evaluate(filter, rows)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.page.Execute(w, view); err != nil {
		s.logger.Error("render dashboard failed", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
