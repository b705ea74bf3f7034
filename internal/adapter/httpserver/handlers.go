package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/truescore/truescore/internal/config"
	"github.com/truescore/truescore/internal/domain"
	"github.com/truescore/truescore/internal/refdata"
	"github.com/truescore/truescore/internal/scoring"
	"github.com/truescore/truescore/internal/usecase"
)

// Server aggregates handler dependencies.
type Server struct {
	Cfg        config.Config
	Scores     *usecase.ScoreService
	Research   *usecase.ResearchService
	Classifier *scoring.Classifier
	Tables     *refdata.Tables
	DBCheck    func(ctx context.Context) error
	RedisCheck func(ctx context.Context) error
}

// NewServer constructs an HTTP server with all handlers and checks wired.
func NewServer(cfg config.Config, scores *usecase.ScoreService, research *usecase.ResearchService, classifier *scoring.Classifier, tables *refdata.Tables, dbCheck func(context.Context) error, redisCheck func(context.Context) error) *Server {
	return &Server{Cfg: cfg, Scores: scores, Research: research, Classifier: classifier, Tables: tables, DBCheck: dbCheck, RedisCheck: redisCheck}
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

// allowedImageMIME enforces the sniffed-content allowlist for scan uploads.
func allowedImageMIME(m string) bool {
	switch strings.ToLower(m) {
	case "image/jpeg", "image/png", "image/webp", "image/gif":
		return true
	}
	return false
}

func acceptsJSON(w http.ResponseWriter, r *http.Request) bool {
	a := r.Header.Get("Accept")
	if a == "" || a == "*/*" || strings.Contains(a, "application/json") {
		return true
	}
	writeJSON(w, http.StatusNotAcceptable, errorEnvelope{Error: apiError{Code: "INVALID_ARGUMENT", Message: "not acceptable", Details: map[string]any{"accept": a}}})
	return false
}

type productRequest struct {
	ProductName string   `json:"product_name" validate:"required,max=300"`
	Brand       string   `json:"brand" validate:"max=200"`
	Category    string   `json:"category" validate:"max=100"`
	Ingredients []string `json:"ingredients" validate:"max=200,dive,max=300"`
	Claims      []string `json:"claims" validate:"max=50,dive,max=300"`
}

func decodeProductRequest(w http.ResponseWriter, r *http.Request, req *productRequest) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument), nil)
		return false
	}
	if err := getValidator().Struct(req); err != nil {
		verrs := map[string]string{}
		if ve, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range ve {
				verrs[strings.ToLower(fe.Field())] = fe.Tag()
			}
		}
		writeError(w, r, fmt.Errorf("%w: validation failed", domain.ErrInvalidArgument), verrs)
		return false
	}
	return true
}

type scoreResponseBody struct {
	domain.ScoreResult
	CacheKey string `json:"cache_key"`
	Cached   bool   `json:"cached"`
}

// ScoreHandler computes a full report for a known product.
func (s *Server) ScoreHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		var req productRequest
		if !decodeProductRequest(w, r, &req) {
			return
		}
		resp, err := s.Scores.Score(r.Context(), usecase.ScoreRequest{
			ProductName: req.ProductName,
			Brand:       req.Brand,
			Category:    req.Category,
			Ingredients: req.Ingredients,
			Claims:      req.Claims,
		})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, scoreResponseBody{ScoreResult: resp.Result, CacheKey: resp.Key, Cached: resp.Cached})
	}
}

// ScanHandler identifies a product photo and scores it.
func (s *Server) ScanHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		if !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
			writeError(w, r, fmt.Errorf("%w: content-type must be multipart/form-data", domain.ErrInvalidArgument), nil)
			return
		}
		maxBytes := s.Cfg.MaxUploadMB * 1024 * 1024
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "too large") {
				writeJSON(w, http.StatusRequestEntityTooLarge, errorEnvelope{Error: apiError{Code: "INVALID_ARGUMENT", Message: "payload too large", Details: map[string]any{"max_mb": s.Cfg.MaxUploadMB}}})
				return
			}
			writeError(w, r, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err), nil)
			return
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: image file required", domain.ErrInvalidArgument), map[string]string{"field": "image"})
			return
		}
		defer func() { _ = file.Close() }()
		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: image read: %v", domain.ErrInvalidArgument, err), nil)
			return
		}

		mt := mimetype.Detect(data)
		if !allowedImageMIME(mt.String()) {
			writeJSON(w, http.StatusUnsupportedMediaType, errorEnvelope{Error: apiError{Code: "INVALID_ARGUMENT", Message: "unsupported media type for image", Details: map[string]any{"mime": mt.String(), "filename": header.Filename}}})
			return
		}

		resp, err := s.Scores.Scan(r.Context(), data, mt.String())
		if err != nil {
			writeError(w, r, fmt.Errorf("scan: %w", err), nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"identification": resp.Identification,
			"result":         scoreResponseBody{ScoreResult: resp.Score.Result, CacheKey: resp.Score.Key, Cached: resp.Score.Cached},
			"degraded":       resp.Degraded,
		})
	}
}

// DeepResearchHandler starts an async research job or replays a cached report.
func (s *Server) DeepResearchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		var req productRequest
		if !decodeProductRequest(w, r, &req) {
			return
		}
		resp, err := s.Research.Start(r.Context(), domain.ResearchRequest{
			ProductName: req.ProductName,
			Brand:       req.Brand,
			Category:    req.Category,
			Ingredients: req.Ingredients,
		})
		if err != nil {
			writeError(w, r, fmt.Errorf("research start: %w", err), nil)
			return
		}
		if resp.Cached {
			writeJSON(w, http.StatusOK, map[string]any{
				"job_id": resp.Job.ID,
				"status": string(resp.Job.Status),
				"cached": true,
			})
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{
			"job_id":           resp.Job.ID,
			"status":           string(resp.Job.Status),
			"check_status_url": "/v1/jobs/" + resp.Job.ID,
		})
	}
}

// JobStatusHandler returns the full job record.
func (s *Server) JobStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		id := chi.URLParam(r, "id")
		if id == "" {
			writeError(w, r, fmt.Errorf("%w: id missing", domain.ErrInvalidArgument), nil)
			return
		}
		job, err := s.Research.Job(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}

func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	v, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return v
}

// ReportHandler returns the cached research report for a product.
func (s *Server) ReportHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		brand, name := pathParam(r, "brand"), pathParam(r, "name")
		entry, err := s.Research.Report(r.Context(), brand, name)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, entry.Report)
	}
}

// ReportPDFHandler serves the stored rendered report.
func (s *Server) ReportPDFHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		brand, name := pathParam(r, "brand"), pathParam(r, "name")
		pdf, err := s.Research.PDF(r.Context(), brand, name)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(pdf)
	}
}

// AttachPDFHandler stores a rendered report against a cached report.
// The renderer is an external collaborator; only the bytes land here.
func (s *Server) AttachPDFHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		maxBytes := s.Cfg.MaxUploadMB * 1024 * 1024
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		data, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, r, fmt.Errorf("%w: body read: %v", domain.ErrInvalidArgument, err), nil)
			return
		}
		if mt := mimetype.Detect(data); !mt.Is("application/pdf") {
			writeJSON(w, http.StatusUnsupportedMediaType, errorEnvelope{Error: apiError{Code: "INVALID_ARGUMENT", Message: "body must be a PDF", Details: map[string]any{"mime": mt.String()}}})
			return
		}
		brand, name := pathParam(r, "brand"), pathParam(r, "name")
		if err := s.Research.AttachPDF(r.Context(), brand, name, data); err != nil {
			writeError(w, r, err, nil)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// IngredientHandler classifies a single ingredient by name.
func (s *Server) IngredientHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		name := strings.TrimSpace(pathParam(r, "name"))
		if name == "" {
			writeError(w, r, fmt.Errorf("%w: name missing", domain.ErrInvalidArgument), nil)
			return
		}
		writeJSON(w, http.StatusOK, s.Classifier.Classify(name))
	}
}

// StatsHandler reports reference table sizes.
func (s *Server) StatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, s.Tables.Stats())
	}
}

// ReadyzHandler returns a readiness handler that probes Postgres and Redis.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		checks := make([]check, 0, 2)
		if s.DBCheck != nil {
			if err := s.DBCheck(ctx); err != nil {
				checks = append(checks, check{Name: "db", OK: false, Details: err.Error()})
			} else {
				checks = append(checks, check{Name: "db", OK: true})
			}
		}
		if s.RedisCheck != nil {
			if err := s.RedisCheck(ctx); err != nil {
				checks = append(checks, check{Name: "redis", OK: false, Details: err.Error()})
			} else {
				checks = append(checks, check{Name: "redis", OK: true})
			}
		}
		ok := true
		for _, c := range checks {
			if !c.OK {
				ok = false
				break
			}
		}
		st := http.StatusOK
		if !ok {
			st = http.StatusServiceUnavailable
		}
		writeJSON(w, st, map[string]any{"checks": checks})
	}
}
