// Package httpapi exposes the consensus engine over HTTP: batch ingestion, trust and
// aggregate lookups, published artifacts, health and metrics.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"SlopConsensus/internal/domain"
	"SlopConsensus/internal/metrics"
	"SlopConsensus/internal/ports"
)

const maxBodyBytes = 1 << 20

// ConsensusService is what the handlers need from the server use cases.
type ConsensusService interface {
	SubmitBatch(ctx context.Context, entries []domain.BatchEntry) ([]domain.EntryResult, error)
	Register(ctx context.Context, reporterID string) (domain.TrustProfile, error)
	TrustProfile(ctx context.Context, reporterID string) (domain.TrustProfile, error)
	Aggregate(ctx context.Context, itemID string) (domain.ItemAggregate, error)
}

// Config tunes the router.
type Config struct {
	RateLimitRequests int
	RateLimitWindow   time.Duration
	RequestTimeout    time.Duration
	MaxBatchSize      int
}

// BatchRequest is the body of POST /v1/reports/batch.
type BatchRequest struct {
	Entries []domain.BatchEntry `json:"entries" validate:"required,min=1"`
}

// BatchResponse carries one result per submitted entry, in order.
type BatchResponse struct {
	Results []domain.EntryResult `json:"results"`
}

// RegisterRequest is the body of POST /v1/reporters.
type RegisterRequest struct {
	ReporterID string `json:"reporterId" validate:"required,max=128"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler serves the API.
type Handler struct {
	svc      ConsensusService
	blobs    ports.BlobStore
	cfg      Config
	logger   *slog.Logger
	validate *validator.Validate
}

// NewHandler builds the HTTP handler.
func NewHandler(svc ConsensusService, blobs ports.BlobStore, cfg Config, logger *slog.Logger) *Handler {
	if cfg.RateLimitRequests <= 0 {
		cfg.RateLimitRequests = 120
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = time.Minute
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		svc:      svc,
		blobs:    blobs,
		cfg:      cfg,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Routes assembles the chi router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(h.observe)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(h.cfg.RequestTimeout))
		r.Use(httprate.LimitByIP(h.cfg.RateLimitRequests, h.cfg.RateLimitWindow))

		r.Post("/reports/batch", h.submitBatch)
		r.Post("/reporters", h.register)
		r.Get("/reporters/{reporterID}/trust", h.trustProfile)
		r.Get("/items/{itemID}", h.aggregate)
		r.Get("/blobs/{name}", h.blob)
	})
	return r
}

func (h *Handler) submitBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !h.decode(w, r, &req) {
		return
	}
	if len(req.Entries) > h.cfg.MaxBatchSize {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("at most %d entries per batch", h.cfg.MaxBatchSize))
		return
	}

	results := make([]domain.EntryResult, len(req.Entries))
	valid := make([]domain.BatchEntry, 0, len(req.Entries))
	positions := make([]int, 0, len(req.Entries))
	for i, entry := range req.Entries {
		if err := h.validate.Struct(entry); err != nil {
			results[i] = domain.EntryResult{Index: i, ItemID: entry.ItemID, Status: domain.StatusRejected, Error: describe(err)}
			continue
		}
		valid = append(valid, entry)
		positions = append(positions, i)
	}

	if len(valid) > 0 {
		submitted, err := h.svc.SubmitBatch(r.Context(), valid)
		if err != nil {
			h.logger.Error("submit batch", "err", err)
			writeError(w, http.StatusServiceUnavailable, "batch could not be processed")
			return
		}
		for _, res := range submitted {
			if res.Index < 0 || res.Index >= len(positions) {
				continue
			}
			res.Index = positions[res.Index]
			results[res.Index] = res
		}
	}
	writeJSON(w, http.StatusOK, BatchResponse{Results: results})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}
	profile, err := h.svc.Register(r.Context(), req.ReporterID)
	if err != nil {
		h.fail(w, "register reporter", err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) trustProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.svc.TrustProfile(r.Context(), chi.URLParam(r, "reporterID"))
	if err != nil {
		h.fail(w, "trust profile", err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *Handler) aggregate(w http.ResponseWriter, r *http.Request) {
	agg, err := h.svc.Aggregate(r.Context(), chi.URLParam(r, "itemID"))
	if err != nil {
		h.fail(w, "aggregate", err)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

func (h *Handler) blob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name != domain.SnapshotBlobName && name != domain.DeltaBlobName {
		writeError(w, http.StatusNotFound, "unknown blob")
		return
	}
	data, err := h.blobs.Get(r.Context(), name)
	if errors.Is(err, domain.ErrBlobNotFound) {
		writeError(w, http.StatusNotFound, "blob not published yet")
		return
	}
	if err != nil {
		h.fail(w, "read blob", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, describe(err))
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	h.logger.Error(op, "err", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

// observe logs each request and counts it by route pattern.
func (h *Handler) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		started := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequests.WithLabelValues(route, r.Method, fmt.Sprint(status)).Inc()
		h.logger.Debug("http request",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration", time.Since(started),
			"request_id", chimiddleware.GetReqID(r.Context()),
		)
	})
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
