package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/joseph-ayodele/rfq-tracker/internal/common"
	"github.com/joseph-ayodele/rfq-tracker/internal/rfq"
	"github.com/joseph-ayodele/rfq-tracker/internal/service"
)

const (
	maxUploadBytes   = 25 << 20
	maxDocumentBytes = 5 << 20
	tenantHeader     = "X-Tenant"
)

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

type handler struct {
	svc    *service.RFQService
	db     HealthChecker
	logger *slog.Logger
}

// NewRouter wires the HTTP API onto a chi router.
func NewRouter(svc *service.RFQService, db HealthChecker, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handler{svc: svc, db: db, logger: logger}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(requestContext)
	r.Use(accessLog(logger))

	r.Get("/health", h.health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/extract", h.extract)
		r.Post("/normalize", h.normalize)
		r.Post("/render", h.render)
		r.Post("/export", h.export)

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", h.listJobs)
			r.Get("/{id}", h.getJob)
		})
	})
	return r
}

// requestContext copies the request ID and tenant into the context.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := common.WithRequestID(r.Context(), chimw.GetReqID(r.Context()))
		if tenant := r.Header.Get(tenantHeader); tenant != "" {
			ctx = common.WithTenant(ctx, tenant)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func accessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Info("http.request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"req_id", common.RequestIDFromContext(r.Context()),
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
		})
	}
}

type healthResponse struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	Timestamp string `json:"timestamp"`
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "healthy", Database: "ok", Timestamp: time.Now().UTC().Format(time.RFC3339)}
	code := http.StatusOK
	if h.db != nil {
		if err := h.db.HealthCheck(r.Context(), 2*time.Second); err != nil {
			h.logger.Warn("http.health.db_failed", "error", err)
			resp.Status, resp.Database, code = "degraded", err.Error(), http.StatusServiceUnavailable
		}
	}
	respondJSON(w, code, resp)
}

type documentResponse struct {
	JobID     string        `json:"job_id,omitempty"`
	Model     string        `json:"model,omitempty"`
	Cached    bool          `json:"cached,omitempty"`
	SourceKey string        `json:"source_key,omitempty"`
	Document  *rfq.Document `json:"document"`
	Warnings  []string      `json:"warnings"`
}

func (h *handler) extract(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "upload too large")
		return
	}

	out, err := h.svc.Extract(r.Context(), service.Upload{
		Filename: header.Filename,
		Data:     data,
		Variant:  r.URL.Query().Get("variant"),
		Tenant:   common.TenantFromContext(r.Context()),
	})
	if err != nil {
		if out != nil && len(out.Result.Violations) > 0 {
			respondViolations(w, out.Result, out.JobID.String())
			return
		}
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, documentResponse{
		JobID:     out.JobID.String(),
		Model:     out.Model,
		Cached:    out.Cached,
		SourceKey: out.SourceKey,
		Document:  out.Result.Document,
		Warnings:  nonNil(out.Warnings),
	})
}

func (h *handler) normalize(w http.ResponseWriter, r *http.Request) {
	body, ok := readDocument(w, r)
	if !ok {
		return
	}
	res, err := h.svc.Normalize(r.Context(), r.URL.Query().Get("variant"), body)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if !res.OK() {
		respondViolations(w, res, "")
		return
	}
	respondJSON(w, http.StatusOK, documentResponse{Document: res.Document, Warnings: nonNil(res.Warnings)})
}

func (h *handler) render(w http.ResponseWriter, r *http.Request) {
	h.binaryDocument(w, r, h.svc.Render, "application/pdf", "document.pdf")
}

func (h *handler) export(w http.ResponseWriter, r *http.Request) {
	h.binaryDocument(w, r, h.svc.Export, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "items.xlsx")
}

type documentFunc func(ctx context.Context, variant string, raw []byte) ([]byte, error)

func (h *handler) binaryDocument(w http.ResponseWriter, r *http.Request, fn documentFunc, contentType, filename string) {
	body, ok := readDocument(w, r)
	if !ok {
		return
	}
	variant := r.URL.Query().Get("variant")
	out, err := fn(r.Context(), variant, body)
	if err != nil {
		var verr *common.ValidationError
		if errors.As(err, &verr) {
			res, _ := h.svc.Normalize(r.Context(), variant, body)
			respondViolations(w, res, "")
			return
		}
		h.respondServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func (h *handler) listJobs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 500 {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	jobs, err := h.svc.Jobs(r.Context(), limit)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (h *handler) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.Job(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, job)
}

func readDocument(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentBytes))
	if err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "document too large")
		return nil, false
	}
	if len(body) == 0 {
		respondError(w, http.StatusBadRequest, "request body is required")
		return nil, false
	}
	return body, true
}

type violationResponse struct {
	Error      string              `json:"error"`
	JobID      string              `json:"job_id,omitempty"`
	Violations []common.FieldError `json:"violations"`
	Warnings   []string            `json:"warnings"`
}

func respondViolations(w http.ResponseWriter, res rfq.Result, jobID string) {
	msg := "validation failed"
	if err := res.Err(); err != nil {
		msg = err.Error()
	}
	respondJSON(w, http.StatusUnprocessableEntity, violationResponse{
		Error:      msg,
		JobID:      jobID,
		Violations: res.Violations,
		Warnings:   nonNil(res.Warnings),
	})
}

func (h *handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, common.ErrValidation):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, common.ErrInvalidInput):
		code = http.StatusBadRequest
	case errors.Is(err, common.ErrUnsupported):
		code = http.StatusUnsupportedMediaType
	case errors.Is(err, common.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, common.ErrExtractorSetup):
		code = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		code = http.StatusGatewayTimeout
	}
	if code >= http.StatusInternalServerError {
		h.logger.Error("http.request.failed", "path", r.URL.Path, "req_id", common.RequestIDFromContext(r.Context()), "error", err)
	}
	respondError(w, code, err.Error())
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
