// Package service runs the extraction and rendering pipelines on top of the
// rfq normalizer and its collaborators.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/rfq-tracker/constants"
	"github.com/joseph-ayodele/rfq-tracker/internal/common"
	"github.com/joseph-ayodele/rfq-tracker/internal/entity"
	"github.com/joseph-ayodele/rfq-tracker/internal/export"
	"github.com/joseph-ayodele/rfq-tracker/internal/extract"
	"github.com/joseph-ayodele/rfq-tracker/internal/render"
	"github.com/joseph-ayodele/rfq-tracker/internal/repository"
	"github.com/joseph-ayodele/rfq-tracker/internal/rfq"
	"github.com/joseph-ayodele/rfq-tracker/internal/storage"
	"github.com/joseph-ayodele/rfq-tracker/internal/textextract"
)

const (
	maxFilenameLength = 255
	maxTenantLength   = 64
)

// Deps are the collaborators of an RFQService. Store is optional; without it
// uploads and rendered PDFs are not kept.
type Deps struct {
	Jobs      repository.ExtractJobRepository
	Extractor extract.Extractor
	Renderer  render.Renderer
	Exporter  *export.Service
	Store     storage.Store

	Brand render.Brand
	// TenantDefaults returns metadata default overrides for a tenant.
	TenantDefaults func(tenant string) map[string]string
	// KeepRendered stores every rendered PDF when a Store is configured.
	KeepRendered bool
}

// Upload is one file submitted for extraction.
type Upload struct {
	Filename string
	Data     []byte
	Variant  string
	Tenant   string
}

// ExtractResult is what one extraction produced.
type ExtractResult struct {
	JobID     uuid.UUID  `json:"job_id"`
	Model     string     `json:"model"`
	Cached    bool       `json:"cached"`
	SourceKey string     `json:"source_key,omitempty"`
	Result    rfq.Result `json:"-"`
	// Warnings joins sanitizer renames and normalizer soft misses.
	Warnings []string `json:"warnings"`
}

// RFQService coordinates type detection, extraction, normalization,
// persistence and rendering.
type RFQService struct {
	logger *slog.Logger
	deps   Deps
	now    func() time.Time
}

func NewRFQService(logger *slog.Logger, deps Deps) *RFQService {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Renderer == nil {
		deps.Renderer = render.NewPDF(logger)
	}
	if deps.Exporter == nil {
		deps.Exporter = export.NewService(logger)
	}
	if deps.TenantDefaults == nil {
		deps.TenantDefaults = func(string) map[string]string { return nil }
	}
	return &RFQService{logger: logger, deps: deps, now: time.Now}
}

// normalizer builds the normalizer for a variant with the tenant's defaults applied.
func (s *RFQService) normalizer(variant, tenant string) (*rfq.Normalizer, error) {
	if err := common.NewValidator().
		Field("tenant", tenant, common.MaxLength(maxTenantLength)).
		Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}
	v, err := rfq.ParseVariant(variant)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}
	schema, err := rfq.SchemaFor(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}
	return rfq.NewNormalizer(schema.WithDefaults(s.deps.TenantDefaults(tenant))), nil
}

// Extract runs the extraction pipeline for one upload and records it as a
// job. When the model output cannot be normalized the job is marked FAILED
// and the result is returned together with a *common.ValidationError so the
// caller can report both the job and the violations.
func (s *RFQService) Extract(ctx context.Context, up Upload) (*ExtractResult, error) {
	start := s.now()
	if err := common.NewValidator().
		Field("file", up.Data, common.Required).
		Field("filename", up.Filename, common.MaxLength(maxFilenameLength)).
		Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}
	norm, err := s.normalizer(up.Variant, up.Tenant)
	if err != nil {
		return nil, err
	}
	variant := norm.Schema().Variant

	mime, format, err := textextract.Identify(up.Data)
	if err != nil {
		s.logger.Warn("service.extract.unsupported", "filename", up.Filename, "mime", mime)
		return nil, err
	}
	if format != constants.FormatJSON && s.deps.Extractor == nil {
		return nil, common.WrapError(common.ErrExtractorSetup, "no extraction model")
	}
	if s.deps.Jobs == nil {
		return nil, common.WrapError(common.ErrExtractorSetup, "no job store")
	}

	out := &ExtractResult{}
	if s.deps.Store != nil {
		key := fmt.Sprintf("uploads/%s/%s-%s", start.UTC().Format("2006/01/02"), uuid.NewString(), safeName(up.Filename))
		if _, err := s.deps.Store.Put(ctx, key, up.Data, mime); err != nil {
			return nil, fmt.Errorf("store upload: %w", err)
		}
		out.SourceKey = key
	}

	job, err := s.deps.Jobs.Start(ctx, repository.StartJob{
		Filename:  up.Filename,
		Format:    format,
		Variant:   string(variant),
		Tenant:    up.Tenant,
		SourceKey: out.SourceKey,
	})
	if err != nil {
		return nil, err
	}
	out.JobID = job.ID
	log := s.logger.With("job_id", job.ID, "filename", up.Filename, "variant", variant)

	raw, err := s.readSource(ctx, log, up, mime, format, variant)
	if err != nil {
		s.fail(ctx, job.ID, err.Error(), raw.JSON)
		log.Error("service.extract.model_failed", "error", err)
		return out, fmt.Errorf("extract %s: %w", up.Filename, err)
	}
	out.Model, out.Cached = raw.Model, raw.Cached

	clean, renamed, err := extract.Sanitize(raw.JSON, log)
	if err != nil {
		s.fail(ctx, job.ID, err.Error(), raw.JSON)
		log.Error("service.extract.sanitize_failed", "error", err)
		return out, fmt.Errorf("%w: model output is not a JSON object: %v", common.ErrValidation, err)
	}

	res := norm.ValidateJSON(clean)
	out.Result = res
	out.Warnings = append(renamed, res.Warnings...)
	if err := res.Err(); err != nil {
		s.fail(ctx, job.ID, err.Error(), raw.JSON)
		log.Warn("service.extract.invalid", "violations", len(res.Violations))
		return out, err
	}
	if len(res.Warnings) > 0 {
		log.Warn("service.extract.soft_misses", "warnings", res.Warnings)
	}

	docJSON, err := json.Marshal(res.Document)
	if err != nil {
		s.fail(ctx, job.ID, err.Error(), raw.JSON)
		return out, fmt.Errorf("encode document: %w", err)
	}
	if err := s.deps.Jobs.FinishSuccess(context.WithoutCancel(ctx), job.ID, repository.JobResult{
		ModelName: raw.Model,
		RawJSON:   raw.JSON,
		Document:  docJSON,
		Warnings:  out.Warnings,
	}); err != nil {
		return out, err
	}

	log.Info("service.extract.ok",
		"model", raw.Model,
		"cached", raw.Cached,
		"items", len(res.Document.Items),
		"warnings", len(out.Warnings),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// readSource produces raw document JSON. JSON uploads are a reviewed round
// trip and skip the model.
func (s *RFQService) readSource(ctx context.Context, log *slog.Logger, up Upload, mime string, format constants.Format, variant rfq.Variant) (extract.Raw, error) {
	if format == constants.FormatJSON {
		return extract.Raw{JSON: up.Data, Model: "upload"}, nil
	}
	src := extract.Source{
		Filename: up.Filename,
		MIMEType: mime,
		Data:     up.Data,
		Variant:  variant,
	}
	if format == constants.FormatPDF {
		text, pages, err := textextract.PDFText(up.Data)
		if err != nil {
			log.Warn("service.extract.pdf_text_failed", "error", err)
		}
		log.Debug("service.extract.pdf_text", "pages", pages, "chars", len(text))
		src.Text = text
	}
	return s.deps.Extractor.Extract(ctx, src)
}

func (s *RFQService) fail(ctx context.Context, jobID uuid.UUID, msg string, raw []byte) {
	if err := s.deps.Jobs.FinishFailure(context.WithoutCancel(ctx), jobID, msg, raw); err != nil {
		s.logger.Error("service.job.finish_failed", "job_id", jobID, "error", err)
	}
}

// ExtractFile reads path and runs Extract on it.
func (s *RFQService) ExtractFile(ctx context.Context, path, variant, tenant string) (*ExtractResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return s.Extract(ctx, Upload{
		Filename: filepath.Base(path),
		Data:     data,
		Variant:  variant,
		Tenant:   tenant,
	})
}

// Normalize validates a reviewed document. The error is reserved for
// requests that cannot be attempted, such as an unknown variant; validation
// failures are reported in the Result.
func (s *RFQService) Normalize(ctx context.Context, variant string, raw []byte) (rfq.Result, error) {
	norm, err := s.normalizer(variant, common.TenantFromContext(ctx))
	if err != nil {
		return rfq.Result{}, err
	}
	res := norm.ValidateJSON(raw)
	if len(res.Warnings) > 0 {
		s.logger.Warn("service.normalize.soft_misses", "variant", variant, "warnings", res.Warnings)
	}
	return res, nil
}

// document re-normalizes a reviewed document before it leaves the system.
func (s *RFQService) document(ctx context.Context, variant string, raw []byte) (*rfq.Document, error) {
	res, err := s.Normalize(ctx, variant, raw)
	if err != nil {
		return nil, err
	}
	if err := res.Err(); err != nil {
		return nil, err
	}
	return res.Document, nil
}

// Render re-validates a reviewed document and lays it out as PDF.
func (s *RFQService) Render(ctx context.Context, variant string, raw []byte) ([]byte, error) {
	doc, err := s.document(ctx, variant, raw)
	if err != nil {
		return nil, err
	}
	pdf, err := s.deps.Renderer.Render(ctx, doc, s.deps.Brand)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	if s.deps.Store != nil && s.deps.KeepRendered {
		key := fmt.Sprintf("rendered/%s/%s.pdf", doc.Variant, uuid.NewString())
		if loc, err := s.deps.Store.Put(ctx, key, pdf, "application/pdf"); err != nil {
			s.logger.Warn("service.render.store_failed", "key", key, "error", err)
		} else {
			s.logger.Info("service.render.stored", "location", loc)
		}
	}
	return pdf, nil
}

// Export re-validates a reviewed document and writes it as a workbook.
func (s *RFQService) Export(ctx context.Context, variant string, raw []byte) ([]byte, error) {
	doc, err := s.document(ctx, variant, raw)
	if err != nil {
		return nil, err
	}
	return s.deps.Exporter.ItemsXLSX(doc)
}

// Job looks up one extraction job by its textual ID.
func (s *RFQService) Job(ctx context.Context, id string) (*entity.ExtractJob, error) {
	jobID, err := uuid.Parse(id)
	if err != nil {
		return nil, common.WrapError(common.ErrInvalidInput, "job id")
	}
	return s.deps.Jobs.Get(ctx, jobID)
}

// Jobs lists recent extraction jobs, newest first.
func (s *RFQService) Jobs(ctx context.Context, limit int) ([]*entity.ExtractJob, error) {
	return s.deps.Jobs.List(ctx, limit)
}

func safeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "upload"
	}
	return strings.Map(func(r rune) rune {
		if r == '/' || r == ' ' {
			return '_'
		}
		return r
	}, name)
}
