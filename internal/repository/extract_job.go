package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/rfq-tracker/constants"
	"github.com/joseph-ayodele/rfq-tracker/internal/common"
	"github.com/joseph-ayodele/rfq-tracker/internal/entity"
)

const jobTable = "extract_job"

var jobColumns = []string{
	"id", "filename", "format", "variant", "tenant", "source_key", "status",
	"started_at", "finished_at", "model_name", "raw_json", "document_json",
	"warnings", "error_message",
}

// StartJob describes a new extraction attempt.
type StartJob struct {
	Filename  string
	Format    constants.Format
	Variant   string
	Tenant    string
	SourceKey string
}

// JobResult is what a successful extraction leaves behind.
type JobResult struct {
	ModelName string
	RawJSON   []byte
	Document  []byte
	Warnings  []string
}

type ExtractJobRepository interface {
	Start(ctx context.Context, in StartJob) (*entity.ExtractJob, error)
	FinishSuccess(ctx context.Context, jobID uuid.UUID, res JobResult) error
	FinishFailure(ctx context.Context, jobID uuid.UUID, message string, raw []byte) error
	Get(ctx context.Context, jobID uuid.UUID) (*entity.ExtractJob, error)
	List(ctx context.Context, limit int) ([]*entity.ExtractJob, error)
}

type extractJobRepo struct {
	drv *entsql.Driver
	log *slog.Logger
	now func() time.Time
}

func NewExtractJobRepository(drv *entsql.Driver, log *slog.Logger) ExtractJobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &extractJobRepo{drv: drv, log: log, now: func() time.Time { return time.Now().UTC() }}
}

func (r *extractJobRepo) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.drv.Dialect())
}

func (r *extractJobRepo) Start(ctx context.Context, in StartJob) (*entity.ExtractJob, error) {
	job := &entity.ExtractJob{
		ID:        uuid.New(),
		Filename:  in.Filename,
		Format:    in.Format,
		Variant:   in.Variant,
		Tenant:    in.Tenant,
		Status:    constants.JobStatusRunning,
		StartedAt: r.now(),
	}
	if in.SourceKey != "" {
		job.SourceKey = &in.SourceKey
	}

	q, args := r.builder().Insert(jobTable).
		Columns("id", "filename", "format", "variant", "tenant", "source_key", "status", "started_at").
		Values(job.ID.String(), job.Filename, string(job.Format), job.Variant, job.Tenant, nullString(in.SourceKey), string(job.Status), job.StartedAt).
		Query()
	if err := r.drv.Exec(ctx, q, args, nil); err != nil {
		r.log.Error("extract_job start failed", "filename", in.Filename, "err", err)
		return nil, fmt.Errorf("%w: start job: %v", common.ErrDatabase, err)
	}
	r.log.Info("extract_job started", "job_id", job.ID, "filename", in.Filename, "format", in.Format, "variant", in.Variant)
	return job, nil
}

func (r *extractJobRepo) FinishSuccess(ctx context.Context, jobID uuid.UUID, res JobResult) error {
	warnings, err := json.Marshal(res.Warnings)
	if err != nil {
		return fmt.Errorf("encode warnings: %w", err)
	}
	q, args := r.builder().Update(jobTable).
		Set("status", string(constants.JobStatusExtracted)).
		Set("finished_at", r.now()).
		Set("model_name", nullString(res.ModelName)).
		Set("raw_json", nullJSON(res.RawJSON)).
		Set("document_json", nullJSON(res.Document)).
		Set("warnings", string(warnings)).
		Where(entsql.EQ("id", jobID.String())).
		Query()
	if err := r.exec(ctx, jobID, q, args); err != nil {
		r.log.Error("extract_job finish(OK) failed", "job_id", jobID, "err", err)
		return err
	}
	r.log.Info("extract_job finished (EXTRACTED)", "job_id", jobID, "model", res.ModelName, "warnings", len(res.Warnings))
	return nil
}

func (r *extractJobRepo) FinishFailure(ctx context.Context, jobID uuid.UUID, message string, raw []byte) error {
	q, args := r.builder().Update(jobTable).
		Set("status", string(constants.JobStatusFailed)).
		Set("finished_at", r.now()).
		Set("error_message", message).
		Set("raw_json", nullJSON(raw)).
		Where(entsql.EQ("id", jobID.String())).
		Query()
	if err := r.exec(ctx, jobID, q, args); err != nil {
		r.log.Error("extract_job finish(FAILED) failed", "job_id", jobID, "err", err)
		return err
	}
	r.log.Warn("extract_job finished (FAILED)", "job_id", jobID, "error", message)
	return nil
}

func (r *extractJobRepo) exec(ctx context.Context, jobID uuid.UUID, q string, args []any) error {
	var res sql.Result
	if err := r.drv.Exec(ctx, q, args, &res); err != nil {
		return fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.WrapError(common.ErrNotFound, "job "+jobID.String())
	}
	return nil
}

func (r *extractJobRepo) Get(ctx context.Context, jobID uuid.UUID) (*entity.ExtractJob, error) {
	b := r.builder()
	sel := b.Select(jobColumns...).From(b.Table(jobTable))
	q, args := sel.Where(entsql.EQ(sel.C("id"), jobID.String())).Query()
	jobs, err := r.query(ctx, q, args)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, common.WrapError(common.ErrNotFound, "job "+jobID.String())
	}
	return jobs[0], nil
}

// List returns the most recent jobs first. A non-positive limit means 50.
func (r *extractJobRepo) List(ctx context.Context, limit int) ([]*entity.ExtractJob, error) {
	if limit <= 0 {
		limit = 50
	}
	b := r.builder()
	sel := b.Select(jobColumns...).From(b.Table(jobTable))
	q, args := sel.OrderBy(entsql.Desc(sel.C("started_at")), entsql.Desc(sel.C("id"))).
		Limit(limit).
		Query()
	return r.query(ctx, q, args)
}

func (r *extractJobRepo) query(ctx context.Context, q string, args []any) ([]*entity.ExtractJob, error) {
	var rows entsql.Rows
	if err := r.drv.Query(ctx, q, args, &rows); err != nil {
		r.log.Error("extract_job query failed", "err", err)
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []*entity.ExtractJob
	for rows.Next() {
		job, err := scanJob(&rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	return out, nil
}

func scanJob(rows *entsql.Rows) (*entity.ExtractJob, error) {
	var (
		id, format, status                        string
		job                                       entity.ExtractJob
		sourceKey, model, raw, doc, warns, errMsg sql.NullString
		finished                                  sql.NullTime
	)
	if err := rows.Scan(&id, &job.Filename, &format, &job.Variant, &job.Tenant, &sourceKey, &status,
		&job.StartedAt, &finished, &model, &raw, &doc, &warns, &errMsg); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("job id %q: %w", id, err)
	}
	job.ID = parsed
	job.Format = constants.Format(format)
	job.Status = constants.JobStatus(status)
	job.SourceKey = stringPtr(sourceKey)
	job.ModelName = stringPtr(model)
	job.ErrorMessage = stringPtr(errMsg)
	if finished.Valid {
		t := finished.Time
		job.FinishedAt = &t
	}
	if raw.Valid {
		job.RawJSON = json.RawMessage(raw.String)
	}
	if doc.Valid {
		job.DocumentJSON = json.RawMessage(doc.String)
	}
	if warns.Valid && warns.String != "" {
		if err := json.Unmarshal([]byte(warns.String), &job.Warnings); err != nil {
			return nil, fmt.Errorf("job warnings: %w", err)
		}
	}
	return &job, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullJSON stores payloads that are not valid JSON as a JSON string so the
// Postgres jsonb columns accept them.
func nullJSON(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	if json.Valid(b) {
		return sql.NullString{String: string(b), Valid: true}
	}
	quoted, _ := json.Marshal(string(b))
	return sql.NullString{String: string(quoted), Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

// IsNotFound reports whether err means the job does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, common.ErrNotFound)
}
