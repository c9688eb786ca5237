// Package async runs extraction jobs on a bounded worker pool.
package async

import (
	"context"
	"errors"
	"time"
)

// ErrQueueClosed is returned by Enqueue after Shutdown started.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one file waiting for extraction.
type Job struct {
	Path        string
	Variant     string
	Tenant      string
	SubmittedAt time.Time
	TraceID     string
}

// ProcessFunc handles one job. The context carries the per-job timeout.
type ProcessFunc func(ctx context.Context, job Job) error

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
