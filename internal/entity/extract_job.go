package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/rfq-tracker/constants"
)

// ExtractJob represents one extraction attempt for data transfer between layers.
type ExtractJob struct {
	ID           uuid.UUID           `json:"id"`
	Filename     string              `json:"filename"`
	Format       constants.Format    `json:"format"`
	Variant      string              `json:"variant"`
	Tenant       string              `json:"tenant,omitempty"`
	SourceKey    *string             `json:"source_key,omitempty"`
	Status       constants.JobStatus `json:"status"`
	StartedAt    time.Time           `json:"started_at"`
	FinishedAt   *time.Time          `json:"finished_at,omitempty"`
	ModelName    *string             `json:"model_name,omitempty"`
	RawJSON      json.RawMessage     `json:"raw_json,omitempty"`
	DocumentJSON json.RawMessage     `json:"document_json,omitempty"`
	Warnings     []string            `json:"warnings,omitempty"`
	ErrorMessage *string             `json:"error_message,omitempty"`
}
