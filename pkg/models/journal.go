package models

import (
	"time"

	"github.com/google/uuid"
)

// ToolInvocation is one audited call of an agent-facing tool.
type ToolInvocation struct {
	ID         uuid.UUID `db:"id"          json:"id"`
	Tool       string    `db:"tool"        json:"tool"`
	JobID      *string   `db:"job_id"      json:"job_id,omitempty"`
	Status     string    `db:"status"      json:"status"`
	Message    string    `db:"message"     json:"message,omitempty"`
	DurationMS int64     `db:"duration_ms" json:"duration_ms"`
	CreatedAt  time.Time `db:"created_at"  json:"created_at"`
}

// DownloadRecord remembers where a job's bundle was written.
type DownloadRecord struct {
	ID        uuid.UUID        `db:"id"         json:"id"`
	JobID     string           `db:"job_id"     json:"job_id"`
	Folder    string           `db:"folder"     json:"download_folder"`
	FileCount int              `db:"file_count" json:"file_count"`
	TotalSize int64            `db:"total_size" json:"total_size"`
	Files     []DownloadedFile `db:"files"      json:"files"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}
