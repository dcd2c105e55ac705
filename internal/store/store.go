package store

import (
	"context"
	"errors"
	"time"

	"github.com/kiranshivaraju/geoharvest/pkg/models"
)

var ErrNotFound = errors.New("resource not found")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	RecordInvocation(ctx context.Context, inv *models.ToolInvocation) error
	ListInvocations(ctx context.Context, filter InvocationFilter) ([]*models.ToolInvocation, int, error)

	RecordDownload(ctx context.Context, rec *models.DownloadRecord) error
	LatestDownload(ctx context.Context, jobID string) (*models.DownloadRecord, error)
}

type InvocationFilter struct {
	Tool   string
	JobID  string
	Status string
	Since  time.Time
	Page   int
	Limit  int
}
