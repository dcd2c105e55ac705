package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/kiranshivaraju/geoharvest/internal/appeears"
	"github.com/kiranshivaraju/geoharvest/internal/telemetry"
	"github.com/kiranshivaraju/geoharvest/pkg/models"
)

// CancelOutcome reports a successful cancellation.
type CancelOutcome struct {
	JobID     string           `json:"job_id"`
	JobStatus models.JobStatus `json:"job_status"`
}

// Canceller asks the remote API to stop a job. Support is best effort: the
// API may answer 405 for jobs it will not cancel.
type Canceller struct {
	gw     Gateway
	status StatusChecker
}

// NewCanceller creates a Canceller.
func NewCanceller(gw Gateway, status StatusChecker) *Canceller {
	return &Canceller{gw: gw, status: status}
}

// Cancel reads the current status of jobID and cancels it unless it has
// already finished.
func (c *Canceller) Cancel(ctx context.Context, jobID string) (*CancelOutcome, error) {
	if err := checkJobID(jobID); err != nil {
		return nil, err
	}
	rep, err := c.status.Status(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("could not check job status: %w", err)
	}
	return c.CancelKnown(ctx, jobID, rep.JobStatus)
}

// CancelKnown cancels jobID using a status the caller already holds.
// Terminal statuses are refused without contacting the API.
func (c *Canceller) CancelKnown(ctx context.Context, jobID string, last models.JobStatus) (*CancelOutcome, error) {
	if err := checkJobID(jobID); err != nil {
		return nil, err
	}
	if last.Terminal() {
		return nil, fmt.Errorf("%w: cannot cancel job %s, it is already %s", ErrAlreadyTerminal, jobID, last)
	}

	if err := c.gw.Delete(ctx, taskPath(jobID)); err != nil {
		if appeears.StatusCode(err) == http.StatusMethodNotAllowed {
			slog.Warn("appeears refused cancellation", "job_id", jobID)
			return nil, ErrCancellationUnsupported
		}
		return nil, fmt.Errorf("failed to cancel job %s: %w", jobID, err)
	}

	telemetry.JobsCancelled.Inc()
	slog.Info("appeears task cancelled", "job_id", jobID)
	return &CancelOutcome{JobID: jobID, JobStatus: models.JobStatusCancelled}, nil
}
