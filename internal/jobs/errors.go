package jobs

import (
	"errors"
	"fmt"

	"github.com/kiranshivaraju/geoharvest/pkg/models"
)

// Sentinel errors for job lifecycle failures.
var (
	ErrValidation              = errors.New("invalid request")
	ErrJobSubmission           = errors.New("job submission failed")
	ErrJobNotReady             = errors.New("job is not complete")
	ErrUnexpectedBundleFormat  = errors.New("unexpected bundle response format")
	ErrEmptyBundle             = errors.New("no files found in bundle")
	ErrBundleDownload          = errors.New("failed to download any files")
	ErrAlreadyTerminal         = errors.New("job is already finished")
	ErrCancellationUnsupported = errors.New("job cancellation is not supported by the AppEEARS API")
)

// JobNotReadyError is returned when a bundle operation is attempted on a job
// that has not completed.
type JobNotReadyError struct {
	JobID  string
	Status models.JobStatus
}

func (e *JobNotReadyError) Error() string {
	return fmt.Sprintf("job %s is not complete, current status: %s", e.JobID, e.Status)
}

func (e *JobNotReadyError) Is(target error) bool {
	return target == ErrJobNotReady
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
