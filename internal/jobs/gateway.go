// Package jobs implements the AppEEARS job lifecycle: submission, status
// tracking, bundle resolution, bundle download and cancellation.
package jobs

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/kiranshivaraju/geoharvest/internal/appeears"
)

// Gateway is the subset of appeears.Gateway the job services depend on.
type Gateway interface {
	GetJSON(ctx context.Context, path string, query url.Values, out any) error
	PostJSON(ctx context.Context, path string, in, out any) error
	Delete(ctx context.Context, path string) error
	Stream(ctx context.Context, path string, w io.Writer) (int64, error)
}

var _ Gateway = (*appeears.Gateway)(nil)

// checkJobID rejects ids that would escape their URL path segment.
func checkJobID(id string) error {
	if strings.TrimSpace(id) == "" {
		return validationError("job_id is required")
	}
	if strings.ContainsAny(id, "/\\") {
		return validationError("job_id %q contains a path separator", id)
	}
	return nil
}

func taskPath(id string) string   { return "task/" + url.PathEscape(id) }
func bundlePath(id string) string { return "bundle/" + url.PathEscape(id) }

func bundleFilePath(jobID, fileID string) string {
	return bundlePath(jobID) + "/" + url.PathEscape(fileID)
}
