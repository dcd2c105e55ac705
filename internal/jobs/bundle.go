package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/kiranshivaraju/geoharvest/pkg/models"
)

// Resolver enumerates the files of a completed job's bundle.
type Resolver struct {
	gw     Gateway
	status StatusChecker
}

// NewResolver creates a Resolver.
func NewResolver(gw Gateway, status StatusChecker) *Resolver {
	return &Resolver{gw: gw, status: status}
}

// ListFiles re-checks that jobID is completed and returns its bundle files
// in the order the API reports them.
func (r *Resolver) ListFiles(ctx context.Context, jobID string) ([]models.BundleFile, error) {
	if err := requireCompleted(ctx, r.status, jobID); err != nil {
		return nil, err
	}
	return r.list(ctx, jobID)
}

// list fetches and parses the bundle without the status precondition.
func (r *Resolver) list(ctx context.Context, jobID string) ([]models.BundleFile, error) {
	var raw json.RawMessage
	if err := r.gw.GetJSON(ctx, bundlePath(jobID), nil, &raw); err != nil {
		return nil, fmt.Errorf("fetching bundle %s: %w", jobID, err)
	}
	files, err := ParseBundle(raw)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, ErrEmptyBundle
	}
	return files, nil
}

func requireCompleted(ctx context.Context, status StatusChecker, jobID string) error {
	if err := checkJobID(jobID); err != nil {
		return err
	}
	rep, err := status.Status(ctx, jobID)
	if err != nil {
		return err
	}
	if rep.JobStatus != models.JobStatusCompleted {
		return &JobNotReadyError{JobID: jobID, Status: rep.JobStatus}
	}
	return nil
}

// ParseBundle decodes a bundle listing. The API has been observed to answer
// with a bare array, an object with a "files" array, or an object with a
// "data" array; anything else is ErrUnexpectedBundleFormat. Entries are
// either objects carrying file_id or bare strings naming the id. Entries
// without a usable id are skipped.
func ParseBundle(raw json.RawMessage) ([]models.BundleFile, error) {
	entries, err := bundleEntries(raw)
	if err != nil {
		return nil, err
	}

	files := make([]models.BundleFile, 0, len(entries))
	for i, e := range entries {
		f, ok := parseEntry(e)
		if !ok {
			slog.Warn("skipping bundle entry without file id", "index", i, "entry", truncate(string(e), 200))
			continue
		}
		files = append(files, f)
	}
	return files, nil
}

func bundleEntries(raw json.RawMessage) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrUnexpectedBundleFormat)
	}

	switch trimmed[0] {
	case '[':
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedBundleFormat, err)
		}
		return list, nil
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedBundleFormat, err)
		}
		for _, key := range []string{"files", "data"} {
			v, ok := obj[key]
			if !ok {
				continue
			}
			var list []json.RawMessage
			if err := json.Unmarshal(v, &list); err != nil {
				return nil, fmt.Errorf("%w: %q is not a list", ErrUnexpectedBundleFormat, key)
			}
			return list, nil
		}
		return nil, fmt.Errorf("%w: object without files or data: %s", ErrUnexpectedBundleFormat, truncate(string(trimmed), 200))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedBundleFormat, truncate(string(trimmed), 200))
	}
}

type bundleEntry struct {
	FileID   json.RawMessage `json:"file_id"`
	FileName string          `json:"file_name"`
	FileType string          `json:"file_type"`
	FileSize json.RawMessage `json:"file_size"`
}

func parseEntry(raw json.RawMessage) (models.BundleFile, bool) {
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		if id == "" {
			return models.BundleFile{}, false
		}
		return models.BundleFile{FileID: id, FileName: defaultFileName(id)}, true
	}

	var e bundleEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return models.BundleFile{}, false
	}

	id = scalarString(e.FileID)
	if id == "" {
		return models.BundleFile{}, false
	}
	f := models.BundleFile{FileID: id, FileName: e.FileName, FileType: e.FileType}
	if f.FileName == "" {
		f.FileName = defaultFileName(id)
	}
	if n, err := strconv.ParseInt(scalarString(e.FileSize), 10, 64); err == nil {
		f.Size = n
	}
	return f, true
}

// scalarString accepts ids encoded as JSON strings or numbers.
func scalarString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if _, err := strconv.ParseFloat(n.String(), 64); err == nil {
			return n.String()
		}
	}
	return ""
}

func defaultFileName(id string) string { return "file_" + id }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
