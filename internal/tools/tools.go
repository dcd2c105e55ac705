package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kiranshivaraju/geoharvest/internal/catalog"
	"github.com/kiranshivaraju/geoharvest/internal/jobs"
	"github.com/kiranshivaraju/geoharvest/pkg/models"
)

// Submitter creates extraction jobs.
type Submitter interface {
	Submit(ctx context.Context, req jobs.SubmitRequest) (string, error)
}

// Tracker reads job state.
type Tracker interface {
	Status(ctx context.Context, jobID string) (*jobs.StatusReport, error)
	Details(ctx context.Context, jobID string) (*jobs.JobDetails, error)
	Progress(ctx context.Context, jobID string) (*jobs.Progress, error)
	List(ctx context.Context, opts jobs.ListOptions) ([]models.Job, error)
}

// BundleLister lists the files of a completed job.
type BundleLister interface {
	ListFiles(ctx context.Context, jobID string) ([]models.BundleFile, error)
}

// Downloader fetches a completed job's bundle to disk.
type Downloader interface {
	Download(ctx context.Context, jobID, outputRoot string) (*models.DownloadResult, error)
}

// Canceller stops a running job.
type Canceller interface {
	Cancel(ctx context.Context, jobID string) (*jobs.CancelOutcome, error)
}

// Catalog lists products and layers.
type Catalog interface {
	ListProducts(ctx context.Context) ([]catalog.Product, error)
	Layers(ctx context.Context, productAndVersion string) (map[string]string, error)
}

// SearchBackend is the document index.
type SearchBackend interface {
	ListIndices(ctx context.Context) ([]string, error)
	Search(ctx context.Context, index string, query map[string]any) (map[string]any, error)
	IndexDocument(ctx context.Context, index string, doc map[string]any) (map[string]any, error)
	BulkIngest(ctx context.Context, index string, docs []map[string]any) (map[string]any, error)
}

// DownloadJournal remembers where bundles were written.
type DownloadJournal interface {
	RecordDownload(ctx context.Context, rec *models.DownloadRecord) error
	LatestDownload(ctx context.Context, jobID string) (*models.DownloadRecord, error)
}

// Services are the backends the tools call. A nil field leaves its tools
// unregistered.
type Services struct {
	Submitter  Submitter
	Tracker    Tracker
	Bundles    BundleLister
	Downloader Downloader
	Canceller  Canceller
	Catalog    Catalog
	Search     SearchBackend
	Downloads  DownloadJournal
}

// RegisterAll adds every tool whose backend is present.
func RegisterAll(r *Registry, s Services) error {
	var all []Tool
	if s.Search != nil {
		all = append(all, searchTools(s.Search)...)
	}
	if s.Catalog != nil {
		all = append(all, catalogTools(s.Catalog)...)
	}
	all = append(all, jobTools(s)...)

	for _, t := range all {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// decodeArgs unmarshals args into v. Empty and null arguments leave v untouched.
func decodeArgs(args json.RawMessage, v any) error {
	trimmed := bytes.TrimSpace(args)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func required(name, value string) error {
	if value == "" {
		return errors.New(name + " is required")
	}
	return nil
}

// failf prefixes err's text with a formatted context.
func failf(err error, format string, args ...any) Result {
	return Failure(fmt.Errorf(format+": %w", append(args, err)...))
}
