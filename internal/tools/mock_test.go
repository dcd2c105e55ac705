package tools_test

import (
	"context"
	"sync"

	"github.com/kiranshivaraju/geoharvest/internal/catalog"
	"github.com/kiranshivaraju/geoharvest/internal/jobs"
	"github.com/kiranshivaraju/geoharvest/internal/store"
	"github.com/kiranshivaraju/geoharvest/pkg/models"
)

type mockSubmitter struct {
	SubmitFunc func(ctx context.Context, req jobs.SubmitRequest) (string, error)
}

func (m *mockSubmitter) Submit(ctx context.Context, req jobs.SubmitRequest) (string, error) {
	return m.SubmitFunc(ctx, req)
}

type mockTracker struct {
	StatusFunc   func(ctx context.Context, jobID string) (*jobs.StatusReport, error)
	DetailsFunc  func(ctx context.Context, jobID string) (*jobs.JobDetails, error)
	ProgressFunc func(ctx context.Context, jobID string) (*jobs.Progress, error)
	ListFunc     func(ctx context.Context, opts jobs.ListOptions) ([]models.Job, error)
	calls        int
}

func (m *mockTracker) Status(ctx context.Context, jobID string) (*jobs.StatusReport, error) {
	m.calls++
	return m.StatusFunc(ctx, jobID)
}

func (m *mockTracker) Details(ctx context.Context, jobID string) (*jobs.JobDetails, error) {
	m.calls++
	return m.DetailsFunc(ctx, jobID)
}

func (m *mockTracker) Progress(ctx context.Context, jobID string) (*jobs.Progress, error) {
	m.calls++
	return m.ProgressFunc(ctx, jobID)
}

func (m *mockTracker) List(ctx context.Context, opts jobs.ListOptions) ([]models.Job, error) {
	m.calls++
	return m.ListFunc(ctx, opts)
}

type mockBundles struct {
	ListFilesFunc func(ctx context.Context, jobID string) ([]models.BundleFile, error)
}

func (m *mockBundles) ListFiles(ctx context.Context, jobID string) ([]models.BundleFile, error) {
	return m.ListFilesFunc(ctx, jobID)
}

type mockDownloader struct {
	DownloadFunc func(ctx context.Context, jobID, outputRoot string) (*models.DownloadResult, error)
}

func (m *mockDownloader) Download(ctx context.Context, jobID, outputRoot string) (*models.DownloadResult, error) {
	return m.DownloadFunc(ctx, jobID, outputRoot)
}

type mockCanceller struct {
	CancelFunc func(ctx context.Context, jobID string) (*jobs.CancelOutcome, error)
}

func (m *mockCanceller) Cancel(ctx context.Context, jobID string) (*jobs.CancelOutcome, error) {
	return m.CancelFunc(ctx, jobID)
}

type mockCatalog struct {
	ListProductsFunc func(ctx context.Context) ([]catalog.Product, error)
	LayersFunc       func(ctx context.Context, product string) (map[string]string, error)
}

func (m *mockCatalog) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	return m.ListProductsFunc(ctx)
}

func (m *mockCatalog) Layers(ctx context.Context, product string) (map[string]string, error) {
	return m.LayersFunc(ctx, product)
}

type mockSearch struct {
	lastIndex string
	lastDocs  []map[string]any
}

func (m *mockSearch) ListIndices(context.Context) ([]string, error) {
	return []string{"datasets", "notes"}, nil
}

func (m *mockSearch) Search(_ context.Context, index string, _ map[string]any) (map[string]any, error) {
	m.lastIndex = index
	return map[string]any{"hits": map[string]any{"hits": []any{}}}, nil
}

func (m *mockSearch) IndexDocument(_ context.Context, index string, _ map[string]any) (map[string]any, error) {
	m.lastIndex = index
	return map[string]any{"result": "created"}, nil
}

func (m *mockSearch) BulkIngest(_ context.Context, index string, docs []map[string]any) (map[string]any, error) {
	m.lastIndex = index
	m.lastDocs = docs
	return map[string]any{"errors": false}, nil
}

// mockJournal implements both Journal and DownloadJournal.
type mockJournal struct {
	mu          sync.Mutex
	invocations []*models.ToolInvocation
	downloads   []*models.DownloadRecord
	err         error
}

func (m *mockJournal) RecordInvocation(_ context.Context, inv *models.ToolInvocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invocations = append(m.invocations, inv)
	return m.err
}

func (m *mockJournal) RecordDownload(_ context.Context, rec *models.DownloadRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.downloads = append(m.downloads, rec)
	return m.err
}

func (m *mockJournal) LatestDownload(_ context.Context, jobID string) (*models.DownloadRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.downloads) - 1; i >= 0; i-- {
		if m.downloads[i].JobID == jobID {
			return m.downloads[i], nil
		}
	}
	return nil, store.ErrNotFound
}
