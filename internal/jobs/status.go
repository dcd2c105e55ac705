package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kiranshivaraju/geoharvest/pkg/models"
)

// StatusChecker reports the normalized status of a job.
type StatusChecker interface {
	Status(ctx context.Context, jobID string) (*StatusReport, error)
}

// TaskInfo carries the descriptive fields of a remote task as reported.
type TaskInfo struct {
	TaskName string `json:"task_name,omitempty"`
	TaskType string `json:"task_type,omitempty"`
	Created  string `json:"created,omitempty"`
	Updated  string `json:"updated,omitempty"`
	Progress any    `json:"progress,omitempty"`
	Message  string `json:"message,omitempty"`
}

// StatusReport is the result of a single status read.
type StatusReport struct {
	JobID          string           `json:"job_id"`
	JobStatus      models.JobStatus `json:"job_status"`
	APIStatus      string           `json:"api_status"`
	ElapsedSeconds *float64         `json:"elapsed_time,omitempty"`
	Info           TaskInfo         `json:"task_info"`
	Raw            map[string]any   `json:"-"`
}

// JobDetails is the full remote task record.
type JobDetails struct {
	StatusReport
	Params      any            `json:"parameters,omitempty"`
	DownloadURL string         `json:"download_url,omitempty"`
	Task        map[string]any `json:"task"`
}

// Progress is a compact view for polling callers.
type Progress struct {
	JobID            string           `json:"job_id"`
	JobStatus        models.JobStatus `json:"job_status"`
	Progress         any              `json:"progress,omitempty"`
	Message          string           `json:"message,omitempty"`
	Created          string           `json:"created,omitempty"`
	Updated          string           `json:"updated,omitempty"`
	ElapsedSeconds   *float64         `json:"elapsed_time_seconds,omitempty"`
	ElapsedFormatted string           `json:"elapsed_time_formatted,omitempty"`
}

// ListOptions bounds a task listing. Nil fields are omitted from the request.
type ListOptions struct {
	Limit  *int
	Offset *int
}

// Tracker reads task state from the remote API. Nothing is cached: every
// call re-fetches.
type Tracker struct {
	gw  Gateway
	now func() time.Time
}

// NewTracker creates a Tracker.
func NewTracker(gw Gateway) *Tracker {
	return &Tracker{gw: gw, now: time.Now}
}

// NormalizeStatus maps a remote status string onto the closed JobStatus set.
// Unrecognized values map to pending, never to failed.
func NormalizeStatus(apiStatus string) models.JobStatus {
	switch strings.ToLower(strings.TrimSpace(apiStatus)) {
	case "running":
		return models.JobStatusRunning
	case "done":
		return models.JobStatusCompleted
	case "failed":
		return models.JobStatusFailed
	case "cancelled":
		return models.JobStatusCancelled
	default:
		return models.JobStatusPending
	}
}

// Status fetches and normalizes the current status of jobID.
func (t *Tracker) Status(ctx context.Context, jobID string) (*StatusReport, error) {
	task, err := t.fetch(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return t.report(jobID, task), nil
}

// Details returns the full task record including its parameters.
func (t *Tracker) Details(ctx context.Context, jobID string) (*JobDetails, error) {
	task, err := t.fetch(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &JobDetails{
		StatusReport: *t.report(jobID, task),
		Params:       task["params"],
		DownloadURL:  stringField(task, "download_url"),
		Task:         task,
	}, nil
}

// Progress returns status, reported progress and elapsed time for jobID.
func (t *Tracker) Progress(ctx context.Context, jobID string) (*Progress, error) {
	r, err := t.Status(ctx, jobID)
	if err != nil {
		return nil, err
	}
	p := &Progress{
		JobID:          r.JobID,
		JobStatus:      r.JobStatus,
		Progress:       r.Info.Progress,
		Message:        r.Info.Message,
		Created:        r.Info.Created,
		Updated:        r.Info.Updated,
		ElapsedSeconds: r.ElapsedSeconds,
	}
	if r.ElapsedSeconds != nil {
		p.ElapsedFormatted = fmt.Sprintf("%.0f seconds", *r.ElapsedSeconds)
	}
	return p, nil
}

// List returns the caller's tasks, newest first as ordered by the API.
func (t *Tracker) List(ctx context.Context, opts ListOptions) ([]models.Job, error) {
	q := url.Values{}
	if opts.Limit != nil {
		q.Set("limit", strconv.Itoa(*opts.Limit))
	}
	if opts.Offset != nil {
		q.Set("offset", strconv.Itoa(*opts.Offset))
	}

	var tasks []map[string]any
	if err := t.gw.GetJSON(ctx, "task", q, &tasks); err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}

	out := make([]models.Job, 0, len(tasks))
	for _, task := range tasks {
		api := apiStatus(task)
		out = append(out, models.Job{
			ID:        stringField(task, "task_id"),
			TaskName:  stringField(task, "task_name"),
			TaskType:  stringField(task, "task_type"),
			Status:    NormalizeStatus(api),
			APIStatus: api,
			Progress:  task["progress"],
			Message:   stringField(task, "message"),
			Created:   timeField(task, "created"),
			Updated:   timeField(task, "updated"),
		})
	}
	return out, nil
}

func (t *Tracker) fetch(ctx context.Context, jobID string) (map[string]any, error) {
	if err := checkJobID(jobID); err != nil {
		return nil, err
	}
	var task map[string]any
	if err := t.gw.GetJSON(ctx, taskPath(jobID), nil, &task); err != nil {
		return nil, fmt.Errorf("fetching task %s: %w", jobID, err)
	}
	if task == nil {
		task = map[string]any{}
	}
	return task, nil
}

func (t *Tracker) report(jobID string, task map[string]any) *StatusReport {
	api := apiStatus(task)
	r := &StatusReport{
		JobID:     jobID,
		JobStatus: NormalizeStatus(api),
		APIStatus: api,
		Info: TaskInfo{
			TaskName: stringField(task, "task_name"),
			TaskType: stringField(task, "task_type"),
			Created:  stringField(task, "created"),
			Updated:  stringField(task, "updated"),
			Progress: task["progress"],
			Message:  stringField(task, "message"),
		},
		Raw: task,
	}
	if created, ok := parseTimestamp(r.Info.Created); ok {
		elapsed := t.now().Sub(created).Seconds()
		r.ElapsedSeconds = &elapsed
	}
	slog.Debug("task status read", "job_id", jobID, "api_status", api, "job_status", r.JobStatus)
	return r
}

func apiStatus(task map[string]any) string {
	if s := stringField(task, "status"); s != "" {
		return s
	}
	return string(models.JobStatusUnknown)
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func timeField(m map[string]any, key string) *time.Time {
	ts, ok := parseTimestamp(stringField(m, key))
	if !ok {
		return nil
	}
	return &ts
}

// timestampLayouts are tried in order; zone-less forms are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

func parseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

var _ StatusChecker = (*Tracker)(nil)
