package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/geoharvest/internal/jobs"
	"github.com/kiranshivaraju/geoharvest/internal/store"
	"github.com/kiranshivaraju/geoharvest/pkg/models"
)

type jobArgs struct {
	JobID      string `json:"job_id"`
	OutputPath string `json:"output_path"`
}

type listArgs struct {
	Limit  *int `json:"limit"`
	Offset *int `json:"offset"`
}

// submitted is the data of a successful submission.
type submitted struct {
	JobID     string            `json:"job_id"`
	JobStatus models.JobStatus  `json:"job_status"`
	TaskName  string            `json:"task_name"`
	Layers    []models.Layer    `json:"layers"`
	Locations []models.Location `json:"locations"`
	StartDate string            `json:"start_date"`
	EndDate   string            `json:"end_date"`
}

var jobIDParam = Param{Name: "job_id", Type: "string", Required: true, Description: "AppEEARS task id"}

func jobTools(s Services) []Tool {
	var out []Tool
	if s.Submitter != nil {
		out = append(out, submitTool(s.Submitter))
	}
	if s.Tracker != nil {
		out = append(out, statusTools(s.Tracker)...)
	}
	if s.Bundles != nil {
		out = append(out, listBundleTool(s.Bundles))
	}
	if s.Downloader != nil {
		out = append(out, downloadTool(s.Downloader, s.Downloads))
	}
	if s.Canceller != nil {
		out = append(out, cancelTool(s.Canceller))
	}
	if s.Downloads != nil {
		out = append(out, downloadRecordTool(s.Downloads))
	}
	return out
}

func submitTool(sub Submitter) Tool {
	return Tool{
		Name:        "submit_appears_job",
		Description: "Submit a point extraction job. Dates are YYYY-MM-DD.",
		Params: []Param{
			{Name: "layers", Type: "array", Required: true, Description: "[{\"layer\":..., \"product\":...}]"},
			{Name: "locations", Type: "array", Required: true, Description: "[{\"id\", \"category\", \"latitude\", \"longitude\"}]"},
			{Name: "start_date", Type: "string", Required: true},
			{Name: "end_date", Type: "string", Required: true},
			{Name: "task_name", Type: "string", Description: "Defaults to " + jobs.DefaultTaskName},
		},
		Invoke: func(ctx context.Context, raw json.RawMessage) Result {
			var req jobs.SubmitRequest
			if err := decodeArgs(raw, &req); err != nil {
				return Failure(err)
			}
			id, err := sub.Submit(ctx, req)
			if err != nil {
				return failf(err, "Failed to submit AppEEARS job")
			}
			name := req.TaskName
			if name == "" {
				name = jobs.DefaultTaskName
			}
			return Success(fmt.Sprintf("AppEEARS job submitted successfully. Job ID: %s", id), submitted{
				JobID:     id,
				JobStatus: models.JobStatusPending,
				TaskName:  name,
				Layers:    req.Layers,
				Locations: req.Locations,
				StartDate: req.StartDate,
				EndDate:   req.EndDate,
			})
		},
	}
}

func statusTools(tr Tracker) []Tool {
	return []Tool{
		{
			Name:        "check_job_status",
			Description: "Report the normalized status and elapsed time of a job.",
			Params:      []Param{jobIDParam},
			Invoke: withJobID(func(ctx context.Context, a jobArgs) Result {
				r, err := tr.Status(ctx, a.JobID)
				if err != nil {
					return failf(err, "Failed to check job status")
				}
				return Success(fmt.Sprintf("Job %s is %s", a.JobID, r.JobStatus), r)
			}),
		},
		{
			Name:        "get_job_details",
			Description: "Return the full task record of a job.",
			Params:      []Param{jobIDParam},
			Invoke: withJobID(func(ctx context.Context, a jobArgs) Result {
				d, err := tr.Details(ctx, a.JobID)
				if err != nil {
					return failf(err, "Failed to get job details")
				}
				return Success(fmt.Sprintf("Retrieved details for job %s", a.JobID), d)
			}),
		},
		{
			Name:        "get_job_progress",
			Description: "Report progress and elapsed time of a job.",
			Params:      []Param{jobIDParam},
			Invoke: withJobID(func(ctx context.Context, a jobArgs) Result {
				p, err := tr.Progress(ctx, a.JobID)
				if err != nil {
					return failf(err, "Failed to get job progress")
				}
				msg := fmt.Sprintf("Job %s is %s", a.JobID, p.JobStatus)
				if p.ElapsedFormatted != "" {
					msg += " after " + p.ElapsedFormatted
				}
				return Success(msg, p)
			}),
		},
		{
			Name:        "list_appears_jobs",
			Description: "List submitted jobs.",
			Params: []Param{
				{Name: "limit", Type: "integer"},
				{Name: "offset", Type: "integer"},
			},
			Invoke: func(ctx context.Context, raw json.RawMessage) Result {
				var a listArgs
				if err := decodeArgs(raw, &a); err != nil {
					return Failure(err)
				}
				list, err := tr.List(ctx, jobs.ListOptions{Limit: a.Limit, Offset: a.Offset})
				if err != nil {
					return failf(err, "Error listing jobs")
				}
				return Success(fmt.Sprintf("Found %d jobs", len(list)), map[string]any{
					"jobs":       list,
					"total_jobs": len(list),
					"limit":      a.Limit,
					"offset":     a.Offset,
				})
			},
		},
	}
}

func listBundleTool(b BundleLister) Tool {
	return Tool{
		Name:        "list_bundle_files",
		Description: "List the files of a completed job's bundle.",
		Params:      []Param{jobIDParam},
		Invoke: withJobID(func(ctx context.Context, a jobArgs) Result {
			files, err := b.ListFiles(ctx, a.JobID)
			if err != nil {
				return bundleFailure(err, "Failed to list bundle files")
			}
			return Success(fmt.Sprintf("Found %d files in bundle for job %s", len(files), a.JobID), map[string]any{
				"job_id":     a.JobID,
				"files":      files,
				"file_count": len(files),
			})
		}),
	}
}

func downloadTool(d Downloader, journal DownloadJournal) Tool {
	return Tool{
		Name:        "download_job_results",
		Description: "Download every file of a completed job into <output_path>/task_<job_id>.",
		Params: []Param{jobIDParam,
			{Name: "output_path", Type: "string", Description: "Directory to write under; defaults to DOWNLOAD_PATH"},
		},
		Invoke: withJobID(func(ctx context.Context, a jobArgs) Result {
			res, err := d.Download(ctx, a.JobID, a.OutputPath)
			if err != nil {
				f := bundleFailure(err, "Failed to download results")
				if res != nil && len(res.Failed) > 0 {
					first := res.Failed[0]
					f.Message += fmt.Sprintf(" (first failure: %s: %s)", first.FileID, first.Error)
				}
				return f
			}
			if journal != nil {
				recordDownload(ctx, journal, res)
			}
			return Success(fmt.Sprintf("Results downloaded successfully to %s", res.Folder), res)
		}),
	}
}

func recordDownload(ctx context.Context, journal DownloadJournal, res *models.DownloadResult) {
	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()
	err := journal.RecordDownload(jctx, &models.DownloadRecord{
		JobID:     res.JobID,
		Folder:    res.Folder,
		FileCount: res.FileCount,
		TotalSize: res.TotalSize,
		Files:     res.Files,
	})
	if err != nil {
		slog.Warn("failed to record download", "job_id", res.JobID, "error", err)
	}
}

func cancelTool(c Canceller) Tool {
	return Tool{
		Name:        "cancel_appears_job",
		Description: "Cancel a job that has not finished. AppEEARS may refuse.",
		Params:      []Param{jobIDParam},
		Invoke: withJobID(func(ctx context.Context, a jobArgs) Result {
			out, err := c.Cancel(ctx, a.JobID)
			if err != nil {
				var f Result
				switch {
				case errors.Is(err, jobs.ErrAlreadyTerminal), errors.Is(err, jobs.ErrCancellationUnsupported):
					f = Failure(err)
				default:
					f = failf(err, "Failed to cancel job")
				}
				return f.WithData(map[string]any{"job_id": a.JobID})
			}
			return Success(fmt.Sprintf("Job %s cancelled successfully", a.JobID), out)
		}),
	}
}

func downloadRecordTool(journal DownloadJournal) Tool {
	return Tool{
		Name:        "get_download_record",
		Description: "Report where a job's bundle was last downloaded.",
		Params:      []Param{jobIDParam},
		Invoke: withJobID(func(ctx context.Context, a jobArgs) Result {
			rec, err := journal.LatestDownload(ctx, a.JobID)
			if errors.Is(err, store.ErrNotFound) {
				return Failure(fmt.Errorf("no download recorded for job %s", a.JobID))
			}
			if err != nil {
				return failf(err, "Failed to read download record")
			}
			return Success(fmt.Sprintf("Job %s was downloaded to %s at %s",
				a.JobID, rec.Folder, rec.CreatedAt.UTC().Format(time.RFC3339)), rec)
		}),
	}
}

// withJobID decodes the arguments and requires job_id before calling fn.
func withJobID(fn func(ctx context.Context, a jobArgs) Result) Handler {
	return func(ctx context.Context, raw json.RawMessage) Result {
		var a jobArgs
		if err := decodeArgs(raw, &a); err != nil {
			return Failure(err)
		}
		if err := required("job_id", a.JobID); err != nil {
			return Failure(err)
		}
		return fn(ctx, a)
	}
}

// bundleFailure reports a not-ready job as is and prefixes anything else.
func bundleFailure(err error, prefix string) Result {
	if errors.Is(err, jobs.ErrJobNotReady) {
		return Failure(err)
	}
	return failf(err, "%s", prefix)
}
