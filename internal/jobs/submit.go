package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/geoharvest/internal/telemetry"
	"github.com/kiranshivaraju/geoharvest/pkg/models"
)

// DefaultTaskName is used when a submission does not name its task.
const DefaultTaskName = "AgentTask"

const (
	inputDateLayout  = "2006-01-02"
	remoteDateLayout = "01-02-2006"
)

// SubmitRequest describes a point extraction task.
type SubmitRequest struct {
	Layers    []models.Layer    `json:"layers"     yaml:"layers"`
	Locations []models.Location `json:"locations"  yaml:"locations"`
	StartDate string            `json:"start_date" yaml:"start_date"`
	EndDate   string            `json:"end_date"   yaml:"end_date"`
	TaskName  string            `json:"task_name"  yaml:"task_name"`
}

type taskPayload struct {
	TaskType string     `json:"task_type"`
	TaskName string     `json:"task_name"`
	Params   taskParams `json:"params"`
}

type taskParams struct {
	Dates       []dateRange       `json:"dates"`
	Layers      []models.Layer    `json:"layers"`
	Coordinates []models.Location `json:"coordinates"`
}

type dateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// Submitter creates point extraction tasks.
type Submitter struct {
	gw Gateway
}

// NewSubmitter creates a Submitter.
func NewSubmitter(gw Gateway) *Submitter {
	return &Submitter{gw: gw}
}

// Submit validates req and submits it as a single task, returning the remote task id.
// Validation failures are reported before any network call.
func (s *Submitter) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	payload, err := buildPayload(req)
	if err != nil {
		return "", err
	}

	var resp struct {
		TaskID string `json:"task_id"`
	}
	if err := s.gw.PostJSON(ctx, "task", payload, &resp); err != nil {
		return "", fmt.Errorf("%w: %w", ErrJobSubmission, err)
	}
	if resp.TaskID == "" {
		return "", fmt.Errorf("%w: response carried no task_id", ErrJobSubmission)
	}

	telemetry.JobsSubmitted.Inc()
	slog.Info("appeears task submitted", "job_id", resp.TaskID, "task_name", payload.TaskName,
		"layers", len(req.Layers), "locations", len(req.Locations))
	return resp.TaskID, nil
}

func buildPayload(req SubmitRequest) (*taskPayload, error) {
	start, err := time.Parse(inputDateLayout, req.StartDate)
	if err != nil {
		return nil, validationError("start_date %q must be YYYY-MM-DD", req.StartDate)
	}
	end, err := time.Parse(inputDateLayout, req.EndDate)
	if err != nil {
		return nil, validationError("end_date %q must be YYYY-MM-DD", req.EndDate)
	}
	if end.Before(start) {
		return nil, validationError("end_date %s is before start_date %s", req.EndDate, req.StartDate)
	}

	if len(req.Layers) == 0 {
		return nil, validationError("at least one layer is required")
	}
	for i, l := range req.Layers {
		if l.Layer == "" || l.Product == "" {
			return nil, validationError("layers[%d] needs both layer and product", i)
		}
	}

	if len(req.Locations) == 0 {
		return nil, validationError("at least one location is required")
	}
	for i, loc := range req.Locations {
		switch {
		case loc.ID == "":
			return nil, validationError("locations[%d] needs an id", i)
		case loc.Category == "":
			return nil, validationError("locations[%d] needs a category", i)
		case loc.Latitude == nil || loc.Longitude == nil:
			return nil, validationError("locations[%d] needs numeric latitude and longitude", i)
		}
	}

	name := req.TaskName
	if name == "" {
		name = DefaultTaskName
	}

	return &taskPayload{
		TaskType: "point",
		TaskName: name,
		Params: taskParams{
			Dates: []dateRange{{
				StartDate: start.Format(remoteDateLayout),
				EndDate:   end.Format(remoteDateLayout),
			}},
			Layers:      req.Layers,
			Coordinates: req.Locations,
		},
	}, nil
}
