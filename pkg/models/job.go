// Package models contains shared data models used across the GeoHarvest codebase.
package models

import "time"

// JobStatus is the normalized lifecycle state of a remote extraction job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
	JobStatusUnknown   JobStatus = "unknown"
)

// Terminal reports whether no further remote progress is expected.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// Layer names one data layer of a product, e.g. {"_250m_16_days_NDVI", "MOD13Q1.061"}.
type Layer struct {
	Layer   string `json:"layer"   yaml:"layer"`
	Product string `json:"product" yaml:"product"`
}

// Location is a point sampled by a point extraction task. Latitude and
// Longitude are pointers so a missing coordinate can be told apart from 0.
type Location struct {
	ID        string   `json:"id"        yaml:"id"`
	Category  string   `json:"category"  yaml:"category"`
	Latitude  *float64 `json:"latitude"  yaml:"latitude"`
	Longitude *float64 `json:"longitude" yaml:"longitude"`
}

// Job is the local view of a remote extraction task. The remote API is the
// source of truth; a Job is rebuilt from it on every read.
type Job struct {
	ID        string     `json:"job_id"`
	TaskName  string     `json:"task_name"`
	TaskType  string     `json:"task_type,omitempty"`
	Layers    []Layer    `json:"layers,omitempty"`
	Locations []Location `json:"locations,omitempty"`
	StartDate string     `json:"start_date,omitempty"`
	EndDate   string     `json:"end_date,omitempty"`
	Status    JobStatus  `json:"job_status"`
	APIStatus string     `json:"api_status"`
	Progress  any        `json:"progress,omitempty"`
	Message   string     `json:"message,omitempty"`
	Created   *time.Time `json:"created,omitempty"`
	Updated   *time.Time `json:"updated,omitempty"`
}
