package domain

import "time"

// JobStatus enumerates queued chain lifecycle states.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "QUEUED"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusSucceeded JobStatus = "SUCCEEDED"
	JobStatusFailed    JobStatus = "FAILED"
)

// Terminal reports whether no further updates will happen for the job.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSucceeded || s == JobStatusFailed
}

// ChainJob is a chain run requested through the queue instead of a live stream.
type ChainJob struct {
	ID           string
	UserID       string
	Status       JobStatus
	PayloadJSON  []byte
	Progress     float64
	LastMessage  string
	VideoURL     string
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
