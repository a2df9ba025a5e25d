package domain

import (
	"strings"
	"time"
)

// AspectRatio is the advisory framing requested by the client.
type AspectRatio string

const (
	AspectLandscape AspectRatio = "landscape"
	AspectPortrait  AspectRatio = "portrait"
	AspectSquare    AspectRatio = "square"
)

// ParseAspectRatio accepts both ratio notation and names. Unknown or empty
// values fall back to landscape.
func ParseAspectRatio(v string) AspectRatio {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "9:16", "portrait":
		return AspectPortrait
	case "1:1", "square":
		return AspectSquare
	default:
		return AspectLandscape
	}
}

// Ratio returns the colon notation for the aspect ratio.
func (a AspectRatio) Ratio() string {
	switch a {
	case AspectPortrait:
		return "9:16"
	case AspectSquare:
		return "1:1"
	default:
		return "16:9"
	}
}

// GenerationRequest is the input of one chain run.
type GenerationRequest struct {
	UserID          string
	Prompt          string
	Model           string
	TotalSeconds    int
	Aspect          AspectRatio
	ReferenceImages [][]byte
	Locale          string
	// PublicBaseURL is the scheme and host the generated files are served
	// from, e.g. "https://example.com".
	PublicBaseURL string
}

// SegmentStatus tracks one provider task.
type SegmentStatus string

const (
	SegmentSubmitted SegmentStatus = "submitted"
	SegmentPolling   SegmentStatus = "polling"
	SegmentCompleted SegmentStatus = "completed"
	SegmentFailed    SegmentStatus = "failed"
)

// Segment is one link of a chain. It is owned by the orchestrator for the
// duration of the run.
type Segment struct {
	Index           int
	Model           string
	Prompt          string
	TaskID          string
	Status          SegmentStatus
	LocalPath       string
	ReferenceImages [][]byte
}

// VideoRecord is a persisted generated video. Intermediate records belong to
// a session and are removed once the final record of that session exists.
type VideoRecord struct {
	ID             string
	UserID         string
	Prompt         string
	Model          string
	VideoURL       string
	CreatedAt      time.Time
	IsIntermediate bool
	SessionID      string
	Duration       int
}
