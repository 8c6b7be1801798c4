package state

import (
	"errors"
	"time"

	"github.com/danielpatrickdp/storyforge/go-controller/internal/story"
)

// #region errors
var (
	ErrJobNotFound   = errors.New("job not found")
	ErrStoryNotFound = errors.New("story not found")
)
// #endregion errors

// #region job-status
// JobStatus is the lifecycle position of a generation job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether the job will not change again.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}
// #endregion job-status

// #region job-input
// JobInput is everything a run needs, stored with the job.
type JobInput struct {
	Inputs story.Inputs        `json:"inputs"`
	Config story.DiamondConfig `json:"config"`
	Mode   story.Mode          `json:"mode"`
}
// #endregion job-input

// #region job-record
// JobRecord is one row of the jobs table.
type JobRecord struct {
	JobID     string
	Status    JobStatus
	Progress  int
	Message   string
	Input     JobInput
	StoryID   string
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
// #endregion job-record

// #region story-record
// StoryRecord is a completed story graph with its aggregates.
type StoryRecord struct {
	StoryID     string
	JobID       string
	Title       string
	Mode        story.Mode
	State       *story.GenerationState
	MetricsJSON string
	CreatedAt   time.Time
}

// StorySummary is the listing view of a saved story.
type StorySummary struct {
	StoryID      string
	Title        string
	Genre        string
	Mode         story.Mode
	TotalScenes  int
	TotalEndings int
	TotalWords   int
	CreatedAt    time.Time
}
// #endregion story-record
