package model

import (
	"strings"
	"time"

	"virtual-tryon/internal/domain"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transition can leave s.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Style is the synthesis mode applied to the garment image.
type Style string

const (
	StyleUpper Style = "upper"
	StyleLower Style = "lower"
)

// ParseStyle normalizes user input into a recognized Style.
func ParseStyle(s string) (Style, error) {
	switch Style(strings.ToLower(strings.TrimSpace(s))) {
	case StyleUpper:
		return StyleUpper, nil
	case StyleLower:
		return StyleLower, nil
	default:
		return "", domain.ErrInvalidStyle
	}
}

// TryOnJob is one synthesis attempt. It is created pending by the dispatcher and
// only the executor moves it forward.
type TryOnJob struct {
	ID          string
	OwnerID     string
	PersonRef   string
	GarmentRef  string
	Style       Style
	Status      JobStatus
	Provider    string
	ResultRef   string
	ErrorDetail string
	DurationMs  int64
	StartedAt   *time.Time
	HeartbeatAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewTryOnJob validates the immutable inputs and returns a pending job.
func NewTryOnJob(ownerID, personRef, garmentRef string, style Style) (*TryOnJob, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, domain.ErrInvalidArgument
	}
	if strings.TrimSpace(personRef) == "" || strings.TrimSpace(garmentRef) == "" {
		return nil, domain.ErrMissingInput
	}
	if _, err := ParseStyle(string(style)); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	return &TryOnJob{
		ID:         domain.NewJobID(),
		OwnerID:    ownerID,
		PersonRef:  personRef,
		GarmentRef: garmentRef,
		Style:      style,
		Status:     JobStatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

var transitions = map[JobStatus][]JobStatus{
	JobStatusPending:    {JobStatusProcessing, JobStatusFailed},
	JobStatusProcessing: {JobStatusCompleted, JobStatusFailed},
}

// CanTransition reports whether from -> to is an edge of the job state machine.
// pending -> failed is reserved for jobs that can never be claimed.
func CanTransition(from, to JobStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Start moves a pending job into processing.
func (j *TryOnJob) Start(now time.Time) error {
	if !CanTransition(j.Status, JobStatusProcessing) {
		return domain.ErrInvalidTransition
	}
	j.Status = JobStatusProcessing
	j.StartedAt = &now
	j.HeartbeatAt = &now
	j.UpdatedAt = now
	return nil
}

// Complete records the result of a processing job.
func (j *TryOnJob) Complete(resultRef string, duration time.Duration, now time.Time) error {
	if j.Status != JobStatusProcessing {
		return domain.ErrInvalidTransition
	}
	if resultRef == "" {
		return domain.ErrInvalidArgument
	}
	j.Status = JobStatusCompleted
	j.ResultRef = resultRef
	j.DurationMs = duration.Milliseconds()
	j.UpdatedAt = now
	return nil
}

// Fail records a terminal failure. detail must be non-empty.
func (j *TryOnJob) Fail(detail string, duration time.Duration, now time.Time) error {
	if !CanTransition(j.Status, JobStatusFailed) {
		return domain.ErrInvalidTransition
	}
	if strings.TrimSpace(detail) == "" {
		detail = "unknown error"
	}
	j.Status = JobStatusFailed
	j.ErrorDetail = detail
	j.DurationMs = duration.Milliseconds()
	j.UpdatedAt = now
	return nil
}

// ProcessingTime is the wall-clock time since the job was claimed.
func (j *TryOnJob) ProcessingTime(now time.Time) time.Duration {
	if j.StartedAt == nil {
		return 0
	}
	return now.Sub(*j.StartedAt)
}
