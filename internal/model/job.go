// Package model holds the data types shared between the queue, worker, and
// supervisor: jobs, their status/phase lifecycle, and result metadata.
package model

import "time"

// Status is a job's position in its lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInFlight   Status = "in_flight"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusDeadLetter Status = "dead_letter"
)

// Phase is the worker's current step within an in-flight job.
type Phase string

const (
	PhaseAnalyzing         Phase = "Analyzing"
	PhaseExtractingSubs    Phase = "ExtractingSubtitles"
	PhaseEncodingVideo     Phase = "EncodingVideo"
	PhaseBurningIn         Phase = "BurningIn"
	PhaseProcessingAudio   Phase = "ProcessingAudio"
	PhaseMuxing            Phase = "Muxing"
	PhaseVerifying         Phase = "Verifying"
)

// ResultMetadata is recorded on successful completion.
type ResultMetadata struct {
	InputBytes      int64         `json:"input_bytes"`
	OutputBytes     int64         `json:"output_bytes"`
	EncodeDuration  time.Duration `json:"encode_duration_ns"`
	VideoDuration   time.Duration `json:"video_duration_ns"`
	EncodingSpeed   float64       `json:"encoding_speed"` // video_duration / encode_duration
	QualityScore    *float64      `json:"quality_score,omitempty"`
}

// CompressionRatio returns OutputBytes/InputBytes, or 0 if InputBytes is 0.
func (r ResultMetadata) CompressionRatio() float64 {
	if r.InputBytes == 0 {
		return 0
	}
	return float64(r.OutputBytes) / float64(r.InputBytes)
}

// SizeReductionPercent returns the percentage reduction in size, or 0 if
// InputBytes is 0.
func (r ResultMetadata) SizeReductionPercent() float64 {
	if r.InputBytes == 0 {
		return 0
	}
	return (1 - float64(r.OutputBytes)/float64(r.InputBytes)) * 100
}

// Job is a single encoding task as it moves through the queue.
// Identity is an opaque 128-bit random ID (uuid.v4).
type Job struct {
	ID          string     `json:"id"`
	SourcePath  string     `json:"source_path"`
	DestPath    string     `json:"dest_path"`
	ProfileName string     `json:"profile_name"`
	Status      Status     `json:"status"`
	Phase       Phase      `json:"phase,omitempty"`
	AttemptCount int       `json:"attempt_count"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	ErrorMessage string          `json:"error_message,omitempty"`
	Progress     *float64        `json:"progress,omitempty"`
	Result       *ResultMetadata `json:"result,omitempty"`
}

// NewJob creates a pending job with the caller-supplied ID (callers
// generate it, e.g. with uuid.NewString()).
func NewJob(id, sourcePath, destPath, profileName string, now time.Time) *Job {
	return &Job{
		ID:          id,
		SourcePath:  sourcePath,
		DestPath:    destPath,
		ProfileName: profileName,
		Status:      StatusPending,
		AttemptCount: 0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Start transitions pending/dead_letter -> in_flight, incrementing
// attempt_count exactly once and setting started_at on the first transition.
func (j *Job) Start(now time.Time) {
	j.Status = StatusInFlight
	j.Phase = PhaseAnalyzing
	j.AttemptCount++
	if j.StartedAt == nil {
		j.StartedAt = &now
	}
	j.ErrorMessage = ""
	j.UpdatedAt = now
}

// Complete transitions in_flight -> completed.
func (j *Job) Complete(now time.Time, result ResultMetadata) {
	j.Status = StatusCompleted
	j.Phase = ""
	p := 100.0
	j.Progress = &p
	j.Result = &result
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// Fail records a phase failure message. It does not itself decide
// retry-vs-dead-letter; that policy lives in the worker (spec.md §4.6).
func (j *Job) Fail(now time.Time, msg string) {
	j.Status = StatusFailed
	j.ErrorMessage = msg
	j.UpdatedAt = now
}

// ResetForRetry clears progress/error and returns the job to pending.
func (j *Job) ResetForRetry(now time.Time) {
	j.Status = StatusPending
	j.Phase = ""
	j.ErrorMessage = ""
	j.Progress = nil
	j.UpdatedAt = now
}

// DeadLetter marks the job as exhausted.
func (j *Job) DeadLetter(now time.Time, reason string) {
	j.Status = StatusDeadLetter
	j.ErrorMessage = reason
	j.UpdatedAt = now
}

// SetProgress records an in-progress percent (0-100).
func (j *Job) SetProgress(percent float64) {
	j.Progress = &percent
}
