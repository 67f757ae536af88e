package models

import "time"

// ArtifactRecord describes an artifact that was written to disk.
type ArtifactRecord struct {
	Format      Format    `json:"format" yaml:"format"`
	Filename    string    `json:"filename" yaml:"filename"`
	Path        string    `json:"path" yaml:"path"`
	SizeBytes   int64     `json:"size_bytes" yaml:"size_bytes"`
	ContentHash string    `json:"content_hash" yaml:"content_hash"`
	Warnings    []string  `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// RunRecord is one finished pipeline run as kept in the run ledger.
type RunRecord struct {
	ID          string             `json:"id" yaml:"id"`
	SessionID   string             `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	Kind        string             `json:"kind" yaml:"kind"`
	State       string             `json:"state" yaml:"state"`
	FailedStage string             `json:"failed_stage,omitempty" yaml:"failed_stage,omitempty"`
	Error       string             `json:"error,omitempty" yaml:"error,omitempty"`
	URL         string             `json:"url,omitempty" yaml:"url,omitempty"`
	Model       string             `json:"model,omitempty" yaml:"model,omitempty"`
	StartedAt   time.Time          `json:"started_at" yaml:"started_at"`
	FinishedAt  time.Time          `json:"finished_at" yaml:"finished_at"`
	Generations []GenerationResult `json:"generations,omitempty" yaml:"generations,omitempty"`
	Artifacts   []ArtifactRecord   `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
}

func (r RunRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
