package batch

import (
	"time"

	"github.com/andresuchdata/compras/backend-go/internal/analysis"
	"github.com/andresuchdata/compras/backend-go/internal/service"
)

// Job is one independent analysis, typically one branch or warehouse.
type Job struct {
	Name      string
	Sales     service.Source
	Inventory service.Source
	Customers []string
}

// Config holds configuration for a batch run
type Config struct {
	WorkerCount   int           // Number of concurrent workers
	RetryAttempts int           // Attempts per job for transient failures
	RetryBackoff  time.Duration // Backoff duration between retries
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		WorkerCount:   4,
		RetryAttempts: 3,
		RetryBackoff:  2 * time.Second,
	}
}

// JobStatus represents the state of a single job
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Result tracks the outcome of one job.
type Result struct {
	Job      string                 `json:"job"`
	Status   JobStatus              `json:"status"`
	Attempts int                    `json:"attempts"`
	Products int                    `json:"products"`
	Output   string                 `json:"output,omitempty"`
	Quality  analysis.QualityReport `json:"quality"`
	Error    string                 `json:"error,omitempty"`
	Duration time.Duration          `json:"duration"`
}

// Summary aggregates the results of a run.
type Summary struct {
	Completed int           `json:"completed"`
	Failed    int           `json:"failed"`
	Products  int           `json:"products"`
	Duration  time.Duration `json:"duration"`
}

// Summarize totals results.
func Summarize(results []Result) Summary {
	var s Summary
	for _, r := range results {
		switch r.Status {
		case StatusCompleted:
			s.Completed++
			s.Products += r.Products
		case StatusFailed:
			s.Failed++
		}
		s.Duration += r.Duration
	}
	return s
}
