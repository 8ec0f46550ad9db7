// Package report collects per-artifact outcomes of a fetcher or optimizer
// run and renders them for the console and the optional history ledger.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// Status of a single artifact.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Artifact identifies an output file by base name, format and width
// variant. Width 0 means the image keeps its original (or canonical)
// dimensions.
type Artifact struct {
	Name   string
	Path   string
	Format string
	Width  int
}

// Outcome is the result of producing one artifact.
type Outcome struct {
	Artifact
	Status Status
	Size   int64
	Err    error
}

// Succeeded builds a success outcome.
func Succeeded(a Artifact, size int64) Outcome {
	return Outcome{Artifact: a, Status: StatusSucceeded, Size: size}
}

// Failed builds a failure outcome.
func Failed(a Artifact, err error) Outcome {
	return Outcome{Artifact: a, Status: StatusFailed, Err: err}
}

// ErrorMessage returns the failure text, or "" on success.
func (o Outcome) ErrorMessage() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Recorder persists outcomes outside the process.
type Recorder interface {
	Record(ctx context.Context, runID, tool string, o Outcome) error
}

// Report is the in-memory list of outcomes of one run.
type Report struct {
	RunID     string
	Tool      string
	StartedAt time.Time
	Outcomes  []Outcome
}

// New starts a report for tool with a fresh run ID.
func New(tool string) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		Tool:      tool,
		StartedAt: time.Now(),
	}
}

// Add appends outcomes in order.
func (r *Report) Add(outcomes ...Outcome) {
	r.Outcomes = append(r.Outcomes, outcomes...)
}

// Counts returns the number of succeeded and failed outcomes.
func (r *Report) Counts() (succeeded, failed int) {
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			failed++
		} else {
			succeeded++
		}
	}
	return succeeded, failed
}

// Failures returns the failed outcomes in order.
func (r *Report) Failures() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			out = append(out, o)
		}
	}
	return out
}

// TotalSize sums the bytes written by successful outcomes.
func (r *Report) TotalSize() int64 {
	var total int64
	for _, o := range r.Outcomes {
		if o.Status == StatusSucceeded {
			total += o.Size
		}
	}
	return total
}

// Summary is the one-line console summary of the run.
func (r *Report) Summary() string {
	ok, failed := r.Counts()
	return fmt.Sprintf("%d succeeded, %d failed, %s written in %s",
		ok, failed,
		humanize.IBytes(uint64(r.TotalSize())),
		time.Since(r.StartedAt).Round(time.Millisecond))
}

// Log emits the run summary through slog.
func (r *Report) Log() {
	ok, failed := r.Counts()
	slog.Info("run_complete",
		"tool", r.Tool,
		"run_id", r.RunID,
		"succeeded", ok,
		"failed", failed,
		"bytes_written", r.TotalSize(),
		"duration", time.Since(r.StartedAt).Round(time.Millisecond))
}

// Persist hands every outcome to rec. Recording problems are logged and
// never change the run's result. A nil rec is a no-op.
func (r *Report) Persist(ctx context.Context, rec Recorder) {
	if rec == nil {
		return
	}
	for _, o := range r.Outcomes {
		if err := rec.Record(ctx, r.RunID, r.Tool, o); err != nil {
			slog.Warn("history_record_failed", "run_id", r.RunID, "name", o.Name, "error", err)
		}
	}
}
