// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"time"

	"github.com/google/uuid"
)

// StageResult is the outcome of one stage within a run.
type StageResult struct {
	StageID string     `json:"stage_id" yaml:"stage_id"`
	State   StageState `json:"state" yaml:"state"`

	// RawText is the verbatim model output, kept for diagnostics.
	RawText string `json:"raw_text,omitempty" yaml:"raw_text,omitempty"`

	// Value is set once State is done.
	Value Value `json:"value" yaml:"value"`

	// Error is set only when State is error.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	StartedAt  time.Time `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	FinishedAt time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
}

// NewStageResult returns a pending result for stageID.
func NewStageResult(stageID string) *StageResult {
	return &StageResult{StageID: stageID, State: StatePending}
}

// Transition moves the result to next, refusing illegal moves.
func (r *StageResult) Transition(next StageState) error {
	if !r.State.CanTransition(next) {
		return transitionError(r.StageID, r.State, next)
	}
	r.State = next
	return nil
}

// Duration returns the time spent in the working state, or zero if the stage
// has not finished.
func (r *StageResult) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// PipelineRun is one execution of the pipeline over one document. It is owned
// by the caller that started it and is never shared between runs.
type PipelineRun struct {
	ID      string    `json:"id" yaml:"id"`
	Source  string    `json:"source" yaml:"source"`
	Variant string    `json:"variant" yaml:"variant"`
	Status  RunStatus `json:"status" yaml:"status"`

	// SourceText is the extracted document text; it may be very large and is
	// not serialized.
	SourceText string `json:"-" yaml:"-"`

	// Results holds one entry per executed stage, in execution order.
	Results []*StageResult `json:"results" yaml:"results"`

	// Final is present only when Status is completed.
	Final *FinalRecord `json:"final,omitempty" yaml:"final,omitempty"`

	// Error carries the fatal error message when Status is failed.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
	FinishedAt time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
}

// NewPipelineRun creates a pending run with a fresh random ID.
func NewPipelineRun(source, sourceText, variant string) *PipelineRun {
	return &PipelineRun{
		ID:         uuid.NewString(),
		Source:     source,
		Variant:    variant,
		Status:     RunPending,
		SourceText: sourceText,
		CreatedAt:  time.Now().UTC(),
	}
}

// Result returns the result recorded for stageID.
func (r *PipelineRun) Result(stageID string) (*StageResult, bool) {
	for _, res := range r.Results {
		if res.StageID == stageID {
			return res, true
		}
	}
	return nil, false
}

// StageIDs returns the IDs of recorded results in execution order.
func (r *PipelineRun) StageIDs() []string {
	ids := make([]string, len(r.Results))
	for i, res := range r.Results {
		ids[i] = res.StageID
	}
	return ids
}

// Values returns the parsed values of all done stages keyed by stage ID.
func (r *PipelineRun) Values() map[string]Value {
	out := make(map[string]Value, len(r.Results))
	for _, res := range r.Results {
		if res.State == StateDone {
			out[res.StageID] = res.Value
		}
	}
	return out
}

// Document is the ingested source handed to the pipeline. Title, Author and
// Year are optional hints supplied by the user.
type Document struct {
	Path   string `json:"path" yaml:"path"`
	Name   string `json:"name" yaml:"name"`
	Title  string `json:"title,omitempty" yaml:"title,omitempty"`
	Author string `json:"author,omitempty" yaml:"author,omitempty"`
	Year   string `json:"year,omitempty" yaml:"year,omitempty"`
	Text   string `json:"-" yaml:"-"`
	Pages  int    `json:"pages,omitempty" yaml:"pages,omitempty"`
}
