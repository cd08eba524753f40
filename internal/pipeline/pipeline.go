// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline runs agent stages over one document in a fixed order,
// threading each stage's parsed output into later prompts, and synthesizes
// the final record. Only a failed model call is fatal; output that cannot be
// decoded is kept as a parse failure and the run continues.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pdiddy/atlas/internal/model"
	"github.com/pdiddy/atlas/internal/parse"
	"github.com/pdiddy/atlas/internal/progress"
	"github.com/pdiddy/atlas/internal/stage"
	"github.com/pdiddy/atlas/pkg/types"
)

// DefaultStageTimeout bounds a single stage's model call.
const DefaultStageTimeout = 5 * time.Minute

// ErrStageTimeout is wrapped into a stage failure when the per-stage
// deadline expires while the caller's context is still live.
var ErrStageTimeout = errors.New("stage timed out")

// PipelineError reports the stage that ended a run.
type PipelineError struct {
	RunID   string
	StageID string
	Err     error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline run %s: stage %s: %v", e.RunID, e.StageID, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// Synthesis selects how the final record is produced.
type Synthesis int

const (
	// SynthesisAuto uses the model when the last stage is a synthesis stage
	// and the deterministic merge otherwise.
	SynthesisAuto Synthesis = iota

	// SynthesisModel decodes the synthesis stage's output, back-filling
	// empty fields from the merge.
	SynthesisModel

	// SynthesisMerge maps stage outputs onto the record without a model
	// call. A trailing synthesis stage is not run.
	SynthesisMerge
)

func (s Synthesis) String() string {
	switch s {
	case SynthesisModel:
		return "model"
	case SynthesisMerge:
		return "merge"
	}
	return "auto"
}

// Orchestrator runs a fixed list of stages. It holds no per-run state and
// may run several documents concurrently.
type Orchestrator struct {
	client       model.Client
	stages       []stage.Stage
	variant      string
	reporter     progress.Reporter
	logger       *slog.Logger
	stageTimeout time.Duration
	synthesis    Synthesis
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithReporter sets the progress reporter.
func WithReporter(r progress.Reporter) Option {
	return func(o *Orchestrator) { o.reporter = r }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithStageTimeout bounds each model call. Zero disables the bound.
func WithStageTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.stageTimeout = d }
}

// WithSynthesis selects how the final record is produced.
func WithSynthesis(s Synthesis) Option {
	return func(o *Orchestrator) { o.synthesis = s }
}

// WithVariant records the variant name on every run.
func WithVariant(name string) Option {
	return func(o *Orchestrator) { o.variant = name }
}

// New returns an Orchestrator over stages, which run in the given order.
func New(client model.Client, stages []stage.Stage, opts ...Option) (*Orchestrator, error) {
	if client == nil {
		return nil, errors.New("pipeline: nil model client")
	}
	if err := stage.Validate(stages); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	o := &Orchestrator{
		client:       client,
		reporter:     progress.Nop{},
		logger:       slog.New(slog.DiscardHandler),
		stageTimeout: DefaultStageTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.reporter == nil {
		o.reporter = progress.Nop{}
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	hasSynthesis := stage.HasSynthesis(stages)
	switch o.synthesis {
	case SynthesisAuto:
		o.synthesis = SynthesisMerge
		if hasSynthesis {
			o.synthesis = SynthesisModel
		}
	case SynthesisModel:
		if !hasSynthesis {
			return nil, errors.New("pipeline: model synthesis requires a final synthesis stage")
		}
	case SynthesisMerge:
		if hasSynthesis {
			stages = stages[:len(stages)-1]
			if len(stages) == 0 {
				return nil, errors.New("pipeline: no stages left after dropping synthesis")
			}
		}
	}
	o.stages = append([]stage.Stage(nil), stages...)
	return o, nil
}

// Stages returns the stages that Run executes, in order.
func (o *Orchestrator) Stages() []stage.Stage {
	return append([]stage.Stage(nil), o.stages...)
}

// Synthesis returns the effective synthesis mode.
func (o *Orchestrator) Synthesis() Synthesis { return o.synthesis }

// Run executes every stage over doc. On a fatal stage failure it returns the
// failed run, with the results of earlier stages intact, and a
// *PipelineError. The returned run is owned by the caller.
func (o *Orchestrator) Run(ctx context.Context, doc types.Document) (*types.PipelineRun, error) {
	source := doc.Path
	if source == "" {
		source = doc.Name
	}
	run := types.NewPipelineRun(source, doc.Text, o.variant)
	log := o.logger.With("run_id", run.ID, "source", source)

	for _, s := range o.stages {
		o.reporter.Report(o.stageEvent(run, s, types.StatePending, nil, ""))
	}
	run.Status = types.RunRunning
	o.reporter.Report(progress.Event{RunID: run.ID, Kind: progress.KindRun, Status: types.RunRunning})
	log.Info("pipeline run started", "variant", o.variant, "stages", len(o.stages), "chars", len(doc.Text))

	for _, s := range o.stages {
		if err := ctx.Err(); err != nil {
			return o.fail(run, log, s.ID, err)
		}
		if err := o.runStage(ctx, run, s, doc, log); err != nil {
			return o.fail(run, log, s.ID, err)
		}
	}

	rec := o.record(run, doc)
	run.Final = &rec
	run.Status = types.RunCompleted
	run.FinishedAt = time.Now().UTC()
	final := rec
	o.reporter.Report(progress.Event{RunID: run.ID, Kind: progress.KindRun, Status: types.RunCompleted, Final: &final})
	log.Info("pipeline run completed", "title", rec.Title, "duration", run.FinishedAt.Sub(run.CreatedAt))
	return run, nil
}

// runStage executes one stage and records its result on run. A non-nil
// error means the stage ended in the error state.
func (o *Orchestrator) runStage(ctx context.Context, run *types.PipelineRun, s stage.Stage, doc types.Document, log *slog.Logger) error {
	prior := stage.NewPrior(run.Results)

	res := types.NewStageResult(s.ID)
	if err := res.Transition(types.StateWorking); err != nil {
		return err
	}
	res.StartedAt = time.Now().UTC()
	run.Results = append(run.Results, res)
	o.reporter.Report(o.stageEvent(run, s, types.StateWorking, res, ""))
	log.Info("stage started", "stage", s.ID, "model", s.Model)

	prompt, err := s.Prompt(prior)
	if err != nil {
		return o.stageFailed(run, s, res, log, err)
	}
	var contextText string
	if s.NeedsDocument {
		contextText = doc.Text
	}

	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if o.stageTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, o.stageTimeout)
	}
	raw, err := o.client.Send(callCtx, s.Model, prompt, contextText)
	timedOut := errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
	cancel()
	if err != nil {
		if timedOut {
			err = fmt.Errorf("%w after %s: %w", ErrStageTimeout, o.stageTimeout, err)
		}
		return o.stageFailed(run, s, res, log, err)
	}

	value, tier := decode(s, raw)
	res.RawText = raw
	res.Value = value
	res.FinishedAt = time.Now().UTC()
	if err := res.Transition(types.StateDone); err != nil {
		return err
	}
	o.reporter.Report(o.stageEvent(run, s, types.StateDone, res, ""))
	log.Info("stage finished", "stage", s.ID, "model", s.Model, "kind", value.Kind, "tier", tier.String(), "duration", res.Duration())
	if value.IsFailure() {
		log.Warn("stage output not decoded; raw text kept", "stage", s.ID, "shape", s.Shape, "chars", len(raw))
	}
	return nil
}

func (o *Orchestrator) stageFailed(run *types.PipelineRun, s stage.Stage, res *types.StageResult, log *slog.Logger, err error) error {
	res.Error = err.Error()
	res.FinishedAt = time.Now().UTC()
	if terr := res.Transition(types.StateError); terr != nil {
		return errors.Join(err, terr)
	}
	o.reporter.Report(o.stageEvent(run, s, types.StateError, res, err.Error()))
	log.Error("stage failed", "stage", s.ID, "model", s.Model, "error", err, "duration", res.Duration())
	return err
}

func (o *Orchestrator) fail(run *types.PipelineRun, log *slog.Logger, stageID string, err error) (*types.PipelineRun, error) {
	run.Status = types.RunFailed
	run.Error = err.Error()
	run.FinishedAt = time.Now().UTC()
	o.reporter.Report(progress.Event{RunID: run.ID, Kind: progress.KindRun, StageID: stageID, Status: types.RunFailed, Message: err.Error()})
	log.Error("pipeline run failed", "stage", stageID, "error", err)
	return run, &PipelineError{RunID: run.ID, StageID: stageID, Err: err}
}

func (o *Orchestrator) stageEvent(run *types.PipelineRun, s stage.Stage, state types.StageState, res *types.StageResult, msg string) progress.Event {
	e := progress.Event{
		RunID:       run.ID,
		Kind:        progress.KindStage,
		StageID:     s.ID,
		DisplayName: s.DisplayName,
		Model:       s.Model,
		Task:        s.Task,
		State:       state,
		Message:     msg,
	}
	if res != nil {
		snap := *res
		e.Result = &snap
	}
	return e
}

// decode parses raw per the stage's declared shape.
func decode(s stage.Stage, raw string) (types.Value, parse.Tier) {
	if s.Shape == types.ShapeDiagram {
		return types.DiagramValue(parse.Diagram(raw, s.DiagramTag)), parse.TierDirect
	}
	return parse.Decode(raw, s.Shape)
}

// record builds the final record from a run whose stages all finished.
func (o *Orchestrator) record(run *types.PipelineRun, doc types.Document) types.FinalRecord {
	merged := Merge(o.stages, run, doc)
	if o.synthesis != SynthesisModel {
		return merged
	}
	last := o.stages[len(o.stages)-1]
	res, ok := run.Result(last.ID)
	if !ok {
		return merged
	}
	return Synthesize(res, merged, doc)
}
