// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package progress

import (
	"sync"

	"github.com/pdiddy/atlas/pkg/types"
)

// StageView is the presentation state of one stage.
type StageView struct {
	ID          string           `json:"id"`
	DisplayName string           `json:"display_name"`
	TargetModel string           `json:"target_model"`
	Task        string           `json:"task"`
	State       types.StageState `json:"state"`

	// RawText and ParsedValue are set once the stage is done.
	RawText     string       `json:"raw_text,omitempty"`
	ParsedValue *types.Value `json:"parsed_value,omitempty"`

	Error string `json:"error,omitempty"`
}

// Snapshot is a copy of a Tracker's state.
type Snapshot struct {
	RunID  string             `json:"run_id,omitempty"`
	Status types.RunStatus    `json:"status"`
	Ingest string             `json:"ingest,omitempty"`
	Stages []StageView        `json:"stages"`
	Final  *types.FinalRecord `json:"final,omitempty"`
}

// Tracker folds events into per-stage state for a presentation layer.
// Stages are registered by their pending event; illegal transitions are
// counted and ignored.
type Tracker struct {
	mu       sync.Mutex
	snap     Snapshot
	index    map[string]int
	rejected int
}

// NewTracker returns an empty tracker with run status pending.
func NewTracker() *Tracker {
	return &Tracker{
		snap:  Snapshot{Status: types.RunPending},
		index: make(map[string]int),
	}
}

// Report applies e.
func (t *Tracker) Report(e Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e.RunID != "" {
		if t.snap.RunID == "" {
			t.snap.RunID = e.RunID
		} else if t.snap.RunID != e.RunID {
			t.rejected++
			return
		}
	}

	switch e.Kind {
	case KindIngest:
		t.snap.Ingest = e.Message
	case KindRun:
		t.applyRun(e)
	case KindStage:
		t.applyStage(e)
	default:
		t.rejected++
	}
}

func (t *Tracker) applyRun(e Event) {
	if !runTransitionOK(t.snap.Status, e.Status) {
		t.rejected++
		return
	}
	t.snap.Status = e.Status
	if e.Final != nil {
		final := *e.Final
		t.snap.Final = &final
	}
}

func runTransitionOK(from, to types.RunStatus) bool {
	switch from {
	case types.RunPending:
		return to == types.RunRunning || to == types.RunFailed
	case types.RunRunning:
		return to == types.RunCompleted || to == types.RunFailed
	}
	return false
}

func (t *Tracker) applyStage(e Event) {
	i, known := t.index[e.StageID]
	if !known {
		if e.State != types.StatePending || e.StageID == "" {
			t.rejected++
			return
		}
		t.index[e.StageID] = len(t.snap.Stages)
		t.snap.Stages = append(t.snap.Stages, StageView{
			ID:          e.StageID,
			DisplayName: e.DisplayName,
			TargetModel: e.Model,
			Task:        e.Task,
			State:       types.StatePending,
		})
		return
	}

	view := &t.snap.Stages[i]
	if !view.State.CanTransition(e.State) {
		t.rejected++
		return
	}
	view.State = e.State
	if e.Model != "" {
		view.TargetModel = e.Model
	}
	switch e.State {
	case types.StateDone:
		if e.Result != nil {
			view.RawText = e.Result.RawText
			v := e.Result.Value
			view.ParsedValue = &v
		}
	case types.StateError:
		view.Error = e.Message
		if view.Error == "" && e.Result != nil {
			view.Error = e.Result.Error
		}
	}
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := t.snap
	out.Stages = append([]StageView(nil), t.snap.Stages...)
	if t.snap.Final != nil {
		final := *t.snap.Final
		out.Final = &final
	}
	return out
}

// Stage returns the view of stage id.
func (t *Tracker) Stage(id string) (StageView, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, ok := t.index[id]
	if !ok {
		return StageView{}, false
	}
	return t.snap.Stages[i], true
}

// Rejected returns how many events were ignored as illegal.
func (t *Tracker) Rejected() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rejected
}
