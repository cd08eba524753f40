// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package progress

import "sync"

// Board keeps one Tracker per run so a batch can be reported through a
// single Reporter. Events without a run ID are ignored.
type Board struct {
	mu    sync.Mutex
	runs  map[string]*Tracker
	order []string
}

// NewBoard returns an empty board.
func NewBoard() *Board {
	return &Board{runs: make(map[string]*Tracker)}
}

// Report routes e to the tracker of its run.
func (b *Board) Report(e Event) {
	if e.RunID == "" {
		return
	}
	b.mu.Lock()
	t, ok := b.runs[e.RunID]
	if !ok {
		t = NewTracker()
		b.runs[e.RunID] = t
		b.order = append(b.order, e.RunID)
	}
	b.mu.Unlock()
	t.Report(e)
}

// Snapshot returns the state of run id.
func (b *Board) Snapshot(id string) (Snapshot, bool) {
	b.mu.Lock()
	t, ok := b.runs[id]
	b.mu.Unlock()
	if !ok {
		return Snapshot{}, false
	}
	return t.Snapshot(), true
}

// Snapshots returns every run in the order it was first reported.
func (b *Board) Snapshots() []Snapshot {
	b.mu.Lock()
	trackers := make([]*Tracker, 0, len(b.order))
	for _, id := range b.order {
		trackers = append(trackers, b.runs[id])
	}
	b.mu.Unlock()

	out := make([]Snapshot, 0, len(trackers))
	for _, t := range trackers {
		out = append(out, t.Snapshot())
	}
	return out
}
