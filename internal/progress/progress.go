// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package progress carries pipeline progress from the orchestrator to a
// presentation layer. Reporters are observers: Report never blocks and never
// influences pipeline control flow.
package progress

import (
	"sync"
	"sync/atomic"

	"github.com/pdiddy/atlas/pkg/types"
)

// Kind classifies an Event.
type Kind string

const (
	KindIngest Kind = "ingest"
	KindStage  Kind = "stage"
	KindRun    Kind = "run"
)

// Event is one progress notification.
type Event struct {
	RunID string `json:"run_id,omitempty"`
	Kind  Kind   `json:"kind"`

	// Stage events.
	StageID     string           `json:"stage_id,omitempty"`
	DisplayName string           `json:"display_name,omitempty"`
	Model       string           `json:"target_model,omitempty"`
	Task        string           `json:"task,omitempty"`
	State       types.StageState `json:"state,omitempty"`

	// Run events.
	Status types.RunStatus `json:"status,omitempty"`

	// Message is a human-readable detail: ingest progress, error text.
	Message string `json:"message,omitempty"`

	// Result is a snapshot of the stage result; never the live value.
	Result *types.StageResult `json:"result,omitempty"`

	// Final is set on the completed run event.
	Final *types.FinalRecord `json:"final,omitempty"`
}

// Reporter receives progress events. Implementations must return promptly.
type Reporter interface {
	Report(Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Report(Event) {}

// Func adapts a function to Reporter.
type Func func(Event)

func (f Func) Report(e Event) { f(e) }

// Multi fans each event out to several reporters in order.
type Multi []Reporter

func (m Multi) Report(e Event) {
	for _, r := range m {
		if r != nil {
			r.Report(e)
		}
	}
}

// DefaultBuffer is the Channel buffer size used by NewChannel with size <= 0.
const DefaultBuffer = 64

// Channel delivers events through a buffered channel. When the buffer is
// full the event is dropped. Reports after Close are dropped too.
type Channel struct {
	mu      sync.RWMutex
	ch      chan Event
	closed  bool
	dropped atomic.Int64
}

// NewChannel returns a Channel with the given buffer size.
func NewChannel(size int) *Channel {
	if size <= 0 {
		size = DefaultBuffer
	}
	return &Channel{ch: make(chan Event, size)}
}

// Report sends e without blocking.
func (c *Channel) Report(e Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.ch <- e:
	default:
		c.dropped.Add(1)
	}
}

// Subscribe returns the receive side of the channel.
func (c *Channel) Subscribe() <-chan Event {
	return c.ch
}

// Dropped returns how many events were discarded because the buffer was full.
func (c *Channel) Dropped() int {
	return int(c.dropped.Load())
}

// Close closes the channel. It is safe to call more than once.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}
