// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package progress

import (
	"fmt"
	"io"

	"github.com/pdiddy/atlas/pkg/types"
)

// Format renders e as a human-readable status line.
func Format(e Event) string {
	switch e.Kind {
	case KindIngest:
		return fmt.Sprintf("  · %s", e.Message)
	case KindRun:
		return formatRun(e)
	case KindStage:
		return formatStage(e)
	}
	return fmt.Sprintf("  ? %s (unknown event)", e.Kind)
}

// Glyph returns the status symbol of a stage state.
func Glyph(s types.StageState) string {
	switch s {
	case types.StatePending:
		return "○"
	case types.StateWorking:
		return "●"
	case types.StateDone:
		return "✓"
	case types.StateError:
		return "✗"
	}
	return "?"
}

func formatStage(e Event) string {
	name := e.DisplayName
	if name == "" {
		name = e.StageID
	}
	g := Glyph(e.State)
	switch e.State {
	case types.StatePending:
		return fmt.Sprintf("  %s %s [%s] (pending)", g, name, e.Model)
	case types.StateWorking:
		return fmt.Sprintf("  %s %s: %s...", g, name, e.Task)
	case types.StateDone:
		if e.Result != nil && e.Result.Value.IsFailure() {
			return fmt.Sprintf("  %s %s done (unparsed output kept)", g, name)
		}
		return fmt.Sprintf("  %s %s done", g, name)
	case types.StateError:
		return fmt.Sprintf("  %s %s failed: %s", g, name, e.Message)
	}
	return fmt.Sprintf("  %s %s (unknown state)", g, name)
}

func formatRun(e Event) string {
	id := e.RunID
	if len(id) > 8 {
		id = id[:8]
	}
	switch e.Status {
	case types.RunFailed:
		return fmt.Sprintf("[%s] run failed: %s", id, e.Message)
	case types.RunCompleted:
		if e.Final != nil && e.Final.Title != "" {
			return fmt.Sprintf("[%s] run completed: %s", id, e.Final.Title)
		}
		return fmt.Sprintf("[%s] run completed", id)
	}
	return fmt.Sprintf("[%s] run %s", id, e.Status)
}

// Render writes one Format line per event until events is closed.
func Render(w io.Writer, events <-chan Event) {
	for e := range events {
		fmt.Fprintln(w, Format(e))
	}
}
