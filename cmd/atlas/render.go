// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/pdiddy/atlas/internal/progress"
	"github.com/pdiddy/atlas/pkg/types"
)

// printRun writes a readable report of run: the record when completed, the
// error when failed, then the per-stage view from snap. Without a snapshot
// failed runs list their stage results.
func printRun(w io.Writer, run *types.PipelineRun, snap *progress.Snapshot) {
	if run == nil {
		return
	}
	fmt.Fprintf(w, "\n== %s  [%s, %s, run %s]\n", run.Source, run.Variant, run.Status, shortID(run.ID))
	if run.Status == types.RunFailed {
		fmt.Fprintf(w, "Error: %s\n", run.Error)
	} else if run.Final != nil {
		printRecord(w, run.Final)
	}

	switch {
	case snap != nil && len(snap.Stages) > 0:
		printStageViews(w, snap.Stages)
	case run.Status == types.RunFailed:
		fmt.Fprintln(w, "\nStages:")
		for _, res := range run.Results {
			fmt.Fprintf(w, "  %s %-14s %s\n", progress.Glyph(res.State), res.StageID, res.State)
		}
	}
}

// printStageViews writes one line per stage: state, name, model and any
// error or unparsed-output note.
func printStageViews(w io.Writer, views []progress.StageView) {
	fmt.Fprintln(w, "\nStages:")
	for _, v := range views {
		name := v.DisplayName
		if name == "" {
			name = v.ID
		}
		line := fmt.Sprintf("  %s %-24s %-30s %s", progress.Glyph(v.State), name, v.TargetModel, v.State)
		switch {
		case v.Error != "":
			line += ": " + v.Error
		case v.ParsedValue != nil && v.ParsedValue.IsFailure():
			line += " (unparsed output kept)"
		}
		fmt.Fprintln(w, line)
	}
}

// printRecord writes the non-empty fields of rec.
func printRecord(w io.Writer, rec *types.FinalRecord) {
	fmt.Fprintf(w, "Title:   %s\n", rec.Title)
	if rec.Author != "" || rec.Year != "" {
		fmt.Fprintf(w, "Author:  %s", rec.Author)
		if rec.Year != "" {
			fmt.Fprintf(w, " (%s)", rec.Year)
		}
		fmt.Fprintln(w)
	}
	if rec.Publisher != "" {
		fmt.Fprintf(w, "Publisher: %s\n", rec.Publisher)
	}
	if rec.Description != "" {
		fmt.Fprintf(w, "\n%s\n", rec.Description)
	}

	if len(rec.Structure) > 0 {
		fmt.Fprintln(w, "\nStructure:")
		for i, s := range rec.Structure {
			fmt.Fprintf(w, "  %d. %s\n", i+1, s)
		}
	}
	if rec.Diagram != "" {
		fmt.Fprintln(w, "\nDiagram:")
		for _, line := range strings.Split(rec.Diagram, "\n") {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
	if len(rec.Definitions) > 0 {
		fmt.Fprintln(w, "\nDefinitions:")
		for _, d := range rec.Definitions {
			fmt.Fprintf(w, "  - %s: %s\n", d.Term, d.Def)
		}
	}
	if len(rec.Relations) > 0 {
		fmt.Fprintln(w, "\nRelations:")
		for _, r := range rec.Relations {
			if r.Label != "" {
				fmt.Fprintf(w, "  - %s -> %s (%s)\n", r.From, r.To, r.Label)
			} else {
				fmt.Fprintf(w, "  - %s -> %s\n", r.From, r.To)
			}
		}
	}
	if len(rec.Quotes) > 0 {
		fmt.Fprintln(w, "\nQuotes:")
		for _, q := range rec.Quotes {
			fmt.Fprintf(w, "  %q\n", q)
		}
	}
	if len(rec.Notes) > 0 {
		fmt.Fprintln(w, "\nNotes:")
		for _, n := range rec.Notes {
			fmt.Fprintf(w, "  - %s\n", n)
		}
	}
	if !rec.Connections.IsEmpty() {
		fmt.Fprintln(w, "\nConnections:")
		if len(rec.Connections.RelatedAuthors) > 0 {
			fmt.Fprintf(w, "  authors:  %s\n", strings.Join(rec.Connections.RelatedAuthors, ", "))
		}
		if len(rec.Connections.ThematicClusters) > 0 {
			fmt.Fprintf(w, "  clusters: %s\n", strings.Join(rec.Connections.ThematicClusters, ", "))
		}
	}
	if rec.Raw != "" {
		fmt.Fprintf(w, "\nUnparsed synthesis output:\n%s\n", rec.Raw)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
