// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/atlas/pkg/types"
)

// AnalyzeBatch runs one independent pipeline per document, at most limit at
// a time (limit <= 0 means one at a time). A failed run does not cancel the
// others. runs[i] belongs to docs[i]; it is nil only if the document never
// started because ctx was canceled. The error joins every run failure.
func (o *Orchestrator) AnalyzeBatch(ctx context.Context, docs []types.Document, limit int) ([]*types.PipelineRun, error) {
	if limit <= 0 {
		limit = 1
	}
	runs := make([]*types.PipelineRun, len(docs))
	errs := make([]error, len(docs))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, doc := range docs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			runs[i], errs[i] = o.Run(ctx, doc)
			return nil
		})
	}
	_ = g.Wait()
	return runs, errors.Join(errs...)
}
