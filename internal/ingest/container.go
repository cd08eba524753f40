// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/pdiddy/atlas/internal/container"
	"github.com/pdiddy/atlas/pkg/types"
)

// Backend names for IngestConfig.PDFBackend.
const (
	BackendNative    = "native"
	BackendContainer = "container"
)

// Container extracts text by piping the file through a conversion image.
// The image reports no page structure, so progress is a single page.
type Container struct {
	Runtime container.Runtime
	Image   string
}

// NewContainer verifies that image exists in rt.
func NewContainer(ctx context.Context, rt container.Runtime, image string) (*Container, error) {
	if image == "" {
		return nil, fmt.Errorf("container extractor: no image configured")
	}
	if err := rt.ImageExists(ctx, image); err != nil {
		return nil, err
	}
	return &Container{Runtime: rt, Image: image}, nil
}

// Extract implements Extractor.
func (c *Container) Extract(ctx context.Context, path string, onPage PageFunc) (Extraction, error) {
	f, err := os.Open(path)
	if err != nil {
		return Extraction{}, err
	}
	defer f.Close()

	var out bytes.Buffer
	if err := c.Runtime.Run(ctx, c.Image, f, &out); err != nil {
		return Extraction{}, err
	}
	if onPage != nil {
		onPage(1, 1)
	}
	return Extraction{Text: out.String(), Pages: 1}, nil
}

// NewConfiguredLoader returns a Loader honoring cfg.PDFBackend. The
// container backend resolves its runtime and checks the image up front.
func NewConfiguredLoader(ctx context.Context, cfg types.IngestConfig) (*Loader, error) {
	l := NewLoader(cfg)
	switch cfg.PDFBackend {
	case "", BackendNative:
		return l, nil
	case BackendContainer:
		var (
			rt  container.Runtime
			err error
		)
		if cfg.Runtime != "" {
			rt, err = container.ByName(cfg.Runtime)
		} else {
			rt, err = container.Detect(ctx)
		}
		if err != nil {
			return nil, err
		}
		ex, err := NewContainer(ctx, rt, cfg.Image)
		if err != nil {
			return nil, err
		}
		l.Register(ex, ".pdf")
		return l, nil
	}
	return nil, fmt.Errorf("unknown pdf backend %q", cfg.PDFBackend)
}
