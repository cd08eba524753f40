// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package container runs document-conversion images under docker or podman,
// piping the document through stdin and reading text from stdout.
package container

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

const (
	binDocker = "docker"
	binPodman = "podman"
)

// Runtime is a container engine able to run a conversion image.
type Runtime interface {
	// Name returns "docker" or "podman".
	Name() string

	// Available reports whether the engine is installed and answering.
	Available(ctx context.Context) bool

	// ImageExists returns nil when image is present locally.
	ImageExists(ctx context.Context, image string) error

	// Run executes image with stdin attached and no network, copying its
	// stdout to stdout.
	Run(ctx context.Context, image string, stdin io.Reader, stdout io.Writer) error
}

// executor abstracts command execution for tests.
type executor interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error
}

type osExecutor struct{}

func (osExecutor) LookPath(file string) (string, error) { return exec.LookPath(file) }

func (osExecutor) Run(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// engine implements Runtime for one binary. Docker and podman differ only in
// the image check subcommand.
type engine struct {
	bin        string
	imageCheck []string
	exec       executor
}

func (e *engine) Name() string { return e.bin }

func (e *engine) Available(ctx context.Context) bool {
	if _, err := e.exec.LookPath(e.bin); err != nil {
		return false
	}
	return e.exec.Run(ctx, e.bin, []string{"info"}, nil, io.Discard, io.Discard) == nil
}

func (e *engine) ImageExists(ctx context.Context, image string) error {
	args := append(append([]string(nil), e.imageCheck...), image)
	if err := e.exec.Run(ctx, e.bin, args, nil, io.Discard, io.Discard); err != nil {
		return fmt.Errorf("image %s not found in %s: %w", image, e.bin, err)
	}
	return nil
}

func (e *engine) Run(ctx context.Context, image string, stdin io.Reader, stdout io.Writer) error {
	var stderr bytes.Buffer
	args := []string{"run", "--rm", "-i", "--network", "none", image}
	if err := e.exec.Run(ctx, e.bin, args, stdin, stdout, &stderr); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("running %s in %s: %w: %s", image, e.bin, err, msg)
		}
		return fmt.Errorf("running %s in %s: %w", image, e.bin, err)
	}
	return nil
}

func newDocker(x executor) *engine {
	return &engine{bin: binDocker, imageCheck: []string{"image", "inspect"}, exec: x}
}

func newPodman(x executor) *engine {
	return &engine{bin: binPodman, imageCheck: []string{"image", "exists"}, exec: x}
}

// Detect returns docker when available, else podman.
func Detect(ctx context.Context) (Runtime, error) {
	return detect(ctx, osExecutor{})
}

// ByName returns the named engine without probing it.
func ByName(name string) (Runtime, error) {
	switch name {
	case binDocker:
		return newDocker(osExecutor{}), nil
	case binPodman:
		return newPodman(osExecutor{}), nil
	}
	return nil, fmt.Errorf("unknown container runtime %q", name)
}

func detect(ctx context.Context, x executor) (Runtime, error) {
	for _, e := range []*engine{newDocker(x), newPodman(x)} {
		if e.Available(ctx) {
			return e, nil
		}
	}
	return nil, fmt.Errorf("no container runtime available: neither %s nor %s found or operational", binDocker, binPodman)
}
