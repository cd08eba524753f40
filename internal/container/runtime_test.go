// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package container

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

// mockExecutor records calls and returns configured responses.
type mockExecutor struct {
	onPath  map[string]bool // binary -> LookPath succeeds
	succeed map[string]bool // "bin arg1 arg2" -> Run succeeds
	pipe    func(name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error
	calls   []string
}

func (m *mockExecutor) LookPath(file string) (string, error) {
	if m.onPath[file] {
		return "/usr/bin/" + file, nil
	}
	return "", errors.New("not found: " + file)
}

func (m *mockExecutor) Run(_ context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	key := name + " " + strings.Join(args, " ")
	m.calls = append(m.calls, key)
	if m.pipe != nil && len(args) > 0 && args[0] == "run" {
		return m.pipe(name, args, stdin, stdout, stderr)
	}
	if m.succeed[key] {
		return nil
	}
	return errors.New("command failed: " + key)
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		exec     *mockExecutor
		wantName string
		wantErr  bool
	}{
		{
			name:     "docker available",
			exec:     &mockExecutor{onPath: map[string]bool{"docker": true}, succeed: map[string]bool{"docker info": true}},
			wantName: "docker",
		},
		{
			name:     "podman fallback when docker missing",
			exec:     &mockExecutor{onPath: map[string]bool{"podman": true}, succeed: map[string]bool{"podman info": true}},
			wantName: "podman",
		},
		{
			name:     "docker on PATH but info fails",
			exec:     &mockExecutor{onPath: map[string]bool{"docker": true, "podman": true}, succeed: map[string]bool{"podman info": true}},
			wantName: "podman",
		},
		{
			name:    "neither available",
			exec:    &mockExecutor{},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, err := detect(context.Background(), tt.exec)
			if tt.wantErr {
				if err == nil || !strings.Contains(err.Error(), "no container runtime available") {
					t.Fatalf("expected no-runtime error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rt.Name() != tt.wantName {
				t.Errorf("got runtime %q, want %q", rt.Name(), tt.wantName)
			}
		})
	}
}

func TestImageExists(t *testing.T) {
	x := &mockExecutor{succeed: map[string]bool{
		"docker image inspect pdftotext:latest": true,
		"podman image exists pdftotext:latest":  true,
	}}
	if err := newDocker(x).ImageExists(context.Background(), "pdftotext:latest"); err != nil {
		t.Errorf("docker: %v", err)
	}
	if err := newPodman(x).ImageExists(context.Background(), "pdftotext:latest"); err != nil {
		t.Errorf("podman: %v", err)
	}
	err := newDocker(x).ImageExists(context.Background(), "missing:1")
	if err == nil || !strings.Contains(err.Error(), "missing:1") {
		t.Errorf("expected error naming the image, got %v", err)
	}
}

func TestRun_PipesWithoutNetwork(t *testing.T) {
	x := &mockExecutor{pipe: func(name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
		data, _ := io.ReadAll(stdin)
		_, _ = stdout.Write([]byte("text: " + string(data)))
		return nil
	}}
	var out bytes.Buffer
	if err := newPodman(x).Run(context.Background(), "pdftotext:latest", strings.NewReader("pdf bytes"), &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := out.String(); got != "text: pdf bytes" {
		t.Errorf("output = %q", got)
	}
	if want := "podman run --rm -i --network none pdftotext:latest"; x.calls[0] != want {
		t.Errorf("call = %q, want %q", x.calls[0], want)
	}
}

func TestRun_ErrorIncludesStderr(t *testing.T) {
	x := &mockExecutor{pipe: func(_ string, _ []string, _ io.Reader, _, stderr io.Writer) error {
		_, _ = stderr.Write([]byte("Syntax Error: Couldn't find trailer dictionary\n"))
		return errors.New("exit status 1")
	}}
	err := newDocker(x).Run(context.Background(), "pdftotext:latest", strings.NewReader(""), io.Discard)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "trailer dictionary") {
		t.Errorf("error should carry stderr, got %v", err)
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{"docker", "podman"} {
		rt, err := ByName(name)
		if err != nil || rt.Name() != name {
			t.Errorf("ByName(%q) = %v, %v", name, rt, err)
		}
	}
	if _, err := ByName("lxc"); err == nil {
		t.Error("expected error for unknown runtime")
	}
}
