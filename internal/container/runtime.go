// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package container detects a local container runtime and runs one-shot
// document conversion containers through it.
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

	// stderrLimit caps how much container stderr is quoted in errors.
	stderrLimit = 512
)

// Runtime provides container operations: checking availability, verifying
// images, and running containers.
type Runtime interface {
	// Name returns the runtime name ("docker" or "podman").
	Name() string

	// Available reports whether the runtime binary exists on PATH and
	// responds to an info command.
	Available(ctx context.Context) bool

	// ImageExists checks whether the named image exists locally.
	ImageExists(ctx context.Context, image string) error

	// Run executes a container described by spec, piping spec.Stdin into
	// the container and its standard output into spec.Stdout.
	Run(ctx context.Context, spec RunSpec) error
}

// RunSpec describes one container invocation.
type RunSpec struct {
	Image  string
	Args   []string // arguments after the image name
	Stdin  io.Reader
	Stdout io.Writer

	// Network leaves networking enabled; the default runs with --network=none.
	Network bool

	// Memory is passed as --memory when non-empty (e.g. "2g").
	Memory string
}

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	RunSilent(ctx context.Context, name string, args ...string) error
	RunPiped(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) RunSilent(ctx context.Context, name string, args ...string) error {
	return exec.CommandContext(ctx, name, args...).Run()
}

func (o *osExecutor) RunPiped(ctx context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// runtime implements Runtime for a specific container binary. Docker and
// Podman differ only in binary name and the image existence subcommand.
type runtime struct {
	bin           string
	imageCheckCmd []string // e.g. ["image", "inspect"] for docker
	exec          executor
}

func (r *runtime) Name() string { return r.bin }

func (r *runtime) Available(ctx context.Context) bool {
	if _, err := r.exec.LookPath(r.bin); err != nil {
		return false
	}
	return r.exec.RunSilent(ctx, r.bin, "info") == nil
}

func (r *runtime) ImageExists(ctx context.Context, image string) error {
	args := make([]string, 0, len(r.imageCheckCmd)+1)
	args = append(args, r.imageCheckCmd...)
	args = append(args, image)

	if err := r.exec.RunSilent(ctx, r.bin, args...); err != nil {
		return fmt.Errorf("image %s not found in %s: %w", image, r.bin, err)
	}
	return nil
}

func (r *runtime) Run(ctx context.Context, spec RunSpec) error {
	args := runArgs(spec)
	var stderr bytes.Buffer
	if err := r.exec.RunPiped(ctx, r.bin, args, spec.Stdin, spec.Stdout, &stderr); err != nil {
		if msg := tail(stderr.String(), stderrLimit); msg != "" {
			return fmt.Errorf("running %s container %s: %w: %s", r.bin, spec.Image, err, msg)
		}
		return fmt.Errorf("running %s container %s: %w", r.bin, spec.Image, err)
	}
	return nil
}

// runArgs builds the "run" argument list for spec.
func runArgs(spec RunSpec) []string {
	args := []string{"run", "--rm", "-i"}
	if !spec.Network {
		args = append(args, "--network=none")
	}
	if spec.Memory != "" {
		args = append(args, "--memory", spec.Memory)
	}
	args = append(args, spec.Image)
	return append(args, spec.Args...)
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		return "..." + s[len(s)-n:]
	}
	return s
}

func newDockerRuntime(exec executor) *runtime {
	return &runtime{
		bin:           binDocker,
		imageCheckCmd: []string{"image", "inspect"},
		exec:          exec,
	}
}

func newPodmanRuntime(exec executor) *runtime {
	return &runtime{
		bin:           binPodman,
		imageCheckCmd: []string{"image", "exists"},
		exec:          exec,
	}
}

var defaultExec = &osExecutor{}

// DetectRuntime returns the first operational runtime. An empty prefer
// tries docker and then podman; "docker" or "podman" restricts detection to
// that runtime.
func DetectRuntime(ctx context.Context, prefer string) (Runtime, error) {
	return detectRuntime(ctx, defaultExec, prefer)
}

func detectRuntime(ctx context.Context, exec executor, prefer string) (Runtime, error) {
	var candidates []*runtime
	switch prefer {
	case "":
		candidates = []*runtime{newDockerRuntime(exec), newPodmanRuntime(exec)}
	case binDocker:
		candidates = []*runtime{newDockerRuntime(exec)}
	case binPodman:
		candidates = []*runtime{newPodmanRuntime(exec)}
	default:
		return nil, fmt.Errorf("unknown container runtime %q: want %s or %s", prefer, binDocker, binPodman)
	}

	names := make([]string, 0, len(candidates))
	for _, rt := range candidates {
		if rt.Available(ctx) {
			return rt, nil
		}
		names = append(names, rt.bin)
	}
	return nil, fmt.Errorf("no container runtime available: %s not found or not operational",
		strings.Join(names, " nor "))
}
