package builder

import (
	"context"
	"errors"
)

// Spec describes the image to produce. Content selection is opaque to the
// orchestration core; the executor is the only consumer.
type Spec struct {
	Name          string            `json:"name"`
	Version       string            `json:"version"`
	Description   string            `json:"description,omitempty"`
	AlpineVersion string            `json:"alpine_version,omitempty"`
	Architecture  string            `json:"architecture,omitempty"`
	Packages      []string          `json:"packages,omitempty"`
	Drivers       []string          `json:"drivers,omitempty"`
	SystemConfig  map[string]string `json:"system_config,omitempty"`
}

// Artifact is the immutable output of a completed build.
type Artifact struct {
	Path      string
	SizeBytes int64
	Checksum  string // sha256 hex
}

// ProgressFunc receives each build step. Returning false tells the executor
// the job was cancelled; it must stop without emitting further progress.
type ProgressFunc func(stage string, pct int) bool

// ErrCancelled is returned by an executor that observed a false ProgressFunc
// result and stopped.
var ErrCancelled = errors.New("build cancelled")

// Executor turns a spec into an artifact through a stream of progress
// events ending in completed or failed. The pipeline depends only on this
// capability, so a real build toolchain can back it without touching the
// pipeline contract.
type Executor interface {
	Execute(ctx context.Context, buildID string, spec Spec, emit ProgressFunc) (*Artifact, error)
}
