package builder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// The stage sequence mirrors the thin-client image assembly flow: base
// system, package set, system configuration, hardware drivers, VDI
// components, boot optimization, final image assembly.
var stages = []struct {
	name string
	pct  int
}{
	{"fetch_base", 10},
	{"install_packages", 30},
	{"configure_system", 45},
	{"install_drivers", 60},
	{"configure_vdi", 75},
	{"optimize_boot", 85},
	{"assemble_image", 100},
}

// Local assembles artifacts on the local filesystem under OutputDir.
// StepDelay paces stage transitions; tests leave it zero.
type Local struct {
	OutputDir string
	StepDelay time.Duration
}

func NewLocal(outputDir string) *Local { return &Local{OutputDir: outputDir} }

func (l *Local) Execute(ctx context.Context, buildID string, spec Spec, emit ProgressFunc) (*Artifact, error) {
	if err := os.MkdirAll(l.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(l.OutputDir, fmt.Sprintf("%s-%s-%s.img", spec.Name, spec.Version, buildID))

	manifest := map[string]any{
		"build_id": buildID,
		"spec":     spec,
		"stages":   []string{},
	}
	done := make([]string, 0, len(stages))

	for _, stage := range stages {
		select {
		case <-ctx.Done():
			return nil, ErrCancelled
		default:
		}
		if l.StepDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ErrCancelled
			case <-time.After(l.StepDelay):
			}
		}
		if !emit(stage.name, stage.pct) {
			return nil, ErrCancelled
		}
		done = append(done, stage.name)
	}

	manifest["stages"] = done
	content, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode image manifest: %w", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return nil, fmt.Errorf("write image: %w", err)
	}

	sum := sha256.Sum256(content)
	return &Artifact{
		Path:      path,
		SizeBytes: int64(len(content)),
		Checksum:  hex.EncodeToString(sum[:]),
	}, nil
}
