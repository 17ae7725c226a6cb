package builder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalExecute(t *testing.T) {
	l := NewLocal(t.TempDir())
	spec := Spec{Name: "thin-client", Version: "1.0.0", Packages: []string{"xorg", "freerdp"}}

	var seen []string
	art, err := l.Execute(context.Background(), "job-1", spec, func(stage string, pct int) bool {
		seen = append(seen, stage)
		return true
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"fetch_base", "install_packages", "configure_system", "install_drivers",
		"configure_vdi", "optimize_boot", "assemble_image",
	}, seen)

	content, err := os.ReadFile(art.Path)
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), art.SizeBytes)

	sum := sha256.Sum256(content)
	assert.Equal(t, hex.EncodeToString(sum[:]), art.Checksum)
}

func TestLocalExecuteStopsOnCancelledProgress(t *testing.T) {
	l := NewLocal(t.TempDir())

	var seen []string
	_, err := l.Execute(context.Background(), "job-1", Spec{Name: "a", Version: "1"}, func(stage string, pct int) bool {
		seen = append(seen, stage)
		return len(seen) < 2
	})
	require.ErrorIs(t, err, ErrCancelled)
	assert.Len(t, seen, 2)
}

func TestLocalExecuteHonorsContext(t *testing.T) {
	l := NewLocal(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Execute(ctx, "job-1", Spec{Name: "a", Version: "1"}, func(string, int) bool { return true })
	require.ErrorIs(t, err, ErrCancelled)
}
