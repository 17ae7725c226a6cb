package pxe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileName(t *testing.T) {
	assert.Equal(t, "01-aa-bb-cc-dd-ee-ff", FileName("aa:bb:cc:dd:ee:ff"))
	assert.Equal(t, "01-aa-bb-cc-dd-ee-ff", FileName("AA:BB:CC:DD:EE:FF"))
}

func TestRenderIsDeterministic(t *testing.T) {
	g := NewGenerator(t.TempDir())
	a := g.Render("aa:bb:cc:dd:ee:ff", "http://fleet/images/base.img", "dep-1")
	b := g.Render("aa:bb:cc:dd:ee:ff", "http://fleet/images/base.img", "dep-1")
	assert.Equal(t, a, b)
	assert.Contains(t, a, "DEFAULT vdi-deploy")
	assert.Contains(t, a, "KERNEL images/deploy/vmlinuz")
	assert.Contains(t, a, "fetch=http://fleet/images/base.img")
	assert.Contains(t, a, "deployment_id=dep-1")
}

func TestAssignLookupRetract(t *testing.T) {
	root := t.TempDir()
	g := NewGenerator(root)
	mac := "aa:bb:cc:dd:ee:ff"

	require.NoError(t, g.Assign(mac, "dep-1", "http://fleet/images/base.img"))

	path := filepath.Join(root, "pxelinux.cfg", "01-aa-bb-cc-dd-ee-ff")
	_, err := os.Stat(path)
	require.NoError(t, err)

	got, err := g.Lookup(mac)
	require.NoError(t, err)
	assert.Equal(t, g.Render(mac, "http://fleet/images/base.img", "dep-1"), got)

	// reassignment replaces the directive
	require.NoError(t, g.Assign(mac, "dep-2", "http://fleet/images/next.img"))
	got, err = g.Lookup(mac)
	require.NoError(t, err)
	assert.Contains(t, got, "deployment_id=dep-2")

	require.NoError(t, g.Retract(mac))
	got, err = g.Lookup(mac)
	require.NoError(t, err)
	assert.Empty(t, got)

	// retracting again is a no-op
	require.NoError(t, g.Retract(mac))
}
