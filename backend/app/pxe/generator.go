// Package pxe emits and retracts per-device boot directives consumed by
// unmodified network-boot infrastructure. The directive is a pxelinux
// config file under <tftpRoot>/pxelinux.cfg, keyed by the device's hardware
// address; the referenced artifact is served by a plain HTTP file server.
// The package holds no state of its own: the directive tree is a projection
// of the non-terminal boot deployments.
package pxe

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const configDir = "pxelinux.cfg"

type Generator struct {
	TFTPRoot string
	// KernelPath and InitrdPath locate the deploy environment relative to
	// the TFTP root.
	KernelPath string
	InitrdPath string
}

func NewGenerator(tftpRoot string) *Generator {
	return &Generator{
		TFTPRoot:   tftpRoot,
		KernelPath: "images/deploy/vmlinuz",
		InitrdPath: "images/deploy/initrd.img",
	}
}

// Render produces the directive text for one device. Deterministic: the
// same inputs always yield the same bytes, so the file can be rewritten
// idempotently. The deployment id rides on the kernel command line so the
// booted deploy environment reports completion against the right
// deployment.
func (g *Generator) Render(mac, artifactURL, deploymentID string) string {
	return fmt.Sprintf(`DEFAULT vdi-deploy
LABEL vdi-deploy
    KERNEL %s
    APPEND initrd=%s boot=live fetch=%s quiet splash deployment_id=%s
`, g.KernelPath, g.InitrdPath, artifactURL, deploymentID)
}

// FileName returns the pxelinux config name for a normalized MAC:
// 01-aa-bb-cc-dd-ee-ff (01 is the ethernet ARP type prefix pxelinux
// expects).
func FileName(mac string) string {
	return "01-" + strings.ReplaceAll(strings.ToLower(mac), ":", "-")
}

func (g *Generator) path(mac string) string {
	return filepath.Join(g.TFTPRoot, configDir, FileName(mac))
}

// Assign writes the device's boot directive, replacing any prior one
// (last-writer-wins, matching the one-active-deployment-per-device rule).
func (g *Generator) Assign(mac, deploymentID, artifactURL string) error {
	p := g.path(mac)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create pxelinux.cfg dir: %w", err)
	}
	if err := os.WriteFile(p, []byte(g.Render(mac, artifactURL, deploymentID)), 0o644); err != nil {
		return fmt.Errorf("write boot directive for %s: %w", mac, err)
	}
	return nil
}

// Retract removes the device's directive. Missing is not an error: a
// retraction races with nothing and retries are free.
func (g *Generator) Retract(mac string) error {
	err := os.Remove(g.path(mac))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove boot directive for %s: %w", mac, err)
	}
	return nil
}

// Lookup reads the current directive, or "" when none exists.
func (g *Generator) Lookup(mac string) (string, error) {
	b, err := os.ReadFile(g.path(mac))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(b), nil
}
