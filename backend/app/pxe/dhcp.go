package pxe

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const leaseTime = "24h"

// Reservations projects device address bindings into one dnsmasq conf file,
// one dhcp-host line per device. Like the directive tree, the file is a
// projection of registry state: every write rebuilds the device's line from
// scratch.
type Reservations struct {
	Path string
}

func NewReservations(path string) *Reservations { return &Reservations{Path: path} }

func line(mac, ip string) string {
	return fmt.Sprintf("dhcp-host=%s,%s,%s", mac, ip, leaseTime)
}

func (r *Reservations) read() ([]string, error) {
	b, err := os.ReadFile(r.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var lines []string
	for _, l := range strings.Split(string(b), "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines, nil
}

func (r *Reservations) write(lines []string) error {
	if err := os.MkdirAll(filepath.Dir(r.Path), 0o755); err != nil {
		return fmt.Errorf("create dhcp conf dir: %w", err)
	}
	content := ""
	if len(lines) > 0 {
		content = strings.Join(lines, "\n") + "\n"
	}
	if err := os.WriteFile(r.Path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write dhcp reservations: %w", err)
	}
	return nil
}

// Reserve binds the device's MAC to a fixed address, replacing any prior
// line for that MAC. An empty ip is a no-op: devices without a static
// address lease dynamically.
func (r *Reservations) Reserve(mac, ip string) error {
	if ip == "" {
		return nil
	}
	lines, err := r.read()
	if err != nil {
		return err
	}
	replaced := false
	for i, l := range lines {
		if strings.Contains(l, mac) {
			lines[i] = line(mac, ip)
			replaced = true
		}
	}
	if !replaced {
		lines = append(lines, line(mac, ip))
	}
	return r.write(lines)
}

// Release drops the device's reservation. Missing is not an error.
func (r *Reservations) Release(mac string) error {
	lines, err := r.read()
	if err != nil {
		return err
	}
	kept := lines[:0]
	for _, l := range lines {
		if !strings.Contains(l, mac) {
			kept = append(kept, l)
		}
	}
	if len(kept) == len(lines) {
		return nil
	}
	return r.write(kept)
}

// Lookup returns the device's reservation line, or "" when none exists.
func (r *Reservations) Lookup(mac string) (string, error) {
	lines, err := r.read()
	if err != nil {
		return "", err
	}
	for _, l := range lines {
		if strings.Contains(l, mac) {
			return l, nil
		}
	}
	return "", nil
}
