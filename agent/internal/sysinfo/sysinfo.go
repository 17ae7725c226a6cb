package sysinfo

import (
	"fmt"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
)

// Profile is the hardware inventory shipped with every heartbeat.
type Profile struct {
	Hostname      string  `json:"hostname"`
	Platform      string  `json:"platform"`
	KernelVersion string  `json:"kernel_version"`
	CPUModel      string  `json:"cpu_model"`
	CPUCores      int     `json:"cpu_cores"`
	MemoryTotalMB uint64  `json:"memory_total_mb"`
	DiskTotalGB   float64 `json:"disk_total_gb"`
	PrimaryMAC    string  `json:"primary_mac"`
	UptimeSeconds uint64  `json:"uptime_seconds"`
}

func Collect() (*Profile, error) {
	p := &Profile{}

	if hi, err := host.Info(); err == nil {
		p.Hostname = hi.Hostname
		p.Platform = fmt.Sprintf("%s %s", hi.Platform, hi.PlatformVersion)
		p.KernelVersion = hi.KernelVersion
		p.UptimeSeconds = hi.Uptime
	}
	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		p.CPUModel = infos[0].ModelName
	}
	if n, err := cpu.Counts(true); err == nil {
		p.CPUCores = n
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		p.MemoryTotalMB = vm.Total / (1024 * 1024)
	}
	if du, err := disk.Usage("/"); err == nil {
		p.DiskTotalGB = float64(du.Total) / (1024 * 1024 * 1024)
	}

	mac, err := PrimaryMAC()
	if err != nil {
		return nil, err
	}
	p.PrimaryMAC = mac
	return p, nil
}

// PrimaryMAC returns the hardware address of the first non-loopback
// interface that has one, lowercased with colon separators.
func PrimaryMAC() (string, error) {
	ifaces, err := psnet.Interfaces()
	if err != nil {
		return "", err
	}
	for _, ifc := range ifaces {
		if ifc.HardwareAddr == "" {
			continue
		}
		loopback := false
		for _, f := range ifc.Flags {
			if f == "loopback" {
				loopback = true
				break
			}
		}
		if loopback {
			continue
		}
		return strings.ToLower(ifc.HardwareAddr), nil
	}
	return "", fmt.Errorf("no interface with a hardware address")
}

// DeviceID derives the stable device identifier from a MAC address by
// stripping separators: aa:bb:cc:dd:ee:ff becomes aabbccddeeff.
func DeviceID(mac string) string {
	r := strings.NewReplacer(":", "", "-", "")
	return strings.ToLower(r.Replace(mac))
}
