// Package metadata builds the host- and agent-identifying payload
// submitted on a slower cadence than metric collection.
package metadata

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Payload assembles the metadata document. Host probes that fail are
// simply omitted: partial metadata beats none, and the scheduler treats
// submission failures as per-cycle errors anyway.
func Payload(hostname, agentVersion string, startEvent bool) map[string]interface{} {
	payload := map[string]interface{}{
		"hostname":      hostname,
		"agent_version": agentVersion,
		"start_event":   startEvent,
		"timestamp":     time.Now().Unix(),
		"os":            runtime.GOOS,
		"arch":          runtime.GOARCH,
	}

	if info, err := host.Info(); err == nil {
		payload["platform"] = info.Platform
		payload["platform_version"] = info.PlatformVersion
		payload["kernel_version"] = info.KernelVersion
		payload["uptime"] = info.Uptime
		payload["boot_time"] = info.BootTime
	}
	if cores, err := cpu.Counts(true); err == nil {
		payload["cpu_cores"] = cores
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		payload["memory_total"] = vm.Total
	}

	return payload
}
