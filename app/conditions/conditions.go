// Package conditions gates migration runs on system resources. Migrations
// are disk and CPU heavy; the worker can hold a job back until the host
// has enough headroom.
package conditions

import (
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

// Config defines resource thresholds for starting a migration run.
// Zero values disable the corresponding check.
type Config struct {
	CPUBelow      int           // max CPU usage percent
	MemoryBelow   int           // max memory usage percent
	LoadAvgBelow  float64       // max 1m load average
	DiskFreeAbove int           // min free percent on DiskFreePath
	DiskFreePath  string        // defaults to "/"
	MaxPostpone   time.Duration // how long the worker may wait for conditions
	CheckInterval time.Duration // re-check period while postponed
}

// Enabled reports whether any threshold is configured
func (c Config) Enabled() bool {
	return c.CPUBelow > 0 || c.MemoryBelow > 0 || c.LoadAvgBelow > 0 || c.DiskFreeAbove > 0
}

// Checker verifies resource conditions via gopsutil
type Checker struct{}

// Check verifies all configured thresholds, returns false with a reason
// naming the first unmet one
func (Checker) Check(cfg Config) (bool, string) {
	if cfg.CPUBelow > 0 {
		if ok, reason := checkCPU(cfg.CPUBelow); !ok {
			return false, reason
		}
	}
	if cfg.MemoryBelow > 0 {
		if ok, reason := checkMemory(cfg.MemoryBelow); !ok {
			return false, reason
		}
	}
	if cfg.LoadAvgBelow > 0 {
		if ok, reason := checkLoadAvg(cfg.LoadAvgBelow); !ok {
			return false, reason
		}
	}
	if cfg.DiskFreeAbove > 0 {
		path := cfg.DiskFreePath
		if path == "" {
			path = "/"
		}
		if ok, reason := checkDiskFree(cfg.DiskFreeAbove, path); !ok {
			return false, reason
		}
	}
	return true, ""
}

func checkCPU(threshold int) (bool, string) {
	cpuPercent, err := cpu.Percent(time.Second, false)
	if err != nil {
		return false, fmt.Sprintf("failed to get CPU: %v", err)
	}
	if len(cpuPercent) == 0 {
		return false, "no CPU data available"
	}
	current := int(cpuPercent[0])
	if current >= threshold {
		return false, fmt.Sprintf("CPU at %d%%, threshold %d%%", current, threshold)
	}
	return true, ""
}

func checkMemory(threshold int) (bool, string) {
	v, err := mem.VirtualMemory()
	if err != nil {
		return false, fmt.Sprintf("failed to get memory: %v", err)
	}
	current := int(v.UsedPercent)
	if current >= threshold {
		return false, fmt.Sprintf("memory at %d%%, threshold %d%%", current, threshold)
	}
	return true, ""
}

func checkLoadAvg(threshold float64) (bool, string) {
	loads, err := load.Avg()
	if err != nil {
		return false, fmt.Sprintf("failed to get load average: %v", err)
	}
	if loads.Load1 >= threshold {
		return false, fmt.Sprintf("load at %.2f, threshold %.2f", loads.Load1, threshold)
	}
	return true, ""
}

func checkDiskFree(minFreePercent int, path string) (bool, string) {
	usage, err := disk.Usage(path)
	if err != nil {
		return false, fmt.Sprintf("failed to get disk usage for %s: %v", path, err)
	}
	freePercent := 100 - int(usage.UsedPercent)
	if freePercent < minFreePercent {
		return false, fmt.Sprintf("disk free at %d%%, need %d%% on %s", freePercent, minFreePercent, path)
	}
	return true, ""
}
