// Package statusapi serves the host status consumed by the dashboard's
// status poller.
package statusapi

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/projectdiscovery/gologger"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

const (
	StatusOnline   = "online"
	StatusDegraded = "degraded"

	// DefaultCacheTTL bounds how often the host is probed
	DefaultCacheTTL = 5 * time.Second
)

// Report is the body of GET /api/status
type Report struct {
	Status           string  `json:"status"`
	Version          string  `json:"version"`
	Uptime           uint64  `json:"uptime"`
	CPU              float64 `json:"cpu"`
	Memory           float64 `json:"memory"`
	Disk             float64 `json:"disk"`
	MemoryUsedBytes  uint64  `json:"memory_used_bytes"`
	MemoryTotalBytes uint64  `json:"memory_total_bytes"`
	DiskUsedBytes    uint64  `json:"disk_used_bytes"`
	DiskTotalBytes   uint64  `json:"disk_total_bytes"`
	Timestamp        string  `json:"timestamp"`
	Note             string  `json:"note,omitempty"`
}

// Usage is a used/total pair with its percentage
type Usage struct {
	Percent float64
	Used    uint64
	Total   uint64
}

// Probes read the host. Each one may fail independently.
type Probes struct {
	CPU    func(ctx context.Context) (float64, error)
	Memory func(ctx context.Context) (Usage, error)
	Disk   func(ctx context.Context, path string) (Usage, error)
	Uptime func(ctx context.Context) (uint64, error)
}

// HostProbes reads the local host through gopsutil
func HostProbes() Probes {
	return Probes{
		CPU: func(ctx context.Context) (float64, error) {
			values, err := cpu.PercentWithContext(ctx, 0, false)
			if err != nil || len(values) == 0 {
				return 0, err
			}
			return values[0], nil
		},
		Memory: func(ctx context.Context) (Usage, error) {
			vm, err := mem.VirtualMemoryWithContext(ctx)
			if err != nil {
				return Usage{}, err
			}
			return Usage{Percent: vm.UsedPercent, Used: vm.Used, Total: vm.Total}, nil
		},
		Disk: func(ctx context.Context, path string) (Usage, error) {
			du, err := disk.UsageWithContext(ctx, path)
			if err != nil {
				return Usage{}, err
			}
			return Usage{Percent: du.UsedPercent, Used: du.Used, Total: du.Total}, nil
		},
		Uptime: host.UptimeWithContext,
	}
}

// Collector builds reports and caches them for a TTL
type Collector struct {
	version  string
	diskPath string
	ttl      time.Duration
	probes   Probes
	now      func() time.Time

	mu     sync.Mutex
	last   Report
	lastAt time.Time
}

// NewCollector creates a collector reporting version and the disk usage of
// diskPath
func NewCollector(version, diskPath string, ttl time.Duration, probes Probes) *Collector {
	if diskPath == "" {
		diskPath = "/"
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Collector{
		version:  version,
		diskPath: diskPath,
		ttl:      ttl,
		probes:   probes,
		now:      time.Now,
	}
}

// Report returns the cached report or probes the host again
func (c *Collector) Report(ctx context.Context) Report {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !c.lastAt.IsZero() && now.Sub(c.lastAt) < c.ttl {
		return c.last
	}

	out := Report{
		Status:    StatusOnline,
		Version:   c.version,
		Timestamp: now.UTC().Format(time.RFC3339),
	}
	var failed []string

	if c.probes.CPU != nil {
		value, err := c.probes.CPU(ctx)
		if err != nil {
			failed = append(failed, "cpu")
			gologger.Debug().Msgf("cpu probe failed: %v", err)
		}
		out.CPU = value
	}
	if c.probes.Memory != nil {
		usage, err := c.probes.Memory(ctx)
		if err != nil {
			failed = append(failed, "memory")
			gologger.Debug().Msgf("memory probe failed: %v", err)
		}
		out.Memory, out.MemoryUsedBytes, out.MemoryTotalBytes = usage.Percent, usage.Used, usage.Total
	}
	if c.probes.Disk != nil {
		usage, err := c.probes.Disk(ctx, c.diskPath)
		if err != nil {
			failed = append(failed, "disk")
			gologger.Debug().Msgf("disk probe failed for %s: %v", c.diskPath, err)
		}
		out.Disk, out.DiskUsedBytes, out.DiskTotalBytes = usage.Percent, usage.Used, usage.Total
	}
	if c.probes.Uptime != nil {
		uptime, err := c.probes.Uptime(ctx)
		if err != nil {
			failed = append(failed, "uptime")
			gologger.Debug().Msgf("uptime probe failed: %v", err)
		}
		out.Uptime = uptime
	}

	if len(failed) > 0 {
		out.Status = StatusDegraded
		out.Note = "unavailable: " + strings.Join(failed, ", ")
	}

	c.last = out
	c.lastAt = now
	return out
}
