package container

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/docker/go-units"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	gopsnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/Strob0t/dockside/internal/domain"
)

// LoadAverage is the host's 1/5/15-minute run-queue averages.
type LoadAverage struct {
	Load1  float64
	Load5  float64
	Load15 float64
}

// MemoryLoad is the host's virtual memory usage at query time.
type MemoryLoad struct {
	Total       string
	Available   string
	Used        string
	UsedPercent float64
	Cached      string
	Shared      string
}

// SwapLoad is the host's swap usage at query time.
type SwapLoad struct {
	Total       string
	Used        string
	Free        string
	UsedPercent float64
}

// SensorReading is one hardware temperature sensor sample.
type SensorReading struct {
	Key         string
	Temperature float64
}

// ProcessCounts summarises the host's process table by state.
type ProcessCounts struct {
	Total    int
	Running  int
	Sleeping int
	Zombie   int
}

// FileSystemUsage is one mounted filesystem's capacity view.
type FileSystemUsage struct {
	Device      string
	Mountpoint  string
	FSType      string
	Total       string
	Used        string
	Free        string
	UsedPercent float64
}

// NetworkIO is the host's aggregate network counters since boot.
type NetworkIO struct {
	BytesSent   string
	BytesRecv   string
	PacketsSent uint64
	PacketsRecv uint64
	ErrIn       uint64
	ErrOut      uint64
	DropIn      uint64
	DropOut     uint64
}

// HostInfo is the "About me" view: identity and uptime of the machine the
// bot runs on.
type HostInfo struct {
	Hostname      string
	OS            string
	Platform      string
	KernelVersion string
	Arch          string
	Uptime        string
	BootTime      time.Time
}

// ResourceSnapshot is the health loop's periodic resource sample.
type ResourceSnapshot struct {
	CPUPercent float64
	MemPercent float64
	RSSBytes   uint64
}

// MetricsFacade reads the host's vital statistics. All calls are one-shot
// reads against the OS metrics source; nothing is cached between calls.
type MetricsFacade struct{}

// NewMetricsFacade creates a MetricsFacade.
func NewMetricsFacade() *MetricsFacade {
	return &MetricsFacade{}
}

// LoadAvg returns the host's load averages.
func (m *MetricsFacade) LoadAvg(ctx context.Context) (*LoadAverage, error) {
	avg, err := load.AvgWithContext(ctx)
	if err != nil {
		return nil, domain.New(domain.CodeConnection, fmt.Errorf("load avg: %w", err))
	}
	return &LoadAverage{Load1: avg.Load1, Load5: avg.Load5, Load15: avg.Load15}, nil
}

// Memory returns the host's virtual memory usage.
func (m *MetricsFacade) Memory(ctx context.Context) (*MemoryLoad, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, domain.New(domain.CodeConnection, fmt.Errorf("virtual memory: %w", err))
	}
	return &MemoryLoad{
		Total:       units.BytesSize(float64(vm.Total)),
		Available:   units.BytesSize(float64(vm.Available)),
		Used:        units.BytesSize(float64(vm.Used)),
		UsedPercent: roundTo2(vm.UsedPercent),
		Cached:      units.BytesSize(float64(vm.Cached)),
		Shared:      units.BytesSize(float64(vm.Shared)),
	}, nil
}

// Swap returns the host's swap usage.
func (m *MetricsFacade) Swap(ctx context.Context) (*SwapLoad, error) {
	sw, err := mem.SwapMemoryWithContext(ctx)
	if err != nil {
		return nil, domain.New(domain.CodeConnection, fmt.Errorf("swap memory: %w", err))
	}
	return &SwapLoad{
		Total:       units.BytesSize(float64(sw.Total)),
		Used:        units.BytesSize(float64(sw.Used)),
		Free:        units.BytesSize(float64(sw.Free)),
		UsedPercent: roundTo2(sw.UsedPercent),
	}, nil
}

// Sensors returns hardware temperature readings, sorted by sensor key.
// Hosts without exposed sensors return an empty slice, not an error.
func (m *MetricsFacade) Sensors(ctx context.Context) ([]SensorReading, error) {
	temps, err := host.SensorsTemperaturesWithContext(ctx)
	if err != nil && len(temps) == 0 {
		return nil, domain.New(domain.CodeConnection, fmt.Errorf("sensors: %w", err))
	}

	out := make([]SensorReading, 0, len(temps))
	for _, t := range temps {
		if t.SensorKey == "" {
			continue
		}
		out = append(out, SensorReading{Key: t.SensorKey, Temperature: t.Temperature})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Processes counts processes by state.
func (m *MetricsFacade) Processes(ctx context.Context) (*ProcessCounts, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, domain.New(domain.CodeConnection, fmt.Errorf("processes: %w", err))
	}

	counts := &ProcessCounts{Total: len(procs)}
	for _, p := range procs {
		statuses, err := p.StatusWithContext(ctx)
		if err != nil || len(statuses) == 0 {
			continue
		}
		switch statuses[0] {
		case process.Running:
			counts.Running++
		case process.Sleep:
			counts.Sleeping++
		case process.Zombie:
			counts.Zombie++
		}
	}
	return counts, nil
}

// FileSystems returns usage for every physical mounted filesystem.
func (m *MetricsFacade) FileSystems(ctx context.Context) ([]FileSystemUsage, error) {
	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, domain.New(domain.CodeConnection, fmt.Errorf("partitions: %w", err))
	}

	out := make([]FileSystemUsage, 0, len(parts))
	for _, p := range parts {
		usage, err := disk.UsageWithContext(ctx, p.Mountpoint)
		if err != nil {
			continue
		}
		out = append(out, FileSystemUsage{
			Device:      p.Device,
			Mountpoint:  p.Mountpoint,
			FSType:      p.Fstype,
			Total:       units.BytesSize(float64(usage.Total)),
			Used:        units.BytesSize(float64(usage.Used)),
			Free:        units.BytesSize(float64(usage.Free)),
			UsedPercent: roundTo2(usage.UsedPercent),
		})
	}
	return out, nil
}

// Network returns the host's aggregate network I/O counters.
func (m *MetricsFacade) Network(ctx context.Context) (*NetworkIO, error) {
	counters, err := gopsnet.IOCountersWithContext(ctx, false)
	if err != nil {
		return nil, domain.New(domain.CodeConnection, fmt.Errorf("net counters: %w", err))
	}
	if len(counters) == 0 {
		return &NetworkIO{BytesSent: "0B", BytesRecv: "0B"}, nil
	}

	c := counters[0]
	return &NetworkIO{
		BytesSent:   units.BytesSize(float64(c.BytesSent)),
		BytesRecv:   units.BytesSize(float64(c.BytesRecv)),
		PacketsSent: c.PacketsSent,
		PacketsRecv: c.PacketsRecv,
		ErrIn:       c.Errin,
		ErrOut:      c.Errout,
		DropIn:      c.Dropin,
		DropOut:     c.Dropout,
	}, nil
}

// Host returns host identity and uptime.
func (m *MetricsFacade) Host(ctx context.Context) (*HostInfo, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, domain.New(domain.CodeConnection, fmt.Errorf("host info: %w", err))
	}
	return &HostInfo{
		Hostname:      info.Hostname,
		OS:            info.OS,
		Platform:      info.Platform,
		KernelVersion: info.KernelVersion,
		Arch:          info.KernelArch,
		Uptime:        units.HumanDuration(time.Duration(info.Uptime) * time.Second),
		BootTime:      time.Unix(int64(info.BootTime), 0), //nolint:gosec // boot time fits int64
	}, nil
}

// Snapshot samples resource usage for the health loop: host CPU percent,
// host memory percent, and this process's RSS.
func (m *MetricsFacade) Snapshot(ctx context.Context) (*ResourceSnapshot, error) {
	snap := &ResourceSnapshot{}

	pcts, err := cpu.PercentWithContext(ctx, 0, false)
	if err == nil && len(pcts) > 0 {
		snap.CPUPercent = roundTo2(pcts[0])
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err == nil {
		snap.MemPercent = roundTo2(vm.UsedPercent)
	}

	self, err := process.NewProcessWithContext(ctx, int32(os.Getpid())) //nolint:gosec // pid fits int32
	if err == nil {
		if memInfo, err := self.MemoryInfoWithContext(ctx); err == nil {
			snap.RSSBytes = memInfo.RSS
		}
	}

	return snap, nil
}
