package container

import "time"

// ContainerSummary is a lightweight, string-serialised view of one
// container, as returned by ListContainers.
type ContainerSummary struct {
	ShortID string
	Name    string
	Image   string
	Created time.Time
	RunAt   string // relative-time rendering of Created, e.g. "3 hours ago"
	Status  string
}

// MemoryStats reports one container's memory usage at query time.
type MemoryStats struct {
	Usage   uint64
	Limit   uint64
	Percent float64
}

// CPUStats reports cgroup CPU throttling counters.
type CPUStats struct {
	ThrottlingPeriods uint64
}

// NetworkStats reports the primary interface's traffic counters.
type NetworkStats struct {
	RxBytes uint64
	TxBytes uint64
	RxErrors uint64
	TxErrors uint64
	RxDropped uint64
	TxDropped uint64
}

// ContainerAttrs surfaces the subset of container state/config that the
// facade exposes to handlers.
type ContainerAttrs struct {
	Running      bool
	Paused       bool
	Restarting   bool
	RestartCount int
	Dead         bool
	ExitCode     int
	Env          []string
	Cmd          []string
	Args         []string
}

// ContainerFullStats is the full one-shot stats snapshot for a container.
type ContainerFullStats struct {
	Memory  MemoryStats
	CPU     CPUStats
	Network NetworkStats
	Attrs   ContainerAttrs
}

// ImageInfo is a human-readable view of one image.
type ImageInfo struct {
	ID          string
	PrimaryName string
	Tags        []string
	Arch        string
	OS          string
	Size        string // human-readable, via docker/go-units
	Created     string // relative-time rendering
	Author      string
	Labels      map[string]string
	ExposedPorts []string
	Env         []string
	Entrypoint  []string
	Cmd         []string
}

// Action is a mutating container operation gated by admin+auth checks.
type Action string

const (
	ActionStart   Action = "START"
	ActionStop    Action = "STOP"
	ActionRestart Action = "RESTART"
	ActionRename  Action = "RENAME"
)
