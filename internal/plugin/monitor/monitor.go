// Package monitor is a built-in plugin that watches host CPU and memory
// against configurable thresholds and pushes an alert message when either
// is crossed. Activated by a blank import in cmd/dockside/providers.go
// and the --plugins monitor flag.
package monitor

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/Strob0t/dockside/internal/bot"
	"github.com/Strob0t/dockside/internal/container"
	"github.com/Strob0t/dockside/internal/plugin"
)

const pluginName = "monitor"

const (
	defaultCPUThreshold = 90.0
	defaultMemThreshold = 85.0
	defaultInterval     = 2 * time.Minute
)

var statusPattern = regexp.MustCompile(`^Monitor status$`)

func init() {
	plugin.RegisterFactory(pluginName, newMonitor)
}

// Monitor samples host vitals on an interval and alerts a configured chat
// when thresholds are crossed.
type Monitor struct {
	env      plugin.Env
	metrics  *container.MetricsFacade
	cpuLimit float64
	memLimit float64
	interval time.Duration
	alertTo  int64

	cancel context.CancelFunc
	done   chan struct{}
}

func newMonitor(env plugin.Env, config map[string]string) (plugin.Plugin, error) {
	m := &Monitor{
		env:      env,
		metrics:  container.NewMetricsFacade(),
		cpuLimit: defaultCPUThreshold,
		memLimit: defaultMemThreshold,
		interval: defaultInterval,
		done:     make(chan struct{}),
	}

	if v, ok := config["cpu_threshold"]; ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("monitor: cpu_threshold: %w", err)
		}
		m.cpuLimit = f
	}
	if v, ok := config["mem_threshold"]; ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("monitor: mem_threshold: %w", err)
		}
		m.memLimit = f
	}
	if v, ok := config["alert_chat_id"]; ok {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("monitor: alert_chat_id: %w", err)
		}
		m.alertTo = id
	}
	if v, ok := config["interval"]; ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("monitor: interval: %w", err)
		}
		m.interval = d
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.watch(ctx)

	return m, nil
}

func (m *Monitor) Info() plugin.Info {
	return plugin.Info{
		Name:        pluginName,
		Version:     "1.1.0",
		Description: "Threshold alerts for host CPU and memory",
		Commands:    map[string]string{"monitor": "current monitor readings"},
		IndexKey:    map[string]string{"Monitor status": "monitor"},
		Permissions: plugin.Permissions{
			BasePermission:           "user",
			NeedRunningOnHostMachine: true,
		},
		ResourceLimits: plugin.ResourceLimits{MaxHandlers: 2},
	}
}

func (m *Monitor) RegisterHandlers(reg *bot.Registry) {
	reg.Add("plugin_monitor_cmd", bot.Trigger{Command: "/monitor"}, m.Status)
	reg.Add("plugin_monitor_button", bot.Trigger{Pattern: statusPattern}, m.Status)
}

// Status replies with the current readings against the thresholds.
func (m *Monitor) Status(ctx context.Context, u *bot.Update) error {
	snap, err := m.metrics.Snapshot(ctx)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("Monitor:\nCPU: %.1f%% (alert above %.0f%%)\nMemory: %.1f%% (alert above %.0f%%)",
		snap.CPUPercent, m.cpuLimit, snap.MemPercent, m.memLimit)
	_, err = m.env.Client.SendMessage(ctx, u.ChatID(), text, nil)
	return err
}

// watch samples on the configured interval and alerts once per crossing.
func (m *Monitor) watch(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	var alerted bool
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, err := m.metrics.Snapshot(ctx)
			if err != nil {
				m.env.Log.Error("monitor sample failed", "error", err)
				continue
			}

			over := snap.CPUPercent > m.cpuLimit || snap.MemPercent > m.memLimit
			switch {
			case over && !alerted && m.alertTo != 0:
				alerted = true
				text := fmt.Sprintf("Resource alert: CPU %.1f%%, memory %.1f%%.", snap.CPUPercent, snap.MemPercent)
				if _, err := m.env.Client.SendMessage(ctx, m.alertTo, text, nil); err != nil {
					m.env.Log.Error("monitor alert failed", "error", err)
				}
			case !over:
				alerted = false
			}
		}
	}
}

// Cleanup stops the sampling goroutine.
func (m *Monitor) Cleanup() error {
	m.cancel()
	select {
	case <-m.done:
	case <-time.After(5 * time.Second):
		return fmt.Errorf("monitor: watcher did not stop")
	}
	return nil
}
