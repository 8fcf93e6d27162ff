package container

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsFacade_Memory(t *testing.T) {
	m := NewMetricsFacade()

	got, err := m.Memory(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, got.Total)
	assert.GreaterOrEqual(t, got.UsedPercent, 0.0)
	assert.LessOrEqual(t, got.UsedPercent, 100.0)
}

func TestMetricsFacade_Host(t *testing.T) {
	m := NewMetricsFacade()

	got, err := m.Host(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, got.Hostname)
	assert.NotEmpty(t, got.Uptime)
	assert.False(t, got.BootTime.IsZero())
}

func TestMetricsFacade_Snapshot(t *testing.T) {
	m := NewMetricsFacade()

	snap, err := m.Snapshot(context.Background())
	require.NoError(t, err)

	assert.GreaterOrEqual(t, snap.CPUPercent, 0.0)
	assert.GreaterOrEqual(t, snap.MemPercent, 0.0)
}

func TestMetricsFacade_FileSystems(t *testing.T) {
	m := NewMetricsFacade()

	fs, err := m.FileSystems(context.Background())
	require.NoError(t, err)

	for _, f := range fs {
		assert.NotEmpty(t, f.Mountpoint)
		assert.GreaterOrEqual(t, f.UsedPercent, 0.0)
	}
}
