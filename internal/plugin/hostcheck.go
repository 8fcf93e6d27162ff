package plugin

import (
	"os"
	"strings"
)

// RunningInContainer reports whether this process is itself inside a
// container, by the usual markers: /.dockerenv, /run/.containerenv
// (podman), or container cgroups in /proc/1/cgroup.
func RunningInContainer() bool {
	for _, marker := range []string{"/.dockerenv", "/run/.containerenv"} {
		if _, err := os.Stat(marker); err == nil {
			return true
		}
	}

	data, err := os.ReadFile("/proc/1/cgroup")
	if err != nil {
		return false
	}
	content := string(data)
	return strings.Contains(content, "docker") ||
		strings.Contains(content, "containerd") ||
		strings.Contains(content, "kubepods")
}
