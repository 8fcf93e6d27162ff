package main

import (
	"context"
	"fmt"
	"os"
	"time"

	dockerclient "github.com/docker/docker/client"

	"github.com/Strob0t/dockside/internal/config"
	"github.com/Strob0t/dockside/internal/container"
)

// Health-check exit codes, matching the documented CLI contract.
const (
	healthOK      = 0
	healthBad     = 1
	healthUnknown = 2
)

// runHealthCheck probes the pieces a running bot depends on — loadable
// config, a reachable container engine, readable host metrics — and
// prints the verdict. Exit codes: 0 healthy, 1 unhealthy, 2 unknown.
func runHealthCheck(flags config.CLIFlags) int {
	cfg, _, err := config.LoadWithCLI(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "health: unknown (config: %v)\n", err)
		return healthUnknown
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	engine, err := dockerclient.NewClientWithOpts(
		dockerclient.WithHost(cfg.Docker.Host),
		dockerclient.WithAPIVersionNegotiation(),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "health: unhealthy (engine client: %v)\n", err)
		return healthBad
	}
	defer engine.Close()

	if _, err := engine.Ping(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "health: unhealthy (engine unreachable)\n")
		return healthBad
	}

	if _, err := container.NewMetricsFacade().Snapshot(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "health: unhealthy (host metrics: %v)\n", err)
		return healthBad
	}

	fmt.Println("health: ok")
	return healthOK
}
