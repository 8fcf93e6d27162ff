package container

import (
	"context"
	"io"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
)

// EngineClient is the narrow subset of the container-engine client the
// facade depends on, grounded on github.com/docker/docker/client.Client.
// Defining it here lets tests substitute a fake without a running engine.
type EngineClient interface {
	ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error)
	ContainerInspect(ctx context.Context, id string) (types.ContainerJSON, error)
	ContainerStatsOneShot(ctx context.Context, id string) (types.ContainerStats, error)
	ContainerLogs(ctx context.Context, id string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerStart(ctx context.Context, id string, options container.StartOptions) error
	ContainerStop(ctx context.Context, id string, options container.StopOptions) error
	ContainerRestart(ctx context.Context, id string, options container.StopOptions) error
	ContainerRename(ctx context.Context, id, newName string) error
	ImageList(ctx context.Context, options types.ImageListOptions) ([]image.Summary, error)
	ImageInspectWithRaw(ctx context.Context, id string) (types.ImageInspect, []byte, error)
	Close() error
}
