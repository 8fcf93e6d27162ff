// Package container provides a safe facade over a container-engine client:
// parallelized stats collection, sanitized log retrieval, and every
// mutating action gated behind admin+authenticated+ownership checks.
package container

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	dockertypes "github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/errdefs"
	"github.com/docker/go-connections/nat"
	"github.com/docker/go-units"
	"golang.org/x/sync/errgroup"

	"github.com/Strob0t/dockside/internal/domain"
	"github.com/Strob0t/dockside/internal/resilience"
	"github.com/Strob0t/dockside/internal/sanitize"
	"github.com/Strob0t/dockside/internal/session"
)

const (
	logTailLines     = "50"
	logTruncateChars = 3800
	restartPollTries = 3
	restartPollEvery = 1500 * time.Millisecond
	maxInspectWorkers = 8
)

// ErrPermissionDenied is returned by Manage when the caller fails the
// admin+authenticated check. It is logged at a distinguished severity and
// never propagated to the engine.
var ErrPermissionDenied = fmt.Errorf("container: permission denied")

// Facade is the safe, sanitizing wrapper around a container-engine client.
type Facade struct {
	client   EngineClient
	scoped   *scopedClient
	breaker  *resilience.Breaker
	sessions *session.Store
	admins   map[int64]struct{}
	log      *slog.Logger
}

// New creates a Facade. maxConcurrent bounds in-flight engine calls;
// breaker protects mutating calls from a degraded engine.
func New(client EngineClient, maxConcurrent int, breaker *resilience.Breaker, sessions *session.Store, allowedAdminIDs []int64, log *slog.Logger) *Facade {
	admins := make(map[int64]struct{}, len(allowedAdminIDs))
	for _, id := range allowedAdminIDs {
		admins[id] = struct{}{}
	}
	return &Facade{
		client:   client,
		scoped:   newScopedClient(maxConcurrent),
		breaker:  breaker,
		sessions: sessions,
		admins:   admins,
		log:      log,
	}
}

// ListContainers returns a summary of every container, parallelizing the
// per-container inspect call across a bounded worker pool. Failures on
// individual containers are logged and skipped, never propagated.
func (f *Facade) ListContainers(ctx context.Context) ([]ContainerSummary, error) {
	var list []dockertypes.Container
	err := f.scoped.run(ctx, func() error {
		var err error
		list, err = f.client.ContainerList(ctx, container.ListOptions{All: true})
		return err
	})
	if err != nil {
		return nil, domain.New(domain.CodeContainer, err)
	}

	summaries := make([]ContainerSummary, len(list))
	inspected := make([]bool, len(list))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInspectWorkers)

	for i, c := range list {
		i, c := i, c
		g.Go(func() error {
			var inspect dockertypes.ContainerJSON
			err := f.scoped.run(gctx, func() error {
				var err error
				inspect, err = f.client.ContainerInspect(gctx, c.ID)
				return err
			})
			if err != nil {
				f.log.Warn("container inspect failed", "container_id", c.ID, "error", err)
				return nil
			}

			created := time.Unix(c.Created, 0)
			summaries[i] = ContainerSummary{
				ShortID: shortID(c.ID),
				Name:    strings.TrimPrefix(firstOrEmpty(c.Names), "/"),
				Image:   c.Image,
				Created: created,
				RunAt:   units.HumanDuration(time.Since(created)) + " ago",
				Status:  inspect.State.Status,
			}
			inspected[i] = true
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, domain.New(domain.CodeContainer, err)
	}
	kept := summaries[:0]
	for i, s := range summaries {
		if inspected[i] {
			kept = append(kept, s)
		}
	}
	return kept, nil
}

// ContainerStats pulls one-shot (non-streaming) stats for id, computing
// memory percent locally and parsing the primary network interface only.
func (f *Facade) ContainerStats(ctx context.Context, id string) (*ContainerFullStats, error) {
	var raw dockertypes.ContainerStats
	err := f.scoped.run(ctx, func() error {
		var err error
		raw, err = f.client.ContainerStatsOneShot(ctx, id)
		return err
	})
	if err != nil {
		return nil, wrapContainerErr(id, err)
	}
	defer raw.Body.Close()

	var stats dockertypes.StatsJSON
	if err := decodeJSON(raw.Body, &stats); err != nil {
		return nil, domain.New(domain.CodeContainer, err).WithMeta("container_id", id)
	}

	var inspect dockertypes.ContainerJSON
	err = f.scoped.run(ctx, func() error {
		var err error
		inspect, err = f.client.ContainerInspect(ctx, id)
		return err
	})
	if err != nil {
		return nil, wrapContainerErr(id, err)
	}

	memPercent := 0.0
	if stats.MemoryStats.Limit > 0 {
		memPercent = roundTo2(float64(stats.MemoryStats.Usage) / float64(stats.MemoryStats.Limit) * 100)
	}

	net := NetworkStats{}
	if iface, ok := stats.Networks["eth0"]; ok {
		net = NetworkStats{
			RxBytes: iface.RxBytes, TxBytes: iface.TxBytes,
			RxErrors: iface.RxErrors, TxErrors: iface.TxErrors,
			RxDropped: iface.RxDropped, TxDropped: iface.TxDropped,
		}
	}

	exitCode := 0
	if inspect.State != nil {
		exitCode = inspect.State.ExitCode
	}

	return &ContainerFullStats{
		Memory: MemoryStats{Usage: stats.MemoryStats.Usage, Limit: stats.MemoryStats.Limit, Percent: memPercent},
		CPU:    CPUStats{ThrottlingPeriods: stats.CPUStats.ThrottlingData.Periods},
		Network: net,
		Attrs: ContainerAttrs{
			Running:      inspect.State != nil && inspect.State.Running,
			Paused:       inspect.State != nil && inspect.State.Paused,
			Restarting:   inspect.State != nil && inspect.State.Restarting,
			RestartCount: inspect.RestartCount,
			Dead:         inspect.State != nil && inspect.State.Dead,
			ExitCode:     exitCode,
			Env:          configEnv(inspect),
			Cmd:          configCmd(inspect),
			Args:         inspect.Args,
		},
	}, nil
}

// FetchLogs tails the last 50 lines of stdout+stderr, decodes as UTF-8
// (replacing invalid bytes), truncates to the last 3,800 characters, and
// sanitizes the result before returning it. identity fields (username,
// first/last name, numeric user id) and botToken are masked if present.
func (f *Facade) FetchLogs(ctx context.Context, id, username, firstName, lastName string, userID int64, botToken string) (string, error) {
	var rc io.ReadCloser
	err := f.scoped.run(ctx, func() error {
		var err error
		rc, err = f.client.ContainerLogs(ctx, id, container.LogsOptions{
			ShowStdout: true,
			ShowStderr: true,
			Tail:       logTailLines,
		})
		return err
	})
	if err != nil {
		return "", wrapContainerErr(id, err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", domain.New(domain.CodeContainer, err).WithMeta("container_id", id)
	}

	decoded := toValidUTF8(raw)
	if runes := []rune(decoded); len(runes) > logTruncateChars {
		decoded = string(runes[len(runes)-logTruncateChars:])
	}

	return sanitize.ContainerLog(decoded, username, firstName, lastName, userID, botToken), nil
}

// ListImages returns a human-readable view of every image on the engine.
func (f *Facade) ListImages(ctx context.Context) ([]ImageInfo, error) {
	var list []image.Summary
	err := f.scoped.run(ctx, func() error {
		var err error
		list, err = f.client.ImageList(ctx, dockertypes.ImageListOptions{})
		return err
	})
	if err != nil {
		return nil, domain.New(domain.CodeImage, err)
	}

	out := make([]ImageInfo, 0, len(list))
	for _, img := range list {
		info := ImageInfo{
			ID:          shortID(strings.TrimPrefix(img.ID, "sha256:")),
			PrimaryName: firstOrEmpty(img.RepoTags),
			Tags:        img.RepoTags,
			Size:        units.HumanSize(float64(img.Size)),
			Created:     units.HumanDuration(time.Since(time.Unix(img.Created, 0))) + " ago",
			Labels:      img.Labels,
		}

		var inspect dockertypes.ImageInspect
		ierr := f.scoped.run(ctx, func() error {
			var err error
			inspect, _, err = f.client.ImageInspectWithRaw(ctx, img.ID)
			return err
		})
		if ierr != nil {
			f.log.Warn("image inspect failed", "image_id", img.ID, "error", ierr)
			out = append(out, info)
			continue
		}

		info.Arch = inspect.Architecture
		info.OS = inspect.Os
		info.Author = inspect.Author
		if inspect.Config != nil {
			info.Env = inspect.Config.Env
			info.Entrypoint = inspect.Config.Entrypoint
			info.Cmd = inspect.Config.Cmd
			info.ExposedPorts = formatPorts(inspect.Config.ExposedPorts)
		}
		out = append(out, info)
	}
	return out, nil
}

// formatPorts renders an exposed-port set as sorted "port/proto" strings.
func formatPorts(ports nat.PortSet) []string {
	if len(ports) == 0 {
		return nil
	}
	out := make([]string, 0, len(ports))
	for p := range ports {
		out = append(out, string(p))
	}
	sort.Strings(out)
	return out
}

// Manage performs a mutating container action. Every call first checks
// userID ∈ allowed admins AND the session store reports the caller as
// authenticated; unauthorized attempts never reach the engine and are
// logged at error level with a DENIED marker.
func (f *Facade) Manage(ctx context.Context, userID int64, containerID string, action Action, newName string, now time.Time) error {
	if _, isAdmin := f.admins[userID]; !isAdmin || !f.sessions.IsAuthenticated(userID, now) {
		f.log.Error("DENIED container action", "user_id", userID, "container_id", containerID, "action", action)
		return ErrPermissionDenied
	}

	if action == ActionRename {
		trimmed := strings.TrimSpace(newName)
		if len(newName) == 0 || len(newName) > 64 || trimmed == "" {
			return domain.New(domain.CodeContainer, fmt.Errorf("invalid rename target")).WithMeta("container_id", containerID)
		}
	}

	err := f.breaker.Execute(func() error {
		return f.scoped.run(ctx, func() error {
			switch action {
			case ActionStart:
				return f.client.ContainerStart(ctx, containerID, container.StartOptions{})
			case ActionStop:
				return f.client.ContainerStop(ctx, containerID, container.StopOptions{})
			case ActionRestart:
				return f.client.ContainerRestart(ctx, containerID, container.StopOptions{})
			case ActionRename:
				return f.client.ContainerRename(ctx, containerID, newName)
			default:
				return fmt.Errorf("unknown action %q", action)
			}
		})
	})
	if err != nil {
		return wrapContainerErr(containerID, err)
	}

	if action == ActionRestart {
		return f.awaitRunning(ctx, containerID)
	}
	return nil
}

// awaitRunning polls container state up to restartPollTries times,
// waiting restartPollEvery between attempts, returning nil as soon as the
// container reports "running".
func (f *Facade) awaitRunning(ctx context.Context, containerID string) error {
	for i := 0; i < restartPollTries; i++ {
		var inspect dockertypes.ContainerJSON
		err := f.scoped.run(ctx, func() error {
			var err error
			inspect, err = f.client.ContainerInspect(ctx, containerID)
			return err
		})
		if err == nil && inspect.State != nil && inspect.State.Running {
			return nil
		}
		if i < restartPollTries-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(restartPollEvery):
			}
		}
	}
	return domain.New(domain.CodeContainer, fmt.Errorf("restart did not reach running state")).WithMeta("container_id", containerID)
}

func wrapContainerErr(id string, err error) error {
	if errdefs.IsNotFound(err) {
		err = fmt.Errorf("%w: %v", domain.ErrNotFound, err)
	}
	return domain.New(domain.CodeContainer, err).WithMeta("container_id", id)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func firstOrEmpty(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

func toValidUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	return strings.ToValidUTF8(string(b), "�")
}

func roundTo2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}

func configEnv(c dockertypes.ContainerJSON) []string {
	if c.Config == nil {
		return nil
	}
	return c.Config.Env
}

func configCmd(c dockertypes.ContainerJSON) []string {
	if c.Config == nil {
		return nil
	}
	return c.Config.Cmd
}

func decodeJSON(r io.Reader, v any) error {
	return json.NewDecoder(r).Decode(v)
}
