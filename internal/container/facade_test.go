package container

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	dockertypes "github.com/docker/docker/api/types"
	dockercontainer "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Strob0t/dockside/internal/resilience"
	"github.com/Strob0t/dockside/internal/session"
)

const (
	testAdminID  = int64(42)
	testUsername = "alice"
)

type stubEngine struct {
	mu        sync.Mutex
	list      []dockertypes.Container
	inspectErr map[string]error
	logs      string
	logsErr   error
	started   []string
	stopped   []string
	restarted []string
	renamed   map[string]string
	running   bool
	statsBody string
}

func newStubEngine() *stubEngine {
	return &stubEngine{
		inspectErr: make(map[string]error),
		renamed:    make(map[string]string),
		running:    true,
		statsBody:  `{"memory_stats":{"usage":52428800,"limit":104857600},"cpu_stats":{"throttling_data":{"periods":3}},"networks":{"eth0":{"rx_bytes":1000,"tx_bytes":2000,"rx_errors":1,"tx_errors":0,"rx_dropped":0,"tx_dropped":2}}}`,
	}
}

func (s *stubEngine) ContainerList(context.Context, dockercontainer.ListOptions) ([]dockertypes.Container, error) {
	return s.list, nil
}

func (s *stubEngine) ContainerInspect(_ context.Context, id string) (dockertypes.ContainerJSON, error) {
	if err, ok := s.inspectErr[id]; ok {
		return dockertypes.ContainerJSON{}, err
	}
	return dockertypes.ContainerJSON{
		ContainerJSONBase: &dockertypes.ContainerJSONBase{
			RestartCount: 2,
			Args:         []string{"-g", "daemon off;"},
			State: &dockertypes.ContainerState{
				Status: "running", Running: s.running, ExitCode: 0,
			},
		},
		Config: &dockercontainer.Config{
			Env: []string{"PATH=/usr/bin"},
			Cmd: []string{"nginx"},
		},
	}, nil
}

func (s *stubEngine) ContainerStatsOneShot(context.Context, string) (dockertypes.ContainerStats, error) {
	return dockertypes.ContainerStats{Body: io.NopCloser(strings.NewReader(s.statsBody))}, nil
}

func (s *stubEngine) ContainerLogs(context.Context, string, dockercontainer.LogsOptions) (io.ReadCloser, error) {
	if s.logsErr != nil {
		return nil, s.logsErr
	}
	return io.NopCloser(strings.NewReader(s.logs)), nil
}

func (s *stubEngine) ContainerStart(_ context.Context, id string, _ dockercontainer.StartOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = append(s.started, id)
	return nil
}

func (s *stubEngine) ContainerStop(_ context.Context, id string, _ dockercontainer.StopOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = append(s.stopped, id)
	return nil
}

func (s *stubEngine) ContainerRestart(_ context.Context, id string, _ dockercontainer.StopOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.restarted = append(s.restarted, id)
	return nil
}

func (s *stubEngine) ContainerRename(_ context.Context, id, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renamed[id] = newName
	return nil
}

func (s *stubEngine) ImageList(context.Context, dockertypes.ImageListOptions) ([]image.Summary, error) {
	return []image.Summary{
		{ID: "sha256:deadbeefcafe0123", RepoTags: []string{"nginx:latest"}, Size: 1024 * 1024, Created: time.Now().Add(-24 * time.Hour).Unix()},
	}, nil
}

func (s *stubEngine) ImageInspectWithRaw(context.Context, string) (dockertypes.ImageInspect, []byte, error) {
	return dockertypes.ImageInspect{
		Architecture: "amd64",
		Os:           "linux",
		Author:       "nginx maintainers",
		Config: &dockercontainer.Config{
			Env:        []string{"NGINX_VERSION=1.25"},
			Entrypoint: []string{"/docker-entrypoint.sh"},
			Cmd:        []string{"nginx", "-g", "daemon off;"},
		},
	}, nil, nil
}

func (s *stubEngine) Close() error { return nil }

func newTestFacade(t *testing.T, engine EngineClient) (*Facade, *session.Store) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := session.NewStore("salt", "dockside", 5*time.Minute, 5*time.Minute, 4)
	breaker := resilience.NewBreaker(5, 30*time.Second)
	return New(engine, 4, breaker, sessions, []int64{testAdminID}, log), sessions
}

func loginAdmin(t *testing.T, sessions *session.Store) {
	t.Helper()
	code, err := totp.GenerateCode(sessions.Secret(testAdminID, testUsername), time.Now())
	require.NoError(t, err)
	ok, _, err := sessions.VerifyTOTP(testAdminID, testUsername, code, time.Now())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestListContainers_SkipsFailedInspects(t *testing.T) {
	engine := newStubEngine()
	engine.list = []dockertypes.Container{
		{ID: "aaaaaaaaaaaaaaaa", Names: []string{"/good"}, Image: "nginx", Created: time.Now().Unix()},
		{ID: "bbbbbbbbbbbbbbbb", Names: []string{"/bad"}, Image: "redis", Created: time.Now().Unix()},
	}
	engine.inspectErr["bbbbbbbbbbbbbbbb"] = errors.New("inspect exploded")

	f, _ := newTestFacade(t, engine)
	summaries, err := f.ListContainers(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	assert.Equal(t, "good", summaries[0].Name)
	assert.Equal(t, "running", summaries[0].Status)
	assert.Equal(t, shortID("aaaaaaaaaaaaaaaa"), summaries[0].ShortID)
}

func TestContainerStats_ComputesMemoryPercentAndEth0(t *testing.T) {
	engine := newStubEngine()
	f, _ := newTestFacade(t, engine)

	stats, err := f.ContainerStats(context.Background(), "nginx")
	require.NoError(t, err)

	assert.Equal(t, 50.0, stats.Memory.Percent)
	assert.Equal(t, uint64(3), stats.CPU.ThrottlingPeriods)
	assert.Equal(t, uint64(1000), stats.Network.RxBytes)
	assert.Equal(t, uint64(2), stats.Network.TxDropped)
	assert.True(t, stats.Attrs.Running)
	assert.Equal(t, 2, stats.Attrs.RestartCount)
	assert.Equal(t, []string{"PATH=/usr/bin"}, stats.Attrs.Env)
}

func TestFetchLogs_SanitizesOutput(t *testing.T) {
	engine := newStubEngine()
	engine.logs = "\x1b[31merror: token=SECRETTOKEN caller=alice\x1b[0m"

	f, _ := newTestFacade(t, engine)
	got, err := f.FetchLogs(context.Background(), "abc", "alice", "", "", 0, "SECRETTOKEN")
	require.NoError(t, err)

	assert.NotContains(t, got, "\x1b[")
	assert.NotContains(t, got, "SECRETTOKEN")
	assert.NotContains(t, got, "alice")

	// Stripping the two ANSI escapes removes exactly 9 bytes; every
	// masked secret keeps its original length.
	assert.Len(t, got, len(engine.logs)-9)
}

func TestListImages_FillsInspectFields(t *testing.T) {
	engine := newStubEngine()
	f, _ := newTestFacade(t, engine)

	images, err := f.ListImages(context.Background())
	require.NoError(t, err)
	require.Len(t, images, 1)

	img := images[0]
	assert.Equal(t, "deadbeefcafe", img.ID)
	assert.Equal(t, "nginx:latest", img.PrimaryName)
	assert.Equal(t, "amd64", img.Arch)
	assert.Equal(t, "linux", img.OS)
	assert.Equal(t, "nginx maintainers", img.Author)
	assert.Equal(t, []string{"/docker-entrypoint.sh"}, img.Entrypoint)
}

func TestManage_DeniedWithoutAdmin(t *testing.T) {
	engine := newStubEngine()
	f, _ := newTestFacade(t, engine)

	err := f.Manage(context.Background(), 7, "nginx", ActionStart, "", time.Now())
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Empty(t, engine.started)
}

func TestManage_DeniedWithoutAuth(t *testing.T) {
	engine := newStubEngine()
	f, _ := newTestFacade(t, engine)

	err := f.Manage(context.Background(), testAdminID, "nginx", ActionStop, "", time.Now())
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Empty(t, engine.stopped)
}

func TestManage_StartWhenAuthenticated(t *testing.T) {
	engine := newStubEngine()
	f, sessions := newTestFacade(t, engine)
	loginAdmin(t, sessions)

	require.NoError(t, f.Manage(context.Background(), testAdminID, "nginx", ActionStart, "", time.Now()))
	assert.Equal(t, []string{"nginx"}, engine.started)
}

func TestManage_RestartPollsUntilRunning(t *testing.T) {
	engine := newStubEngine()
	f, sessions := newTestFacade(t, engine)
	loginAdmin(t, sessions)

	require.NoError(t, f.Manage(context.Background(), testAdminID, "nginx", ActionRestart, "", time.Now()))
	assert.Equal(t, []string{"nginx"}, engine.restarted)
}

func TestManage_RenameValidation(t *testing.T) {
	engine := newStubEngine()
	f, sessions := newTestFacade(t, engine)
	loginAdmin(t, sessions)

	tests := []struct {
		newName string
		ok      bool
	}{
		{"web-frontend", true},
		{"", false},
		{"   ", false},
		{strings.Repeat("x", 65), false},
		{strings.Repeat("x", 64), true},
	}
	for _, tt := range tests {
		err := f.Manage(context.Background(), testAdminID, "nginx", ActionRename, tt.newName, time.Now())
		if tt.ok {
			assert.NoError(t, err, tt.newName)
		} else {
			assert.Error(t, err, tt.newName)
		}
	}
}
