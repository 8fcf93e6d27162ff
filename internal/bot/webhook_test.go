package bot

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Strob0t/dockside/internal/config"
)

func startTestWebhook(t *testing.T, dispatch DispatchFunc) (*WebhookServer, string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	cfg := config.Defaults()
	srv, err := NewWebhookServer("127.0.0.1", port, "testtoken", config.WebhookConfig{}, cfg.Ingress, testLogger())
	require.NoError(t, err)

	require.NoError(t, srv.Start(context.Background(), dispatch))
	t.Cleanup(srv.Stop)

	base := fmt.Sprintf("http://127.0.0.1:%d", port)

	// Wait for the listener to come up.
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/nope")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return true
	}, 2*time.Second, 20*time.Millisecond)

	return srv, base
}

func TestWebhookServer_RefusesPort80(t *testing.T) {
	cfg := config.Defaults()
	_, err := NewWebhookServer("127.0.0.1", 80, "tok", config.WebhookConfig{}, cfg.Ingress, testLogger())
	assert.ErrorIs(t, err, ErrPort80Refused)
}

func TestWebhookServer_AcceptsUpdate(t *testing.T) {
	var dispatched atomic.Int32
	_, base := startTestWebhook(t, func(context.Context, *Update) {
		dispatched.Add(1)
	})

	body := []byte(`{"update_id":1,"message":{"message_id":1,"from":{"id":42},"chat":{"id":42},"text":"hi"}}`)
	resp, err := http.Post(base+"/webhook/testtoken/", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(1), dispatched.Load())
}

func TestWebhookServer_EmptyBodyIs400(t *testing.T) {
	_, base := startTestWebhook(t, func(context.Context, *Update) {})

	resp, err := http.Post(base+"/webhook/testtoken/", "application/json", bytes.NewReader(nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebhookServer_UnknownPathIs404(t *testing.T) {
	_, base := startTestWebhook(t, func(context.Context, *Update) {})

	resp, err := http.Get(base + "/webhook/wrongtoken/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebhookServer_404FloodIs429(t *testing.T) {
	_, base := startTestWebhook(t, func(context.Context, *Update) {})

	// Exhaust the per-IP 404 budget (8 hits per 10s), plus the probe
	// request issued while waiting for the listener.
	var last int
	for i := 0; i < 12; i++ {
		resp, err := http.Get(base + "/probe")
		require.NoError(t, err)
		resp.Body.Close()
		last = resp.StatusCode
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}
