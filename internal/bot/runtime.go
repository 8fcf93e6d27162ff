package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Strob0t/dockside/internal/config"
	"github.com/Strob0t/dockside/internal/container"
	"github.com/Strob0t/dockside/internal/sanitize"
)

// ErrShutdownTimeout is returned by Shutdown when in-flight dispatch
// workers fail to drain within the configured window.
var ErrShutdownTimeout = errors.New("bot: shutdown timeout")

// ErrAlreadyLaunched is returned by Launch after the first call.
var ErrAlreadyLaunched = errors.New("bot: already launched")

const (
	maxRecoveryAttempts = 3
	recoveryBackoff     = 2 * time.Second
	genericErrorText    = "Something went wrong while handling your request. Please try again."
)

// Runtime supervises the bot: it owns the platform client, runs the
// middleware+handler dispatch loop, a background health loop, and
// performs bounded graceful shutdown on termination signals.
type Runtime struct {
	client    Client
	registry  *Registry
	chain     []Middleware
	metrics   *container.MetricsFacade
	sanitizer *sanitize.Secrets
	log       *slog.Logger

	ingress config.Ingress
	health  config.Health

	webhook *WebhookServer // nil in long-polling mode

	launched   bool
	launchMu   sync.Mutex
	cancelLoop context.CancelFunc

	loopWG sync.WaitGroup // ingress + health goroutines
	workWG sync.WaitGroup // in-flight dispatch workers

	mu           sync.Mutex
	loopRunning  bool
	lastUpdate   time.Time
	updatesSeen  uint64
	fatalErr     error
	lastHealthy  bool
	lastHealthAt time.Time
}

// NewRuntime creates a Runtime. webhook may be nil for long-polling mode.
func NewRuntime(client Client, registry *Registry, chain []Middleware, metrics *container.MetricsFacade,
	sanitizer *sanitize.Secrets, webhook *WebhookServer, ingress config.Ingress, health config.Health,
	log *slog.Logger) *Runtime {
	return &Runtime{
		client:    client,
		registry:  registry,
		chain:     chain,
		metrics:   metrics,
		sanitizer: sanitizer,
		webhook:   webhook,
		ingress:   ingress,
		health:    health,
		log:       log,
	}
}

// Launch starts ingress and the health loop. A second call returns
// ErrAlreadyLaunched without side effects.
func (r *Runtime) Launch(ctx context.Context) error {
	r.launchMu.Lock()
	defer r.launchMu.Unlock()
	if r.launched {
		return ErrAlreadyLaunched
	}
	r.launched = true

	loopCtx, cancel := context.WithCancel(ctx)
	r.cancelLoop = cancel

	r.setLoopRunning(true)

	if r.webhook != nil {
		ingest := func(ctx context.Context, u *Update) {
			r.markUpdate()
			r.dispatch(ctx, u)
		}
		if err := r.webhook.Start(loopCtx, ingest); err != nil {
			r.setLoopRunning(false)
			return err
		}
		r.log.Info("webhook ingress started", "addr", r.webhook.Addr())
	} else {
		r.loopWG.Add(1)
		go r.pollLoop(loopCtx)
		r.log.Info("long-polling ingress started",
			"poll_timeout", r.ingress.PollTimeout,
			"long_poll_timeout", r.ingress.LongPollTimeout)
	}

	r.loopWG.Add(1)
	go r.healthLoop(loopCtx)

	r.log.Info("runtime launched", "handlers", r.registry.Len(), "middlewares", len(r.chain))
	return nil
}

// pollLoop long-polls the platform for updates, dispatching each on its
// own worker. Transient failures trigger bounded recovery with backoff;
// exhausting the attempts records a fatal error and stops ingress.
func (r *Runtime) pollLoop(ctx context.Context) {
	defer r.loopWG.Done()
	defer r.setLoopRunning(false)

	var offset int64
	failures := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		pollCtx, cancel := context.WithTimeout(ctx, r.ingress.LongPollTimeout)
		updates, err := r.client.GetUpdates(pollCtx, offset, r.ingress.PollTimeout)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			r.log.Error("poll failed", "error", r.sanitizer.Redact(err.Error()), "attempt", failures)
			if !r.recovery(ctx, failures) {
				r.recordFatal(fmt.Errorf("ingress recovery exhausted: %w", err))
				return
			}
			continue
		}
		failures = 0

		for i := range updates {
			u := updates[i]
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			r.markUpdate()
			r.workWG.Add(1)
			go func() {
				defer r.workWG.Done()
				r.dispatch(ctx, &u)
			}()
		}
	}
}

// recovery waits out a backoff before the next ingress attempt. It
// returns false once attempts exceed the bounded count.
func (r *Runtime) recovery(ctx context.Context, attempt int) bool {
	if attempt > maxRecoveryAttempts {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(recoveryBackoff * time.Duration(attempt)):
		return true
	}
}

// dispatch runs one update through the middleware chain and the handler
// registry. Handler panics and errors are contained: they are logged
// sanitized and the user receives a generic error line.
func (r *Runtime) dispatch(ctx context.Context, u *Update) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("handler panic", "update_id", u.UpdateID,
				"panic", r.sanitizer.Redact(fmt.Sprint(rec)))
			r.replyGenericError(ctx, u)
		}
	}()

	if u.Message == nil && u.CallbackQuery == nil {
		r.log.Info("unknown update kind dropped", "update_id", u.UpdateID)
		return
	}

	for _, mw := range r.chain {
		if !mw.Process(ctx, u) {
			return
		}
	}

	name, handler := r.registry.Match(u)
	if handler == nil {
		r.log.Info("no handler matched", "update_id", u.UpdateID)
		return
	}

	start := time.Now()
	if err := handler(ctx, u); err != nil {
		r.log.Error("handler failed", "handler", name, "update_id", u.UpdateID,
			"error", r.sanitizer.Redact(err.Error()))
		r.replyGenericError(ctx, u)
		return
	}
	r.log.Debug("handler completed", "handler", name, "update_id", u.UpdateID,
		"duration", time.Since(start))
}

func (r *Runtime) replyGenericError(ctx context.Context, u *Update) {
	if chatID := u.ChatID(); chatID != 0 {
		if _, err := r.client.SendMessage(ctx, chatID, genericErrorText, nil); err != nil {
			r.log.Error("send error notice failed", "error", r.sanitizer.Redact(err.Error()))
		}
	}
}

// healthLoop wakes on the configured interval, evaluates health, and logs
// a resource snapshot with warnings at the configured thresholds.
func (r *Runtime) healthLoop(ctx context.Context) {
	defer r.loopWG.Done()

	ticker := time.NewTicker(r.health.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			healthy := r.IsHealthy()
			r.mu.Lock()
			r.lastHealthy = healthy
			r.lastHealthAt = time.Now()
			r.mu.Unlock()

			snap, err := r.metrics.Snapshot(ctx)
			if err != nil {
				r.log.Error("health snapshot failed", "error", r.sanitizer.Redact(err.Error()))
				continue
			}

			r.log.Info("health check", "healthy", healthy,
				"cpu_pct", snap.CPUPercent, "mem_pct", snap.MemPercent, "rss_bytes", snap.RSSBytes)
			if snap.CPUPercent > r.health.CPUWarnPct {
				r.log.Warn("high CPU usage", "cpu_pct", snap.CPUPercent)
			}
			if snap.MemPercent > r.health.MemWarnPct {
				r.log.Warn("high memory usage", "mem_pct", snap.MemPercent)
			}
		}
	}
}

// IsHealthy reports whether ingress is running, the last handled update
// is recent (or none have arrived yet), and no fatal error is recorded.
func (r *Runtime) IsHealthy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.loopRunning || r.fatalErr != nil {
		return false
	}
	if r.updatesSeen == 0 {
		return true
	}
	return time.Since(r.lastUpdate) < 2*r.health.Interval
}

// Shutdown cancels ingress and the background loops, stops any webhook
// listener, then waits up to the configured drain window for in-flight
// dispatch workers and the loops to exit. It returns ErrShutdownTimeout
// when they fail to drain.
func (r *Runtime) Shutdown(reason string) error {
	r.log.Info("shutdown phase 1: stopping ingress", "reason", reason)
	if r.cancelLoop != nil {
		r.cancelLoop()
	}
	if r.webhook != nil {
		r.webhook.Stop()
	}
	if err := r.client.DeleteWebhook(context.Background()); err != nil {
		r.log.Warn("delete webhook failed", "error", r.sanitizer.Redact(err.Error()))
	}

	r.log.Info("shutdown phase 2: draining in-flight handlers", "window", r.ingress.ShutdownDrain)
	drained := make(chan struct{})
	go func() {
		r.workWG.Wait()
		r.loopWG.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		r.log.Info("shutdown complete")
		return nil
	case <-time.After(r.ingress.ShutdownDrain):
		r.log.Error("shutdown drain window exceeded; abandoning workers")
		return ErrShutdownTimeout
	}
}

// Run launches the runtime and blocks until a termination signal arrives,
// then performs graceful shutdown. A second interrupt during the shutdown
// window forces immediate termination; SIGTERM and SIGHUP shut down
// gracefully on first delivery.
func (r *Runtime) Run(ctx context.Context) error {
	if err := r.Launch(ctx); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	sig := <-sigCh
	r.log.Info("signal received", "signal", sig.String())

	if sig == os.Interrupt {
		done := make(chan error, 1)
		go func() { done <- r.Shutdown(sig.String()) }()
		select {
		case err := <-done:
			return err
		case again := <-sigCh:
			if again == os.Interrupt {
				r.log.Error("second interrupt; terminating immediately")
				os.Exit(1)
			}
			return <-done
		}
	}

	return r.Shutdown(sig.String())
}

func (r *Runtime) setLoopRunning(v bool) {
	r.mu.Lock()
	r.loopRunning = v
	r.mu.Unlock()
}

func (r *Runtime) markUpdate() {
	r.mu.Lock()
	r.lastUpdate = time.Now()
	r.updatesSeen++
	r.mu.Unlock()
}

func (r *Runtime) recordFatal(err error) {
	r.mu.Lock()
	r.fatalErr = err
	r.mu.Unlock()
	r.log.Error("fatal ingress error", "error", r.sanitizer.Redact(err.Error()))
}
