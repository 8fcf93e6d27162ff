package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Strob0t/dockside/internal/config"
	"github.com/Strob0t/dockside/internal/middleware"
)

// ErrPort80Refused is returned when webhook ingress is configured to bind
// port 80, which is never allowed.
var ErrPort80Refused = errors.New("bot: refusing to bind webhook on port 80")

// DispatchFunc receives one decoded update from webhook ingress.
type DispatchFunc func(ctx context.Context, u *Update)

// WebhookServer is the TLS ingress endpoint for webhook mode: it accepts
// POST /webhook/<token>/, rejects every other path with 404, and rate
// limits IPs that hammer unknown paths.
type WebhookServer struct {
	addr     string
	token    string
	cert     string
	certKey  string
	limiter  *middleware.RateLimiter
	log      *slog.Logger
	srv      *http.Server
	dispatch DispatchFunc
}

// NewWebhookServer creates a webhook ingress server listening on
// host:port, serving only the path bound to token. The 404 limiter
// parameters come from the ingress config (8 hits per 10 s by default).
func NewWebhookServer(host string, port int, token string, webhookCfg config.WebhookConfig,
	ingress config.Ingress, log *slog.Logger) (*WebhookServer, error) {
	if port == 80 {
		return nil, ErrPort80Refused
	}

	ratePerSec := float64(ingress.Webhook404RatePerIP) / ingress.Webhook404Window.Seconds()
	return &WebhookServer{
		addr:    net.JoinHostPort(host, fmt.Sprintf("%d", port)),
		token:   token,
		cert:    webhookCfg.Cert,
		certKey: webhookCfg.CertKey,
		limiter: middleware.NewRateLimiter(ratePerSec, ingress.Webhook404RatePerIP),
		log:     log,
	}, nil
}

// Addr returns the listen address.
func (w *WebhookServer) Addr() string { return w.addr }

// Start begins serving in a background goroutine. Updates are handed to
// dispatch on the request goroutine; the platform retries failed
// deliveries, so a 500 is safe.
func (w *WebhookServer) Start(ctx context.Context, dispatch DispatchFunc) error {
	w.dispatch = dispatch

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Post("/webhook/"+w.token+"/", w.handleUpdate(ctx))
	r.NotFound(w.handleNotFound)

	w.srv = &http.Server{
		Addr:              w.addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	ln, err := net.Listen("tcp", w.addr)
	if err != nil {
		return fmt.Errorf("bot: webhook listen: %w", err)
	}

	go func() {
		var serveErr error
		if w.cert != "" && w.certKey != "" {
			serveErr = w.srv.ServeTLS(ln, w.cert, w.certKey)
		} else {
			serveErr = w.srv.Serve(ln)
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			w.log.Error("webhook server failed", "error", serveErr)
		}
	}()
	return nil
}

// Stop shuts the HTTP server down, letting in-flight deliveries finish.
func (w *WebhookServer) Stop() {
	if w.srv == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := w.srv.Shutdown(shutdownCtx); err != nil {
		w.log.Error("webhook shutdown error", "error", err)
	}
}

func (w *WebhookServer) handleUpdate(ctx context.Context) http.HandlerFunc {
	return func(rw http.ResponseWriter, req *http.Request) {
		body, err := io.ReadAll(req.Body)
		if err != nil || len(body) == 0 {
			http.Error(rw, `{"error":"empty body"}`, http.StatusBadRequest)
			return
		}

		u, err := ParseUpdate(body)
		if err != nil {
			w.log.Error("webhook decode failed", "error", err)
			http.Error(rw, `{"error":"internal"}`, http.StatusInternalServerError)
			return
		}

		w.dispatch(ctx, u)

		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(rw).Encode(map[string]string{"status": "ok"})
	}
}

// handleNotFound returns 404 for unknown paths, escalating to 429 for an
// IP that keeps probing them.
func (w *WebhookServer) handleNotFound(rw http.ResponseWriter, req *http.Request) {
	ip, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		ip = req.RemoteAddr
	}

	if !w.limiter.Allow(ip) {
		w.log.Warn("webhook 404 flood", "ip", ip, "path", req.URL.Path)
		http.Error(rw, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
		return
	}

	http.NotFound(rw, req)
}
