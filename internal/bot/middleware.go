package bot

import (
	"context"
	"log/slog"
	"time"

	"github.com/Strob0t/dockside/internal/access"
	"github.com/Strob0t/dockside/internal/ratelimit"
)

// Refusal texts sent by the access-control middleware. The first two
// refusals are terse; the third gets the final wording as the block
// engages, and further updates during the block are silently dropped.
const (
	firstRefusalText = "Access denied. You are not on this bot's allow-list."
	finalRefusalText = "Access denied. Repeated unauthorized attempts detected; further messages will be ignored for a while."
	slowDownText     = "Slow down. You are sending requests too quickly; please wait a moment."
)

// Middleware inspects an update before handler dispatch and may
// short-circuit it. Process returns false to drop the update.
type Middleware interface {
	Name() string
	Process(ctx context.Context, u *Update) bool
}

// AccessMiddleware adapts access.Control to the update pipeline: it
// drops non-allow-listed or blocked senders and delivers refusal texts.
type AccessMiddleware struct {
	ctrl   *access.Control
	client Client
	log    *slog.Logger
}

// NewAccessMiddleware creates the access-control middleware. It must be
// registered first in the chain.
func NewAccessMiddleware(ctrl *access.Control, client Client, log *slog.Logger) *AccessMiddleware {
	return &AccessMiddleware{ctrl: ctrl, client: client, log: log}
}

func (m *AccessMiddleware) Name() string { return "access_control" }

func (m *AccessMiddleware) Process(ctx context.Context, u *Update) bool {
	sender := u.Sender()
	if sender == nil {
		m.log.Info("update without sender dropped", "update_id", u.UpdateID)
		return false
	}

	switch m.ctrl.Check(sender.ID, time.Now()) {
	case access.Allow:
		return true
	case access.DropBlocked:
		m.log.Warn("blocked sender dropped", "user_id", sender.ID)
		return false
	case access.DropFirstRefusal:
		m.refuse(ctx, u, firstRefusalText)
		return false
	case access.DropFinalRefusal:
		m.refuse(ctx, u, finalRefusalText)
		return false
	}
	return false
}

func (m *AccessMiddleware) refuse(ctx context.Context, u *Update, text string) {
	m.log.Warn("unauthorized sender refused", "user_id", u.Sender().ID)
	if chatID := u.ChatID(); chatID != 0 {
		if _, err := m.client.SendMessage(ctx, chatID, text, nil); err != nil {
			m.log.Error("send refusal failed", "error", err)
		}
	}
}

// RateLimitMiddleware adapts ratelimit.Limiter to the update pipeline.
type RateLimitMiddleware struct {
	limiter *ratelimit.Limiter
	client  Client
	log     *slog.Logger
}

// NewRateLimitMiddleware creates the per-user throttle middleware,
// registered second, after access control.
func NewRateLimitMiddleware(limiter *ratelimit.Limiter, client Client, log *slog.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{limiter: limiter, client: client, log: log}
}

func (m *RateLimitMiddleware) Name() string { return "rate_limit" }

func (m *RateLimitMiddleware) Process(ctx context.Context, u *Update) bool {
	sender := u.Sender()
	if sender == nil {
		return false
	}

	if m.limiter.Allow(sender.ID, time.Now()) {
		return true
	}

	m.log.Warn("rate limit exceeded", "user_id", sender.ID)
	if chatID := u.ChatID(); chatID != 0 {
		if _, err := m.client.SendMessage(ctx, chatID, slowDownText, nil); err != nil {
			m.log.Error("send throttle notice failed", "error", err)
		}
	}
	return false
}
