package handlers

import (
	"context"
	"time"

	"github.com/Strob0t/dockside/internal/bot"
	"github.com/Strob0t/dockside/internal/session"
)

// Gate wraps a privileged handler with the two-factor step-up check.
// Callers that are not admins, or admins without a live authenticated
// session, are short-circuited: the original trigger is stored as the
// user's referer so the flow can resume after successful TOTP
// verification, and the user is pointed at the auth keyboard.
func (h *Handlers) Gate(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, u *bot.Update) error {
		sender := u.Sender()
		if sender == nil {
			return nil
		}
		now := time.Now()

		if h.isAdmin(sender.ID) && h.sessions.IsAuthenticated(sender.ID, now) {
			return next(ctx, u)
		}

		h.storeReferer(u, now)
		h.log.Warn("auth gate triggered", "user_id", sender.ID, "admin", h.isAdmin(sender.ID))

		denied, err := renderTemplate("access_denied", nil)
		if err != nil {
			return err
		}

		if u.CallbackQuery != nil {
			if err := h.client.AnswerCallback(ctx, u.CallbackQuery.ID, denied, true); err != nil {
				return err
			}
		}
		return h.reply(ctx, u, denied, &bot.SendOptions{Keyboard: keyboardFor(KeyboardAuth)})
	}
}

// storeReferer records the interrupted trigger (kind + raw text/data) so
// the session store can rebuild it after step-up auth.
func (h *Handlers) storeReferer(u *bot.Update, now time.Time) {
	sender := u.Sender()
	switch {
	case u.CallbackQuery != nil:
		h.sessions.SetReferer(sender.ID, session.HandlerCallbackQuery, u.CallbackQuery.Data, now)
	case u.Message != nil:
		h.sessions.SetReferer(sender.ID, session.HandlerMessage, u.Message.Text, now)
	}
}
