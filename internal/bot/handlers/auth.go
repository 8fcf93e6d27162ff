package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/Strob0t/dockside/internal/bot"
	"github.com/Strob0t/dockside/internal/session"
)

const qrDeleteAfter = 60 * time.Second

// Enter2FA moves the user into the processing state and prompts for a
// code. Only admins can authenticate; others are told so.
func (h *Handlers) Enter2FA(ctx context.Context, u *bot.Update) error {
	sender := u.Sender()
	if !h.isAdmin(sender.ID) {
		denied, err := renderTemplate("access_denied", nil)
		if err != nil {
			return err
		}
		return h.reply(ctx, u, denied, nil)
	}

	state := h.sessions.BeginAuth(sender.ID, time.Now())
	if state == session.StateBlocked {
		blocked, err := renderTemplate("auth_blocked", nil)
		if err != nil {
			return err
		}
		return h.reply(ctx, u, blocked, nil)
	}

	prompt, err := renderTemplate("auth_prompt", nil)
	if err != nil {
		return err
	}
	return h.reply(ctx, u, prompt, nil)
}

// TOTPCode verifies a 6-digit code sent as a plain message (a leading
// slash is tolerated). On success the session authenticates and, if a
// referer was stored, the user gets a keyboard resuming that exact flow.
func (h *Handlers) TOTPCode(ctx context.Context, u *bot.Update) error {
	sender := u.Sender()
	if !h.isAdmin(sender.ID) {
		// Non-admins sending six digits fall through to the echo handler's
		// behavior: nothing privileged to verify.
		return nil
	}

	now := time.Now()
	code := strings.TrimPrefix(u.Message.Text, "/")

	ok, state, err := h.sessions.VerifyTOTP(sender.ID, sender.Username, code, now)
	if err != nil {
		return err
	}

	switch {
	case ok:
		success, rerr := renderTemplate("auth_success", nil)
		if rerr != nil {
			return rerr
		}
		ref := h.sessions.ConsumeReferer(sender.ID, now)
		h.log.Info("user authenticated", "user_id", sender.ID, "had_referer", ref != nil)
		return h.reply(ctx, u, success, &bot.SendOptions{Keyboard: refererKeyboard(ref)})
	case state == session.StateBlocked:
		blocked, rerr := renderTemplate("auth_blocked", nil)
		if rerr != nil {
			return rerr
		}
		return h.reply(ctx, u, blocked, nil)
	default:
		invalid, rerr := renderTemplate("auth_invalid", nil)
		if rerr != nil {
			return rerr
		}
		return h.reply(ctx, u, invalid, nil)
	}
}

// QRCode issues the enrolment QR image with spoiler protection and
// schedules its deletion after 60 seconds. If the deletion fails the user
// is asked to remove it manually.
func (h *Handlers) QRCode(ctx context.Context, u *bot.Update) error {
	sender := u.Sender()
	if !h.isAdmin(sender.ID) {
		denied, err := renderTemplate("access_denied", nil)
		if err != nil {
			return err
		}
		return h.reply(ctx, u, denied, nil)
	}

	png, err := h.sessions.EnrollmentQRCode(sender.ID, sender.Username)
	if err != nil {
		return err
	}

	msg, err := h.client.SendPhoto(ctx, u.ChatID(), png,
		"Scan this code with your authenticator app. It disappears in 60 seconds.",
		&bot.SendOptions{HasSpoiler: true})
	if err != nil {
		return err
	}

	chatID := u.ChatID()
	go func() {
		timer := time.NewTimer(qrDeleteAfter)
		defer timer.Stop()
		<-timer.C

		delCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := h.client.DeleteMessage(delCtx, chatID, msg.MessageID); err != nil {
			h.log.Error("qr code deletion failed", "error", h.sanitizer.Redact(err.Error()))
			if _, serr := h.client.SendMessage(delCtx, chatID,
				"I could not delete the QR code automatically. Please delete it manually.", nil); serr != nil {
				h.log.Error("qr deletion notice failed", "error", h.sanitizer.Redact(serr.Error()))
			}
		}
	}()

	return nil
}
