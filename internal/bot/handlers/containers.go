package handlers

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Strob0t/dockside/internal/bot"
	"github.com/Strob0t/dockside/internal/container"
)

// Single-letter token actions keep the signed confirmation payload within
// the platform's 64-byte callback-data limit.
const (
	tokenActionStart   = "s"
	tokenActionStop    = "p"
	tokenActionRestart = "r"
)

var tokenActions = map[string]container.Action{
	tokenActionStart:   container.ActionStart,
	tokenActionStop:    container.ActionStop,
	tokenActionRestart: container.ActionRestart,
}

// Containers lists all containers with per-container inline actions.
func (h *Handlers) Containers(ctx context.Context, u *bot.Update) error {
	if u.CallbackQuery != nil {
		if err := h.client.AnswerCallback(ctx, u.CallbackQuery.ID, "", false); err != nil {
			return err
		}
	}

	summaries, err := h.facade.ListContainers(ctx)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		return h.reply(ctx, u, "No containers found.", nil)
	}

	var sb strings.Builder
	names := make([]string, 0, len(summaries))
	sb.WriteString("Containers:\n")
	for _, s := range summaries {
		fmt.Fprintf(&sb, "%s  %s  (%s)  %s, started %s\n", s.ShortID, s.Name, s.Image, s.Status, s.RunAt)
		if s.Name != "" {
			names = append(names, s.Name)
		}
	}

	return h.reply(ctx, u, strings.TrimRight(sb.String(), "\n"),
		&bot.SendOptions{Keyboard: containerListKeyboard(names, u.Sender().ID)})
}

// Images lists all images on the engine.
func (h *Handlers) Images(ctx context.Context, u *bot.Update) error {
	images, err := h.facade.ListImages(ctx)
	if err != nil {
		return err
	}
	if len(images) == 0 {
		return h.reply(ctx, u, "No images found.", nil)
	}

	var sb strings.Builder
	sb.WriteString("Images:\n")
	for _, img := range images {
		fmt.Fprintf(&sb, "%s  %s  %s, created %s\n", img.ID, img.PrimaryName, img.Size, img.Created)
	}
	return h.reply(ctx, u, strings.TrimRight(sb.String(), "\n"), nil)
}

// ContainerFullStats renders the one-shot stats snapshot for the
// container named in the callback data.
func (h *Handlers) ContainerFullStats(ctx context.Context, u *bot.Update) error {
	name := strings.TrimPrefix(u.CallbackQuery.Data, "__get_full__:")
	if err := h.client.AnswerCallback(ctx, u.CallbackQuery.ID, "", false); err != nil {
		return err
	}

	stats, err := h.facade.ContainerStats(ctx, name)
	if err != nil {
		return err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Stats for %s:\n", name)
	fmt.Fprintf(&sb, "Memory: %d / %d bytes (%.2f%%)\n", stats.Memory.Usage, stats.Memory.Limit, stats.Memory.Percent)
	fmt.Fprintf(&sb, "CPU throttling periods: %d\n", stats.CPU.ThrottlingPeriods)
	fmt.Fprintf(&sb, "Network rx/tx: %d/%d bytes, errors %d/%d, drops %d/%d\n",
		stats.Network.RxBytes, stats.Network.TxBytes,
		stats.Network.RxErrors, stats.Network.TxErrors,
		stats.Network.RxDropped, stats.Network.TxDropped)
	fmt.Fprintf(&sb, "State: running=%t paused=%t restarting=%t dead=%t restarts=%d exit=%d",
		stats.Attrs.Running, stats.Attrs.Paused, stats.Attrs.Restarting,
		stats.Attrs.Dead, stats.Attrs.RestartCount, stats.Attrs.ExitCode)

	return h.reply(ctx, u, sb.String(), nil)
}

// ContainerLogs tails and sanitizes the container's recent output.
func (h *Handlers) ContainerLogs(ctx context.Context, u *bot.Update) error {
	name := strings.TrimPrefix(u.CallbackQuery.Data, "__get_logs__:")
	if err := h.client.AnswerCallback(ctx, u.CallbackQuery.ID, "", false); err != nil {
		return err
	}

	sender := u.Sender()
	logs, err := h.facade.FetchLogs(ctx, name, sender.Username, sender.FirstName, sender.LastName,
		sender.ID, h.botToken)
	if err != nil {
		return err
	}
	if strings.TrimSpace(logs) == "" {
		return h.reply(ctx, u, fmt.Sprintf("No recent log output for %s.", name), nil)
	}
	return h.reply(ctx, u, fmt.Sprintf("Last log lines for %s:\n%s", name, logs), nil)
}

// parseOwnedCallback splits "<prefix><name>:<user_id>" callback data and
// verifies the embedded user id matches the caller.
func parseOwnedCallback(data, prefix string, callerID int64) (string, error) {
	rest := strings.TrimPrefix(data, prefix)
	idx := strings.LastIndex(rest, ":")
	if idx <= 0 {
		return "", errors.New("handlers: malformed callback data")
	}
	name := rest[:idx]
	ownerID, err := strconv.ParseInt(rest[idx+1:], 10, 64)
	if err != nil || ownerID != callerID {
		return "", errors.New("handlers: callback user mismatch")
	}
	return name, nil
}

// ManageMenu shows the action keyboard for one container. Reached only
// through the auth gate.
func (h *Handlers) ManageMenu(ctx context.Context, u *bot.Update) error {
	sender := u.Sender()
	name, err := parseOwnedCallback(u.CallbackQuery.Data, "__manage__:", sender.ID)
	if err != nil {
		return h.client.AnswerCallback(ctx, u.CallbackQuery.ID, "Invalid request.", true)
	}

	if err := h.client.AnswerCallback(ctx, u.CallbackQuery.ID, "", false); err != nil {
		return err
	}
	return h.reply(ctx, u, fmt.Sprintf("Manage %s:", name),
		&bot.SendOptions{Keyboard: manageKeyboard(name, sender.ID)})
}

// actionConfirm returns a handler for one mutating action's callback. It
// replies with a single-use signed confirmation button so a stale or
// forged click can never trigger the action directly.
func (h *Handlers) actionConfirm(action container.Action) bot.HandlerFunc {
	prefix := map[container.Action]string{
		container.ActionStart:   "__start__:",
		container.ActionStop:    "__stop__:",
		container.ActionRestart: "__restart__:",
	}[action]
	tokenAction := map[container.Action]string{
		container.ActionStart:   tokenActionStart,
		container.ActionStop:    tokenActionStop,
		container.ActionRestart: tokenActionRestart,
	}[action]

	return func(ctx context.Context, u *bot.Update) error {
		sender := u.Sender()
		name, err := parseOwnedCallback(u.CallbackQuery.Data, prefix, sender.ID)
		if err != nil {
			return h.client.AnswerCallback(ctx, u.CallbackQuery.ID, "Invalid request.", true)
		}

		if err := h.client.AnswerCallback(ctx, u.CallbackQuery.ID, "", false); err != nil {
			return err
		}

		token, err := h.codec.Encode(tokenAction, map[string]string{"c": name},
			uint32(sender.ID), randomNonce(), time.Now()) //nolint:gosec // platform user ids fit uint32
		if err != nil {
			// Long container names can push the signed payload over the
			// platform limit; the caller is already gated, so act directly.
			h.log.Warn("confirmation token too large; acting directly",
				"container", name, "action", action)
			return h.performAction(ctx, u, name, action, "")
		}

		kb := &bot.Keyboard{Inline: [][]bot.InlineButton{
			{{Text: fmt.Sprintf("Confirm %s of %s", strings.ToLower(string(action)), name), CallbackData: token}},
			{{Text: "Back", CallbackData: "back_to_containers"}},
		}}
		return h.reply(ctx, u,
			fmt.Sprintf("Confirm %s of %s. The button is valid for 5 minutes and works once.",
				strings.ToLower(string(action)), name),
			&bot.SendOptions{Keyboard: kb})
	}
}

// SignedConfirm executes a mutating action carried by a signed, single-use
// confirmation token. Reached only through the auth gate; the codec
// additionally enforces signature, TTL, replay, and user binding.
func (h *Handlers) SignedConfirm(ctx context.Context, u *bot.Update) error {
	sender := u.Sender()
	payload, err := h.codec.Decode(u.CallbackQuery.Data, uint32(sender.ID), time.Now()) //nolint:gosec // platform user ids fit uint32
	if err != nil {
		return h.client.AnswerCallback(ctx, u.CallbackQuery.ID, "This confirmation is no longer valid.", true)
	}

	action, ok := tokenActions[payload.Action]
	if !ok {
		return h.client.AnswerCallback(ctx, u.CallbackQuery.ID, "This confirmation is no longer valid.", true)
	}

	if err := h.client.AnswerCallback(ctx, u.CallbackQuery.ID, "", false); err != nil {
		return err
	}
	return h.performAction(ctx, u, payload.Params["c"], action, "")
}

// RenamePrompt asks for the new name; the next freeform message from this
// user completes the rename.
func (h *Handlers) RenamePrompt(ctx context.Context, u *bot.Update) error {
	sender := u.Sender()
	name, err := parseOwnedCallback(u.CallbackQuery.Data, "__rename__:", sender.ID)
	if err != nil {
		return h.client.AnswerCallback(ctx, u.CallbackQuery.ID, "Invalid request.", true)
	}

	h.mu.Lock()
	h.pendingRenames[sender.ID] = name
	h.mu.Unlock()

	if err := h.client.AnswerCallback(ctx, u.CallbackQuery.ID, "", false); err != nil {
		return err
	}
	return h.reply(ctx, u, fmt.Sprintf("Send the new name for %s (1-64 characters).", name), nil)
}

// completeRename performs the rename recorded by RenamePrompt.
func (h *Handlers) completeRename(ctx context.Context, u *bot.Update, name, newName string) error {
	return h.performAction(ctx, u, name, container.ActionRename, newName)
}

// performAction calls the facade and reports the outcome. The facade
// re-checks admin+authenticated before touching the engine.
func (h *Handlers) performAction(ctx context.Context, u *bot.Update, name string, action container.Action, newName string) error {
	sender := u.Sender()
	err := h.facade.Manage(ctx, sender.ID, name, action, newName, time.Now())
	if err != nil {
		if errors.Is(err, container.ErrPermissionDenied) {
			denied, rerr := renderTemplate("access_denied", nil)
			if rerr != nil {
				return rerr
			}
			return h.reply(ctx, u, denied, nil)
		}
		return err
	}

	verb := map[container.Action]string{
		container.ActionStart:   "started",
		container.ActionStop:    "stopped",
		container.ActionRestart: "restarted",
		container.ActionRename:  "renamed",
	}[action]
	if action == container.ActionRename {
		return h.reply(ctx, u, fmt.Sprintf("Container %s renamed to %s.", name, newName), nil)
	}
	return h.reply(ctx, u, fmt.Sprintf("Container %s %s.", name, verb), nil)
}

// randomNonce draws a fresh 32-bit nonce for a confirmation token.
func randomNonce() uint32 {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return binary.BigEndian.Uint32(b[:])
}
