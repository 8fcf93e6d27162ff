package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/Strob0t/dockside/internal/bot"
)

// Start greets the user and shows the main keyboard.
func (h *Handlers) Start(ctx context.Context, u *bot.Update) error {
	name := ""
	if sender := u.Sender(); sender != nil {
		name = sender.FirstName
	}
	text, err := renderTemplate("welcome", struct{ Name string }{name})
	if err != nil {
		return err
	}
	return h.reply(ctx, u, text, &bot.SendOptions{Keyboard: keyboardFor(KeyboardMain)})
}

// Help lists the command surface.
func (h *Handlers) Help(ctx context.Context, u *bot.Update) error {
	text, err := renderTemplate("help", nil)
	if err != nil {
		return err
	}
	return h.reply(ctx, u, text, nil)
}

// BackToMain returns the user to the main keyboard.
func (h *Handlers) BackToMain(ctx context.Context, u *bot.Update) error {
	return h.reply(ctx, u, "Main menu.", &bot.SendOptions{Keyboard: keyboardFor(KeyboardMain)})
}

// DockerMenu shows the container engine keyboard.
func (h *Handlers) DockerMenu(ctx context.Context, u *bot.Update) error {
	return h.reply(ctx, u, "Container engine menu.", &bot.SendOptions{Keyboard: keyboardFor(KeyboardDocker)})
}

// LoadAverage reports the host's load averages.
func (h *Handlers) LoadAverage(ctx context.Context, u *bot.Update) error {
	avg, err := h.metrics.LoadAvg(ctx)
	if err != nil {
		return err
	}
	text, err := renderTemplate("load_average", avg)
	if err != nil {
		return err
	}
	return h.reply(ctx, u, text, nil)
}

// MemoryLoad reports virtual memory usage, with an inline button for swap
// details.
func (h *Handlers) MemoryLoad(ctx context.Context, u *bot.Update) error {
	memLoad, err := h.metrics.Memory(ctx)
	if err != nil {
		return err
	}
	text, err := renderTemplate("memory", memLoad)
	if err != nil {
		return err
	}
	kb := &bot.Keyboard{Inline: [][]bot.InlineButton{
		{{Text: "Swap details", CallbackData: "__swap_info__"}},
	}}
	return h.reply(ctx, u, text, &bot.SendOptions{Keyboard: kb})
}

// SwapInfo answers the swap-details callback.
func (h *Handlers) SwapInfo(ctx context.Context, u *bot.Update) error {
	if u.CallbackQuery != nil {
		if err := h.client.AnswerCallback(ctx, u.CallbackQuery.ID, "", false); err != nil {
			return err
		}
	}
	swap, err := h.metrics.Swap(ctx)
	if err != nil {
		return err
	}
	text, err := renderTemplate("swap", swap)
	if err != nil {
		return err
	}
	return h.reply(ctx, u, text, nil)
}

// Sensors reports hardware temperatures.
func (h *Handlers) Sensors(ctx context.Context, u *bot.Update) error {
	readings, err := h.metrics.Sensors(ctx)
	if err != nil {
		return err
	}
	if len(readings) == 0 {
		return h.reply(ctx, u, "No temperature sensors exposed on this host.", nil)
	}

	var sb strings.Builder
	sb.WriteString("Sensors:\n")
	for _, r := range readings {
		fmt.Fprintf(&sb, "%s: %.1f°C\n", r.Key, r.Temperature)
	}
	return h.reply(ctx, u, strings.TrimRight(sb.String(), "\n"), nil)
}

// Process summarises the process table.
func (h *Handlers) Process(ctx context.Context, u *bot.Update) error {
	counts, err := h.metrics.Processes(ctx)
	if err != nil {
		return err
	}
	text, err := renderTemplate("process", counts)
	if err != nil {
		return err
	}
	return h.reply(ctx, u, text, nil)
}

// Uptime reports host uptime and boot time.
func (h *Handlers) Uptime(ctx context.Context, u *bot.Update) error {
	info, err := h.metrics.Host(ctx)
	if err != nil {
		return err
	}
	text, err := renderTemplate("uptime", info)
	if err != nil {
		return err
	}
	return h.reply(ctx, u, text, nil)
}

// AboutMe reports host identity.
func (h *Handlers) AboutMe(ctx context.Context, u *bot.Update) error {
	info, err := h.metrics.Host(ctx)
	if err != nil {
		return err
	}
	text, err := renderTemplate("about", info)
	if err != nil {
		return err
	}
	return h.reply(ctx, u, text, nil)
}

// FileSystem reports mounted filesystem usage.
func (h *Handlers) FileSystem(ctx context.Context, u *bot.Update) error {
	filesystems, err := h.metrics.FileSystems(ctx)
	if err != nil {
		return err
	}
	if len(filesystems) == 0 {
		return h.reply(ctx, u, "No physical filesystems found.", nil)
	}

	var sb strings.Builder
	sb.WriteString("File systems:\n")
	for _, fs := range filesystems {
		fmt.Fprintf(&sb, "%s on %s (%s): %s used of %s (%.1f%%)\n",
			fs.Device, fs.Mountpoint, fs.FSType, fs.Used, fs.Total, fs.UsedPercent)
	}
	return h.reply(ctx, u, strings.TrimRight(sb.String(), "\n"), nil)
}

// Network reports aggregate network I/O.
func (h *Handlers) Network(ctx context.Context, u *bot.Update) error {
	io, err := h.metrics.Network(ctx)
	if err != nil {
		return err
	}
	text, err := renderTemplate("network", io)
	if err != nil {
		return err
	}
	return h.reply(ctx, u, text, nil)
}

// Fallback handles freeform text: a pending rename reply is consumed
// first; anything else is echoed with a pointer to /help.
func (h *Handlers) Fallback(ctx context.Context, u *bot.Update) error {
	sender := u.Sender()

	h.mu.Lock()
	target, pending := h.pendingRenames[sender.ID]
	if pending {
		delete(h.pendingRenames, sender.ID)
	}
	h.mu.Unlock()

	if pending {
		return h.completeRename(ctx, u, target, u.Message.Text)
	}

	return h.reply(ctx, u, fmt.Sprintf("I did not understand %q. Try /help.", u.Message.Text), nil)
}
