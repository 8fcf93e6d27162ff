// Package handlers wires the bot's user-visible command surface: slash
// commands, keyboard-button triggers, and inline-keyboard callbacks.
// Handlers are registered once at startup into a static trigger table;
// the fallback handler goes last so it never shadows a specific match.
package handlers

import (
	"context"
	"log/slog"
	"regexp"
	"sync"

	"github.com/Strob0t/dockside/internal/bot"
	"github.com/Strob0t/dockside/internal/callback"
	"github.com/Strob0t/dockside/internal/container"
	"github.com/Strob0t/dockside/internal/sanitize"
	"github.com/Strob0t/dockside/internal/session"
)

// Handlers holds every dependency the command surface needs. One value is
// constructed in main and registered into the dispatch table.
type Handlers struct {
	client    bot.Client
	sessions  *session.Store
	facade    *container.Facade
	metrics   *container.MetricsFacade
	codec     *callback.Codec
	sanitizer *sanitize.Secrets
	log       *slog.Logger

	admins   map[int64]struct{}
	botToken string

	mu             sync.Mutex
	pendingRenames map[int64]string // user id → container name awaiting a new name
}

// New creates the handler set.
func New(client bot.Client, sessions *session.Store, facade *container.Facade,
	metrics *container.MetricsFacade, codec *callback.Codec, sanitizer *sanitize.Secrets,
	allowedAdminIDs []int64, botToken string, log *slog.Logger) *Handlers {
	admins := make(map[int64]struct{}, len(allowedAdminIDs))
	for _, id := range allowedAdminIDs {
		admins[id] = struct{}{}
	}
	return &Handlers{
		client:         client,
		sessions:       sessions,
		facade:         facade,
		metrics:        metrics,
		codec:          codec,
		sanitizer:      sanitizer,
		log:            log,
		admins:         admins,
		botToken:       botToken,
		pendingRenames: make(map[int64]string),
	}
}

var (
	totpCodePattern = regexp.MustCompile(`^/?\d{6}$`)

	loadAvgPattern    = regexp.MustCompile(`^Load average$`)
	memoryPattern     = regexp.MustCompile(`^Memory load$`)
	sensorsPattern    = regexp.MustCompile(`^Sensors$`)
	processPattern    = regexp.MustCompile(`^Process$`)
	uptimePattern     = regexp.MustCompile(`^Uptime$`)
	fileSystemPattern = regexp.MustCompile(`^File system$`)
	networkPattern    = regexp.MustCompile(`^Network$`)
	aboutPattern      = regexp.MustCompile(`^About me$`)
	enter2FAPattern   = regexp.MustCompile(`^Enter 2FA code$`)
	qrCodePattern     = regexp.MustCompile(`^Get QR-code for 2FA app$`)
	containersPattern = regexp.MustCompile(`^Containers$`)
	dockerPattern     = regexp.MustCompile(`^Docker$`)
	imagesPattern     = regexp.MustCompile(`^Images$`)
	backPattern       = regexp.MustCompile(`^Back to main menu$`)

	// Signed confirmation tokens: base64url body, a dot, base64url
	// signature. Documented "__"-prefixed callbacks never match this.
	signedTokenPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+$`)
)

// Register installs the core handlers, then any extra registrations
// (plugins), then the freeform fallback — last, so it never shadows a
// specific match.
func (h *Handlers) Register(reg *bot.Registry, extra func(*bot.Registry)) {
	// Slash commands.
	reg.Add("start", bot.Trigger{Command: "/start"}, h.Start)
	reg.Add("help", bot.Trigger{Command: "/help"}, h.Help)
	reg.Add("back", bot.Trigger{Command: "/back"}, h.BackToMain)
	reg.Add("docker", bot.Trigger{Command: "/docker"}, h.DockerMenu)
	reg.Add("containers", bot.Trigger{Command: "/containers"}, h.Containers)
	reg.Add("images", bot.Trigger{Command: "/images"}, h.Images)
	reg.Add("qrcode", bot.Trigger{Command: "/qrcode"}, h.QRCode)
	reg.Add("check_bot_updates", bot.Trigger{Command: "/check_bot_updates"}, h.CheckBotUpdates)

	// Keyboard-button triggers.
	reg.Add("load_average", bot.Trigger{Pattern: loadAvgPattern}, h.LoadAverage)
	reg.Add("memory_load", bot.Trigger{Pattern: memoryPattern}, h.MemoryLoad)
	reg.Add("sensors", bot.Trigger{Pattern: sensorsPattern}, h.Sensors)
	reg.Add("process", bot.Trigger{Pattern: processPattern}, h.Process)
	reg.Add("uptime", bot.Trigger{Pattern: uptimePattern}, h.Uptime)
	reg.Add("file_system", bot.Trigger{Pattern: fileSystemPattern}, h.FileSystem)
	reg.Add("network", bot.Trigger{Pattern: networkPattern}, h.Network)
	reg.Add("about_me", bot.Trigger{Pattern: aboutPattern}, h.AboutMe)
	reg.Add("enter_2fa", bot.Trigger{Pattern: enter2FAPattern}, h.Enter2FA)
	reg.Add("qr_button", bot.Trigger{Pattern: qrCodePattern}, h.QRCode)
	reg.Add("containers_button", bot.Trigger{Pattern: containersPattern}, h.Containers)
	reg.Add("docker_button", bot.Trigger{Pattern: dockerPattern}, h.DockerMenu)
	reg.Add("images_button", bot.Trigger{Pattern: imagesPattern}, h.Images)
	reg.Add("back_button", bot.Trigger{Pattern: backPattern}, h.BackToMain)
	reg.Add("totp_code", bot.Trigger{Pattern: totpCodePattern}, h.TOTPCode)

	// Inline-keyboard callbacks.
	reg.Add("cb_get_full", bot.Trigger{CallbackPrefix: "__get_full__:"}, h.ContainerFullStats)
	reg.Add("cb_get_logs", bot.Trigger{CallbackPrefix: "__get_logs__:"}, h.ContainerLogs)
	reg.Add("cb_manage", bot.Trigger{CallbackPrefix: "__manage__:"}, h.Gate(h.ManageMenu))
	reg.Add("cb_start", bot.Trigger{CallbackPrefix: "__start__:"}, h.Gate(h.actionConfirm(container.ActionStart)))
	reg.Add("cb_stop", bot.Trigger{CallbackPrefix: "__stop__:"}, h.Gate(h.actionConfirm(container.ActionStop)))
	reg.Add("cb_restart", bot.Trigger{CallbackPrefix: "__restart__:"}, h.Gate(h.actionConfirm(container.ActionRestart)))
	reg.Add("cb_rename", bot.Trigger{CallbackPrefix: "__rename__:"}, h.Gate(h.RenamePrompt))
	reg.Add("cb_how_update", bot.Trigger{CallbackPrefix: "__how_update__"}, h.HowToUpdate)
	reg.Add("cb_swap_info", bot.Trigger{CallbackPrefix: "__swap_info__"}, h.SwapInfo)
	reg.Add("cb_back_to_containers", bot.Trigger{CallbackPrefix: "back_to_containers"}, h.Containers)
	reg.Add("cb_signed_confirm", bot.Trigger{CallbackPattern: signedTokenPattern}, h.Gate(h.SignedConfirm))

	if extra != nil {
		extra(reg)
	}

	reg.Add("fallback", bot.Trigger{AnyMessage: true}, h.Fallback)
}

// isAdmin reports whether the user id is on the admin allow-list.
func (h *Handlers) isAdmin(userID int64) bool {
	_, ok := h.admins[userID]
	return ok
}

// reply sends text into the update's chat.
func (h *Handlers) reply(ctx context.Context, u *bot.Update, text string, opts *bot.SendOptions) error {
	_, err := h.client.SendMessage(ctx, u.ChatID(), text, opts)
	return err
}
