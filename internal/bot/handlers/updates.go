package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Strob0t/dockside/internal/bot"
	"github.com/Strob0t/dockside/internal/domain"
)

// Version is the running bot release, compared against the latest
// published release by /check_bot_updates.
const Version = "0.2.1"

const (
	releaseFeedURL     = "https://api.github.com/repos/Strob0t/dockside/releases/latest"
	updateCheckTimeout = 5 * time.Second
)

type releaseInfo struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// CheckBotUpdates compares the running version against the latest
// published release.
func (h *Handlers) CheckBotUpdates(ctx context.Context, u *bot.Update) error {
	reqCtx, cancel := context.WithTimeout(ctx, updateCheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, releaseFeedURL, nil)
	if err != nil {
		return domain.New(domain.CodeConnection, fmt.Errorf("update check: %w", err))
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return h.reply(ctx, u, "Could not reach the release feed. Try again later.", nil)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return h.reply(ctx, u, "Could not reach the release feed. Try again later.", nil)
	}

	var rel releaseInfo
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return domain.New(domain.CodeConnection, fmt.Errorf("update check decode: %w", err))
	}

	latest := strings.TrimPrefix(rel.TagName, "v")
	if latest == "" || latest == Version {
		return h.reply(ctx, u, fmt.Sprintf("You are on the latest version (%s).", Version), nil)
	}

	kb := &bot.Keyboard{Inline: [][]bot.InlineButton{
		{{Text: "How do I update?", CallbackData: "__how_update__"}},
	}}
	return h.reply(ctx, u,
		fmt.Sprintf("A newer version is available: %s (you run %s).", latest, Version),
		&bot.SendOptions{Keyboard: kb})
}

// HowToUpdate answers the update-instructions callback.
func (h *Handlers) HowToUpdate(ctx context.Context, u *bot.Update) error {
	if u.CallbackQuery != nil {
		if err := h.client.AnswerCallback(ctx, u.CallbackQuery.ID, "", false); err != nil {
			return err
		}
	}
	return h.reply(ctx, u,
		"To update: pull the latest release, rebuild the binary, and restart the service. "+
			"Your 2FA enrolments survive restarts.", nil)
}
