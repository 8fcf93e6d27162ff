package bot

import (
	"context"
	"time"
)

// InlineButton is one inline-keyboard button carrying signed callback data.
type InlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
}

// ReplyButton is one reply-keyboard button; pressing it sends its text.
type ReplyButton struct {
	Text string `json:"text"`
}

// Keyboard is a reply markup attachment: at most one of Inline or Reply
// is set.
type Keyboard struct {
	Inline [][]InlineButton
	Reply  [][]ReplyButton
}

// SendOptions tunes an outgoing message.
type SendOptions struct {
	Keyboard   *Keyboard
	ParseMode  string // "" (plain), "HTML", "MarkdownV2"
	HasSpoiler bool   // photo sends only: hide behind spoiler animation
}

// Client is the port to the messaging platform. The platform library
// itself is an external collaborator; this interface is the narrow
// surface dockside depends on, so tests substitute a fake.
type Client interface {
	// GetUpdates long-polls for new updates after offset, waiting up to
	// timeout server-side before returning an empty batch.
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error)

	// SendMessage sends text into chatID.
	SendMessage(ctx context.Context, chatID int64, text string, opts *SendOptions) (*Message, error)

	// SendPhoto sends a PNG/JPEG into chatID.
	SendPhoto(ctx context.Context, chatID int64, photo []byte, caption string, opts *SendOptions) (*Message, error)

	// AnswerCallback acknowledges a callback query, optionally with an
	// alert popup.
	AnswerCallback(ctx context.Context, callbackID, text string, showAlert bool) error

	// DeleteMessage removes a previously sent message.
	DeleteMessage(ctx context.Context, chatID, messageID int64) error

	// SetWebhook registers the webhook URL with the platform, uploading
	// the self-signed certificate when certPEM is non-empty.
	SetWebhook(ctx context.Context, url string, certPEM []byte) error

	// DeleteWebhook drops any registered webhook, re-enabling polling.
	DeleteWebhook(ctx context.Context) error
}
