package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/Strob0t/dockside/internal/domain"
)

const (
	defaultAPIBase = "https://api.telegram.org"
	genericTimeout = 10 * time.Second
)

// HTTPClient implements Client over the platform's JSON bot API.
type HTTPClient struct {
	base       string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates an HTTPClient for the given bot token. base
// overrides the API host for tests; pass "" for the production endpoint.
func NewHTTPClient(token, base string) *HTTPClient {
	if base == "" {
		base = defaultAPIBase
	}
	return &HTTPClient{
		base:       base,
		token:      token,
		httpClient: &http.Client{Timeout: genericTimeout},
	}
}

// apiResponse is the platform's standard response envelope.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	Description string          `json:"description,omitempty"`
}

func (c *HTTPClient) call(ctx context.Context, method string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.New(domain.CodeConnection, fmt.Errorf("marshal %s: %w", method, err))
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.base, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return domain.New(domain.CodeConnection, fmt.Errorf("new request %s: %w", method, err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.New(domain.CodeConnection, fmt.Errorf("%s: %w", method, err))
	}
	defer resp.Body.Close()

	return decodeAPIResponse(resp.Body, method, out)
}

func decodeAPIResponse(r io.Reader, method string, out any) error {
	var envelope apiResponse
	if err := json.NewDecoder(r).Decode(&envelope); err != nil {
		return domain.New(domain.CodeConnection, fmt.Errorf("decode %s: %w", method, err))
	}
	if !envelope.OK {
		return domain.New(domain.CodeConnection, fmt.Errorf("%s: %s", method, envelope.Description))
	}
	if out != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return domain.New(domain.CodeConnection, fmt.Errorf("decode %s result: %w", method, err))
		}
	}
	return nil
}

// replyMarkup converts a Keyboard into the platform's reply_markup JSON.
func replyMarkup(k *Keyboard) any {
	if k == nil {
		return nil
	}
	if len(k.Inline) > 0 {
		return map[string]any{"inline_keyboard": k.Inline}
	}
	if len(k.Reply) > 0 {
		return map[string]any{"keyboard": k.Reply, "resize_keyboard": true}
	}
	return nil
}

// GetUpdates long-polls with a per-call HTTP timeout slightly above the
// server-side wait, so the platform, not the transport, ends the wait.
func (c *HTTPClient) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	payload := map[string]any{
		"offset":  offset,
		"timeout": int(timeout.Seconds()),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, domain.New(domain.CodeConnection, fmt.Errorf("marshal getUpdates: %w", err))
	}

	url := fmt.Sprintf("%s/bot%s/getUpdates", c.base, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, domain.New(domain.CodeConnection, fmt.Errorf("new request getUpdates: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	longPoll := &http.Client{Timeout: timeout + genericTimeout}
	resp, err := longPoll.Do(req)
	if err != nil {
		return nil, domain.New(domain.CodeConnection, fmt.Errorf("getUpdates: %w", err))
	}
	defer resp.Body.Close()

	var updates []Update
	if err := decodeAPIResponse(resp.Body, "getUpdates", &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

func (c *HTTPClient) SendMessage(ctx context.Context, chatID int64, text string, opts *SendOptions) (*Message, error) {
	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	if opts != nil {
		if opts.ParseMode != "" {
			payload["parse_mode"] = opts.ParseMode
		}
		if markup := replyMarkup(opts.Keyboard); markup != nil {
			payload["reply_markup"] = markup
		}
	}

	var msg Message
	if err := c.call(ctx, "sendMessage", payload, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *HTTPClient) SendPhoto(ctx context.Context, chatID int64, photo []byte, caption string, opts *SendOptions) (*Message, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("chat_id", fmt.Sprintf("%d", chatID)); err != nil {
		return nil, domain.New(domain.CodeConnection, fmt.Errorf("sendPhoto form: %w", err))
	}
	if caption != "" {
		if err := w.WriteField("caption", caption); err != nil {
			return nil, domain.New(domain.CodeConnection, fmt.Errorf("sendPhoto form: %w", err))
		}
	}
	if opts != nil && opts.HasSpoiler {
		if err := w.WriteField("has_spoiler", "true"); err != nil {
			return nil, domain.New(domain.CodeConnection, fmt.Errorf("sendPhoto form: %w", err))
		}
	}

	part, err := w.CreateFormFile("photo", "photo.png")
	if err != nil {
		return nil, domain.New(domain.CodeConnection, fmt.Errorf("sendPhoto form: %w", err))
	}
	if _, err := part.Write(photo); err != nil {
		return nil, domain.New(domain.CodeConnection, fmt.Errorf("sendPhoto form: %w", err))
	}
	if err := w.Close(); err != nil {
		return nil, domain.New(domain.CodeConnection, fmt.Errorf("sendPhoto form: %w", err))
	}

	url := fmt.Sprintf("%s/bot%s/sendPhoto", c.base, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, domain.New(domain.CodeConnection, fmt.Errorf("new request sendPhoto: %w", err))
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.New(domain.CodeConnection, fmt.Errorf("sendPhoto: %w", err))
	}
	defer resp.Body.Close()

	var msg Message
	if err := decodeAPIResponse(resp.Body, "sendPhoto", &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *HTTPClient) AnswerCallback(ctx context.Context, callbackID, text string, showAlert bool) error {
	return c.call(ctx, "answerCallbackQuery", map[string]any{
		"callback_query_id": callbackID,
		"text":              text,
		"show_alert":        showAlert,
	}, nil)
}

func (c *HTTPClient) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	return c.call(ctx, "deleteMessage", map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
	}, nil)
}

func (c *HTTPClient) SetWebhook(ctx context.Context, url string, certPEM []byte) error {
	payload := map[string]any{"url": url}
	if len(certPEM) > 0 {
		payload["certificate"] = string(certPEM)
	}
	return c.call(ctx, "setWebhook", payload, nil)
}

func (c *HTTPClient) DeleteWebhook(ctx context.Context) error {
	return c.call(ctx, "deleteWebhook", map[string]any{}, nil)
}
