package bot

import (
	"context"
	"sync"
	"time"
)

// fakeClient is an in-memory Client capturing outgoing traffic and
// feeding scripted updates to the poll loop.
type fakeClient struct {
	mu       sync.Mutex
	sent     []string
	sentTo   []int64
	photos   int
	deleted  []int64
	updates  chan []Update
	pollErr  error
	answered []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{updates: make(chan []Update, 16)}
}

func (f *fakeClient) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	f.mu.Lock()
	err := f.pollErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case batch := <-f.updates:
		return batch, nil
	case <-time.After(50 * time.Millisecond):
		return nil, nil
	}
}

func (f *fakeClient) SendMessage(_ context.Context, chatID int64, text string, _ *SendOptions) (*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	f.sentTo = append(f.sentTo, chatID)
	return &Message{MessageID: int64(len(f.sent)), Chat: Chat{ID: chatID}, Text: text}, nil
}

func (f *fakeClient) SendPhoto(_ context.Context, chatID int64, _ []byte, caption string, _ *SendOptions) (*Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.photos++
	return &Message{MessageID: int64(f.photos + 1000), Chat: Chat{ID: chatID}, Text: caption}, nil
}

func (f *fakeClient) AnswerCallback(_ context.Context, callbackID, _ string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, callbackID)
	return nil
}

func (f *fakeClient) DeleteMessage(_ context.Context, _, messageID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeClient) SetWebhook(context.Context, string, []byte) error { return nil }
func (f *fakeClient) DeleteWebhook(context.Context) error              { return nil }

func (f *fakeClient) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeClient) push(updates ...Update) {
	f.updates <- updates
}
