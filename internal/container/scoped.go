package container

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// scopedClient bounds concurrent access to the engine client and
// guarantees release on every exit path (success, failure, or context
// cancellation).
type scopedClient struct {
	sem *semaphore.Weighted
}

func newScopedClient(maxConcurrent int) *scopedClient {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &scopedClient{sem: semaphore.NewWeighted(int64(maxConcurrent))}
}

// run acquires a slot, invokes fn, and releases the slot on every return
// path, including panics propagating through fn.
func (s *scopedClient) run(ctx context.Context, fn func() error) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer s.sem.Release(1)
	return fn()
}
