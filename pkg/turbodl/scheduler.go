package turbodl

import (
	"context"
	"sync"
	"time"

	"github.com/ligustah/turbodl/pkg/turbodl/events"
)

// backoffDelay returns the quadratic backoff before retry attempt n+1:
// 1000 * (n+1)^2 milliseconds. attempt is 0-based (0 is the first retry,
// after the initial attempt has already failed once).
func backoffDelay(attempt int) time.Duration {
	n := float64(attempt + 1)
	return time.Duration(1000*n*n) * time.Millisecond
}

// scheduler runs a bounded-concurrency worker pool over a session's
// not-yet-complete chunks, retrying each chunk independently.
type scheduler struct {
	sess *Session
}

// run blocks until every chunk either completes or the session is
// aborted, and returns the first fatal chunk error encountered, if any. A
// nil return does not by itself mean every chunk succeeded — callers must
// also check whether the session was aborted, since abort short-circuits
// run without that being an error condition.
func (s *scheduler) run(ctx context.Context) error {
	sess := s.sess

	sess.mu.Lock()
	indices := make([]int, 0, len(sess.plan.Chunks))
	for i := range sess.plan.Chunks {
		if !sess.plan.Chunks[i].Done() {
			indices = append(indices, i)
		}
	}
	sess.mu.Unlock()

	if len(indices) == 0 {
		return nil
	}

	concurrency := sess.cfg.Concurrency
	if concurrency > len(indices) {
		concurrency = len(indices)
	}

	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	jobs := make(chan int)

	var (
		mu       sync.Mutex
		firstErr error
	)

	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				if err := s.runChunkWithRetry(workerCtx, idx); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					cancelWorkers()
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, idx := range indices {
			select {
			case jobs <- idx:
			case <-workerCtx.Done():
				return
			}
		}
	}()

	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	return firstErr
}

// runChunkWithRetry drives one chunk's attempts, sleeping with quadratic
// backoff between failures, until it succeeds, the session is aborted, or
// its retry budget (Config.RetryCount retries on top of the first attempt)
// is exhausted.
func (s *scheduler) runChunkWithRetry(ctx context.Context, idx int) error {
	sess := s.sess
	maxAttempts := sess.cfg.RetryCount + 1
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if sess.aborted.Load() {
			return lastErr
		}

		sess.mu.Lock()
		chunk := sess.plan.Chunks[idx]
		sess.mu.Unlock()

		if chunk.Done() {
			return nil
		}

		sess.emitter.Emit(events.Event{Kind: events.ChunkDownloadStarted, ChunkIndex: idx, Chunk: &chunk, Attempt: attempt})

		attemptCtx, cancel := context.WithCancel(ctx)
		sess.registerCancel(idx, cancel)

		start := chunk.Offset + chunk.Downloaded
		remaining := chunk.Remaining()

		transfer := &chunkTransfer{client: sess.client, url: sess.cfg.URL, file: sess.file, transform: sess.cfg.Transform}
		err := transfer.run(attemptCtx, start, remaining, func(n int64) {
			sess.recordChunkProgress(idx, n)
		})

		sess.unregisterCancel(idx)
		cancel()

		if err == nil {
			sess.emitter.Emit(events.Event{Kind: events.ChunkDownloadFinished, ChunkIndex: idx, Attempt: attempt})
			return nil
		}

		lastErr = &TransferError{ChunkIndex: idx, Attempt: attempt, Err: err}
		sess.emitter.Emit(events.Event{Kind: events.ChunkDownloadError, ChunkIndex: idx, Attempt: attempt, Err: lastErr})

		if sess.aborted.Load() {
			return lastErr
		}

		if attempt < maxAttempts-1 {
			select {
			case <-time.After(backoffDelay(attempt)):
			case <-ctx.Done():
				return lastErr
			}
		}
	}

	return &FatalChunkError{ChunkIndex: idx, Attempts: maxAttempts, Err: lastErr}
}
