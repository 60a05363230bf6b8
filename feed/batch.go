package feed

import (
	"context"
	"log/slog"
	"math/rand"
	"slices"
	"time"
)

// BatchRunner partitions the full target list into shuffled batches and
// processes them sequentially with session-aware pacing. A single feed's
// failure never aborts the batch or the run: every target ends up with
// exactly one disposition, success or failure.
type BatchRunner struct {
	processor *Processor
	batchSize int

	rng   *rand.Rand
	sleep func(time.Duration)
}

// NewBatchRunner builds a runner processing batchSize feeds per batch.
func NewBatchRunner(processor *Processor, batchSize int) *BatchRunner {
	if batchSize < 1 {
		batchSize = 20
	}
	r := &BatchRunner{
		processor: processor,
		batchSize: batchSize,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	r.sleep = func(d time.Duration) { time.Sleep(d) }
	return r
}

// Run fetches every target and returns the aggregate result. The fetch
// order is shuffled to avoid a fingerprintable access pattern, but the
// returned posts are sorted ascending by timestamp, so the output is
// deterministic for identical upstream data.
func (r *BatchRunner) Run(ctx context.Context, targets []Target, start, end time.Time) RunResult {
	session := r.processor.Session()
	client := r.processor.Client()

	shuffled := slices.Clone(targets)
	r.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	var batches [][]Target
	for i := 0; i < len(shuffled); i += r.batchSize {
		batches = append(batches, shuffled[i:min(i+r.batchSize, len(shuffled))])
	}

	slog.Info("processing feeds in batches",
		"feeds", len(shuffled), "batches", len(batches), "batch_size", r.batchSize)

	var result RunResult
	consecutiveFailures := 0

	for batchNum, batch := range batches {
		if batchNum > 0 {
			delay := session.BatchDelay()
			slog.Info("waiting between batches for session recovery",
				"batch", batchNum+1, "delay", delay.Round(100*time.Millisecond))
			r.sleep(delay)
		}
		slog.Info("processing batch",
			"batch", batchNum+1, "batches", len(batches), "feeds", len(batch))

		for i, target := range batch {
			if i%5 == 0 {
				slog.Info("batch progress",
					"batch", batchNum+1, "feed", i+1, "of", len(batch), "handle", target.Title)
			}

			parsed, reason := r.processor.ProcessFeed(ctx, target.URL, target.Title)
			if reason != "" {
				result.Failed = append(result.Failed, Failure{Handle: target.Handle, Reason: reason})
				consecutiveFailures++
				r.pauseAfterFailure(session, client, consecutiveFailures)
				continue
			}

			result.Successful++
			consecutiveFailures = 0
			result.Posts = append(result.Posts, r.processor.ExtractPosts(parsed, start, end, target.Title)...)
		}
	}

	slices.SortStableFunc(result.Posts, func(a, b Post) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return result
}

// pauseAfterFailure slows the run down proportionally to observed trouble:
// a full recovery pause once the session looks exhausted, otherwise an
// adaptive delay that grows with the failure streak.
func (r *BatchRunner) pauseAfterFailure(session *Session, client *Client, consecutiveFailures int) {
	if session.ShouldApplySessionRecovery(client.Consecutive429(), client.Last429()) {
		delay := session.RecoveryDelay()
		slog.Warn("session exhaustion detected, applying recovery delay",
			"delay", delay, "consecutive_429", client.Consecutive429())
		r.sleep(delay)
		return
	}
	if consecutiveFailures > 1 {
		r.sleep(session.AdaptiveDelay(consecutiveFailures))
	}
}
