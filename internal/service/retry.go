package service

import (
	"context"
	"log/slog"
	"time"

	"fleettrack/internal/metrics"
	"fleettrack/internal/repository"
)

// DefaultMaxRetries is the number of extra attempts after a transient failure.
const DefaultMaxRetries = 2

// txRunner runs a unit of work in a transaction, re-running it from scratch
// after transient failures. Business and invariant errors are never retried.
type txRunner struct {
	tx         repository.Transactor
	maxRetries int
	backoff    time.Duration
	metrics    metrics.Recorder
	logger     *slog.Logger
}

func (r *txRunner) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = r.tx.WithinTx(ctx, fn)
		if err == nil {
			return nil
		}

		if !isRetryable(err) || attempt >= r.maxRetries || ctx.Err() != nil {
			break
		}

		r.metrics.RecordTxRetry(op)
		r.logger.Warn("retrying transaction",
			slog.String("operation", op),
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()),
		)

		if r.backoff > 0 {
			timer := time.NewTimer(r.backoff << attempt)
			select {
			case <-ctx.Done():
				timer.Stop()
				return classify(ctx.Err())
			case <-timer.C:
			}
		}
	}

	return classify(err)
}
