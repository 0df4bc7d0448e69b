package collab

import (
	"context"
	"errors"
	"time"

	"inkwell/internal/domain"
)

const backoffMaxDelay = 8 * time.Second

func backoffDuration(base time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	wait := base * time.Duration(1<<uint(attempt-1))
	if wait > backoffMaxDelay {
		return backoffMaxDelay
	}
	return wait
}

func isRetryable(err error) bool {
	var genErr *domain.GenerationError
	return errors.As(err, &genErr) && genErr.Retryable()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
