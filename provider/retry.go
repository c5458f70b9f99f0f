package provider

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"time"

	"github.com/mohammad-safakhou/litreview/config"
)

// RetryPolicy retries transient backend failures with exponential backoff.
// Retryable HTTP statuses and timeouts are retried; everything else
// propagates immediately.
type RetryPolicy struct {
	Attempts          int
	ExpBase           float64
	InitialDelay      time.Duration
	RetryableStatuses []int
}

// PolicyFromConfig builds a RetryPolicy from the retry section of the LLM
// configuration, falling back to sane values for unset fields.
func PolicyFromConfig(cfg config.RetryConfig) RetryPolicy {
	p := RetryPolicy{
		Attempts:          cfg.Attempts,
		ExpBase:           cfg.ExpBase,
		InitialDelay:      cfg.InitialDelay,
		RetryableStatuses: cfg.RetryableStatuses,
	}
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	if p.ExpBase <= 1 {
		p.ExpBase = 2
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = time.Second
	}
	return p
}

// Retryable reports whether err is a transient failure worth retrying.
func (p RetryPolicy) Retryable(err error) bool {
	var perr *Error
	if errors.As(err, &perr) {
		for _, s := range p.RetryableStatuses {
			if perr.Status == s {
				return true
			}
		}
		return false
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return false
}

func (p RetryPolicy) delay(attempt int) time.Duration {
	return time.Duration(float64(p.InitialDelay) * math.Pow(p.ExpBase, float64(attempt)))
}

// Do runs fn until it succeeds, the error is not transient, the attempt
// budget is exhausted, or ctx is cancelled.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(p.delay(attempt - 1)):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !p.Retryable(err) {
			return "", err
		}
	}
	return "", fmt.Errorf("giving up after %d attempts: %w", attempts, lastErr)
}
