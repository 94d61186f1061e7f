// Package retry wraps exponential-backoff retrying behind a fixed policy
// shape, so call sites state how often and on what to retry and nothing else.
package retry

import (
	"context"
	"time"

	retrygo "github.com/avast/retry-go/v4"
)

// Policy bounds a retried operation. Retries is the number of additional
// attempts beyond the first; delays grow exponentially from MinTimeout up to
// MaxTimeout, jittered when Randomize is set.
type Policy struct {
	Retries    uint
	MinTimeout time.Duration
	MaxTimeout time.Duration
	Randomize  bool
}

// DefaultCommitPolicy governs recovery from sequence-number conflicts on
// transaction commit.
var DefaultCommitPolicy = Policy{
	Retries:    5,
	MinTimeout: 500 * time.Millisecond,
	MaxTimeout: 5 * time.Second,
	Randomize:  true,
}

// DefaultLookupPolicy governs polling for resources the chain may not have
// indexed yet, such as a receipt right after commit.
var DefaultLookupPolicy = Policy{
	Retries:    3,
	MinTimeout: time.Second,
	MaxTimeout: 10 * time.Second,
	Randomize:  true,
}

func (p Policy) options(ctx context.Context, isRetryable func(error) bool) []retrygo.Option {
	delayType := retrygo.BackOffDelay
	if p.Randomize {
		delayType = retrygo.CombineDelay(retrygo.BackOffDelay, retrygo.RandomDelay)
	}
	return []retrygo.Option{
		retrygo.Context(ctx),
		retrygo.Attempts(p.Retries + 1),
		retrygo.Delay(p.MinTimeout),
		retrygo.MaxDelay(p.MaxTimeout),
		retrygo.MaxJitter(p.MinTimeout),
		retrygo.DelayType(delayType),
		retrygo.RetryIf(isRetryable),
		retrygo.LastErrorOnly(true),
	}
}

// Do runs op, retrying per the policy while isRetryable judges the error
// recoverable. The last error is surfaced unwrapped; a non-retryable error
// ends the attempts immediately.
func Do(ctx context.Context, p Policy, isRetryable func(error) bool, op func() error) error {
	return retrygo.Do(op, p.options(ctx, isRetryable)...)
}

// DoWithData is Do for operations that produce a value.
func DoWithData[T any](ctx context.Context, p Policy, isRetryable func(error) bool, op func() (T, error)) (T, error) {
	return retrygo.DoWithData(op, p.options(ctx, isRetryable)...)
}
