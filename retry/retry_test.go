package retry_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/dappchain/evmbridge/retry"
)

var errTransient = errors.New("transient")

func fastPolicy(retries uint) retry.Policy {
	return retry.Policy{
		Retries:    retries,
		MinTimeout: time.Millisecond,
		MaxTimeout: 2 * time.Millisecond,
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	attempts := 0
	err := retry.Do(context.Background(), fastPolicy(5), func(error) bool { return true }, func() error {
		attempts++
		if attempts < 3 {
			return errTransient
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestDoExhaustsBudget(t *testing.T) {
	attempts := 0
	err := retry.Do(context.Background(), fastPolicy(2), func(error) bool { return true }, func() error {
		attempts++
		return errTransient
	})
	require.ErrorIs(t, err, errTransient)
	// the budget counts retries on top of the first attempt
	require.Equal(t, 3, attempts)
}

func TestDoStopsOnNonRetryable(t *testing.T) {
	terminal := errors.New("terminal")
	attempts := 0
	err := retry.Do(context.Background(), fastPolicy(5), func(err error) bool {
		return errors.Is(err, errTransient)
	}, func() error {
		attempts++
		return terminal
	})
	require.ErrorIs(t, err, terminal)
	require.Equal(t, 1, attempts)
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := retry.Do(ctx, retry.Policy{Retries: 50, MinTimeout: 50 * time.Millisecond, MaxTimeout: time.Second}, func(error) bool { return true }, func() error {
		attempts++
		cancel()
		return errTransient
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
}

func TestDoWithJitteredDelays(t *testing.T) {
	policy := retry.Policy{
		Retries:    3,
		MinTimeout: time.Millisecond,
		MaxTimeout: 2 * time.Millisecond,
		Randomize:  true,
	}
	attempts := 0
	err := retry.Do(context.Background(), policy, func(error) bool { return true }, func() error {
		attempts++
		if attempts < 3 {
			return errTransient
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)
}

func TestDoWithData(t *testing.T) {
	attempts := 0
	got, err := retry.DoWithData(context.Background(), fastPolicy(5), func(error) bool { return true }, func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", errTransient
		}
		return "payload", nil
	})
	require.NoError(t, err)
	require.Equal(t, "payload", got)
	require.Equal(t, 2, attempts)
}
