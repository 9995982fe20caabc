package reliability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastConfig(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("vault sealed")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	testErr := errors.New("unreachable")
	calls := 0
	var retried []int

	config := fastConfig()
	config.OnRetry = func(attempt int, delay time.Duration, err error) {
		retried = append(retried, attempt)
	}

	err := Retry(context.Background(), config, func(ctx context.Context) error {
		calls++
		return testErr
	})

	assert.ErrorIs(t, err, testErr)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestRetry_StopsOnPermanentError(t *testing.T) {
	notFound := errors.New("not found")
	calls := 0

	config := fastConfig()
	config.ShouldRetry = func(err error) bool {
		return !errors.Is(err, notFound)
	}

	err := Retry(context.Background(), config, func(ctx context.Context) error {
		calls++
		return notFound
	})

	assert.ErrorIs(t, err, notFound)
	assert.Equal(t, 1, calls)
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Retry(ctx, fastConfig(), func(ctx context.Context) error {
		calls++
		return errors.New("fail")
	})

	assert.Error(t, err)
	assert.LessOrEqual(t, calls, 1)
}

func TestRetryConfig_Defaults(t *testing.T) {
	config := RetryConfig{}.withDefaults()
	def := DefaultRetryConfig()

	assert.Equal(t, def.MaxAttempts, config.MaxAttempts)
	assert.Equal(t, def.InitialDelay, config.InitialDelay)
	assert.Equal(t, def.MaxDelay, config.MaxDelay)
	assert.Equal(t, def.Multiplier, config.Multiplier)
}
