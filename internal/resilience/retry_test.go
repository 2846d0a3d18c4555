package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/errs"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func quick(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

// flaky fails with a transient error until the given call, then succeeds.
func flaky(succeedOn int, calls *int) func(context.Context) error {
	return func(context.Context) error {
		*calls++
		if *calls < succeedOn {
			return NewTransientError(errors.New("upstream 503"), 503)
		}
		return nil
	}
}

func TestDo(t *testing.T) {
	tests := []struct {
		name      string
		attempts  int
		succeedOn int
		wantErr   bool
		wantCalls int
	}{
		{"first try", 3, 1, false, 1},
		{"recovers on last attempt", 3, 3, false, 3},
		{"runs out of attempts", 2, 10, true, 2},
		{"single attempt", 1, 2, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Do(context.Background(), quick(tt.attempts), flaky(tt.succeedOn, &calls))
			assert.Equal(t, tt.wantErr, err != nil)
			assert.Equal(t, tt.wantCalls, calls)
		})
	}
}

func TestDo_PermanentErrorStopsImmediately(t *testing.T) {
	calls := 0
	err := Do(context.Background(), quick(5), func(context.Context) error {
		calls++
		return errors.New("value rejected")
	})
	require.EqualError(t, err, "value rejected")
	assert.Equal(t, 1, calls)
}

func TestDo_CancelDuringWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxAttempts: 4, BaseDelay: time.Hour, MaxDelay: time.Hour}
	cfg.OnRetry = func(int, error, time.Duration) { cancel() }

	calls := 0
	start := time.Now()
	err := Do(ctx, cfg, func(context.Context) error {
		calls++
		return NewTransientError(errors.New("reset"), 0)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), time.Minute)
}

func TestConflictRetryConfig(t *testing.T) {
	cfg := ConflictRetryConfig(4)
	cfg.BaseDelay = time.Millisecond
	var attempts []int
	cfg.OnRetry = func(attempt int, err error, _ time.Duration) {
		assert.True(t, errs.IsConflict(err))
		attempts = append(attempts, attempt)
	}

	calls := 0
	require.NoError(t, Do(context.Background(), cfg, func(context.Context) error {
		calls++
		if calls <= 2 {
			return errs.Conflict("entity", "e7", "stale version")
		}
		return nil
	}))
	assert.Equal(t, []int{1, 2}, attempts)

	// Network trouble is not a lost race.
	calls = 0
	err := Do(context.Background(), cfg, func(context.Context) error {
		calls++
		return NewTransientError(errors.New("reset"), 0)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoVal(t *testing.T) {
	calls := 0
	got, err := DoVal(context.Background(), quick(3), func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", NewTransientError(errors.New("throttled"), 429)
		}
		return "verified", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "verified", got)

	got, err = DoVal(context.Background(), quick(2), func(context.Context) (string, error) {
		return "partial", errors.New("malformed response")
	})
	require.Error(t, err)
	assert.Empty(t, got)
}

func TestBackoff_FullJitterWithinCeiling(t *testing.T) {
	cfg := RetryConfig{BaseDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond}
	ceilings := map[int]time.Duration{1: 10 * time.Millisecond, 2: 20 * time.Millisecond, 3: 40 * time.Millisecond, 8: 50 * time.Millisecond}
	for attempt, ceiling := range ceilings {
		for range 100 {
			d := backoff(attempt, cfg, 0)
			assert.GreaterOrEqual(t, d, time.Duration(0))
			assert.LessOrEqual(t, d, ceiling, "attempt %d", attempt)
		}
	}
}

func TestBackoff_HonoursRetryAfter(t *testing.T) {
	cfg := RetryConfig{BaseDelay: time.Millisecond, MaxDelay: time.Second}
	assert.Equal(t, 300*time.Millisecond, backoff(1, cfg, 300*time.Millisecond))
	// The hint is capped like any other wait.
	assert.Equal(t, time.Second, backoff(1, cfg, time.Minute))
}

func TestVerifierPolicy(t *testing.T) {
	retry, breaker := VerifierPolicy(0, 2, 5)
	assert.Equal(t, 3, retry.MaxAttempts)
	assert.NotNil(t, retry.OnRetry)
	assert.Equal(t, "verifier", breaker.Name)
	assert.Equal(t, 2, breaker.Threshold)
	assert.Equal(t, 5*time.Second, breaker.Cooldown)
	assert.False(t, breaker.Trips(errors.New("rejected")))
	assert.True(t, breaker.Trips(NewTransientError(errors.New("503"), 503)))

	retry, breaker = VerifierPolicy(6, 0, 0)
	assert.Equal(t, 6, retry.MaxAttempts)
	assert.Equal(t, DefaultBreakerConfig().Threshold, breaker.Threshold)
}
