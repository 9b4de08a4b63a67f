package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedSleeps struct {
	delays []time.Duration
}

func (r *recordedSleeps) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func noJitter() time.Duration { return 0 }

func TestIsTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{err: nil, want: false},
		{err: errors.New("openai status 429: slow down"), want: true},
		{err: errors.New("RateLimitError: too many requests"), want: true},
		{err: errors.New("Rate Limit exceeded"), want: true},
		{err: errors.New("monthly QUOTA exhausted"), want: true},
		{err: errors.New("invalid api key"), want: false},
		{err: errors.New("openai status 500: boom"), want: false},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, IsTransient(tc.err), "%v", tc.err)
	}
}

func TestBackoffSchedule(t *testing.T) {
	p := DefaultRetryPolicy()

	got := []time.Duration{p.Backoff(1, 0), p.Backoff(2, 0), p.Backoff(3, 0), p.Backoff(4, 0), p.Backoff(5, 0)}

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 8 * time.Second}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("backoff mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2*time.Second+300*time.Millisecond, p.Backoff(2, 300*time.Millisecond))
}

func TestInvokeAlwaysRateLimited(t *testing.T) {
	rec := &recordedSleeps{}
	inv := NewInvoker(RetryPolicy{MaxAttempts: 4, BaseDelay: time.Second, MaxDelay: 8 * time.Second},
		nil, WithSleep(rec.sleep), WithJitter(noJitter))

	rateLimited := errors.New("429 Too Many Requests")
	attempts := 0
	_, err := inv.Invoke(context.Background(), func(context.Context) (string, error) {
		attempts++
		return "", rateLimited
	})

	require.Error(t, err)
	assert.Same(t, rateLimited, err)
	assert.Equal(t, 4, attempts)
	if diff := cmp.Diff([]time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, rec.delays); diff != "" {
		t.Fatalf("sleeps mismatch (-want +got):\n%s", diff)
	}
}

func TestInvokeNonTransientFailsFast(t *testing.T) {
	rec := &recordedSleeps{}
	inv := NewInvoker(DefaultRetryPolicy(), nil, WithSleep(rec.sleep))

	boom := errors.New("model exploded")
	attempts := 0
	_, err := inv.Invoke(context.Background(), func(context.Context) (string, error) {
		attempts++
		return "", boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, attempts)
	assert.Empty(t, rec.delays)
}

func TestInvokeRecoversAfterRateLimit(t *testing.T) {
	rec := &recordedSleeps{}
	inv := NewInvoker(DefaultRetryPolicy(), nil, WithSleep(rec.sleep), WithJitter(func() time.Duration { return 100 * time.Millisecond }))

	attempts := 0
	out, err := inv.Invoke(context.Background(), func(context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", errors.New("quota exceeded")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{1100 * time.Millisecond, 2100 * time.Millisecond}, rec.delays)
}

func TestInvokeStopsOnCancelledSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inv := NewInvoker(RetryPolicy{MaxAttempts: 3, BaseDelay: time.Hour, MaxDelay: time.Hour}, nil, WithJitter(noJitter))

	attempts := 0
	_, err := inv.Invoke(ctx, func(context.Context) (string, error) {
		attempts++
		return "", errors.New("rate limit")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestDefaultJitterWithinBounds(t *testing.T) {
	inv := NewInvoker(DefaultRetryPolicy(), nil)
	for i := 0; i < 100; i++ {
		j := inv.jitter()
		assert.GreaterOrEqual(t, j, time.Duration(0))
		assert.Less(t, j, 500*time.Millisecond)
	}
}

func TestPolicyDefaults(t *testing.T) {
	assert.Equal(t, DefaultRetryPolicy(), NewInvoker(RetryPolicy{}, nil).Policy())

	p := NewInvoker(RetryPolicy{BaseDelay: 200 * time.Millisecond}, nil).Policy()
	assert.Equal(t, 4, p.MaxAttempts)
	assert.Equal(t, 8*time.Second, p.MaxDelay)
	assert.Equal(t, 200*time.Millisecond, p.BaseDelay)
	assert.Zero(t, p.MaxJitter)
}

func TestPartialPolicyKeepsZeroDelays(t *testing.T) {
	rec := &recordedSleeps{}
	inv := NewInvoker(RetryPolicy{MaxAttempts: 4}, nil, WithSleep(rec.sleep))

	attempts := 0
	_, err := inv.Invoke(context.Background(), func(context.Context) (string, error) {
		attempts++
		return "", errors.New("429 Too Many Requests")
	})

	require.Error(t, err)
	assert.Equal(t, 4, attempts)
	assert.Equal(t, []time.Duration{0, 0, 0}, rec.delays)
	assert.Zero(t, inv.jitter())
}
