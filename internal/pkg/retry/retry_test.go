package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var fast = Policy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

func TestDo_SucceedsAfterTransientErrors(t *testing.T) {
	calls := 0
	err := fast.Do(context.Background(), "op", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_GivesUp(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := fast.Do(context.Background(), "op", func(context.Context) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 4, calls)
}

func TestDo_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	bad := errors.New("bad row")
	err := fast.Do(context.Background(), "op", func(context.Context) error {
		calls++
		return Permanent(bad)
	})
	assert.ErrorIs(t, err, bad)
	assert.Equal(t, 1, calls)
}

func TestDo_ZeroPolicySingleAttempt(t *testing.T) {
	calls := 0
	err := Policy{}.Do(context.Background(), "op", func(context.Context) error {
		calls++
		return errors.New("nope")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	slow := Policy{MaxRetries: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}

	calls := 0
	err := slow.Do(ctx, "op", func(context.Context) error {
		calls++
		cancel()
		return errors.New("timeout")
	})
	assert.EqualError(t, err, "timeout")
	assert.Equal(t, 1, calls)
}

func TestDelay_Capped(t *testing.T) {
	p := Policy{MaxRetries: 10, BaseDelay: time.Second, MaxDelay: 2 * time.Second}
	for attempt := 1; attempt <= 10; attempt++ {
		d := p.delay(attempt)
		assert.LessOrEqual(t, d, 2*time.Second)
		assert.GreaterOrEqual(t, d, 100*time.Millisecond)
	}
}

func TestNew_Defaults(t *testing.T) {
	p := New(0)
	assert.Equal(t, 3, p.MaxRetries)
	assert.Equal(t, time.Second, p.BaseDelay)
	assert.Equal(t, 30*time.Second, p.MaxDelay)
}
