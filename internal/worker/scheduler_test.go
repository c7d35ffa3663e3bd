package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduler_RunAll_PassesInjectedClock(t *testing.T) {
	fixed := time.Date(2026, 9, 16, 3, 0, 0, 0, time.UTC)
	s := NewScheduler(func() time.Time { return fixed })

	var got time.Time
	s.Add("sweep", time.Hour, func(_ context.Context, now time.Time) error {
		got = now
		return nil
	})

	s.RunAll(context.Background())
	assert.Equal(t, fixed, got)
}

func TestScheduler_RunAll_FailureDoesNotStopOthers(t *testing.T) {
	s := NewScheduler(nil)

	var ran bool
	s.Add("broken", time.Hour, func(context.Context, time.Time) error {
		return errors.New("boom")
	})
	s.Add("healthy", time.Hour, func(context.Context, time.Time) error {
		ran = true
		return nil
	})

	s.RunAll(context.Background())
	assert.True(t, ran)
}

func TestScheduler_RunAll_RecoversPanic(t *testing.T) {
	s := NewScheduler(nil)

	var ran bool
	s.Add("panics", time.Hour, func(context.Context, time.Time) error {
		panic("boom")
	})
	s.Add("healthy", time.Hour, func(context.Context, time.Time) error {
		ran = true
		return nil
	})

	s.RunAll(context.Background())
	assert.True(t, ran)
}
