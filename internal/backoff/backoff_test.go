package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextDelayGrowsAndCaps(t *testing.T) {
	r := New(Config{
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     40 * time.Millisecond,
		Multiplier:   2,
		Jitter:       0,
	})

	first := r.NextDelay()
	second := r.NextDelay()
	third := r.NextDelay()
	fourth := r.NextDelay()

	assert.Equal(t, 10*time.Millisecond, first)
	assert.Equal(t, 20*time.Millisecond, second)
	assert.Equal(t, 40*time.Millisecond, third)
	assert.Equal(t, 40*time.Millisecond, fourth, "delay must not exceed MaxDelay")
}

func TestResetRestartsSchedule(t *testing.T) {
	r := New(Config{InitialDelay: 10 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2, Jitter: 0})
	r.NextDelay()
	r.NextDelay()
	r.Reset()
	assert.Equal(t, 10*time.Millisecond, r.NextDelay())
}

func TestExhaustedAfterEscalateWindow(t *testing.T) {
	r := New(Config{InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2, EscalateAfter: 10 * time.Millisecond})
	assert.False(t, r.Exhausted(), "no episode started yet")

	r.NextDelay()
	assert.False(t, r.Exhausted())

	time.Sleep(15 * time.Millisecond)
	assert.True(t, r.Exhausted())
}

func TestNewFillsDefaultsOnZeroFields(t *testing.T) {
	r := New(Config{})
	require.NotNil(t, r)
	assert.Equal(t, DefaultConfig().InitialDelay, r.cfg.InitialDelay)
	assert.Equal(t, DefaultConfig().MaxDelay, r.cfg.MaxDelay)
}
