package monitor_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"vigil/monitor"
)

func TestBackoffGrowth(t *testing.T) {
	base := 30 * time.Second

	tests := []struct {
		name     string
		failures int
		expected time.Duration
	}{
		{
			name:     "healthy",
			failures: 0,
			expected: 30 * time.Second,
		},
		{
			name:     "one failure",
			failures: 1,
			expected: 60 * time.Second,
		},
		{
			name:     "two failures",
			failures: 2,
			expected: 120 * time.Second,
		},
		{
			name:     "five failures",
			failures: 5,
			expected: 960 * time.Second,
		},
		{
			name:     "growth capped at 32x",
			failures: 9,
			expected: 960 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := monitor.NewBackoff(base)
			for i := 0; i < tt.failures; i++ {
				b.Failure()
			}
			assert.Equal(t, tt.expected, b.Interval())
			assert.Equal(t, tt.failures, b.Failures())
		})
	}
}

func TestBackoffResetsOnSuccess(t *testing.T) {
	base := 10 * time.Second
	b := monitor.NewBackoff(base)

	for i := 0; i < 4; i++ {
		b.Failure()
	}
	assert.Equal(t, 160*time.Second, b.Interval())

	b.Success()
	assert.Equal(t, base, b.Interval())
	assert.Equal(t, 0, b.Failures())

	// Growth restarts from scratch after a success
	b.Failure()
	assert.Equal(t, 20*time.Second, b.Interval())
}
