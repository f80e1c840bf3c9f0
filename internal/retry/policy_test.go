package retry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShouldRetry(t *testing.T) {
	assert.True(t, ShouldRetry(0, 3))
	assert.True(t, ShouldRetry(2, 3))
	assert.False(t, ShouldRetry(3, 3))
	assert.False(t, ShouldRetry(4, 3))
	assert.False(t, ShouldRetry(0, 0))
}

func TestBackoffSeconds(t *testing.T) {
	tests := []struct {
		retryCount int
		want       int
	}{
		{0, 30},
		{1, 30},
		{2, 60},
		{3, 120},
		{4, 240},
		{5, 300},
		{10, 300},
		{64, 300},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, BackoffSeconds(tt.retryCount), "retryCount=%d", tt.retryCount)
	}
}

func TestPolicy_CustomBounds(t *testing.T) {
	p := Policy{Base: time.Second, Max: 5 * time.Second}

	assert.Equal(t, time.Second, p.Backoff(1))
	assert.Equal(t, 2*time.Second, p.Backoff(2))
	assert.Equal(t, 4*time.Second, p.Backoff(3))
	assert.Equal(t, 5*time.Second, p.Backoff(4))
}

func TestPolicy_ZeroValueUsesDefaults(t *testing.T) {
	var p Policy
	assert.Equal(t, DefaultBase, p.Backoff(1))
	assert.Equal(t, DefaultMax, p.Backoff(20))
}

func TestPolicy_BaseAboveMax(t *testing.T) {
	p := Policy{Base: time.Minute, Max: 10 * time.Second}
	assert.Equal(t, 10*time.Second, p.Backoff(1))
}
