// Package retry вычисляет задержку и допустимость автоматических retry.
//
// Backoff экспоненциальный: base * 2^(retryCount-1), ограничен сверху max.
// retryCount — значение после инкремента (т.е. уже с учётом текущей ошибки).
package retry

import "time"

// Значения по умолчанию: 30s, 60s, 120s, 240s, 300s, 300s...
const (
	DefaultBase = 30 * time.Second
	DefaultMax  = 5 * time.Minute
)

// Policy — политика повторных попыток.
type Policy struct {
	// Base — задержка перед первым retry.
	Base time.Duration

	// Max — потолок задержки.
	Max time.Duration
}

// DefaultPolicy возвращает политику 30s * 2^(n-1), максимум 5 минут.
func DefaultPolicy() Policy {
	return Policy{Base: DefaultBase, Max: DefaultMax}
}

// ShouldRetry возвращает true, если retryCount < maxRetries.
func ShouldRetry(retryCount, maxRetries int) bool {
	return retryCount < maxRetries
}

// Backoff вычисляет задержку для retryCount (после инкремента).
func (p Policy) Backoff(retryCount int) time.Duration {
	base := p.Base
	if base <= 0 {
		base = DefaultBase
	}
	maxDelay := p.Max
	if maxDelay <= 0 {
		maxDelay = DefaultMax
	}

	delay := base
	for i := 1; i < retryCount; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}

	return min(delay, maxDelay)
}

// BackoffSeconds — Backoff с политикой по умолчанию, в целых секундах.
func BackoffSeconds(retryCount int) int {
	return int(DefaultPolicy().Backoff(retryCount) / time.Second)
}
