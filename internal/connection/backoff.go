package connection

import (
	"math"
	"time"
)

// Delay returns the wait before retry number attempt (1-based):
// min(BaseDelay * Multiplier^(attempt-1), MaxDelay).
func (b BackoffConfig) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	mult := b.Multiplier
	if mult < 1 {
		mult = 1
	}

	d := float64(b.BaseDelay) * math.Pow(mult, float64(attempt-1))
	if b.MaxDelay > 0 && (d > float64(b.MaxDelay) || math.IsInf(d, 0)) {
		return b.MaxDelay
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Exhausted reports whether attempts has reached the ceiling.
func (b BackoffConfig) Exhausted(attempts int) bool {
	return b.MaxAttempts > 0 && attempts >= b.MaxAttempts
}
