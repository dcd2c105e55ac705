package middleware

import "time"

// SetRateLimitClock replaces the clock used to pick rate windows.
func SetRateLimitClock(rl *RateLimit, now func() time.Time) { rl.now = now }
