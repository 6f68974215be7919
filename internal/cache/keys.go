package cache

import (
	"fmt"
	"time"
)

func RateLimitKey(keyPrefix string) string {
	return fmt.Sprintf("ratelimit:%s", keyPrefix)
}

func StatsKey(window time.Duration) string {
	return fmt.Sprintf("stats:%s", window)
}
