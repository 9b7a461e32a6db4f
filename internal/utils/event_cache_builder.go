package utils

import "time"

// BuildPoolCacheKey names the cached approved pool that starts at since.
// The key changes daily, so a stale day never outlives its date.
func BuildPoolCacheKey(since time.Time) string {
	return "events:pool:v1:since=" + since.Format("2006-01-02")
}
