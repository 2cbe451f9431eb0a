package service

import "time"

// Cache lifetimes per data class. Realtime counters go stale in seconds,
// windowed aggregates tolerate minutes, and catalogs (owners, pipelines,
// products, offers) change rarely enough for an hour.
const (
	ttlRealtime = 30 * time.Second
	ttlWindow   = 10 * time.Minute
	ttlCatalog  = time.Hour
	ttlCalendar = 30 * time.Minute
	ttlPanel    = 5 * time.Minute
)
