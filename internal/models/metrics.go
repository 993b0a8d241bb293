package models

import "time"

// SchedulerMetrics is a JSON snapshot of the process counters.
type SchedulerMetrics struct {
	RunsTotal            uint64    `json:"runs_total"`
	RunsFailed           uint64    `json:"runs_failed"`
	AssignmentsPlaced    uint64    `json:"assignments_placed"`
	ShortfallSessions    uint64    `json:"shortfall_sessions"`
	ResolutionFailures   uint64    `json:"resolution_failures"`
	AverageRunDurationMs float64   `json:"average_run_duration_ms"`
	CacheHitRatio        float64   `json:"cache_hit_ratio"`
	CacheHits            uint64    `json:"cache_hits"`
	CacheMisses          uint64    `json:"cache_misses"`
	RequestsTotal        uint64    `json:"requests_total"`
	Goroutines           int       `json:"goroutines"`
	GeneratedAt          time.Time `json:"generated_at"`
}
