package statusstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// MemoryUsage is a process memory sample in bytes.
type MemoryUsage struct {
	USS uint64 `json:"uss"`
	RSS uint64 `json:"rss"`
}

// Snapshot describes one gateway process.
type Snapshot struct {
	// TaskID is the worker index, or -1 for the master and the single
	// unassigned worker.
	TaskID         int         `json:"task_id"`
	PID            int32       `json:"pid"`
	ActiveHandlers int64       `json:"active_handlers"`
	WatchedFDs     int32       `json:"watched_fds"`
	Goroutines     int         `json:"goroutines"`
	Memory         MemoryUsage `json:"memory"`
	CollectedAt    float64     `json:"collected_at"`
	Error          string      `json:"error,omitempty"`
}

// Report is the aggregated status persisted under KeyStatus.
type Report struct {
	// Timestamp is the collection time in fractional unix seconds.
	Timestamp float64    `json:"timestamp"`
	Master    Snapshot   `json:"master"`
	Workers   []Snapshot `json:"workers"`
}

// UnixSeconds converts t to fractional unix seconds.
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// SaveReport stores r under KeyStatus.
func SaveReport(ctx context.Context, s Store, r *Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode status report: %w", err)
	}
	return s.Set(ctx, KeyStatus, data)
}

// LoadReport reads the report stored under KeyStatus. It returns
// ErrNotFound when no report was ever saved.
func LoadReport(ctx context.Context, s Store) (*Report, error) {
	data, err := s.Get(ctx, KeyStatus)
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode status report: %w", err)
	}
	return &r, nil
}
