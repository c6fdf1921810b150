package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrDisabled = errors.New("storage disabled")
	ErrClosed   = errors.New("storage closed")
)

// Config configures storage. An empty Driver (or "none") disables it.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// RunRecord is one finished routine run. Keep it compact and schema-stable.
type RunRecord struct {
	ID         string    `json:"id"`
	Routine    string    `json:"routine"`
	Mode       string    `json:"mode,omitempty"`
	Started    time.Time `json:"started"`
	DurationMS int64     `json:"duration_ms"`
	Ticks      int       `json:"ticks"`
	Outcome    string    `json:"outcome"`
}

// Store is the run log.
type Store interface {
	// AppendRun records r. Appending an ID twice keeps the latest record.
	AppendRun(ctx context.Context, r RunRecord) error
	// RecentRuns returns up to limit records, newest first.
	RecentRuns(ctx context.Context, limit int) ([]RunRecord, error)
	// PruneRuns deletes records that started before the cutoff and returns how
	// many were removed.
	PruneRuns(ctx context.Context, before time.Time) (int, error)
	Close() error
}
