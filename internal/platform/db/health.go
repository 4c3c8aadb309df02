package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// HealthStatus reports connectivity and pool statistics for the health endpoint.
type HealthStatus struct {
	OK           bool          `json:"ok"`
	Latency      time.Duration `json:"latency_ms"`
	TotalConns   int32         `json:"total_conns"`
	IdleConns    int32         `json:"idle_conns"`
	AcquireCount int64         `json:"acquire_count"`
	Error        string        `json:"error,omitempty"`
}

// CheckHealth pings the database with a short timeout and returns pool stats.
func CheckHealth(ctx context.Context, pool *pgxpool.Pool) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := pool.Ping(ctx)
	status := HealthStatus{
		OK:      err == nil,
		Latency: time.Since(start),
	}
	if err != nil {
		status.Error = err.Error()
	}

	stat := pool.Stat()
	status.TotalConns = stat.TotalConns()
	status.IdleConns = stat.IdleConns()
	status.AcquireCount = stat.AcquireCount()
	return status
}
