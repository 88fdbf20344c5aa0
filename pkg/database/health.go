package database

import (
	"context"
	"time"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// HealthStatus is the database section of the health endpoint: a ping
// verdict plus a snapshot of the sql.DB pool counters.
type HealthStatus struct {
	Status          string `json:"status"`
	ResponseTime    int64  `json:"response_time_ms"`
	OpenConnections int    `json:"open_connections"`
	InUse           int    `json:"in_use"`
	Idle            int    `json:"idle"`
	WaitCount       int64  `json:"wait_count"`
	WaitDuration    int64  `json:"wait_duration_ms"`
	MaxOpenConns    int    `json:"max_open_conns"`
}

// Health pings the database and snapshots pool statistics. On ping failure
// the returned status still carries the measured response time so the
// health endpoint can report how long the failure took.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	start := time.Now()
	err := c.db.PingContext(ctx)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		return &HealthStatus{Status: statusUnhealthy, ResponseTime: elapsed}, err
	}

	pool := c.db.Stats()
	return &HealthStatus{
		Status:          statusHealthy,
		ResponseTime:    elapsed,
		OpenConnections: pool.OpenConnections,
		InUse:           pool.InUse,
		Idle:            pool.Idle,
		WaitCount:       pool.WaitCount,
		WaitDuration:    pool.WaitDuration.Milliseconds(),
		MaxOpenConns:    pool.MaxOpenConnections,
	}, nil
}
