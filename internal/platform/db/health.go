package db

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// Pinger is implemented by *pgxpool.Pool and SQLPinger.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SQLPinger adapts a database/sql handle to Pinger.
type SQLPinger struct{ DB *sql.DB }

func (p SQLPinger) Ping(ctx context.Context) error { return p.DB.PingContext(ctx) }

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	Driver          string `json:"driver"`
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count,omitempty"`
	AcquireDuration string `json:"acquire_duration,omitempty"`
	Healthy         bool   `json:"healthy"`
}

// GetPoolStats returns connection pool statistics for either backend.
func GetPoolStats(p Pinger) *PoolStats {
	switch v := p.(type) {
	case *pgxpool.Pool:
		stat := v.Stat()
		return &PoolStats{
			Driver:          "postgres",
			TotalConns:      stat.TotalConns(),
			IdleConns:       stat.IdleConns(),
			AcquiredConns:   stat.AcquiredConns(),
			MaxConns:        stat.MaxConns(),
			AcquireCount:    stat.AcquireCount(),
			AcquireDuration: stat.AcquireDuration().String(),
			Healthy:         stat.TotalConns() > 0,
		}
	case SQLPinger:
		stat := v.DB.Stats()
		return &PoolStats{
			Driver:        "sqlite",
			TotalConns:    int32(stat.OpenConnections),
			IdleConns:     int32(stat.Idle),
			AcquiredConns: int32(stat.InUse),
			MaxConns:      int32(stat.MaxOpenConnections),
			Healthy:       true,
		}
	}
	return &PoolStats{Driver: "unknown", Healthy: true}
}

// HealthHandler returns a handler for the database health check endpoint.
func HealthHandler(p Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		err := p.Ping(ctx)
		stats := GetPoolStats(p)

		if err != nil {
			stats.Healthy = false
			return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
				"pool":   stats,
			})
		}

		return c.JSON(http.StatusOK, map[string]interface{}{
			"status": "healthy",
			"pool":   stats,
		})
	}
}
