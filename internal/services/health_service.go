package services

import (
	"context"
	"database/sql"
	"log/slog"
	"time"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// HealthService reports liveness and readiness.
type HealthService struct {
	db        *sql.DB
	logger    *slog.Logger
	startedAt time.Time
}

// NewHealthService creates a health service.
func NewHealthService(db *sql.DB, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		db:        db,
		logger:    logger.With(slog.String("component", "health_service")),
		startedAt: time.Now(),
	}
}

// HealthStatus is the health endpoint payload.
type HealthStatus struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// LivenessCheck reports that the process is up.
func (s *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:  "ok",
		Version: Version,
		Uptime:  time.Since(s.startedAt).Round(time.Second).String(),
	}
}

// ReadinessCheck reports whether the service can take traffic, which
// here means the database answers a ping.
func (s *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := s.LivenessCheck(ctx)
	if err := s.db.PingContext(ctx); err != nil {
		s.logger.ErrorContext(ctx, "database ping failed",
			slog.String("error", err.Error()))
		status.Status = "degraded"
	}
	return status
}
