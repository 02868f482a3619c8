package services

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"
)

// Pinger is a dependency whose reachability gates readiness
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	runs      *RunService
	checks    map[string]Pinger
	clients   func() int
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]interface{}   `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NewHealthService creates a health service. checks maps a dependency name to its pinger;
// clients reports connected websocket clients and may be nil.
func NewHealthService(version string, runs *RunService, checks map[string]Pinger, clients func() int, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	if checks == nil {
		checks = make(map[string]Pinger)
	}

	return &HealthService{
		version:   version,
		runs:      runs,
		checks:    checks,
		clients:   clients,
		startTime: time.Now(),
		logger:    logger.With(slog.String("component", "health_service")),
	}
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	rt := map[string]interface{}{
		"uptime":     time.Since(hs.startTime).Seconds(),
		"go_version": runtime.Version(),
		"goroutines": runtime.NumGoroutine(),
	}
	if hs.runs != nil {
		rt["remembered_runs"] = len(hs.runs.List())
	}
	if hs.clients != nil {
		rt["websocket_clients"] = hs.clients()
	}

	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime:   rt,
	}
}

// ReadinessCheck pings every registered dependency
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services:  make(map[string]ServiceHealth, len(hs.checks)),
	}

	for name, check := range hs.checks {
		if err := check.Ping(ctx); err != nil {
			status.Services[name] = ServiceHealth{
				Status:  "not_ready",
				Message: fmt.Sprintf("%s unreachable: %v", name, err),
			}
			status.Status = "not_ready"
			continue
		}
		status.Services[name] = ServiceHealth{Status: "ready"}
	}

	if status.Status != "ready" {
		hs.logger.WarnContext(ctx, "readiness_check_failed", slog.Any("services", status.Services))
	}
	return status
}
