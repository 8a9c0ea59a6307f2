package services

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"
)

// ClientCounter reports how many websocket subscribers are connected.
// Satisfied by websocket.Hub.
type ClientCounter interface {
	ClientCount() int
}

// HealthStatus is the aggregate health response.
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Runtime   map[string]any           `json:"runtime,omitempty"`
	Services  map[string]ServiceHealth `json:"services,omitempty"`
}

// ServiceHealth describes one dependency's readiness.
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthService answers the health, readiness and liveness probes.
type HealthService struct {
	version   string
	startTime time.Time
	hub       ClientCounter
	analyzer  Analyzer
	logger    *slog.Logger
}

// NewHealthService creates the probe service. hub and analyzer are the
// dependencies the readiness probe inspects.
func NewHealthService(version string, hub ClientCounter, analyzer Analyzer, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		version:   version,
		startTime: time.Now(),
		hub:       hub,
		analyzer:  analyzer,
		logger:    logger.With(slog.String("component", "health_service")),
	}
}

// HealthCheck reports overall service health.
func (h *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
	}
}

// ReadinessCheck verifies the service can take traffic: the websocket hub
// is running and the analysis client is configured. A missing analyzer flips
// readiness because every decode would come back degraded.
func (h *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
		Services:  make(map[string]ServiceHealth),
	}

	if h.hub != nil {
		status.Services["websocket"] = ServiceHealth{
			Status:  "ok",
			Message: fmt.Sprintf("%d clients connected", h.hub.ClientCount()),
		}
	} else {
		status.Services["websocket"] = ServiceHealth{
			Status:  "unavailable",
			Message: "hub not running",
		}
		status.Status = "not_ready"
	}

	if h.analyzer != nil {
		status.Services["analysis"] = ServiceHealth{Status: "ok"}
	} else {
		status.Services["analysis"] = ServiceHealth{
			Status:  "unavailable",
			Message: "analysis client not configured",
		}
		status.Status = "not_ready"
	}

	if status.Status != "ready" {
		h.logger.WarnContext(ctx, "readiness check failed",
			slog.Any("services", status.Services))
	}
	return status
}

// LivenessCheck reports process liveness with basic runtime stats.
func (h *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
		Runtime: map[string]any{
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
			"uptime":     time.Since(h.startTime).String(),
		},
	}
}

// Version returns build and runtime identification.
func (h *HealthService) Version() map[string]string {
	return map[string]string{
		"version":    h.version,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"uptime":     time.Since(h.startTime).String(),
		"start_time": h.startTime.UTC().Format(time.RFC3339),
	}
}
