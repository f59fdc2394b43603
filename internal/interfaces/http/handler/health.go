package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping() error
}

// PingerFunc adapts a function to Pinger
type PingerFunc func() error

// Ping calls f
func (f PingerFunc) Ping() error { return f() }

// HealthHandler reports service liveness and dependency health
type HealthHandler struct {
	version string
	checks  map[string]Pinger
	timeout time.Duration
}

// NewHealthHandler creates a health handler. checks maps a dependency name to
// its probe.
func NewHealthHandler(version string, checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{version: version, checks: checks, timeout: 2 * time.Second}
}

type checkResult struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Health handles GET /health. Any failing dependency turns the answer into
// a 503.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]checkResult, len(h.checks))
	for name, p := range h.checks {
		errc := make(chan error, 1)
		go func() { errc <- p.Ping() }()

		var err error
		select {
		case err = <-errc:
		case <-ctx.Done():
			err = ctx.Err()
		}
		if err != nil {
			status = http.StatusServiceUnavailable
			results[name] = checkResult{Status: "down", Error: err.Error()}
			continue
		}
		results[name] = checkResult{Status: "up"}
	}

	overall := "healthy"
	if status != http.StatusOK {
		overall = "unhealthy"
	}
	c.JSON(status, gin.H{
		"status":    overall,
		"version":   h.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    results,
	})
}
