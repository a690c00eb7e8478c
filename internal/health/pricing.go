// Package health watches the externally-hosted pricing service and feeds
// the console's system-status widgets.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"ride-admin/internal/logger"
)

// State classifies the pricing service.
type State string

const (
	StateHealthy  State = "healthy"
	StateDegraded State = "degraded"
	StateDown     State = "down"
)

// Status is one health observation.
type Status struct {
	State     State     `json:"state"`
	LatencyMS int64     `json:"latency_ms"`
	Timestamp time.Time `json:"timestamp"`
	Detail    string    `json:"detail,omitempty"`
}

const (
	probeTimeout = 5 * time.Second
	// PollInterval is the background refresh cadence for the status widget.
	PollInterval = 30 * time.Second
	// slowThreshold marks a responding-but-sluggish service as degraded.
	slowThreshold = 2 * time.Second
)

type probeBody struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// PricingMonitor polls the pricing service's /health endpoint.
type PricingMonitor struct {
	url        string
	httpClient *http.Client

	mu   sync.RWMutex
	last Status
}

// NewPricingMonitor builds a monitor for the service at baseURL.
func NewPricingMonitor(baseURL string) *PricingMonitor {
	return &PricingMonitor{
		url:        baseURL + "/health",
		httpClient: &http.Client{Timeout: probeTimeout},
	}
}

// Check probes the service once and records the classification.
func (m *PricingMonitor) Check(ctx context.Context) Status {
	start := time.Now()
	status := Status{Timestamp: start.UTC()}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url, nil)
	if err != nil {
		status.State = StateDown
		status.Detail = err.Error()
		return m.store(status)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		status.State = StateDown
		status.Detail = err.Error()
		return m.store(status)
	}
	defer resp.Body.Close()

	latency := time.Since(start)
	status.LatencyMS = latency.Milliseconds()

	if resp.StatusCode != http.StatusOK {
		status.State = StateDegraded
		status.Detail = resp.Status
		return m.store(status)
	}

	var body probeBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		status.State = StateDegraded
		status.Detail = "unreadable health body"
		return m.store(status)
	}

	switch {
	case latency > slowThreshold:
		status.State = StateDegraded
		status.Detail = "slow response"
	case body.Status != "" && body.Status != "ok" && body.Status != "healthy":
		status.State = StateDegraded
		status.Detail = "service reports " + body.Status
	default:
		status.State = StateHealthy
	}
	return m.store(status)
}

func (m *PricingMonitor) store(s Status) Status {
	m.mu.Lock()
	m.last = s
	m.mu.Unlock()
	return s
}

// Last returns the most recent observation.
func (m *PricingMonitor) Last() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// Run polls until ctx is done. Meant for a background goroutine.
func (m *PricingMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	m.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := m.Check(ctx)
			if s.State != StateHealthy {
				logger.Warn("Pricing service unhealthy", "state", s.State, "detail", s.Detail)
			}
		}
	}
}
