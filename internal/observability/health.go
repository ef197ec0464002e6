package observability

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// ComponentStatus is the health of one component.
type ComponentStatus string

const (
	StatusHealthy   ComponentStatus = "healthy"
	StatusDegraded  ComponentStatus = "degraded"
	StatusUnhealthy ComponentStatus = "unhealthy"
)

// HealthCheck probes one component.
type HealthCheck func(ctx context.Context) ComponentHealth

// ComponentHealth is one probe result.
type ComponentHealth struct {
	Name        string          `json:"name"`
	Status      ComponentStatus `json:"status"`
	Message     string          `json:"message,omitempty"`
	LastChecked time.Time       `json:"lastChecked"`
	Latency     time.Duration   `json:"latencyNs"`
}

// SystemHealth aggregates all probes; Status is the worst component status.
type SystemHealth struct {
	Status     ComponentStatus            `json:"status"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
	Uptime     string                     `json:"uptime"`
}

// HealthMonitor runs registered probes on demand or on an interval.
type HealthMonitor struct {
	mu        sync.RWMutex
	checks    map[string]HealthCheck
	results   map[string]ComponentHealth
	startTime time.Time
	interval  time.Duration
}

// NewHealthMonitor creates a monitor that Start refreshes every interval.
func NewHealthMonitor(interval time.Duration) *HealthMonitor {
	return &HealthMonitor{
		checks:    make(map[string]HealthCheck),
		results:   make(map[string]ComponentHealth),
		startTime: time.Now(),
		interval:  interval,
	}
}

// Register adds a named probe.
func (m *HealthMonitor) Register(name string, check HealthCheck) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = check
}

// Start refreshes probe results until ctx is done.
func (m *HealthMonitor) Start(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.runChecks(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.runChecks(ctx)
		}
	}
}

// Check runs every probe now and returns the aggregate.
func (m *HealthMonitor) Check(ctx context.Context) SystemHealth {
	m.runChecks(ctx)
	return m.snapshot()
}

// Component returns the latest result for name.
func (m *HealthMonitor) Component(name string) (ComponentHealth, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.results[name]
	return h, ok
}

func (m *HealthMonitor) runChecks(ctx context.Context) {
	m.mu.RLock()
	names := sortedKeys(m.checks)
	checks := make([]HealthCheck, len(names))
	for i, name := range names {
		checks[i] = m.checks[name]
	}
	m.mu.RUnlock()

	fresh := make(map[string]ComponentHealth, len(names))
	for i, name := range names {
		start := time.Now()
		h := checks[i](ctx)
		h.Name = name
		h.LastChecked = time.Now()
		h.Latency = time.Since(start)
		fresh[name] = h
	}

	m.mu.Lock()
	previous := m.results
	m.results = fresh
	m.mu.Unlock()

	for _, name := range names {
		cur := fresh[name]
		if prev, ok := previous[name]; ok && prev.Status == cur.Status {
			continue
		}
		ev := log.Info()
		if cur.Status != StatusHealthy {
			ev = log.Warn()
		}
		ev.Str("component", name).Str("status", string(cur.Status)).Str("message", cur.Message).
			Msg("observability: component status changed")
	}
}

func (m *HealthMonitor) snapshot() SystemHealth {
	m.mu.RLock()
	defer m.mu.RUnlock()

	worst := StatusHealthy
	components := make(map[string]ComponentHealth, len(m.results))
	for name, h := range m.results {
		components[name] = h
		if severity(h.Status) > severity(worst) {
			worst = h.Status
		}
	}
	return SystemHealth{
		Status:     worst,
		Components: components,
		Uptime:     time.Since(m.startTime).Round(time.Second).String(),
	}
}

func severity(s ComponentStatus) int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	case StatusUnhealthy:
		return 2
	default:
		return -1
	}
}
