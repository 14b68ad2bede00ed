package resilience

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// DegradationLevel represents the current degradation state of a dependency
type DegradationLevel int

const (
	LevelNormal DegradationLevel = iota
	LevelDegraded
	LevelCritical
	LevelEmergency
)

func (l DegradationLevel) String() string {
	switch l {
	case LevelNormal:
		return "normal"
	case LevelDegraded:
		return "degraded"
	case LevelCritical:
		return "critical"
	case LevelEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}

func (l DegradationLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// HealthConfig holds configuration for dependency health tracking
type HealthConfig struct {
	CheckInterval     time.Duration `json:"check_interval"`
	CheckTimeout      time.Duration `json:"check_timeout"`
	DegradedThreshold float64       `json:"degraded_threshold"` // error rate 0.0-1.0
	CriticalThreshold float64       `json:"critical_threshold"` // error rate 0.0-1.0
	EmergencyFailures int           `json:"emergency_failures"` // consecutive failures
}

// DefaultHealthConfig returns sensible defaults
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		CheckInterval:     30 * time.Second,
		CheckTimeout:      5 * time.Second,
		DegradedThreshold: 0.1,
		CriticalThreshold: 0.25,
		EmergencyFailures: 3,
	}
}

// ServiceHealth is the health of one optional dependency
type ServiceHealth struct {
	ServiceName         string           `json:"service_name"`
	Level               DegradationLevel `json:"level"`
	ErrorRate           float64          `json:"error_rate"`
	TotalChecks         int64            `json:"total_checks"`
	ErrorCount          int64            `json:"error_count"`
	ConsecutiveFailures int              `json:"consecutive_failures"`
	LastError           string           `json:"last_error,omitempty"`
	LastErrorTime       *time.Time       `json:"last_error_time,omitempty"`
	StatusMessage       string           `json:"status_message"`
}

// HealthCheckFunc represents a function that checks service health
type HealthCheckFunc func(ctx context.Context) error

// HealthMonitor tracks the optional dependencies of the server: the
// evaluation log and Redis. The classifier itself has no dependencies and
// is always available.
type HealthMonitor struct {
	config       HealthConfig
	mu           sync.RWMutex
	services     map[string]*ServiceHealth
	healthChecks map[string]HealthCheckFunc
}

func NewHealthMonitor(config HealthConfig) *HealthMonitor {
	return &HealthMonitor{
		config:       config,
		services:     make(map[string]*ServiceHealth),
		healthChecks: make(map[string]HealthCheckFunc),
	}
}

// RegisterService registers a service with an optional health check
func (hm *HealthMonitor) RegisterService(serviceName string, healthCheck HealthCheckFunc) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	hm.services[serviceName] = &ServiceHealth{
		ServiceName:   serviceName,
		Level:         LevelNormal,
		StatusMessage: "Service is healthy",
	}
	if healthCheck != nil {
		hm.healthChecks[serviceName] = healthCheck
	}

	slog.Info("Registered service for health monitoring", "service", serviceName)
}

// Record records the outcome of one call or check. Unknown services are
// ignored.
func (hm *HealthMonitor) Record(serviceName string, err error) {
	hm.mu.Lock()
	defer hm.mu.Unlock()

	service, exists := hm.services[serviceName]
	if !exists {
		return
	}

	service.TotalChecks++
	if err != nil {
		now := time.Now()
		service.ErrorCount++
		service.ConsecutiveFailures++
		service.LastError = err.Error()
		service.LastErrorTime = &now
	} else {
		service.ConsecutiveFailures = 0
	}
	service.ErrorRate = float64(service.ErrorCount) / float64(service.TotalChecks)

	hm.updateLevel(service)
}

func (hm *HealthMonitor) updateLevel(service *ServiceHealth) {
	oldLevel := service.Level

	switch {
	case service.ConsecutiveFailures >= hm.config.EmergencyFailures:
		service.Level = LevelEmergency
		service.StatusMessage = "Service is unreachable"
	case service.ConsecutiveFailures > 0 && service.ErrorRate >= hm.config.CriticalThreshold:
		service.Level = LevelCritical
		service.StatusMessage = "Service is failing - elevated error rate"
	case service.ConsecutiveFailures > 0 && service.ErrorRate >= hm.config.DegradedThreshold:
		service.Level = LevelDegraded
		service.StatusMessage = "Service is degraded - moderate error rate"
	default:
		service.Level = LevelNormal
		service.StatusMessage = "Service is healthy"
	}

	if oldLevel != service.Level {
		slog.Warn("Service degradation level changed",
			"service", service.ServiceName,
			"old_level", oldLevel.String(),
			"new_level", service.Level.String(),
			"error_rate", service.ErrorRate,
			"consecutive_failures", service.ConsecutiveFailures)
	}
}

// GetServiceHealth returns a copy of one service's health
func (hm *HealthMonitor) GetServiceHealth(serviceName string) (ServiceHealth, bool) {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	service, exists := hm.services[serviceName]
	if !exists {
		return ServiceHealth{}, false
	}
	return *service, true
}

// GetAllServiceHealth returns copies of every registered service's health
func (hm *HealthMonitor) GetAllServiceHealth() map[string]ServiceHealth {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	result := make(map[string]ServiceHealth, len(hm.services))
	for name, service := range hm.services {
		result[name] = *service
	}
	return result
}

// IsServiceAvailable reports whether a registered service is below the
// emergency level
func (hm *HealthMonitor) IsServiceAvailable(serviceName string) bool {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	service, exists := hm.services[serviceName]
	return exists && service.Level != LevelEmergency
}

// OverallLevel is the worst level across all services
func (hm *HealthMonitor) OverallLevel() DegradationLevel {
	hm.mu.RLock()
	defer hm.mu.RUnlock()

	level := LevelNormal
	for _, service := range hm.services {
		if service.Level > level {
			level = service.Level
		}
	}
	return level
}

// Start runs the registered health checks every CheckInterval until ctx is
// done. It blocks.
func (hm *HealthMonitor) Start(ctx context.Context) {
	ticker := time.NewTicker(hm.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hm.RunChecks(ctx)
		}
	}
}

// RunChecks runs every registered health check once and waits for them
func (hm *HealthMonitor) RunChecks(ctx context.Context) {
	hm.mu.RLock()
	names := make([]string, 0, len(hm.healthChecks))
	for name := range hm.healthChecks {
		names = append(names, name)
	}
	sort.Strings(names)
	checks := make([]HealthCheckFunc, len(names))
	for i, name := range names {
		checks[i] = hm.healthChecks[name]
	}
	hm.mu.RUnlock()

	var wg sync.WaitGroup
	for i := range names {
		wg.Add(1)
		go func(name string, check HealthCheckFunc) {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, hm.config.CheckTimeout)
			defer cancel()
			hm.Record(name, check(checkCtx))
		}(names[i], checks[i])
	}
	wg.Wait()
}
