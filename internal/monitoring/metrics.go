package monitoring

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds in-process counters reported by /stats
type Metrics struct {
	RequestCount        int64
	ErrorCount          int64
	CacheHits           int64
	CacheMisses         int64
	Evaluations         int64
	Projections         int64
	InvalidInputs       int64
	TuningReloads       int64
	AverageResponseTime int64 // in nanoseconds
	StartTime           time.Time

	ResponseTimes      []time.Duration
	ResponseTimesMutex sync.RWMutex

	RequestCountByStatus map[int]int64
	StatusMutex          sync.RWMutex

	EvaluationsByQuadrant map[string]int64
	QuadrantMutex         sync.RWMutex

	RateLimitIPBlocks      int64
	RateLimitRedisErrors   int64
	RateLimitFallbackCount int64

	collector *Collector
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		StartTime:             time.Now(),
		ResponseTimes:         make([]time.Duration, 0, 1000),
		RequestCountByStatus:  make(map[int]int64),
		EvaluationsByQuadrant: make(map[string]int64),
	}
}

// WithCollector mirrors every recorded event into c
func (m *Metrics) WithCollector(c *Collector) *Metrics {
	m.collector = c
	return m
}

func (m *Metrics) IncrementRequest() {
	atomic.AddInt64(&m.RequestCount, 1)
}

func (m *Metrics) IncrementError() {
	atomic.AddInt64(&m.ErrorCount, 1)
}

func (m *Metrics) IncrementCacheHit() {
	atomic.AddInt64(&m.CacheHits, 1)
	if m.collector != nil {
		m.collector.CacheRequests.WithLabelValues("hit").Inc()
	}
}

func (m *Metrics) IncrementCacheMiss() {
	atomic.AddInt64(&m.CacheMisses, 1)
	if m.collector != nil {
		m.collector.CacheRequests.WithLabelValues("miss").Inc()
	}
}

// RecordEvaluation counts one successful classification by quadrant
func (m *Metrics) RecordEvaluation(quadrant string, duration time.Duration) {
	atomic.AddInt64(&m.Evaluations, 1)

	m.QuadrantMutex.Lock()
	m.EvaluationsByQuadrant[quadrant]++
	m.QuadrantMutex.Unlock()

	if m.collector != nil {
		m.collector.Evaluations.WithLabelValues(quadrant).Inc()
		m.collector.EvaluationDuration.Observe(duration.Seconds())
	}
}

// RecordProjection counts one intervention projection
func (m *Metrics) RecordProjection(crossed bool) {
	atomic.AddInt64(&m.Projections, 1)
	if m.collector != nil {
		label := "false"
		if crossed {
			label = "true"
		}
		m.collector.Projections.WithLabelValues(label).Inc()
	}
}

// IncrementInvalidInput counts a rejected observation
func (m *Metrics) IncrementInvalidInput() {
	atomic.AddInt64(&m.InvalidInputs, 1)
	if m.collector != nil {
		m.collector.InvalidInputs.Inc()
	}
}

// RecordTuningReload counts a tuning reload attempt
func (m *Metrics) RecordTuningReload(success bool) {
	if success {
		atomic.AddInt64(&m.TuningReloads, 1)
	}
	if m.collector != nil {
		result := "success"
		if !success {
			result = "failure"
		}
		m.collector.TuningReloads.WithLabelValues(result).Inc()
	}
}

// RecordResponseTime records response time for averaging and percentiles
func (m *Metrics) RecordResponseTime(duration time.Duration) {
	current := atomic.LoadInt64(&m.AverageResponseTime)
	atomic.StoreInt64(&m.AverageResponseTime, (current+duration.Nanoseconds())/2)

	// Keep the last 1000 samples
	m.ResponseTimesMutex.Lock()
	m.ResponseTimes = append(m.ResponseTimes, duration)
	if len(m.ResponseTimes) > 1000 {
		m.ResponseTimes = m.ResponseTimes[1:]
	}
	m.ResponseTimesMutex.Unlock()
}

// RecordRequestByStatus records request count by HTTP status code
func (m *Metrics) RecordRequestByStatus(statusCode int) {
	m.StatusMutex.Lock()
	defer m.StatusMutex.Unlock()
	m.RequestCountByStatus[statusCode]++
}

// RecordRequest reports a finished request to the collector
func (m *Metrics) RecordRequest(method, route string, statusCode int, duration time.Duration) {
	if m.collector != nil {
		m.collector.observeRequest(method, route, statusCode, duration)
	}
}

// GetPercentileResponseTime calculates percentile response time
func (m *Metrics) GetPercentileResponseTime(percentile float64) time.Duration {
	m.ResponseTimesMutex.RLock()
	defer m.ResponseTimesMutex.RUnlock()

	if len(m.ResponseTimes) == 0 {
		return 0
	}

	times := make([]time.Duration, len(m.ResponseTimes))
	copy(times, m.ResponseTimes)
	sort.Slice(times, func(i, j int) bool {
		return times[i] < times[j]
	})

	index := int(float64(len(times)-1) * percentile / 100.0)
	if index >= len(times) {
		index = len(times) - 1
	}
	return times[index]
}

func (m *Metrics) GetStatusCodeDistribution() map[int]int64 {
	m.StatusMutex.RLock()
	defer m.StatusMutex.RUnlock()

	distribution := make(map[int]int64, len(m.RequestCountByStatus))
	for code, count := range m.RequestCountByStatus {
		distribution[code] = count
	}
	return distribution
}

func (m *Metrics) GetQuadrantDistribution() map[string]int64 {
	m.QuadrantMutex.RLock()
	defer m.QuadrantMutex.RUnlock()

	distribution := make(map[string]int64, len(m.EvaluationsByQuadrant))
	for q, count := range m.EvaluationsByQuadrant {
		distribution[q] = count
	}
	return distribution
}

// GetStats returns current metrics statistics
func (m *Metrics) GetStats() map[string]interface{} {
	requests := atomic.LoadInt64(&m.RequestCount)
	errors := atomic.LoadInt64(&m.ErrorCount)
	cacheHits := atomic.LoadInt64(&m.CacheHits)
	cacheMisses := atomic.LoadInt64(&m.CacheMisses)
	avgResponseTime := atomic.LoadInt64(&m.AverageResponseTime)

	errorRate := float64(0)
	if requests > 0 {
		errorRate = float64(errors) / float64(requests) * 100
	}

	cacheHitRate := float64(0)
	if total := cacheHits + cacheMisses; total > 0 {
		cacheHitRate = float64(cacheHits) / float64(total) * 100
	}

	return map[string]interface{}{
		"uptime_seconds":         time.Since(m.StartTime).Seconds(),
		"total_requests":         requests,
		"error_count":            errors,
		"error_rate_percent":     errorRate,
		"cache_hits":             cacheHits,
		"cache_misses":           cacheMisses,
		"cache_hit_rate_percent": cacheHitRate,
		"evaluations":            atomic.LoadInt64(&m.Evaluations),
		"projections":            atomic.LoadInt64(&m.Projections),
		"invalid_inputs":         atomic.LoadInt64(&m.InvalidInputs),
		"tuning_reloads":         atomic.LoadInt64(&m.TuningReloads),
		"avg_response_time_ms":   float64(avgResponseTime) / 1000000,
		"start_time":             m.StartTime.Format(time.RFC3339),

		"p50_response_time_ms":     float64(m.GetPercentileResponseTime(50)) / 1000000,
		"p95_response_time_ms":     float64(m.GetPercentileResponseTime(95)) / 1000000,
		"p99_response_time_ms":     float64(m.GetPercentileResponseTime(99)) / 1000000,
		"status_code_distribution": m.GetStatusCodeDistribution(),
		"quadrant_distribution":    m.GetQuadrantDistribution(),
	}
}

// Reset resets all metrics (useful for testing)
func (m *Metrics) Reset() {
	for _, p := range []*int64{
		&m.RequestCount, &m.ErrorCount, &m.CacheHits, &m.CacheMisses,
		&m.Evaluations, &m.Projections, &m.InvalidInputs, &m.TuningReloads,
		&m.AverageResponseTime, &m.RateLimitIPBlocks, &m.RateLimitRedisErrors,
		&m.RateLimitFallbackCount,
	} {
		atomic.StoreInt64(p, 0)
	}

	m.ResponseTimesMutex.Lock()
	m.ResponseTimes = m.ResponseTimes[:0]
	m.ResponseTimesMutex.Unlock()

	m.StatusMutex.Lock()
	m.RequestCountByStatus = make(map[int]int64)
	m.StatusMutex.Unlock()

	m.QuadrantMutex.Lock()
	m.EvaluationsByQuadrant = make(map[string]int64)
	m.QuadrantMutex.Unlock()

	m.StartTime = time.Now()
}

func (m *Metrics) IncrementRateLimitIPBlock() {
	atomic.AddInt64(&m.RateLimitIPBlocks, 1)
	if m.collector != nil {
		m.collector.RateLimitBlocks.Inc()
	}
}

func (m *Metrics) IncrementRateLimitRedisError() {
	atomic.AddInt64(&m.RateLimitRedisErrors, 1)
}

func (m *Metrics) IncrementRateLimitFallback() {
	atomic.AddInt64(&m.RateLimitFallbackCount, 1)
}

func (m *Metrics) GetRateLimitStats() map[string]interface{} {
	return map[string]interface{}{
		"ip_blocks":      atomic.LoadInt64(&m.RateLimitIPBlocks),
		"redis_errors":   atomic.LoadInt64(&m.RateLimitRedisErrors),
		"fallback_count": atomic.LoadInt64(&m.RateLimitFallbackCount),
	}
}
