package database

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/ZanzyTHEbar/stevenson-profiler/internal/hemodynamics"
	"github.com/ZanzyTHEbar/stevenson-profiler/internal/resilience"
)

// ServiceName identifies the evaluation log in health reports
const ServiceName = "evaluation_log"

// EvaluationLog records evaluations on behalf of the API and CLI. Writes go
// through a circuit breaker and retry SQLite busy errors.
type EvaluationLog struct {
	repo    *Repository
	breaker *resilience.CircuitBreaker
	health  *resilience.HealthMonitor
	retry   resilience.RetryConfig
}

func NewEvaluationLog(repo *Repository) *EvaluationLog {
	retry := resilience.DefaultRetryConfig()
	retry.InitialDelay = 20 * time.Millisecond
	retry.Retryable = isBusy

	return &EvaluationLog{
		repo:    repo,
		breaker: resilience.NewCircuitBreaker(ServiceName, resilience.CircuitBreakerConfig{FailureThreshold: 5, RecoveryTimeout: 30 * time.Second}),
		retry:   retry,
	}
}

// WithHealth reports every write outcome to hm
func (l *EvaluationLog) WithHealth(hm *resilience.HealthMonitor) *EvaluationLog {
	l.health = hm
	return l
}

func (l *EvaluationLog) Repository() *Repository { return l.repo }

func (l *EvaluationLog) Breaker() *resilience.CircuitBreaker { return l.breaker }

// Ping checks the underlying database
func (l *EvaluationLog) Ping(ctx context.Context) error {
	return l.repo.db.PingContext(ctx)
}

// Record appends ev and returns the new record ID. A failure is logged and
// reported as an empty ID; it never fails the evaluation itself.
func (l *EvaluationLog) Record(ctx context.Context, source string, obs hemodynamics.PatientObservation, ev hemodynamics.Evaluation) string {
	rec, err := NewEvaluationRecord(source, obs, ev)
	if err != nil {
		slog.Warn("Failed to build evaluation record", "error", err)
		return ""
	}

	err = l.breaker.Call(func() error {
		return resilience.RetryWithConfig(ctx, l.retry, func() error {
			return l.repo.Append(ctx, rec)
		})
	})
	if l.health != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		l.health.Record(ServiceName, err)
	}
	if err != nil {
		slog.Warn("Failed to append evaluation record", "error", err, "quadrant", rec.Quadrant)
		return ""
	}
	return rec.ID
}

func isBusy(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}
