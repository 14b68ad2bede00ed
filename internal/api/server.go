package api

import (
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/stevenson-profiler/internal/cache"
	"github.com/ZanzyTHEbar/stevenson-profiler/internal/database"
	apperrors "github.com/ZanzyTHEbar/stevenson-profiler/internal/errors"
	"github.com/ZanzyTHEbar/stevenson-profiler/internal/hemodynamics"
	"github.com/ZanzyTHEbar/stevenson-profiler/internal/middleware"
	"github.com/ZanzyTHEbar/stevenson-profiler/internal/monitoring"
	"github.com/ZanzyTHEbar/stevenson-profiler/internal/ratelimit"
	"github.com/ZanzyTHEbar/stevenson-profiler/internal/resilience"
	"github.com/ZanzyTHEbar/stevenson-profiler/internal/security"
)

// Version is reported by /health
const Version = "1.0.0"

// Paths whose responses depend only on the request body and the tuning
const (
	PathEvaluate = "/api/v1/evaluate"
	PathProject  = "/api/v1/project"
	PathClassify = "/api/v1/classify"
)

// CachedPaths lists the routes served through the response cache
var CachedPaths = []string{PathEvaluate, PathProject, PathClassify}

// Options carries the server's collaborators. Metrics and Logger are
// required; everything else may be nil to disable that feature.
type Options struct {
	Metrics       *monitoring.Metrics
	Logger        *monitoring.Logger
	Collector     *monitoring.Collector
	Cache         *cache.Cache
	Limiter       *ratelimit.RateLimiter
	Security      *security.SecurityMiddleware
	Compression   *middleware.CompressionMiddleware
	EvaluationLog *database.EvaluationLog
	Health        *resilience.HealthMonitor
}

// Server serves the classifier over HTTP. The active classifier can be
// swapped while requests are in flight.
type Server struct {
	classifier atomic.Pointer[hemodynamics.Classifier]
	opts       Options
	started    time.Time
}

func NewServer(c *hemodynamics.Classifier, opts Options) *Server {
	if opts.Metrics == nil {
		opts.Metrics = monitoring.NewMetrics()
	}
	if opts.Logger == nil {
		opts.Logger = monitoring.NewLogger()
	}
	s := &Server{opts: opts, started: time.Now()}
	s.classifier.Store(c)
	return s
}

// Classifier returns the classifier serving new requests
func (s *Server) Classifier() *hemodynamics.Classifier {
	return s.classifier.Load()
}

// ReloadTuning replaces the active classifier with one built from t,
// keeping the current vitals mode. Cached responses are dropped. On error
// the previous classifier stays active.
func (s *Server) ReloadTuning(t hemodynamics.Tuning) error {
	var opts []hemodynamics.Option
	if s.Classifier().LegacyVitals() {
		opts = append(opts, hemodynamics.WithLegacyVitals())
	}

	next, err := hemodynamics.NewClassifier(t, opts...)
	if err != nil {
		s.opts.Metrics.RecordTuningReload(false)
		s.opts.Logger.SystemLogger("tuning_reload_rejected", err.Error())
		return err
	}

	s.classifier.Store(next)
	if s.opts.Cache != nil {
		s.opts.Cache.Clear()
	}
	s.opts.Metrics.RecordTuningReload(true)
	s.opts.Logger.SystemLogger("tuning_reloaded", "classifier replaced, response cache cleared")
	return nil
}

// Router builds the gin engine with the full middleware stack
func (s *Server) Router() *gin.Engine {
	r := gin.New()

	r.Use(monitoring.RequestIDMiddleware())
	r.Use(monitoring.MonitoringMiddleware(s.opts.Metrics, s.opts.Logger))
	r.Use(monitoring.SecurityMonitoringMiddleware(s.opts.Logger))
	if s.opts.Compression != nil {
		r.Use(s.opts.Compression.Handler())
	}

	r.Use(apperrors.ErrorHandler())
	r.Use(apperrors.RecoveryHandler())

	if sm := s.opts.Security; sm != nil {
		r.Use(sm.SecurityHeaders)
		r.Use(sm.CORS())
		r.Use(sm.RequestTimeout)
		r.Use(sm.LimitBody)
		r.Use(sm.ValidateContentType)
	}

	r.GET("/health", s.handleHealth)
	r.GET("/stats", s.handleStats)
	if s.opts.Collector != nil {
		r.GET("/metrics", gin.WrapH(s.opts.Collector.Handler()))
	}

	v1 := r.Group("/api/v1")
	if s.opts.Limiter != nil {
		v1.Use(s.opts.Limiter.IPRateLimitMiddleware())
		v1.GET("/rate-limit", s.opts.Limiter.HandleRateLimitStatus())
	}
	if s.opts.Cache != nil {
		v1.Use(s.opts.Cache.Middleware(s.opts.Metrics, s.opts.Logger))
	}

	v1.POST("/evaluate", s.handleEvaluate)
	v1.POST("/project", s.handleProject)
	v1.POST("/classify", s.handleClassify)
	v1.GET("/rules", s.handleRules)
	v1.GET("/interventions", s.handleInterventions)

	v1.GET("/evaluations", s.handleListEvaluations)
	v1.GET("/evaluations/summary", s.handleEvaluationSummary)
	v1.GET("/evaluations/:id", s.handleGetEvaluation)

	return r
}
