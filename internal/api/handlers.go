package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ZanzyTHEbar/stevenson-profiler/internal/database"
	apperrors "github.com/ZanzyTHEbar/stevenson-profiler/internal/errors"
	"github.com/ZanzyTHEbar/stevenson-profiler/internal/hemodynamics"
	"github.com/ZanzyTHEbar/stevenson-profiler/internal/resilience"
	"github.com/ZanzyTHEbar/stevenson-profiler/internal/types"
)

// DefaultListLimit is used by GET /api/v1/evaluations without ?limit=
const DefaultListLimit = 50

// fail attaches err for ErrorHandler and counts client mistakes
func (s *Server) fail(c *gin.Context, err error) {
	appErr := apperrors.ToAppError(err)
	if appErr.Category == apperrors.CategoryValidation {
		s.opts.Metrics.IncrementInvalidInput()
	}
	_ = c.Error(appErr)
}

func (s *Server) bind(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		s.fail(c, apperrors.NewValidationError("Invalid request body", map[string]string{"body": err.Error()}))
		return false
	}
	return true
}

func (s *Server) handleEvaluate(c *gin.Context) {
	var req types.EvaluateRequest
	if !s.bind(c, &req) {
		return
	}

	cl := s.Classifier()
	start := time.Now()
	ev, err := cl.Evaluate(req.Observation)
	if err != nil {
		s.fail(c, err)
		return
	}
	duration := time.Since(start)

	resp := types.EvaluateResponse{Evaluation: ev, Display: types.NewDisplay(ev)}

	if len(req.Interventions) > 0 {
		proj, err := cl.ApplyIntervention(ev.Coordinate, req.Interventions)
		if err != nil {
			s.fail(c, err)
			return
		}
		resp.Projection = &proj
		s.opts.Metrics.RecordProjection(proj.Crossed())
	}

	s.opts.Metrics.RecordEvaluation(string(ev.Quadrant), duration)
	s.opts.Logger.EvaluationLogger(string(ev.Quadrant), ev.Coordinate.WedgePressure, ev.Coordinate.CardiacIndex,
		len(ev.Contributors), duration, false)

	if req.Record {
		// Each recorded response carries its own record ID
		c.Set("no_cache", true)
		if s.opts.EvaluationLog != nil {
			resp.RecordID = s.opts.EvaluationLog.Record(c.Request.Context(), "api", req.Observation, ev)
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleProject(c *gin.Context) {
	var req types.ProjectRequest
	if !s.bind(c, &req) {
		return
	}

	proj, err := s.Classifier().ApplyIntervention(req.Coordinate, req.Interventions)
	if err != nil {
		s.fail(c, err)
		return
	}

	applied := make([]string, len(proj.Applied))
	for i, k := range proj.Applied {
		applied[i] = string(k)
	}
	s.opts.Metrics.RecordProjection(proj.Crossed())
	s.opts.Logger.ProjectionLogger(string(proj.BaselineQuadrant), string(proj.Quadrant), applied, false)

	c.JSON(http.StatusOK, types.ProjectResponse{Projection: proj, Crossed: proj.Crossed()})
}

func (s *Server) handleClassify(c *gin.Context) {
	var coord hemodynamics.Coordinate
	if !s.bind(c, &coord) {
		return
	}
	if err := hemodynamics.ValidateCoordinate(coord); err != nil {
		s.fail(c, err)
		return
	}

	q := s.Classifier().Classify(coord)
	c.JSON(http.StatusOK, types.ClassifyResponse{
		Coordinate:  coord,
		Quadrant:    q,
		Label:       q.Label(),
		Description: q.Description(),
	})
}

func (s *Server) handleRules(c *gin.Context) {
	cl := s.Classifier()
	t := cl.Tuning()
	c.JSON(http.StatusOK, types.RulesResponse{
		Rules:         cl.Rules(),
		Interventions: t.Interventions,
		Thresholds:    t.Thresholds,
		Overlap:       t.Overlap,
		LegacyVitals:  cl.LegacyVitals(),
	})
}

func (s *Server) handleInterventions(c *gin.Context) {
	vectors := s.Classifier().Tuning().Interventions
	out := make([]gin.H, 0, len(hemodynamics.InterventionKinds))
	for _, k := range hemodynamics.InterventionKinds {
		out = append(out, gin.H{
			"kind":        k,
			"description": k.Description(),
			"vector":      vectors[k],
		})
	}
	c.JSON(http.StatusOK, gin.H{"interventions": out})
}

// evaluationLog returns the log or attaches a 503 when it is disabled
func (s *Server) evaluationLog(c *gin.Context) (*database.EvaluationLog, bool) {
	if s.opts.EvaluationLog == nil {
		_ = c.Error(apperrors.NewUnavailableError("Evaluation log is disabled", nil))
		return nil, false
	}
	return s.opts.EvaluationLog, true
}

func (s *Server) handleListEvaluations(c *gin.Context) {
	log, ok := s.evaluationLog(c)
	if !ok {
		return
	}

	limit := DefaultListLimit
	if raw := c.Query("limit"); raw != "" {
		l, err := strconv.Atoi(raw)
		if err != nil || l < 1 || l > database.MaxListLimit {
			s.fail(c, apperrors.NewValidationError("Invalid limit",
				map[string]string{"limit": "must be an integer between 1 and " + strconv.Itoa(database.MaxListLimit)}))
			return
		}
		limit = l
	}

	records, err := log.Repository().ListRecent(c.Request.Context(), limit)
	if err != nil {
		s.fail(c, apperrors.NewUnavailableError("Failed to read evaluation log", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"evaluations": records,
		"count":       len(records),
		"limit":       limit,
	})
}

func (s *Server) handleEvaluationSummary(c *gin.Context) {
	log, ok := s.evaluationLog(c)
	if !ok {
		return
	}

	counts, err := log.Repository().CountByQuadrant(c.Request.Context())
	if err != nil {
		s.fail(c, apperrors.NewUnavailableError("Failed to read evaluation log", err))
		return
	}

	summary := make(map[string]int64, len(hemodynamics.Quadrants))
	var total int64
	for _, q := range hemodynamics.Quadrants {
		summary[string(q)] = counts[string(q)]
		total += counts[string(q)]
	}

	c.JSON(http.StatusOK, gin.H{
		"counts": summary,
		"total":  total,
	})
}

func (s *Server) handleGetEvaluation(c *gin.Context) {
	log, ok := s.evaluationLog(c)
	if !ok {
		return
	}

	id := c.Param("id")
	rec, err := log.Repository().Get(c.Request.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		s.fail(c, apperrors.NewNotFoundError("evaluation", id))
		return
	}
	if err != nil {
		s.fail(c, apperrors.NewUnavailableError("Failed to read evaluation log", err))
		return
	}

	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleHealth(c *gin.Context) {
	resp := types.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   Version,
		Uptime:    time.Since(s.started).Round(time.Second).String(),
	}

	if hm := s.opts.Health; hm != nil {
		services := make(map[string]interface{})
		for name, h := range hm.GetAllServiceHealth() {
			services[name] = h
		}
		resp.Services = services
		// Optional dependencies never fail the health check itself
		if hm.OverallLevel() >= resilience.LevelCritical {
			resp.Status = "degraded"
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStats(c *gin.Context) {
	stats := gin.H{
		"metrics":     s.opts.Metrics.GetStats(),
		"quadrants":   s.opts.Metrics.GetQuadrantDistribution(),
		"rate_limits": s.opts.Metrics.GetRateLimitStats(),
		"timestamp":   time.Now().Format(time.RFC3339),
	}
	if s.opts.Cache != nil {
		stats["cache"] = s.opts.Cache.Stats()
	}
	if s.opts.Limiter != nil {
		stats["rate_limiter"] = s.opts.Limiter.GetStats()
	}
	if s.opts.Compression != nil {
		stats["compression"] = s.opts.Compression.GetStats()
	}
	if s.opts.EvaluationLog != nil {
		stats["evaluation_log"] = gin.H{
			"breaker": s.opts.EvaluationLog.Breaker().Stats(),
			"pool":    s.opts.EvaluationLog.Repository().PoolStats(),
		}
	}
	c.JSON(http.StatusOK, stats)
}
