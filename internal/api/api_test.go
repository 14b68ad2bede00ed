package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/stevenson-profiler/internal/cache"
	"github.com/ZanzyTHEbar/stevenson-profiler/internal/database"
	"github.com/ZanzyTHEbar/stevenson-profiler/internal/hemodynamics"
	"github.com/ZanzyTHEbar/stevenson-profiler/internal/monitoring"
	"github.com/ZanzyTHEbar/stevenson-profiler/internal/ratelimit"
	"github.com/ZanzyTHEbar/stevenson-profiler/internal/security"
	"github.com/ZanzyTHEbar/stevenson-profiler/internal/types"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func restingObservation() hemodynamics.PatientObservation {
	return hemodynamics.PatientObservation{
		Vitals: hemodynamics.Vitals{SystolicBP: 120, DiastolicBP: 80, HeartRate: 72},
		Exam: hemodynamics.Exam{
			CapillaryRefillSec: 2,
		},
	}
}

func congestedObservation() hemodynamics.PatientObservation {
	obs := restingObservation()
	obs.Vitals.SystolicBP, obs.Vitals.DiastolicBP = 180, 60
	obs.Symptoms = []hemodynamics.Symptom{hemodynamics.SymptomOrthopnea, hemodynamics.SymptomRestDyspnea}
	obs.Exam.JVD = hemodynamics.JVDPresent
	obs.Exam.HeartSounds = hemodynamics.HeartSoundS3
	obs.Exam.Lungs = hemodynamics.LungCrackles
	obs.Exam.Edema = hemodynamics.EdemaAnkle
	return obs
}

type testServer struct {
	server *Server
	router *gin.Engine
	cache  *cache.Cache
}

func setupServer(t *testing.T, withLog bool) *testServer {
	t.Helper()

	c := cache.NewCache(time.Minute, CachedPaths...)
	t.Cleanup(func() { c.Close() })

	metrics := monitoring.NewMetrics()
	limiter := ratelimit.NewRateLimiter(nil, ratelimit.DefaultConfig(), metrics)
	t.Cleanup(func() { limiter.Close() })

	opts := Options{
		Metrics:  metrics,
		Logger:   monitoring.NewLoggerTo(io.Discard, slog.LevelError),
		Cache:    c,
		Limiter:  limiter,
		Security: security.NewSecurityMiddleware(security.DefaultSecurityConfig()),
	}
	if withLog {
		db, err := database.NewDB(t.TempDir())
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })
		opts.EvaluationLog = database.NewEvaluationLog(database.NewRepository(db))
	}

	s := NewServer(hemodynamics.NewDefaultClassifier(), opts)
	return &testServer{server: s, router: s.Router(), cache: c}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.RemoteAddr = "10.0.0.1:1234"

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func TestEvaluateEndpoint(t *testing.T) {
	ts := setupServer(t, false)

	tests := []struct {
		name     string
		obs      hemodynamics.PatientObservation
		coord    hemodynamics.Coordinate
		quadrant hemodynamics.Quadrant
	}{
		{
			name:     "resting patient",
			obs:      restingObservation(),
			coord:    hemodynamics.Coordinate{WedgePressure: 12, CardiacIndex: 2.8},
			quadrant: hemodynamics.QuadrantA,
		},
		{
			name:     "congested patient",
			obs:      congestedObservation(),
			coord:    hemodynamics.Coordinate{WedgePressure: 32, CardiacIndex: 2.8},
			quadrant: hemodynamics.QuadrantB,
		},
		{
			name: "shock",
			obs: func() hemodynamics.PatientObservation {
				obs := restingObservation()
				obs.Vitals.SystolicBP, obs.Vitals.DiastolicBP = 70, 50
				return obs
			}(),
			coord:    hemodynamics.Coordinate{WedgePressure: 12, CardiacIndex: 1.8},
			quadrant: hemodynamics.QuadrantL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, PathEvaluate, types.EvaluateRequest{Observation: tt.obs})
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			var resp types.EvaluateResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.quadrant, resp.Evaluation.Quadrant)
			assert.InDelta(t, tt.coord.WedgePressure, resp.Evaluation.Coordinate.WedgePressure, 1e-9)
			assert.InDelta(t, tt.coord.CardiacIndex, resp.Evaluation.Coordinate.CardiacIndex, 1e-9)
			assert.Equal(t, tt.quadrant.Label(), resp.Display.QuadrantLabel)
			assert.Nil(t, resp.Projection)
			assert.Empty(t, resp.RecordID)
		})
	}
}

func TestEvaluateEndpoint_WithInterventions(t *testing.T) {
	ts := setupServer(t, false)

	w := ts.do(t, http.MethodPost, PathEvaluate, types.EvaluateRequest{
		Observation:   congestedObservation(),
		Interventions: []hemodynamics.InterventionKind{
			hemodynamics.InterventionDiuretic,
			hemodynamics.InterventionVasodilator,
			hemodynamics.InterventionDiuretic,
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp types.EvaluateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Projection)
	assert.Equal(t, hemodynamics.QuadrantB, resp.Projection.BaselineQuadrant)
	assert.InDelta(t, 18.0, resp.Projection.Projected.WedgePressure, 1e-9)
	assert.InDelta(t, 3.4, resp.Projection.Projected.CardiacIndex, 1e-9)
	assert.Equal(t, hemodynamics.QuadrantA, resp.Projection.Quadrant)
	assert.Equal(t, []hemodynamics.InterventionKind{hemodynamics.InterventionDiuretic, hemodynamics.InterventionVasodilator},
		resp.Projection.Applied)
}

func TestEvaluateEndpoint_InvalidRequests(t *testing.T) {
	ts := setupServer(t, false)

	badBP := restingObservation()
	badBP.Vitals.DiastolicBP = 130

	badEnum := restingObservation()
	badEnum.Exam.Lungs = "gurgling"

	tests := []struct {
		name  string
		body  interface{}
		field string
	}{
		{name: "diastolic above systolic", body: types.EvaluateRequest{Observation: badBP}, field: "vitals.diastolic_bp"},
		{name: "unknown exam value", body: types.EvaluateRequest{Observation: badEnum}, field: "exam.lungs"},
		{
			name: "unknown intervention",
			body: types.EvaluateRequest{
				Observation:   restingObservation(),
				Interventions: []hemodynamics.InterventionKind{"bloodletting"},
			},
		},
		{name: "malformed body", body: "not an object", field: "body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, PathEvaluate, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var resp map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "VALIDATION_ERROR", resp["code"])
			if tt.field != "" {
				fields, ok := resp["fields"].(map[string]interface{})
				require.True(t, ok, w.Body.String())
				assert.Contains(t, fields, tt.field)
			}
		})
	}

	assert.Equal(t, 0, ts.cache.Size())
}

func TestEvaluateEndpoint_RequiresJSON(t *testing.T) {
	ts := setupServer(t, false)

	req := httptest.NewRequest(http.MethodPost, PathEvaluate, bytes.NewBufferString("x"))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestEvaluateEndpoint_Cache(t *testing.T) {
	ts := setupServer(t, false)
	body := types.EvaluateRequest{Observation: congestedObservation()}

	first := ts.do(t, http.MethodPost, PathEvaluate, body)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := ts.do(t, http.MethodPost, PathEvaluate, body)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
}

func TestReloadTuning(t *testing.T) {
	ts := setupServer(t, false)
	body := types.EvaluateRequest{Observation: congestedObservation()}

	w := ts.do(t, http.MethodPost, PathEvaluate, body)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, ts.cache.Size())

	tuning := hemodynamics.DefaultTuning()
	tuning.Thresholds.WedgePressure = 40
	require.NoError(t, ts.server.ReloadTuning(tuning))
	assert.Equal(t, 0, ts.cache.Size())

	w = ts.do(t, http.MethodPost, PathEvaluate, body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	var resp types.EvaluateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, hemodynamics.QuadrantA, resp.Evaluation.Quadrant)

	bad := hemodynamics.DefaultTuning()
	bad.WedgeMin = 100
	assert.ErrorIs(t, ts.server.ReloadTuning(bad), hemodynamics.ErrInvalidTuning)
	assert.Equal(t, 40.0, ts.server.Classifier().Tuning().Thresholds.WedgePressure)
}

func TestProjectEndpoint(t *testing.T) {
	ts := setupServer(t, false)

	tests := []struct {
		name          string
		interventions []hemodynamics.InterventionKind
		wedge         float64
		ci            float64
		quadrant      hemodynamics.Quadrant
		crossed       bool
	}{
		{
			name:          "single diuretic",
			interventions: []hemodynamics.InterventionKind{hemodynamics.InterventionDiuretic},
			wedge:         22,
			ci:            2.9,
			quadrant:      hemodynamics.QuadrantB,
		},
		{
			name:          "vasodilator",
			interventions: []hemodynamics.InterventionKind{hemodynamics.InterventionVasodilator},
			wedge:         24,
			ci:            3.3,
			quadrant:      hemodynamics.QuadrantB,
		},
		{
			name:          "oxygen does not move the point",
			interventions: []hemodynamics.InterventionKind{hemodynamics.InterventionOxygen},
			wedge:         30,
			ci:            2.8,
			quadrant:      hemodynamics.QuadrantB,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, PathProject, types.ProjectRequest{
				Coordinate:    hemodynamics.Coordinate{WedgePressure: 30, CardiacIndex: 2.8},
				Interventions: tt.interventions,
			})
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			var resp types.ProjectResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.InDelta(t, tt.wedge, resp.Projection.Projected.WedgePressure, 1e-9)
			assert.InDelta(t, tt.ci, resp.Projection.Projected.CardiacIndex, 1e-9)
			assert.Equal(t, tt.quadrant, resp.Projection.Quadrant)
			assert.Equal(t, tt.crossed, resp.Crossed)
		})
	}
}

func TestProjectEndpoint_Invalid(t *testing.T) {
	ts := setupServer(t, false)

	w := ts.do(t, http.MethodPost, PathProject, types.ProjectRequest{
		Coordinate:    hemodynamics.Coordinate{WedgePressure: 30, CardiacIndex: -1},
		Interventions: []hemodynamics.InterventionKind{hemodynamics.InterventionDiuretic},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClassifyEndpoint(t *testing.T) {
	ts := setupServer(t, false)

	tests := []struct {
		coord    hemodynamics.Coordinate
		quadrant hemodynamics.Quadrant
	}{
		{hemodynamics.Coordinate{WedgePressure: 12, CardiacIndex: 2.8}, hemodynamics.QuadrantA},
		{hemodynamics.Coordinate{WedgePressure: 18, CardiacIndex: 2.2}, hemodynamics.QuadrantA},
		{hemodynamics.Coordinate{WedgePressure: 18.1, CardiacIndex: 2.2}, hemodynamics.QuadrantB},
		{hemodynamics.Coordinate{WedgePressure: 25, CardiacIndex: 1.5}, hemodynamics.QuadrantC},
		{hemodynamics.Coordinate{WedgePressure: 10, CardiacIndex: 2.19}, hemodynamics.QuadrantL},
	}

	for _, tt := range tests {
		t.Run(string(tt.quadrant), func(t *testing.T) {
			w := ts.do(t, http.MethodPost, PathClassify, tt.coord)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			var resp types.ClassifyResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.quadrant, resp.Quadrant)
			assert.Equal(t, tt.quadrant.Description(), resp.Description)
		})
	}
}

func TestRulesEndpoint(t *testing.T) {
	ts := setupServer(t, false)

	w := ts.do(t, http.MethodGet, "/api/v1/rules", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp types.RulesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Rules)
	assert.Equal(t, 18.0, resp.Thresholds.WedgePressure)
	assert.Equal(t, 2.2, resp.Thresholds.CardiacIndex)
	assert.Equal(t, hemodynamics.OverlapStrongest, resp.Overlap)
	assert.Len(t, resp.Interventions, len(hemodynamics.InterventionKinds))
	assert.False(t, resp.LegacyVitals)
}

func TestInterventionsEndpoint(t *testing.T) {
	ts := setupServer(t, false)

	w := ts.do(t, http.MethodGet, "/api/v1/interventions", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Interventions []struct {
			Kind        hemodynamics.InterventionKind `json:"kind"`
			Description string                        `json:"description"`
			Vector      hemodynamics.Vector           `json:"vector"`
		} `json:"interventions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Interventions, len(hemodynamics.InterventionKinds))
	assert.Equal(t, hemodynamics.InterventionDiuretic, resp.Interventions[0].Kind)
	assert.Equal(t, -8.0, resp.Interventions[0].Vector.DeltaWedge)
}

func TestEvaluationLogEndpoints(t *testing.T) {
	ts := setupServer(t, true)

	w := ts.do(t, http.MethodPost, PathEvaluate, types.EvaluateRequest{Observation: congestedObservation(), Record: true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var first types.EvaluateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	require.NotEmpty(t, first.RecordID)

	// Recorded responses are never served from the cache
	w = ts.do(t, http.MethodPost, PathEvaluate, types.EvaluateRequest{Observation: congestedObservation(), Record: true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	var second types.EvaluateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.NotEqual(t, first.RecordID, second.RecordID)

	w = ts.do(t, http.MethodPost, PathEvaluate, types.EvaluateRequest{Observation: restingObservation(), Record: true})
	require.Equal(t, http.StatusOK, w.Code)

	t.Run("get", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/api/v1/evaluations/"+first.RecordID, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var rec database.EvaluationRecord
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
		assert.Equal(t, first.RecordID, rec.ID)
		assert.Equal(t, "B", rec.Quadrant)
		assert.Equal(t, "api", rec.Source)
	})

	t.Run("get missing", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/api/v1/evaluations/does-not-exist", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("list", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/api/v1/evaluations?limit=2", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Evaluations []database.EvaluationRecord `json:"evaluations"`
			Count       int                         `json:"count"`
			Limit       int                         `json:"limit"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 2, resp.Count)
		assert.Equal(t, 2, resp.Limit)
	})

	t.Run("list rejects bad limit", func(t *testing.T) {
		for _, limit := range []string{"0", "-1", "abc", "100000"} {
			w := ts.do(t, http.MethodGet, "/api/v1/evaluations?limit="+limit, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code, limit)
		}
	})

	t.Run("summary", func(t *testing.T) {
		w := ts.do(t, http.MethodGet, "/api/v1/evaluations/summary", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Counts map[string]int64 `json:"counts"`
			Total  int64            `json:"total"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, map[string]int64{"A": 1, "B": 2, "C": 0, "L": 0}, resp.Counts)
		assert.Equal(t, int64(3), resp.Total)
	})
}

func TestEvaluationLogEndpoints_Disabled(t *testing.T) {
	ts := setupServer(t, false)

	for _, path := range []string{"/api/v1/evaluations", "/api/v1/evaluations/summary", "/api/v1/evaluations/abc"} {
		w := ts.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
	}

	// Recording without a log still evaluates
	w := ts.do(t, http.MethodPost, PathEvaluate, types.EvaluateRequest{Observation: restingObservation(), Record: true})
	require.Equal(t, http.StatusOK, w.Code)
	var resp types.EvaluateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.RecordID)
}

func TestHealthEndpoint(t *testing.T) {
	ts := setupServer(t, false)

	tests := []struct {
		name           string
		method         string
		expectedStatus int
	}{
		{name: "GET /health returns OK", method: http.MethodGet, expectedStatus: http.StatusOK},
		{name: "DELETE /health is not routed", method: http.MethodDelete, expectedStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, tt.method, "/health", nil)
			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus != http.StatusOK {
				return
			}

			var resp types.HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "ok", resp.Status)
			assert.Equal(t, Version, resp.Version)
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		})
	}
}

func TestStatsEndpoint(t *testing.T) {
	ts := setupServer(t, true)

	ts.do(t, http.MethodPost, PathEvaluate, types.EvaluateRequest{Observation: congestedObservation()})

	w := ts.do(t, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	for _, key := range []string{"metrics", "quadrants", "cache", "rate_limiter", "evaluation_log"} {
		assert.Contains(t, resp, key)
	}
}

func TestRateLimitHeaders(t *testing.T) {
	ts := setupServer(t, false)

	w := ts.do(t, http.MethodGet, "/api/v1/rules", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
}

func TestSecurityHeaders(t *testing.T) {
	ts := setupServer(t, false)

	w := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}
