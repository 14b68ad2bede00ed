package database

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/stevenson-profiler/internal/hemodynamics"
	"github.com/ZanzyTHEbar/stevenson-profiler/internal/resilience"
)

func setupRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := NewDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db)
}

func evaluate(t *testing.T, sys, dia float64, symptoms ...hemodynamics.Symptom) (hemodynamics.PatientObservation, hemodynamics.Evaluation) {
	t.Helper()
	obs := hemodynamics.PatientObservation{
		Vitals:   hemodynamics.Vitals{SystolicBP: sys, DiastolicBP: dia},
		Symptoms: symptoms,
	}
	ev, err := hemodynamics.NewDefaultClassifier().Evaluate(obs)
	require.NoError(t, err)
	return obs, ev
}

func TestRepository_AppendAndGet(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	obs, ev := evaluate(t, 120, 80, hemodynamics.SymptomOrthopnea)
	rec, err := NewEvaluationRecord("api", obs, ev)
	require.NoError(t, err)
	require.NoError(t, repo.Append(ctx, rec))

	got, err := repo.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "api", got.Source)
	assert.Equal(t, "A", got.Quadrant)
	assert.Equal(t, 15.0, got.WedgePressure)
	assert.Equal(t, 3.0, got.CongestionIndex)
	assert.WithinDuration(t, rec.CreatedAt, got.CreatedAt, time.Millisecond)

	var stored hemodynamics.Evaluation
	require.NoError(t, json.Unmarshal(got.Result, &stored))
	assert.Equal(t, ev.Quadrant, stored.Quadrant)
	assert.JSONEq(t, string(rec.Observation), string(got.Observation))
}

func TestRepository_GetMissing(t *testing.T) {
	repo := setupRepository(t)
	_, err := repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_AppendOnly(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	obs, ev := evaluate(t, 120, 80)
	rec, err := NewEvaluationRecord("api", obs, ev)
	require.NoError(t, err)
	require.NoError(t, repo.Append(ctx, rec))

	assert.Error(t, repo.Append(ctx, rec), "duplicate IDs are rejected")

	_, err = repo.db.ExecContext(ctx, `UPDATE evaluations SET quadrant = 'C' WHERE id = ?`, rec.ID)
	assert.Error(t, err)
}

func TestRepository_ListRecentAndCount(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()
	log := NewEvaluationLog(repo)

	cases := []struct {
		sys, dia float64
		symptoms []hemodynamics.Symptom
	}{
		{120, 80, nil},
		{70, 50, nil},
		{180, 60, []hemodynamics.Symptom{hemodynamics.SymptomOrthopnea, hemodynamics.SymptomRestDyspnea}},
		{120, 80, nil},
	}
	var ids []string
	for _, c := range cases {
		obs, ev := evaluate(t, c.sys, c.dia, c.symptoms...)
		id := log.Record(ctx, "cli", obs, ev)
		require.NotEmpty(t, id)
		ids = append(ids, id)
	}

	recent, err := repo.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, ids[3], recent[0].ID)
	assert.Equal(t, ids[2], recent[1].ID)

	all, err := repo.ListRecent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	counts, err := repo.CountByQuadrant(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"A": 2, "L": 1, "B": 1}, counts)
}

func TestDB_PoolStats(t *testing.T) {
	db, err := NewDB(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	stats := db.GetPoolStats()
	assert.Equal(t, 4, stats["max_open_connections"])

	_, err = db.GetPreparedStatement("drop_everything")
	assert.Error(t, err)
}

func TestEvaluationLog_FailureIsReportedNotReturned(t *testing.T) {
	db, err := NewDB(t.TempDir())
	require.NoError(t, err)

	hm := resilience.NewHealthMonitor(resilience.DefaultHealthConfig())
	hm.RegisterService(ServiceName, nil)
	log := NewEvaluationLog(NewRepository(db)).WithHealth(hm)
	ctx := context.Background()

	obs, ev := evaluate(t, 120, 80)
	require.NotEmpty(t, log.Record(ctx, "api", obs, ev))
	require.NoError(t, log.Ping(ctx))

	require.NoError(t, db.Close())
	assert.Empty(t, log.Record(ctx, "api", obs, ev))

	health, ok := hm.GetServiceHealth(ServiceName)
	require.True(t, ok)
	assert.Equal(t, int64(2), health.TotalChecks)
	assert.Equal(t, int64(1), health.ErrorCount)
	assert.Equal(t, 1, log.Breaker().Failures())
}
