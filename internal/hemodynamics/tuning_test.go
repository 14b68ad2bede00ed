package hemodynamics

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTuning_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Tuning)
		wantErr bool
	}{
		{"default is valid", func(*Tuning) {}, false},
		{"additive overlap", func(tu *Tuning) { tu.Overlap = OverlapAdditive }, false},
		{"zero weight disables a rule", func(tu *Tuning) { tu.Congestion[RuleAscites] = 0 }, false},
		{"inverted wedge bounds", func(tu *Tuning) { tu.WedgeMin, tu.WedgeMax = 38, 5 }, true},
		{"zero floor", func(tu *Tuning) { tu.CardiacIndexFloor = 0 }, true},
		{"zero baseline cardiac index", func(tu *Tuning) { tu.BaselineCardiacIndex = 0 }, true},
		{"zero threshold", func(tu *Tuning) { tu.Thresholds.WedgePressure = 0 }, true},
		{"unknown overlap", func(tu *Tuning) { tu.Overlap = "sometimes" }, true},
		{"negative congestion weight", func(tu *Tuning) { tu.Congestion[RuleOrthopnea] = -1 }, true},
		{"positive gi losses", func(tu *Tuning) { tu.Congestion[RuleGILosses] = 1 }, true},
		{"negative perfusion penalty", func(tu *Tuning) { tu.Perfusion[RuleShock] = -1 }, true},
		{"perfusion rule in congestion table", func(tu *Tuning) { tu.Congestion[RuleShock] = 1 }, true},
		{"unknown perfusion rule", func(tu *Tuning) { tu.Perfusion["bradycardia"] = 1 }, true},
		{"unknown intervention", func(tu *Tuning) { tu.Interventions["prayer"] = Vector{} }, true},
		{"nan wedge bound", func(tu *Tuning) { tu.WedgeMax = math.NaN() }, true},
		{"infinite baseline", func(tu *Tuning) { tu.BaselineWedge = math.Inf(1) }, true},
		{"nan threshold", func(tu *Tuning) { tu.Thresholds.CardiacIndex = math.NaN() }, true},
		{"infinite cutoff", func(tu *Tuning) { tu.Cutoffs.Lactate = math.Inf(-1) }, true},
		{"infinite congestion weight", func(tu *Tuning) { tu.Congestion[RuleJVD] = math.Inf(1) }, true},
		{"nan perfusion penalty", func(tu *Tuning) { tu.Perfusion[RuleShock] = math.NaN() }, true},
		{"nan intervention vector", func(tu *Tuning) {
			tu.Interventions[InterventionDiuretic] = Vector{DeltaWedge: math.NaN()}
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tu := DefaultTuning()
			tt.mutate(&tu)
			err := tu.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTuning)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDefaultTuning_CoversEveryRule(t *testing.T) {
	tu := DefaultTuning()
	for _, r := range congestionRules {
		assert.Contains(t, tu.Congestion, r.id)
	}
	for _, r := range perfusionRules {
		assert.Contains(t, tu.Perfusion, r.id)
	}
	for _, k := range InterventionKinds {
		assert.Contains(t, tu.Interventions, k)
	}
	assert.Equal(t, DefaultShockPenalty, tu.Perfusion[RuleShock])
}

func TestTuningStore_LoadMissingReturnsDefault(t *testing.T) {
	store := NewTuningStore(t.TempDir())
	tu, err := store.LoadTuning("nonexistent")
	require.NoError(t, err)
	assert.Equal(t, DefaultTuning(), tu)
}

func TestTuningStore_SaveAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "profiles")
	store := NewTuningStore(dir)

	tu := DefaultTuning()
	tu.Overlap = OverlapAdditive
	tu.Congestion[RuleEdema] = 3
	tu.Interventions[InterventionIVFluids] = Vector{DeltaWedge: 5, DeltaCardiacIndex: 1}

	require.NoError(t, store.SaveTuning("icu", tu))
	got, err := store.LoadTuning("icu")
	require.NoError(t, err)
	assert.Equal(t, tu, got)

	names, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"icu"}, names)
}

func TestTuningStore_Rejects(t *testing.T) {
	store := NewTuningStore(t.TempDir())

	bad := DefaultTuning()
	bad.CardiacIndexFloor = -1
	assert.ErrorIs(t, store.SaveTuning("bad", bad), ErrInvalidTuning)

	_, err := store.LoadTuning("../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidTuning)
	assert.ErrorIs(t, store.SaveTuning("", DefaultTuning()), ErrInvalidTuning)
}

func TestParseTuning(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		isJSON  bool
		check   func(t *testing.T, tu Tuning)
		wantErr bool
	}{
		{
			name: "partial yaml overlays defaults",
			data: "congestion:\n  orthopnea: 5\noverlap: additive\n",
			check: func(t *testing.T, tu Tuning) {
				assert.Equal(t, 5.0, tu.Congestion[RuleOrthopnea])
				assert.Equal(t, 4.0, tu.Congestion[RuleRestDyspnea])
				assert.Equal(t, OverlapAdditive, tu.Overlap)
				assert.Equal(t, 12.0, tu.BaselineWedge)
			},
		},
		{
			name: "empty file is the default table",
			data: "",
			check: func(t *testing.T, tu Tuning) {
				assert.Equal(t, DefaultTuning(), tu)
			},
		},
		{
			name:   "json thresholds",
			data:   `{"thresholds":{"wedge_pressure":15,"cardiac_index":2.0}}`,
			isJSON: true,
			check: func(t *testing.T, tu Tuning) {
				assert.Equal(t, Thresholds{WedgePressure: 15, CardiacIndex: 2.0}, tu.Thresholds)
			},
		},
		{name: "unknown field", data: "baseline_wedgie: 3\n", wantErr: true},
		{name: "malformed yaml", data: "congestion: [\n", wantErr: true},
		{name: "invalid ordering", data: "congestion:\n  gi_losses: 2\n", wantErr: true},
		{name: "unknown json field", data: `{"nope":1}`, isJSON: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tu, err := ParseTuning([]byte(tt.data), tt.isJSON)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTuning)
				return
			}
			require.NoError(t, err)
			tt.check(t, tu)
		})
	}
}

func TestMarshalTuning_RoundTripsThroughFile(t *testing.T) {
	data, err := MarshalTuning(DefaultTuning())
	require.NoError(t, err)
	assert.Contains(t, string(data), "baseline_wedge: 12")

	path := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(path, data, 0644))
	tu, err := LoadTuningFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultTuning(), tu)
}
