package hemodynamics

import (
	"fmt"
	"maps"
)

// RuleID names one row of the congestion or perfusion rule table.
type RuleID string

const (
	RuleOrthopnea           RuleID = "orthopnea"
	RuleRestDyspnea         RuleID = "rest_dyspnea"
	RulePND                 RuleID = "paroxysmal_nocturnal_dyspnea"
	RuleJVD                 RuleID = "jvd"
	RuleHepatojugularReflux RuleID = "hepatojugular_reflux"
	RuleCrackles            RuleID = "crackles"
	RuleEdema               RuleID = "edema"
	RuleAscites             RuleID = "ascites"
	RuleHepatomegaly        RuleID = "hepatomegaly"
	RuleS3                  RuleID = "s3_gallop"
	RuleCXRMildCongestion   RuleID = "cxr_mild_congestion"
	RuleCXRAlveolarEdema    RuleID = "cxr_alveolar_edema"
	RuleNatriureticPeptide  RuleID = "natriuretic_peptide"
	RuleGILosses            RuleID = "gi_losses"

	RuleNarrowPulsePressure RuleID = "narrow_pulse_pressure"
	RuleColdExtremities     RuleID = "cold_extremities"
	RuleSlowCapillaryRefill RuleID = "slow_capillary_refill"
	RuleThreadyPulses       RuleID = "thready_pulses"
	RuleAlteredMentation    RuleID = "altered_mentation"
	RuleShock               RuleID = "shock"
	RuleLactate             RuleID = "lactate"
)

// DefaultShockPenalty is the perfusion penalty for a mean arterial pressure
// below the shock cut-off.
const DefaultShockPenalty = 1.0

// OverlapPolicy decides what happens when the narrow pulse pressure rule and
// the shock rule fire together.
type OverlapPolicy string

const (
	// OverlapStrongest applies only the larger of the two penalties.
	OverlapStrongest OverlapPolicy = "strongest"
	// OverlapAdditive applies both penalties.
	OverlapAdditive  OverlapPolicy = "additive"
)

func (p OverlapPolicy) Valid() bool { return p == OverlapStrongest || p == OverlapAdditive }

// Thresholds split the chart into quadrants.
type Thresholds struct {
	WedgePressure float64 `json:"wedge_pressure" yaml:"wedge_pressure"`
	CardiacIndex  float64 `json:"cardiac_index" yaml:"cardiac_index"`
}

// Cutoffs are the numeric predicates used by the rule tables.
type Cutoffs struct {
	ProportionalPulsePressure float64 `json:"proportional_pulse_pressure" yaml:"proportional_pulse_pressure"`
	MeanArterialPressure      float64 `json:"mean_arterial_pressure" yaml:"mean_arterial_pressure"`
	CapillaryRefillSec        float64 `json:"capillary_refill_sec" yaml:"capillary_refill_sec"`
	Lactate                   float64 `json:"lactate" yaml:"lactate"`
	BNP                       float64 `json:"bnp" yaml:"bnp"`
	NTproBNPUnder50           float64 `json:"nt_probnp_under_50" yaml:"nt_probnp_under_50"`
	NTproBNP50To75            float64 `json:"nt_probnp_50_to_75" yaml:"nt_probnp_50_to_75"`
	NTproBNPOver75            float64 `json:"nt_probnp_over_75" yaml:"nt_probnp_over_75"`
}

// Tuning is the complete, replaceable parameter set of the classifier.
// Perfusion entries are penalty magnitudes and are subtracted.
type Tuning struct {
	BaselineWedge        float64                     `json:"baseline_wedge" yaml:"baseline_wedge"`
	BaselineCardiacIndex float64                     `json:"baseline_cardiac_index" yaml:"baseline_cardiac_index"`
	WedgeMin             float64                     `json:"wedge_min" yaml:"wedge_min"`
	WedgeMax             float64                     `json:"wedge_max" yaml:"wedge_max"`
	CardiacIndexFloor    float64                     `json:"cardiac_index_floor" yaml:"cardiac_index_floor"`
	Thresholds           Thresholds                  `json:"thresholds" yaml:"thresholds"`
	Cutoffs              Cutoffs                     `json:"cutoffs" yaml:"cutoffs"`
	Overlap              OverlapPolicy               `json:"overlap" yaml:"overlap"`
	Congestion           map[RuleID]float64          `json:"congestion" yaml:"congestion"`
	Perfusion            map[RuleID]float64          `json:"perfusion" yaml:"perfusion"`
	Interventions        map[InterventionKind]Vector `json:"interventions" yaml:"interventions"`
}

// DefaultTuning returns the canonical rule table. Every call returns fresh
// maps, so callers may modify the result.
func DefaultTuning() Tuning {
	return Tuning{
		BaselineWedge:        12,
		BaselineCardiacIndex: 2.8,
		WedgeMin:             5,
		WedgeMax:             38,
		CardiacIndexFloor:    1.0,
		Thresholds:           Thresholds{WedgePressure: 18, CardiacIndex: 2.2},
		Cutoffs: Cutoffs{
			ProportionalPulsePressure: 25,
			MeanArterialPressure:      65,
			CapillaryRefillSec:        3,
			Lactate:                   2.0,
			BNP:                       400,
			NTproBNPUnder50:           450,
			NTproBNP50To75:            900,
			NTproBNPOver75:            1800,
		},
		Overlap: OverlapStrongest,
		Congestion: map[RuleID]float64{
			RuleOrthopnea:           3,
			RuleRestDyspnea:         4,
			RulePND:                 3,
			RuleJVD:                 4,
			RuleHepatojugularReflux: 2,
			RuleCrackles:            3,
			RuleEdema:               2,
			RuleAscites:             2,
			RuleHepatomegaly:        2,
			RuleS3:                  4,
			RuleCXRMildCongestion:   2,
			RuleCXRAlveolarEdema:    5,
			RuleNatriureticPeptide:  3,
			RuleGILosses:            -3,
		},
		Perfusion: map[RuleID]float64{
			RuleNarrowPulsePressure: 0.6,
			RuleColdExtremities:     0.6,
			RuleSlowCapillaryRefill: 0.4,
			RuleThreadyPulses:       0.5,
			RuleAlteredMentation:    0.5,
			RuleShock:               DefaultShockPenalty,
			RuleLactate:             0.8,
		},
		Interventions: map[InterventionKind]Vector{
			InterventionDiuretic:    {DeltaWedge: -8, DeltaCardiacIndex: 0.1},
			InterventionVasodilator: {DeltaWedge: -6, DeltaCardiacIndex: 0.5},
			InterventionInotrope:    {DeltaWedge: -2, DeltaCardiacIndex: 1.2},
			InterventionVasopressor: {DeltaWedge: 2, DeltaCardiacIndex: 0.2},
			InterventionOxygen:      {DeltaWedge: 0, DeltaCardiacIndex: 0},
			InterventionIVFluids:    {DeltaWedge: 4, DeltaCardiacIndex: 1.5},
		},
	}
}

// Clone returns a deep copy.
func (t Tuning) Clone() Tuning {
	out := t
	out.Congestion = maps.Clone(t.Congestion)
	out.Perfusion = maps.Clone(t.Perfusion)
	out.Interventions = maps.Clone(t.Interventions)
	return out
}

// Validate enforces the ordering the monotonicity guarantees depend on:
// congestion findings push wedge up, GI losses push it down, and every
// perfusion rule is a penalty.
func (t Tuning) Validate() error {
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"baseline_wedge", t.BaselineWedge},
		{"baseline_cardiac_index", t.BaselineCardiacIndex},
		{"wedge_min", t.WedgeMin},
		{"wedge_max", t.WedgeMax},
		{"cardiac_index_floor", t.CardiacIndexFloor},
		{"thresholds.wedge_pressure", t.Thresholds.WedgePressure},
		{"thresholds.cardiac_index", t.Thresholds.CardiacIndex},
		{"cutoffs.proportional_pulse_pressure", t.Cutoffs.ProportionalPulsePressure},
		{"cutoffs.mean_arterial_pressure", t.Cutoffs.MeanArterialPressure},
		{"cutoffs.capillary_refill_sec", t.Cutoffs.CapillaryRefillSec},
		{"cutoffs.lactate", t.Cutoffs.Lactate},
		{"cutoffs.bnp", t.Cutoffs.BNP},
		{"cutoffs.nt_probnp_under_50", t.Cutoffs.NTproBNPUnder50},
		{"cutoffs.nt_probnp_50_to_75", t.Cutoffs.NTproBNP50To75},
		{"cutoffs.nt_probnp_over_75", t.Cutoffs.NTproBNPOver75},
	} {
		if !finite(f.value) {
			return fmt.Errorf("%w: %s must be a finite number", ErrInvalidTuning, f.name)
		}
	}
	if t.WedgeMin >= t.WedgeMax {
		return fmt.Errorf("%w: wedge_min %.1f must be below wedge_max %.1f", ErrInvalidTuning, t.WedgeMin, t.WedgeMax)
	}
	if t.CardiacIndexFloor <= 0 {
		return fmt.Errorf("%w: cardiac_index_floor must be positive", ErrInvalidTuning)
	}
	if t.BaselineCardiacIndex <= 0 {
		return fmt.Errorf("%w: baseline_cardiac_index must be positive", ErrInvalidTuning)
	}
	if t.Thresholds.WedgePressure <= 0 || t.Thresholds.CardiacIndex <= 0 {
		return fmt.Errorf("%w: thresholds must be positive", ErrInvalidTuning)
	}
	if !t.Overlap.Valid() {
		return fmt.Errorf("%w: unknown overlap policy %q", ErrInvalidTuning, t.Overlap)
	}

	for id, w := range t.Congestion {
		if !isCongestionRule(id) {
			return fmt.Errorf("%w: unknown congestion rule %q", ErrInvalidTuning, id)
		}
		if !finite(w) {
			return fmt.Errorf("%w: %s weight must be a finite number", ErrInvalidTuning, id)
		}
		if id == RuleGILosses && w > 0 {
			return fmt.Errorf("%w: %s weight must not be positive", ErrInvalidTuning, id)
		}
		if id != RuleGILosses && w < 0 {
			return fmt.Errorf("%w: %s weight must not be negative", ErrInvalidTuning, id)
		}
	}
	for id, p := range t.Perfusion {
		if !isPerfusionRule(id) {
			return fmt.Errorf("%w: unknown perfusion rule %q", ErrInvalidTuning, id)
		}
		if !finite(p) || p < 0 {
			return fmt.Errorf("%w: %s penalty must be a finite non-negative number", ErrInvalidTuning, id)
		}
	}
	for kind, v := range t.Interventions {
		if !kind.Valid() {
			return fmt.Errorf("%w: unknown intervention %q", ErrInvalidTuning, kind)
		}
		if !finite(v.DeltaWedge) || !finite(v.DeltaCardiacIndex) {
			return fmt.Errorf("%w: %s vector must be finite", ErrInvalidTuning, kind)
		}
	}
	return nil
}
