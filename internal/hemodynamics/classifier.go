package hemodynamics

import (
	"fmt"
	"math"
)

// Classifier maps observations to quadrants using one immutable Tuning.
// It is safe for concurrent use; swap tuning by building a new Classifier.
type Classifier struct {
	tuning       Tuning
	legacyVitals bool
}

type Option func(*Classifier)

// WithLegacyVitals derives vitals without rejecting implausible blood
// pressures. Validation of every other field still applies.
func WithLegacyVitals() Option {
	return func(c *Classifier) { c.legacyVitals = true }
}

// NewClassifier validates t and returns a classifier that owns a copy of it.
func NewClassifier(t Tuning, opts ...Option) (*Classifier, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	c := &Classifier{tuning: t.Clone()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewDefaultClassifier uses DefaultTuning, which always validates.
func NewDefaultClassifier(opts ...Option) *Classifier {
	c, err := NewClassifier(DefaultTuning(), opts...)
	if err != nil {
		panic(fmt.Sprintf("default tuning is invalid: %v", err))
	}
	return c
}

// Tuning returns a copy of the active parameters.
func (c *Classifier) Tuning() Tuning { return c.tuning.Clone() }

func (c *Classifier) LegacyVitals() bool { return c.legacyVitals }

// Classify places coord against the classifier's thresholds.
func (c *Classifier) Classify(coord Coordinate) Quadrant {
	return c.tuning.Thresholds.Classify(coord)
}

// Coordinate maps raw scores onto the chart: wedge is the baseline plus the
// congestion score within [WedgeMin, WedgeMax], cardiac index is the
// perfusion score floored at CardiacIndexFloor.
func (c *Classifier) Coordinate(s Score) Coordinate {
	return c.bound(Coordinate{
		WedgePressure: c.tuning.BaselineWedge + s.CongestionIndex,
		CardiacIndex:  s.PerfusionIndex,
	})
}

func (c *Classifier) bound(coord Coordinate) Coordinate {
	return Coordinate{
		WedgePressure: clip(coord.WedgePressure, c.tuning.WedgeMin, c.tuning.WedgeMax),
		CardiacIndex:  math.Max(c.tuning.CardiacIndexFloor, coord.CardiacIndex),
	}
}

// Evaluate validates obs, derives vitals, scores both axes and classifies
// the resulting coordinate. Invalid input yields an error wrapping
// ErrInvalidInput and no partial result.
func (c *Classifier) Evaluate(obs PatientObservation) (Evaluation, error) {
	if err := validate(obs, c.legacyVitals); err != nil {
		return Evaluation{}, err
	}
	obs = Normalize(obs)

	var dv DerivedVitals
	if c.legacyVitals {
		dv = DeriveVitalsLegacy(obs.Vitals.SystolicBP, obs.Vitals.DiastolicBP)
	} else {
		var err error
		if dv, err = DeriveVitals(obs.Vitals.SystolicBP, obs.Vitals.DiastolicBP); err != nil {
			return Evaluation{}, err
		}
	}
	dv = withCaseDerivations(dv, obs)

	congestion, cc := c.ScoreCongestion(obs)
	perfusion, pc := c.ScorePerfusion(obs, dv)
	score := Score{CongestionIndex: congestion, PerfusionIndex: perfusion}
	coord := c.Coordinate(score)

	return Evaluation{
		DerivedVitals: dv,
		Score:         score,
		Coordinate:    coord,
		Quadrant:      c.Classify(coord),
		Contributors:  append(cc, pc...),
	}, nil
}

// RuleInfo describes one rule row with its active weight.
type RuleInfo struct {
	ID          RuleID  `json:"id"`
	Axis        Axis    `json:"axis"`
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
	Adjunct     bool    `json:"adjunct,omitempty"`
}

// Rules lists both rule tables in evaluation order. Perfusion weights are
// reported as signed deltas.
func (c *Classifier) Rules() []RuleInfo {
	out := make([]RuleInfo, 0, len(congestionRules)+len(perfusionRules))
	for _, r := range congestionRules {
		out = append(out, RuleInfo{
			ID:          r.id,
			Axis:        AxisCongestion,
			Description: r.description,
			Weight:      c.tuning.Congestion[r.id],
			Adjunct:     adjunctRules[r.id],
		})
	}
	for _, r := range perfusionRules {
		w := 0.0
		if p := c.tuning.Perfusion[r.id]; p != 0 {
			w = -p
		}
		out = append(out, RuleInfo{
			ID:          r.id,
			Axis:        AxisPerfusion,
			Description: r.description,
			Weight:      w,
			Adjunct:     adjunctRules[r.id],
		})
	}
	return out
}

var adjunctRules = map[RuleID]bool{
	RuleCXRMildCongestion:  true,
	RuleCXRAlveolarEdema:   true,
	RuleNatriureticPeptide: true,
	RuleLactate:            true,
}
