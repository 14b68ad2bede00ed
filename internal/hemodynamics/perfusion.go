package hemodynamics

type perfusionRule struct {
	id          RuleID
	description string
	fires       func(obs PatientObservation, dv DerivedVitals, cut Cutoffs) bool
}

var perfusionRules = []perfusionRule{
	{RuleNarrowPulsePressure, "Proportional pulse pressure below cut-off", func(_ PatientObservation, dv DerivedVitals, cut Cutoffs) bool {
		return dv.ProportionalPulsePressure < cut.ProportionalPulsePressure
	}},
	{RuleColdExtremities, "Cool or diaphoretic extremities", func(o PatientObservation, _ DerivedVitals, _ Cutoffs) bool {
		return !o.Exam.ExtremityTemp.Warm()
	}},
	{RuleSlowCapillaryRefill, "Slow capillary refill", func(o PatientObservation, _ DerivedVitals, cut Cutoffs) bool {
		return o.Exam.CapillaryRefillSec > cut.CapillaryRefillSec
	}},
	{RuleThreadyPulses, "Thready distal pulses", func(o PatientObservation, _ DerivedVitals, _ Cutoffs) bool {
		return o.Exam.DistalPulses == PulseThready
	}},
	{RuleAlteredMentation, "Altered mental status", func(o PatientObservation, _ DerivedVitals, _ Cutoffs) bool {
		return !o.Exam.MentalStatus.Alert()
	}},
	{RuleShock, "Mean arterial pressure below shock cut-off", func(_ PatientObservation, dv DerivedVitals, cut Cutoffs) bool {
		return dv.MeanArterialPressure < cut.MeanArterialPressure
	}},
	{RuleLactate, "Serum lactate at or above cut-off", func(o PatientObservation, _ DerivedVitals, cut Cutoffs) bool {
		return o.adjunctsEnabled() && o.Adjuncts.Lactate != nil && *o.Adjuncts.Lactate >= cut.Lactate
	}},
}

func isPerfusionRule(id RuleID) bool {
	for _, r := range perfusionRules {
		if r.id == id {
			return true
		}
	}
	return false
}

// ScorePerfusion starts from the baseline cardiac index and subtracts the
// penalty of every perfusion rule that fires. The narrow pulse pressure and
// shock rules are reconciled by the tuning's overlap policy.
func (c *Classifier) ScorePerfusion(obs PatientObservation, dv DerivedVitals) (float64, []Contributor) {
	contribs := make([]Contributor, 0, 4)
	for _, r := range perfusionRules {
		p := c.tuning.Perfusion[r.id]
		if p == 0 || !r.fires(obs, dv, c.tuning.Cutoffs) {
			continue
		}
		contribs = append(contribs, Contributor{Rule: r.id, Axis: AxisPerfusion, Weight: -p})
	}
	if c.tuning.Overlap == OverlapStrongest {
		contribs = resolveOverlap(contribs)
	}

	score := c.tuning.BaselineCardiacIndex
	for _, ct := range contribs {
		score += ct.Weight
	}
	return score, contribs
}

// resolveOverlap keeps only the heavier of the narrow pulse pressure and
// shock penalties when both fired. Ties keep the shock penalty.
func resolveOverlap(contribs []Contributor) []Contributor {
	ppp, shock := -1, -1
	for i, ct := range contribs {
		switch ct.Rule {
		case RuleNarrowPulsePressure:
			ppp = i
		case RuleShock:
			shock = i
		}
	}
	if ppp < 0 || shock < 0 {
		return contribs
	}
	drop := ppp
	if contribs[ppp].Weight < contribs[shock].Weight {
		drop = shock
	}
	return append(contribs[:drop:drop], contribs[drop+1:]...)
}
