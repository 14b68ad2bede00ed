package hemodynamics

type congestionRule struct {
	id          RuleID
	description string
	fires       func(obs PatientObservation, cut Cutoffs) bool
}

// congestionRules is evaluated in order; weights come from Tuning.Congestion.
// Rules are independent, so order only affects how contributors are listed.
var congestionRules = []congestionRule{
	{RuleOrthopnea, "Orthopnea", func(o PatientObservation, _ Cutoffs) bool {
		return o.HasSymptom(SymptomOrthopnea)
	}},
	{RuleRestDyspnea, "Dyspnea at rest", func(o PatientObservation, _ Cutoffs) bool {
		for _, s := range o.Symptoms {
			if s.IsRestDyspnea() {
				return true
			}
		}
		return false
	}},
	{RulePND, "Paroxysmal nocturnal dyspnea", func(o PatientObservation, _ Cutoffs) bool {
		return o.HasSymptom(SymptomPND)
	}},
	{RuleJVD, "Jugular venous distension", func(o PatientObservation, _ Cutoffs) bool {
		return o.Exam.JVD == JVDPresent
	}},
	{RuleHepatojugularReflux, "Hepatojugular reflux", func(o PatientObservation, _ Cutoffs) bool {
		return o.Exam.HepatojugularReflux
	}},
	{RuleCrackles, "Crackles or rales", func(o PatientObservation, _ Cutoffs) bool {
		return o.Exam.Lungs == LungCrackles
	}},
	{RuleEdema, "Peripheral edema", func(o PatientObservation, _ Cutoffs) bool {
		return o.Exam.Edema.Present()
	}},
	{RuleAscites, "Ascites", func(o PatientObservation, _ Cutoffs) bool {
		return o.Exam.Ascites
	}},
	{RuleHepatomegaly, "Hepatomegaly", func(o PatientObservation, _ Cutoffs) bool {
		return o.Exam.Visceromegaly.HepaticCongestion()
	}},
	{RuleS3, "S3 gallop", func(o PatientObservation, _ Cutoffs) bool {
		return o.Exam.HeartSounds == HeartSoundS3
	}},
	{RuleCXRMildCongestion, "Chest X-ray: mild or basal congestion", func(o PatientObservation, _ Cutoffs) bool {
		return chestXRayIs(o, ChestXRayMildCongestion)
	}},
	{RuleCXRAlveolarEdema, "Chest X-ray: alveolar edema", func(o PatientObservation, _ Cutoffs) bool {
		return chestXRayIs(o, ChestXRayAlveolarEdema)
	}},
	{RuleNatriureticPeptide, "Natriuretic peptide above threshold", peptideElevated},
	{RuleGILosses, "GI fluid losses", func(o PatientObservation, _ Cutoffs) bool {
		return o.HasSymptom(SymptomGILosses)
	}},
}

func isCongestionRule(id RuleID) bool {
	for _, r := range congestionRules {
		if r.id == id {
			return true
		}
	}
	return false
}

func chestXRayIs(o PatientObservation, want ChestXRay) bool {
	return o.adjunctsEnabled() && o.Adjuncts.ChestXRay != nil && *o.Adjuncts.ChestXRay == want
}

// peptideElevated applies the type- and age-specific thresholds. NT-proBNP
// without a known age never fires.
func peptideElevated(o PatientObservation, cut Cutoffs) bool {
	if !o.adjunctsEnabled() || o.Adjuncts.Peptide == nil {
		return false
	}
	p := o.Adjuncts.Peptide
	switch p.Type {
	case PeptideBNP:
		return p.Value > cut.BNP
	case PeptideNTproBNP:
		age, ok := observationAge(o)
		if !ok {
			return false
		}
		switch {
		case age < 50:
			return p.Value > cut.NTproBNPUnder50
		case age <= 75:
			return p.Value > cut.NTproBNP50To75
		default:
			return p.Value > cut.NTproBNPOver75
		}
	}
	return false
}

// observationAge prefers the adjunct age and falls back to the case context.
func observationAge(o PatientObservation) (float64, bool) {
	if o.Adjuncts != nil && o.Adjuncts.AgeYears != nil && *o.Adjuncts.AgeYears > 0 {
		return *o.Adjuncts.AgeYears, true
	}
	if o.Context != nil && o.Context.AgeYears > 0 {
		return float64(o.Context.AgeYears), true
	}
	return 0, false
}

// ScoreCongestion sums the weight of every congestion rule that fires and
// returns the rules that contributed.
func (c *Classifier) ScoreCongestion(obs PatientObservation) (float64, []Contributor) {
	score := 0.0
	contribs := make([]Contributor, 0, 8)
	for _, r := range congestionRules {
		w := c.tuning.Congestion[r.id]
		if w == 0 || !r.fires(obs, c.tuning.Cutoffs) {
			continue
		}
		score += w
		contribs = append(contribs, Contributor{Rule: r.id, Axis: AxisCongestion, Weight: w})
	}
	return score, contribs
}
