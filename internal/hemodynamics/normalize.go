package hemodynamics

import "fmt"

// Normalize returns a cleaned copy of obs: duplicate symptoms collapse to the
// first occurrence and unset exam enums take their resting default. The
// caller's slices are never modified.
func Normalize(obs PatientObservation) PatientObservation {
	if len(obs.Symptoms) > 0 {
		seen := make(map[Symptom]bool, len(obs.Symptoms))
		symptoms := make([]Symptom, 0, len(obs.Symptoms))
		for _, s := range obs.Symptoms {
			if seen[s] {
				continue
			}
			seen[s] = true
			symptoms = append(symptoms, s)
		}
		obs.Symptoms = symptoms
	}

	e := &obs.Exam
	if e.JVD == "" {
		e.JVD = JVDAbsent
	}
	if e.HeartSounds == "" {
		e.HeartSounds = HeartSoundNormal
	}
	if e.Lungs == "" {
		e.Lungs = LungClear
	}
	if e.Edema == "" {
		e.Edema = EdemaAbsent
	}
	if e.Visceromegaly == "" {
		e.Visceromegaly = VisceromegalyAbsent
	}
	if e.DistalPulses == "" {
		e.DistalPulses = PulseNormal
	}
	if e.ExtremityTemp == "" {
		e.ExtremityTemp = ExtremityWarm
	}
	if e.MentalStatus == "" {
		e.MentalStatus = MentalAlert
	}
	return obs
}

// Validate checks every field of obs against its closed set or plausible
// range and reports all violations at once. Blood pressures are checked with
// the same rules as DeriveVitals.
func Validate(obs PatientObservation) error {
	return validate(obs, false)
}

func validate(obs PatientObservation, legacyVitals bool) error {
	var errs ValidationErrors
	add := func(field, reason string) {
		errs = append(errs, &ValidationError{Field: field, Reason: reason})
	}
	// number reports whether v is finite and records a violation otherwise.
	number := func(field string, v float64) bool {
		if !finite(v) {
			add(field, "must be a finite number")
			return false
		}
		return true
	}

	v := obs.Vitals
	if !legacyVitals {
		if _, err := DeriveVitals(v.SystolicBP, v.DiastolicBP); err != nil {
			errs = append(errs, err.(*ValidationError))
		}
	} else {
		number("vitals.systolic_bp", v.SystolicBP)
		number("vitals.diastolic_bp", v.DiastolicBP)
	}
	for _, f := range []struct {
		field string
		value float64
	}{
		{"vitals.heart_rate", v.HeartRate},
		{"vitals.resp_rate", v.RespRate},
		{"exam.capillary_refill_sec", obs.Exam.CapillaryRefillSec},
	} {
		if number(f.field, f.value) && f.value < 0 {
			add(f.field, "must not be negative")
		}
	}
	if number("vitals.oxygen_saturation", v.OxygenSaturation) && (v.OxygenSaturation < 0 || v.OxygenSaturation > 100) {
		add("vitals.oxygen_saturation", "must be between 0 and 100")
	}
	if number("vitals.temperature_c", v.TemperatureC) && v.TemperatureC != 0 && (v.TemperatureC < 25 || v.TemperatureC > 45) {
		add("vitals.temperature_c", "must be between 25 and 45")
	}

	for i, s := range obs.Symptoms {
		if !s.Valid() {
			add(fmt.Sprintf("symptoms[%d]", i), fmt.Sprintf("unknown symptom %q", s))
		}
	}

	e := obs.Exam
	enums := []struct {
		field string
		ok    bool
		value string
	}{
		{"exam.jvd", e.JVD.Valid(), string(e.JVD)},
		{"exam.heart_sounds", e.HeartSounds.Valid(), string(e.HeartSounds)},
		{"exam.lungs", e.Lungs.Valid(), string(e.Lungs)},
		{"exam.edema", e.Edema.Valid(), string(e.Edema)},
		{"exam.visceromegaly", e.Visceromegaly.Valid(), string(e.Visceromegaly)},
		{"exam.distal_pulses", e.DistalPulses.Valid(), string(e.DistalPulses)},
		{"exam.extremity_temp", e.ExtremityTemp.Valid(), string(e.ExtremityTemp)},
		{"exam.mental_status", e.MentalStatus.Valid(), string(e.MentalStatus)},
	}
	for _, en := range enums {
		if !en.ok {
			add(en.field, fmt.Sprintf("unknown value %q", en.value))
		}
	}
	if h := e.JVDColumnHeightCm; h != nil && number("exam.jvd_column_height_cm", *h) && *h < 0 {
		add("exam.jvd_column_height_cm", "must not be negative")
	}

	if a := obs.Adjuncts; a != nil {
		if ef := a.EjectionFraction; ef != nil && number("adjuncts.ejection_fraction", *ef) && (*ef < 0 || *ef > 100) {
			add("adjuncts.ejection_fraction", "must be between 0 and 100")
		}
		if a.Lactate != nil && number("adjuncts.lactate", *a.Lactate) && *a.Lactate < 0 {
			add("adjuncts.lactate", "must not be negative")
		}
		if a.ChestXRay != nil && !a.ChestXRay.Valid() {
			add("adjuncts.chest_xray", fmt.Sprintf("unknown value %q", *a.ChestXRay))
		}
		if p := a.Peptide; p != nil {
			if !p.Type.Valid() {
				add("adjuncts.peptide.type", fmt.Sprintf("unknown value %q", p.Type))
			}
			if number("adjuncts.peptide.value", p.Value) && p.Value < 0 {
				add("adjuncts.peptide.value", "must not be negative")
			}
		}
		if age := a.AgeYears; age != nil && number("adjuncts.age_years", *age) && (*age < 0 || *age > 130) {
			add("adjuncts.age_years", "must be between 0 and 130")
		}
	}

	if c := obs.Context; c != nil {
		if !c.Residence.Valid() {
			add("context.residence", fmt.Sprintf("unknown value %q", c.Residence))
		}
		if !c.Rhythm.Valid() {
			add("context.rhythm", fmt.Sprintf("unknown value %q", c.Rhythm))
		}
		weightOK := number("context.weight_kg", c.WeightKg)
		heightOK := number("context.height_cm", c.HeightCm)
		if weightOK && heightOK && (c.WeightKg < 0 || c.HeightCm < 0) {
			add("context", "weight_kg and height_cm must not be negative")
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
