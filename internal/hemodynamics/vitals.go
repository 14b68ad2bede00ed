package hemodynamics

import "math"

// cmH2OPerMmHg converts a water column to mercury.
const cmH2OPerMmHg = 1.36

// sternalAngleToRightAtriumCm is the fixed offset added to a jugular column
// measured from the sternal angle.
const sternalAngleToRightAtriumCm = 5.0

// DeriveVitals computes mean arterial pressure, pulse pressure and
// proportional pulse pressure. It rejects non-finite or non-positive
// pressures and a diastolic pressure that is not lower than the systolic one.
func DeriveVitals(systolic, diastolic float64) (DerivedVitals, error) {
	switch {
	case !finite(systolic):
		return DerivedVitals{}, &ValidationError{Field: "vitals.systolic_bp", Reason: "must be a finite number"}
	case !finite(diastolic):
		return DerivedVitals{}, &ValidationError{Field: "vitals.diastolic_bp", Reason: "must be a finite number"}
	case systolic <= 0:
		return DerivedVitals{}, &ValidationError{Field: "vitals.systolic_bp", Reason: "must be positive"}
	case diastolic <= 0:
		return DerivedVitals{}, &ValidationError{Field: "vitals.diastolic_bp", Reason: "must be positive"}
	case diastolic >= systolic:
		return DerivedVitals{}, &ValidationError{Field: "vitals.diastolic_bp", Reason: "must be lower than systolic_bp"}
	}
	return DeriveVitalsLegacy(systolic, diastolic), nil
}

// DeriveVitalsLegacy never fails. A non-positive systolic pressure yields a
// proportional pulse pressure of 0, matching the dashboards this replaces.
func DeriveVitalsLegacy(systolic, diastolic float64) DerivedVitals {
	pp := systolic - diastolic
	ppp := 0.0
	if systolic > 0 {
		ppp = pp / systolic * 100
	}
	return DerivedVitals{
		MeanArterialPressure:      diastolic + pp/3,
		PulsePressure:             pp,
		ProportionalPulsePressure: ppp,
	}
}

// withCaseDerivations adds body mass index and the jugular CVP estimate when
// their inputs are present. Neither value is scored.
func withCaseDerivations(dv DerivedVitals, obs PatientObservation) DerivedVitals {
	if ctx := obs.Context; ctx != nil && ctx.WeightKg > 0 && ctx.HeightCm > 0 {
		m := ctx.HeightCm / 100
		bmi := ctx.WeightKg / (m * m)
		dv.BodyMassIndex = &bmi
	}
	if h := obs.Exam.JVDColumnHeightCm; h != nil {
		cmH2O := *h + sternalAngleToRightAtriumCm
		mmHg := cmH2O / cmH2OPerMmHg
		dv.CentralVenousPressureCmH2O = &cmH2O
		dv.CentralVenousPressureMmHg = &mmHg
	}
	return dv
}

// Rounded returns a copy rounded to one decimal for display. Classification
// never reads rounded values.
func (dv DerivedVitals) Rounded() DerivedVitals {
	out := DerivedVitals{
		MeanArterialPressure:      round1(dv.MeanArterialPressure),
		PulsePressure:             round1(dv.PulsePressure),
		ProportionalPulsePressure: round1(dv.ProportionalPulsePressure),
	}
	out.BodyMassIndex = roundPtr(dv.BodyMassIndex)
	out.CentralVenousPressureCmH2O = roundPtr(dv.CentralVenousPressureCmH2O)
	out.CentralVenousPressureMmHg = roundPtr(dv.CentralVenousPressureMmHg)
	return out
}

// Rounded returns the coordinate rounded to one decimal for display.
func (c Coordinate) Rounded() Coordinate {
	return Coordinate{WedgePressure: round1(c.WedgePressure), CardiacIndex: round1(c.CardiacIndex)}
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func roundPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := round1(*v)
	return &r
}

func clip(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
