package hemodynamics

// Symptom is a reported symptom tag.
type Symptom string

const (
	SymptomOrthopnea             Symptom = "orthopnea"
	SymptomRestDyspnea           Symptom = "rest_dyspnea"
	SymptomProgressiveDyspnea    Symptom = "progressive_dyspnea" // effort dyspnea that progressed to rest
	SymptomPND                   Symptom = "paroxysmal_nocturnal_dyspnea"
	SymptomBendopnea             Symptom = "bendopnea"
	SymptomLargeEffortDyspnea    Symptom = "exertional_dyspnea_large"
	SymptomModerateEffortDyspnea Symptom = "exertional_dyspnea_moderate"
	SymptomSmallEffortDyspnea    Symptom = "exertional_dyspnea_small"
	SymptomFatigue               Symptom = "fatigue"
	SymptomAngina                Symptom = "angina"
	SymptomGILosses              Symptom = "gi_losses"
)

var knownSymptoms = map[Symptom]bool{
	SymptomOrthopnea:             true,
	SymptomRestDyspnea:           true,
	SymptomProgressiveDyspnea:    true,
	SymptomPND:                   true,
	SymptomBendopnea:             true,
	SymptomLargeEffortDyspnea:    true,
	SymptomModerateEffortDyspnea: true,
	SymptomSmallEffortDyspnea:    true,
	SymptomFatigue:               true,
	SymptomAngina:                true,
	SymptomGILosses:              true,
}

func (s Symptom) Valid() bool { return knownSymptoms[s] }

// IsRestDyspnea reports whether the symptom counts as dyspnea at rest.
func (s Symptom) IsRestDyspnea() bool {
	return s == SymptomRestDyspnea || s == SymptomProgressiveDyspnea
}

type JVD string

const (
	JVDAbsent  JVD = "absent"
	JVDPresent JVD = "present"
)

func (j JVD) Valid() bool { return j == "" || j == JVDAbsent || j == JVDPresent }

type HeartSound string

const (
	HeartSoundNormal HeartSound = "normal"
	HeartSoundS3     HeartSound = "s3"
	HeartSoundS4     HeartSound = "s4"
	HeartSoundMurmur HeartSound = "murmur"
)

func (h HeartSound) Valid() bool {
	switch h {
	case "", HeartSoundNormal, HeartSoundS3, HeartSoundS4, HeartSoundMurmur:
		return true
	}
	return false
}

type LungSound string

const (
	LungClear     LungSound = "clear"
	LungCrackles  LungSound = "crackles"
	LungWheezes   LungSound = "wheezes"
	LungDecreased LungSound = "decreased"
)

func (l LungSound) Valid() bool {
	switch l {
	case "", LungClear, LungCrackles, LungWheezes, LungDecreased:
		return true
	}
	return false
}

// EdemaLevel grades peripheral edema by how far up the legs it reaches.
type EdemaLevel string

const (
	EdemaAbsent   EdemaLevel = "absent"
	EdemaAnkle    EdemaLevel = "ankle"
	EdemaKnee     EdemaLevel = "knee"
	EdemaThigh    EdemaLevel = "thigh"
	EdemaAnasarca EdemaLevel = "anasarca"
)

func (e EdemaLevel) Valid() bool {
	switch e {
	case "", EdemaAbsent, EdemaAnkle, EdemaKnee, EdemaThigh, EdemaAnasarca:
		return true
	}
	return false
}

func (e EdemaLevel) Present() bool { return e != "" && e != EdemaAbsent }

type Visceromegaly string

const (
	VisceromegalyAbsent             Visceromegaly = "absent"
	VisceromegalyHepatomegaly       Visceromegaly = "hepatomegaly"
	VisceromegalySplenomegaly       Visceromegaly = "splenomegaly"
	VisceromegalyHepatosplenomegaly Visceromegaly = "hepatosplenomegaly"
)

func (v Visceromegaly) Valid() bool {
	switch v {
	case "", VisceromegalyAbsent, VisceromegalyHepatomegaly, VisceromegalySplenomegaly, VisceromegalyHepatosplenomegaly:
		return true
	}
	return false
}

// HepaticCongestion reports whether the liver is enlarged.
func (v Visceromegaly) HepaticCongestion() bool {
	return v == VisceromegalyHepatomegaly || v == VisceromegalyHepatosplenomegaly
}

type Pulse string

const (
	PulseNormal   Pulse = "normal"
	PulseBounding Pulse = "bounding"
	PulseWeak     Pulse = "weak"
	PulseThready  Pulse = "thready"
)

func (p Pulse) Valid() bool {
	switch p {
	case "", PulseNormal, PulseBounding, PulseWeak, PulseThready:
		return true
	}
	return false
}

type ExtremityTemp string

const (
	ExtremityWarm        ExtremityTemp = "warm"
	ExtremityCool        ExtremityTemp = "cool"
	ExtremityDiaphoretic ExtremityTemp = "diaphoretic"
)

func (e ExtremityTemp) Valid() bool {
	switch e {
	case "", ExtremityWarm, ExtremityCool, ExtremityDiaphoretic:
		return true
	}
	return false
}

// Warm treats an unset value as warm.
func (e ExtremityTemp) Warm() bool { return e == "" || e == ExtremityWarm }

type MentalStatus string

const (
	MentalAlert     MentalStatus = "alert"
	MentalConfused  MentalStatus = "confused"
	MentalSomnolent MentalStatus = "somnolent"
	MentalStuporous MentalStatus = "stuporous"
	MentalComatose  MentalStatus = "comatose"
)

func (m MentalStatus) Valid() bool {
	switch m {
	case "", MentalAlert, MentalConfused, MentalSomnolent, MentalStuporous, MentalComatose:
		return true
	}
	return false
}

func (m MentalStatus) Alert() bool { return m == "" || m == MentalAlert }

type ChestXRay string

const (
	ChestXRayNormal         ChestXRay = "normal"
	ChestXRayMildCongestion ChestXRay = "mild_congestion"
	ChestXRayAlveolarEdema  ChestXRay = "alveolar_edema"
)

func (c ChestXRay) Valid() bool {
	switch c {
	case "", ChestXRayNormal, ChestXRayMildCongestion, ChestXRayAlveolarEdema:
		return true
	}
	return false
}

type PeptideType string

const (
	PeptideBNP      PeptideType = "bnp"
	PeptideNTproBNP PeptideType = "nt_probnp"
)

func (p PeptideType) Valid() bool { return p == PeptideBNP || p == PeptideNTproBNP }

type Rhythm string

const (
	RhythmSinus              Rhythm = "sinus"
	RhythmAtrialFibrillation Rhythm = "atrial_fibrillation"
	RhythmAtrialFlutter      Rhythm = "atrial_flutter"
	RhythmOther              Rhythm = "other"
)

func (r Rhythm) Valid() bool {
	switch r {
	case "", RhythmSinus, RhythmAtrialFibrillation, RhythmAtrialFlutter, RhythmOther:
		return true
	}
	return false
}

type Residence string

const (
	ResidenceUrban Residence = "urban"
	ResidenceRural Residence = "rural"
)

func (r Residence) Valid() bool { return r == "" || r == ResidenceUrban || r == ResidenceRural }

// Vitals holds bedside vital signs. Zero means "not recorded" for every field
// except the blood pressures, which are required.
type Vitals struct {
	SystolicBP       float64 `json:"systolic_bp" yaml:"systolic_bp"`
	DiastolicBP      float64 `json:"diastolic_bp" yaml:"diastolic_bp"`
	HeartRate        float64 `json:"heart_rate,omitempty" yaml:"heart_rate,omitempty"`
	RespRate         float64 `json:"resp_rate,omitempty" yaml:"resp_rate,omitempty"`
	OxygenSaturation float64 `json:"oxygen_saturation,omitempty" yaml:"oxygen_saturation,omitempty"`
	TemperatureC     float64 `json:"temperature_c,omitempty" yaml:"temperature_c,omitempty"`
}

// Exam holds physical examination findings.
type Exam struct {
	JVD                 JVD           `json:"jvd,omitempty" yaml:"jvd,omitempty"`
	JVDColumnHeightCm   *float64      `json:"jvd_column_height_cm,omitempty" yaml:"jvd_column_height_cm,omitempty"`
	HepatojugularReflux bool          `json:"hepatojugular_reflux,omitempty" yaml:"hepatojugular_reflux,omitempty"`
	HeartSounds         HeartSound    `json:"heart_sounds,omitempty" yaml:"heart_sounds,omitempty"`
	Lungs               LungSound     `json:"lungs,omitempty" yaml:"lungs,omitempty"`
	Edema               EdemaLevel    `json:"edema,omitempty" yaml:"edema,omitempty"`
	Ascites             bool          `json:"ascites,omitempty" yaml:"ascites,omitempty"`
	Visceromegaly       Visceromegaly `json:"visceromegaly,omitempty" yaml:"visceromegaly,omitempty"`
	DistalPulses        Pulse         `json:"distal_pulses,omitempty" yaml:"distal_pulses,omitempty"`
	ExtremityTemp       ExtremityTemp `json:"extremity_temp,omitempty" yaml:"extremity_temp,omitempty"`
	CapillaryRefillSec  float64       `json:"capillary_refill_sec,omitempty" yaml:"capillary_refill_sec,omitempty"`
	MentalStatus        MentalStatus  `json:"mental_status,omitempty" yaml:"mental_status,omitempty"`
}

type Peptide struct {
	Type  PeptideType `json:"type" yaml:"type"`
	Value float64     `json:"value" yaml:"value"`
}

// Adjuncts are optional diagnostics. They only contribute to scoring when
// Enabled is set, and each nil field keeps its rule silent.
type Adjuncts struct {
	Enabled          bool       `json:"enabled" yaml:"enabled"`
	EjectionFraction *float64   `json:"ejection_fraction,omitempty" yaml:"ejection_fraction,omitempty"`
	Lactate          *float64   `json:"lactate,omitempty" yaml:"lactate,omitempty"`
	ChestXRay        *ChestXRay `json:"chest_xray,omitempty" yaml:"chest_xray,omitempty"`
	Peptide          *Peptide   `json:"peptide,omitempty" yaml:"peptide,omitempty"`
	AgeYears         *float64   `json:"age_years,omitempty" yaml:"age_years,omitempty"`
}

// CaseContext carries the teaching-case narrative. None of it is scored.
type CaseContext struct {
	City            string    `json:"city,omitempty" yaml:"city,omitempty"`
	Residence       Residence `json:"residence,omitempty" yaml:"residence,omitempty"`
	Sex             string    `json:"sex,omitempty" yaml:"sex,omitempty"`
	AgeYears        int       `json:"age_years,omitempty" yaml:"age_years,omitempty"`
	DaysOfEvolution int       `json:"days_of_evolution,omitempty" yaml:"days_of_evolution,omitempty"`
	History         []string  `json:"history,omitempty" yaml:"history,omitempty"`
	Rhythm          Rhythm    `json:"rhythm,omitempty" yaml:"rhythm,omitempty"`
	WeightKg        float64   `json:"weight_kg,omitempty" yaml:"weight_kg,omitempty"`
	HeightCm        float64   `json:"height_cm,omitempty" yaml:"height_cm,omitempty"`
}

// PatientObservation is the complete input for one evaluation pass.
type PatientObservation struct {
	Vitals   Vitals       `json:"vitals" yaml:"vitals"`
	Symptoms []Symptom    `json:"symptoms,omitempty" yaml:"symptoms,omitempty"`
	Exam     Exam         `json:"exam" yaml:"exam"`
	Adjuncts *Adjuncts    `json:"adjuncts,omitempty" yaml:"adjuncts,omitempty"`
	Context  *CaseContext `json:"context,omitempty" yaml:"context,omitempty"`
}

// HasSymptom reports whether s was recorded.
func (o PatientObservation) HasSymptom(s Symptom) bool {
	for _, v := range o.Symptoms {
		if v == s {
			return true
		}
	}
	return false
}

func (o PatientObservation) adjunctsEnabled() bool {
	return o.Adjuncts != nil && o.Adjuncts.Enabled
}

// DerivedVitals are computed from the blood pressures on every evaluation.
type DerivedVitals struct {
	MeanArterialPressure       float64  `json:"mean_arterial_pressure"`
	PulsePressure              float64  `json:"pulse_pressure"`
	ProportionalPulsePressure  float64  `json:"proportional_pulse_pressure"`
	BodyMassIndex              *float64 `json:"body_mass_index,omitempty"`
	CentralVenousPressureCmH2O *float64 `json:"central_venous_pressure_cmh2o,omitempty"`
	CentralVenousPressureMmHg  *float64 `json:"central_venous_pressure_mmhg,omitempty"`
}

// Score holds the raw axis accumulators.
type Score struct {
	CongestionIndex float64 `json:"congestion_index"`
	PerfusionIndex  float64 `json:"perfusion_index"`
}

// Coordinate is the point plotted on the quadrant chart.
type Coordinate struct {
	WedgePressure float64 `json:"wedge_pressure" yaml:"wedge_pressure"`
	CardiacIndex  float64 `json:"cardiac_index" yaml:"cardiac_index"`
}

type Axis string

const (
	AxisCongestion Axis = "congestion"
	AxisPerfusion  Axis = "perfusion"
)

// Contributor is one rule that fired during scoring.
type Contributor struct {
	Rule   RuleID  `json:"rule"`
	Axis   Axis    `json:"axis"`
	Weight float64 `json:"weight"`
}

// Evaluation is the result of classifying one observation.
type Evaluation struct {
	DerivedVitals DerivedVitals `json:"derived_vitals"`
	Score         Score         `json:"score"`
	Coordinate    Coordinate    `json:"coordinate"`
	Quadrant      Quadrant      `json:"quadrant"`
	Contributors  []Contributor `json:"contributors"`
}
