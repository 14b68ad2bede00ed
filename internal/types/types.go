package types

import (
	"time"

	"github.com/ZanzyTHEbar/stevenson-profiler/internal/hemodynamics"
)

// EvaluateRequest is the body of POST /api/v1/evaluate
type EvaluateRequest struct {
	Observation   hemodynamics.PatientObservation `json:"observation"`
	Interventions []hemodynamics.InterventionKind `json:"interventions,omitempty"`
	Record        bool                            `json:"record,omitempty"`
}

// Display carries the one-decimal values shown to clinicians. Classification
// uses the unrounded values in Evaluation.
type Display struct {
	DerivedVitals       hemodynamics.DerivedVitals `json:"derived_vitals"`
	Coordinate          hemodynamics.Coordinate    `json:"coordinate"`
	Quadrant            hemodynamics.Quadrant      `json:"quadrant"`
	QuadrantLabel       string                     `json:"quadrant_label"`
	QuadrantDescription string                     `json:"quadrant_description"`
}

// NewDisplay rounds ev for presentation
func NewDisplay(ev hemodynamics.Evaluation) Display {
	return Display{
		DerivedVitals:       ev.DerivedVitals.Rounded(),
		Coordinate:          ev.Coordinate.Rounded(),
		Quadrant:            ev.Quadrant,
		QuadrantLabel:       ev.Quadrant.Label(),
		QuadrantDescription: ev.Quadrant.Description(),
	}
}

// EvaluateResponse is returned by POST /api/v1/evaluate
type EvaluateResponse struct {
	Evaluation hemodynamics.Evaluation  `json:"evaluation"`
	Display    Display                  `json:"display"`
	Projection *hemodynamics.Projection `json:"projection,omitempty"`
	RecordID   string                   `json:"record_id,omitempty"`
}

// ProjectRequest is the body of POST /api/v1/project
type ProjectRequest struct {
	Coordinate    hemodynamics.Coordinate         `json:"coordinate"`
	Interventions []hemodynamics.InterventionKind `json:"interventions"`
}

// ProjectResponse is returned by POST /api/v1/project
type ProjectResponse struct {
	Projection hemodynamics.Projection `json:"projection"`
	Crossed    bool                    `json:"crossed"`
}

// ClassifyResponse is returned by POST /api/v1/classify
type ClassifyResponse struct {
	Coordinate  hemodynamics.Coordinate `json:"coordinate"`
	Quadrant    hemodynamics.Quadrant   `json:"quadrant"`
	Label       string                  `json:"label"`
	Description string                  `json:"description"`
}

// RulesResponse is returned by GET /api/v1/rules
type RulesResponse struct {
	Rules         []hemodynamics.RuleInfo                               `json:"rules"`
	Interventions map[hemodynamics.InterventionKind]hemodynamics.Vector `json:"interventions"`
	Thresholds    hemodynamics.Thresholds                               `json:"thresholds"`
	Overlap       hemodynamics.OverlapPolicy                            `json:"overlap"`
	LegacyVitals  bool                                                  `json:"legacy_vitals"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Uptime    string                 `json:"uptime"`
	Services  map[string]interface{} `json:"services,omitempty"`
}
