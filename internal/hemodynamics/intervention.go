package hemodynamics

import (
	"fmt"
	"math"
)

// InterventionKind is a pharmacologic or supportive therapy category.
type InterventionKind string

const (
	InterventionDiuretic    InterventionKind = "diuretic"
	InterventionVasodilator InterventionKind = "vasodilator"
	InterventionInotrope    InterventionKind = "inotrope"
	InterventionVasopressor InterventionKind = "vasopressor"
	InterventionOxygen      InterventionKind = "oxygen"
	InterventionIVFluids    InterventionKind = "iv_fluids"
)

// InterventionKinds lists every known kind.
var InterventionKinds = []InterventionKind{
	InterventionDiuretic,
	InterventionVasodilator,
	InterventionInotrope,
	InterventionVasopressor,
	InterventionOxygen,
	InterventionIVFluids,
}

func (k InterventionKind) Valid() bool {
	for _, known := range InterventionKinds {
		if k == known {
			return true
		}
	}
	return false
}

func (k InterventionKind) Description() string {
	switch k {
	case InterventionDiuretic:
		return "Loop diuretic: removes volume"
	case InterventionVasodilator:
		return "Vasodilator: lowers filling pressure and afterload"
	case InterventionInotrope:
		return "Inotrope: raises contractility"
	case InterventionVasopressor:
		return "Vasopressor: restores perfusion pressure"
	case InterventionOxygen:
		return "Oxygen or non-invasive ventilation: supportive, does not move the point"
	case InterventionIVFluids:
		return "IV fluids: adds volume"
	}
	return ""
}

// Vector is the shift an intervention applies to a coordinate.
type Vector struct {
	DeltaWedge        float64 `json:"delta_wedge" yaml:"delta_wedge"`
	DeltaCardiacIndex float64 `json:"delta_cardiac_index" yaml:"delta_cardiac_index"`
}

func (v Vector) Add(o Vector) Vector {
	return Vector{DeltaWedge: v.DeltaWedge + o.DeltaWedge, DeltaCardiacIndex: v.DeltaCardiacIndex + o.DeltaCardiacIndex}
}

// Projection is a what-if coordinate after one or more interventions.
type Projection struct {
	Baseline         Coordinate         `json:"baseline"`
	BaselineQuadrant Quadrant           `json:"baseline_quadrant"`
	Projected        Coordinate         `json:"projected"`
	Quadrant         Quadrant           `json:"quadrant"`
	Applied          []InterventionKind `json:"applied"`
	Delta            Vector             `json:"delta"`
}

// Crossed reports whether the interventions moved the point to another quadrant.
func (p Projection) Crossed() bool { return p.Quadrant != p.BaselineQuadrant }

// ApplyIntervention shifts coord by the summed vectors of kinds. Repeated
// kinds count once and are reported in first-seen order. The result is
// clamped with the same bounds as Coordinate and re-classified.
func (c *Classifier) ApplyIntervention(coord Coordinate, kinds []InterventionKind) (Projection, error) {
	if err := ValidateCoordinate(coord); err != nil {
		return Projection{}, err
	}
	applied := make([]InterventionKind, 0, len(kinds))
	seen := make(map[InterventionKind]bool, len(kinds))
	var delta Vector
	for i, k := range kinds {
		if !k.Valid() {
			return Projection{}, &ValidationError{
				Field:  fmt.Sprintf("interventions[%d]", i),
				Reason: fmt.Sprintf("unknown intervention %q", k),
			}
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		applied = append(applied, k)
		delta = delta.Add(c.tuning.Interventions[k])
	}

	projected := c.bound(Coordinate{
		WedgePressure: coord.WedgePressure + delta.DeltaWedge,
		CardiacIndex:  coord.CardiacIndex + delta.DeltaCardiacIndex,
	})
	return Projection{
		Baseline:         coord,
		BaselineQuadrant: c.Classify(coord),
		Projected:        projected,
		Quadrant:         c.Classify(projected),
		Applied:          applied,
		Delta:            delta,
	}, nil
}

// ValidateCoordinate rejects coordinates that cannot be plotted.
func ValidateCoordinate(coord Coordinate) error {
	var errs ValidationErrors
	if math.IsNaN(coord.WedgePressure) || math.IsInf(coord.WedgePressure, 0) || coord.WedgePressure < 0 {
		errs = append(errs, &ValidationError{Field: "coordinate.wedge_pressure", Reason: "must be a finite non-negative number"})
	}
	if math.IsNaN(coord.CardiacIndex) || math.IsInf(coord.CardiacIndex, 0) || coord.CardiacIndex < 0 {
		errs = append(errs, &ValidationError{Field: "coordinate.cardiac_index", Reason: "must be a finite non-negative number"})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
