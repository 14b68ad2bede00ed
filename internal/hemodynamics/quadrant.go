package hemodynamics

// Quadrant is one of the four Stevenson/Forrester profiles.
type Quadrant string

const (
	QuadrantA Quadrant = "A" // dry / warm
	QuadrantB Quadrant = "B" // wet / warm
	QuadrantC Quadrant = "C" // wet / cold
	QuadrantL Quadrant = "L" // dry / cold
)

// Quadrants lists the profiles in chart order.
var Quadrants = []Quadrant{QuadrantA, QuadrantB, QuadrantC, QuadrantL}

func (q Quadrant) Valid() bool {
	switch q {
	case QuadrantA, QuadrantB, QuadrantC, QuadrantL:
		return true
	}
	return false
}

func (q Quadrant) Label() string {
	switch q {
	case QuadrantA:
		return "Dry-Warm"
	case QuadrantB:
		return "Wet-Warm"
	case QuadrantC:
		return "Wet-Cold"
	case QuadrantL:
		return "Dry-Cold"
	}
	return "Unknown"
}

func (q Quadrant) Description() string {
	switch q {
	case QuadrantA:
		return "Compensated: adequate perfusion without congestion"
	case QuadrantB:
		return "Congested with adequate perfusion"
	case QuadrantC:
		return "Congested and hypoperfused"
	case QuadrantL:
		return "Hypoperfused without congestion"
	}
	return ""
}

func (q Quadrant) Wet() bool  { return q == QuadrantB || q == QuadrantC }
func (q Quadrant) Cold() bool { return q == QuadrantC || q == QuadrantL }

// Classify places coord against the default thresholds.
func Classify(coord Coordinate) Quadrant {
	return DefaultTuning().Thresholds.Classify(coord)
}

// Classify places coord against t. Wet means wedge strictly above the wedge
// threshold; warm means cardiac index at or above the cardiac index threshold.
func (t Thresholds) Classify(coord Coordinate) Quadrant {
	wet := coord.WedgePressure > t.WedgePressure
	warm := coord.CardiacIndex >= t.CardiacIndex
	switch {
	case !wet && warm:
		return QuadrantA
	case wet && warm:
		return QuadrantB
	case wet:
		return QuadrantC
	default:
		return QuadrantL
	}
}
