package database

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ZanzyTHEbar/stevenson-profiler/internal/hemodynamics"
)

// EvaluationRecord is one row of the append-only evaluation log
type EvaluationRecord struct {
	ID              string          `json:"id" db:"id"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	Source          string          `json:"source" db:"source"`
	Quadrant        string          `json:"quadrant" db:"quadrant"`
	WedgePressure   float64         `json:"wedge_pressure" db:"wedge_pressure"`
	CardiacIndex    float64         `json:"cardiac_index" db:"cardiac_index"`
	CongestionIndex float64         `json:"congestion_index" db:"congestion_index"`
	PerfusionIndex  float64         `json:"perfusion_index" db:"perfusion_index"`
	Observation     json.RawMessage `json:"observation" db:"observation"`
	Result          json.RawMessage `json:"result" db:"result"`
}

// QuadrantCount is one row of the per-quadrant summary
type QuadrantCount struct {
	Quadrant string `json:"quadrant"`
	Count    int64  `json:"count"`
}

// NewEvaluationRecord snapshots an observation and its evaluation
func NewEvaluationRecord(source string, obs hemodynamics.PatientObservation, ev hemodynamics.Evaluation) (*EvaluationRecord, error) {
	obsJSON, err := json.Marshal(obs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode observation: %w", err)
	}
	resultJSON, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to encode evaluation: %w", err)
	}

	return &EvaluationRecord{
		ID:              uuid.New().String(),
		CreatedAt:       time.Now().UTC(),
		Source:          source,
		Quadrant:        string(ev.Quadrant),
		WedgePressure:   ev.Coordinate.WedgePressure,
		CardiacIndex:    ev.Coordinate.CardiacIndex,
		CongestionIndex: ev.Score.CongestionIndex,
		PerfusionIndex:  ev.Score.PerfusionIndex,
		Observation:     obsJSON,
		Result:          resultJSON,
	}, nil
}
