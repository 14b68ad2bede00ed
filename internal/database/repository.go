package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get for an unknown ID
var ErrNotFound = errors.New("evaluation not found")

// MaxListLimit caps ListRecent
const MaxListLimit = 500

// Repository handles evaluation log queries
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// PoolStats reports the underlying connection pool
func (r *Repository) PoolStats() map[string]interface{} {
	return r.db.GetPoolStats()
}

// Append stores rec. Records are never updated afterwards.
func (r *Repository) Append(ctx context.Context, rec *EvaluationRecord) error {
	stmt, err := r.db.GetPreparedStatement("insert_evaluation")
	if err != nil {
		return err
	}
	_, err = stmt.ExecContext(ctx,
		rec.ID, rec.CreatedAt, rec.Source, rec.Quadrant,
		rec.WedgePressure, rec.CardiacIndex, rec.CongestionIndex, rec.PerfusionIndex,
		string(rec.Observation), string(rec.Result),
	)
	if err != nil {
		return fmt.Errorf("failed to append evaluation: %w", err)
	}
	return nil
}

// Get returns one record or ErrNotFound
func (r *Repository) Get(ctx context.Context, id string) (*EvaluationRecord, error) {
	stmt, err := r.db.GetPreparedStatement("get_evaluation")
	if err != nil {
		return nil, err
	}
	rec, err := scanRecord(stmt.QueryRowContext(ctx, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get evaluation: %w", err)
	}
	return rec, nil
}

// ListRecent returns up to limit records, newest first
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]*EvaluationRecord, error) {
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}

	stmt, err := r.db.GetPreparedStatement("list_recent")
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluations: %w", err)
	}
	defer rows.Close()

	records := make([]*EvaluationRecord, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CountByQuadrant returns how many evaluations landed in each quadrant
func (r *Repository) CountByQuadrant(ctx context.Context) (map[string]int64, error) {
	stmt, err := r.db.GetPreparedStatement("count_by_quadrant")
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count evaluations: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var qc QuadrantCount
		if err := rows.Scan(&qc.Quadrant, &qc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[qc.Quadrant] = qc.Count
	}
	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*EvaluationRecord, error) {
	var rec EvaluationRecord
	var obs, result string
	err := s.Scan(
		&rec.ID, &rec.CreatedAt, &rec.Source, &rec.Quadrant,
		&rec.WedgePressure, &rec.CardiacIndex, &rec.CongestionIndex, &rec.PerfusionIndex,
		&obs, &result,
	)
	if err != nil {
		return nil, err
	}
	rec.Observation = []byte(obs)
	rec.Result = []byte(result)
	return &rec, nil
}
