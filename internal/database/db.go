package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// FileName is the evaluation log inside the data directory
const FileName = "evaluations.db"

// DB represents the database connection with pooling
type DB struct {
	*sql.DB
	pool     *ConnectionPool
	prepared map[string]*sql.Stmt
	mutex    sync.RWMutex
}

// ConnectionPool records the pool limits applied to the handle
type ConnectionPool struct {
	db           *sql.DB
	maxOpenConns int
	maxIdleConns int
	maxLifetime  time.Duration
}

func NewConnectionPool(db *sql.DB, maxOpen, maxIdle int, maxLifetime time.Duration) *ConnectionPool {
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(maxLifetime)

	return &ConnectionPool{
		db:           db,
		maxOpenConns: maxOpen,
		maxIdleConns: maxIdle,
		maxLifetime:  maxLifetime,
	}
}

// GetStats returns connection pool statistics
func (cp *ConnectionPool) GetStats() map[string]interface{} {
	stats := cp.db.Stats()

	return map[string]interface{}{
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"max_open_connections": cp.maxOpenConns,
		"max_idle_connections": cp.maxIdleConns,
		"max_lifetime_seconds": cp.maxLifetime.Seconds(),
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
	}
}

// NewDB opens (creating if needed) the evaluation log in dataDir
func NewDB(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, FileName)
	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite serialises writers; a small pool avoids busy errors
	pool := NewConnectionPool(db, 4, 2, 30*time.Minute)

	database := &DB{
		DB:       db,
		pool:     pool,
		prepared: make(map[string]*sql.Stmt),
	}

	if err := database.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if err := database.initPreparedStatements(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize prepared statements: %w", err)
	}

	slog.Info("Evaluation log opened",
		"path", dbPath,
		"max_open_conns", pool.maxOpenConns)

	return database, nil
}

func (db *DB) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS evaluations (
			id TEXT PRIMARY KEY,
			created_at DATETIME NOT NULL,
			source TEXT NOT NULL,
			quadrant TEXT NOT NULL,
			wedge_pressure REAL NOT NULL,
			cardiac_index REAL NOT NULL,
			congestion_index REAL NOT NULL,
			perfusion_index REAL NOT NULL,
			observation TEXT NOT NULL, -- JSON PatientObservation
			result TEXT NOT NULL       -- JSON Evaluation
		)`,

		// Append-only: rows are never updated or deleted through the API
		`CREATE TRIGGER IF NOT EXISTS evaluations_no_update
			BEFORE UPDATE ON evaluations
			BEGIN SELECT RAISE(ABORT, 'evaluations are append-only'); END`,

		`CREATE INDEX IF NOT EXISTS idx_evaluations_created ON evaluations(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_evaluations_quadrant ON evaluations(quadrant)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}
	return nil
}

func (db *DB) initPreparedStatements() error {
	statements := map[string]string{
		"insert_evaluation": `INSERT INTO evaluations (
			id, created_at, source, quadrant, wedge_pressure, cardiac_index,
			congestion_index, perfusion_index, observation, result
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,

		"get_evaluation": `SELECT ` + recordColumns + ` FROM evaluations WHERE id = ?`,

		"list_recent": `SELECT ` + recordColumns + ` FROM evaluations
			ORDER BY created_at DESC, rowid DESC LIMIT ?`,

		"count_by_quadrant": `SELECT quadrant, COUNT(*) FROM evaluations GROUP BY quadrant`,
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, query := range statements {
		stmt, err := db.Prepare(query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement %s: %w", name, err)
		}
		db.prepared[name] = stmt
		slog.Debug("Prepared statement initialized", "name", name)
	}
	return nil
}

const recordColumns = `id, created_at, source, quadrant, wedge_pressure, cardiac_index,
	congestion_index, perfusion_index, observation, result`

// GetPreparedStatement retrieves a prepared statement
func (db *DB) GetPreparedStatement(name string) (*sql.Stmt, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	stmt, exists := db.prepared[name]
	if !exists {
		return nil, fmt.Errorf("prepared statement %s not found", name)
	}
	return stmt, nil
}

func (db *DB) GetPoolStats() map[string]interface{} {
	return db.pool.GetStats()
}

// Close closes the prepared statements and the connection
func (db *DB) Close() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, stmt := range db.prepared {
		if err := stmt.Close(); err != nil {
			slog.Warn("Failed to close prepared statement", "name", name, "error", err)
		}
	}
	db.prepared = make(map[string]*sql.Stmt)

	return db.DB.Close()
}
