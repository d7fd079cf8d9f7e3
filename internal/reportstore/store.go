// Package reportstore persists rendered final reports to Postgres.
// Persistence is best-effort bookkeeping; the pipeline returns its result
// to the caller regardless of store availability.
package reportstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	ometrics "github.com/deepscout/orchestrator/internal/metrics"
	"github.com/deepscout/orchestrator/internal/research"
)

// Config holds Postgres connection settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// Store writes final reports.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// Record is one persisted report row.
type Record struct {
	WorkflowID     string    `db:"workflow_id"`
	Request        string    `db:"request"`
	Markdown       string    `db:"markdown"`
	CitationStats  string    `db:"citation_stats"`
	TaskCount      int       `db:"task_count"`
	IterationCount int       `db:"iteration_count"`
	CreatedAt      time.Time `db:"created_at"`
}

// New opens a connection pool and verifies connectivity.
func New(cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("reportstore: connect: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}, nil
}

// NewWithDB wraps an existing connection, used by tests.
func NewWithDB(db *sqlx.DB, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, logger: logger}
}

// Close releases the pool.
func (s *Store) Close() error { return s.db.Close() }

const insertReport = `
INSERT INTO research_reports
    (workflow_id, request, markdown, citation_stats, task_count, iteration_count, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

// SaveReport writes one rendered report with its citation stats.
func (s *Store) SaveReport(ctx context.Context, workflowID, request, markdown string, stats research.CitationStats, taskCount, iterations int) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("reportstore: marshal stats: %w", err)
	}
	_, err = s.db.ExecContext(ctx, insertReport,
		workflowID, request, markdown, string(statsJSON), taskCount, iterations, time.Now().UTC())
	if err != nil {
		ometrics.ReportsPersisted.WithLabelValues("error").Inc()
		return fmt.Errorf("reportstore: insert report: %w", err)
	}
	ometrics.ReportsPersisted.WithLabelValues("ok").Inc()
	s.logger.Debug("persisted final report",
		zap.String("workflow_id", workflowID),
		zap.Int("task_count", taskCount),
	)
	return nil
}

// GetReport loads a persisted report by workflow id.
func (s *Store) GetReport(ctx context.Context, workflowID string) (*Record, error) {
	var rec Record
	err := s.db.GetContext(ctx, &rec,
		`SELECT workflow_id, request, markdown, citation_stats, task_count, iteration_count, created_at
		 FROM research_reports WHERE workflow_id = $1`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("reportstore: get report: %w", err)
	}
	return &rec, nil
}
