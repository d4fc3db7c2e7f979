package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// Store defines read access to the question bank plus maintenance hooks.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// ListQuestions returns every question row in storage order.
	ListQuestions(ctx context.Context) ([]Question, error)

	// QuestionDetail retrieves the hint and pass criterion for the row at
	// the given storage position. Returns nil, nil if the row is missing.
	QuestionDetail(ctx context.Context, position int) (*QuestionDetail, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ListQuestions returns every question row ordered by storage position.
// Storage order is the tie-break between equal-priority rows, so the scan
// must never reorder them.
func (s *sqlxStore) ListQuestions(ctx context.Context) ([]Question, error) {
	var questions []Question

	query := `SELECT position, age_range, question FROM questions ORDER BY position ASC;`
	if err := s.db.SelectContext(ctx, &questions, query); err != nil {
		s.logger.ErrorContext(ctx, "Error listing questions", "error", err)
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}

	s.logger.DebugContext(ctx, "Listed questions", "count", len(questions))
	return questions, nil
}

// QuestionDetail retrieves the lazily fetched hint and pass criterion for
// one row, addressed by the same position used in the bulk scan.
func (s *sqlxStore) QuestionDetail(ctx context.Context, position int) (*QuestionDetail, error) {
	var detail QuestionDetail

	query := `SELECT position, hint, pass_criteria FROM questions WHERE position = ?;`
	if err := s.db.GetContext(ctx, &detail, query, position); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.WarnContext(ctx, "Question row not found", "position", position)
			return nil, nil
		}
		s.logger.ErrorContext(ctx, "Error fetching question detail", "position", position, "error", err)
		return nil, fmt.Errorf("failed to fetch question detail (position %d): %w", position, err)
	}

	return &detail, nil
}

// RunSQLMaintenance performs VACUUM and ANALYZE on the database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	s.logger.InfoContext(ctx, "Running SQL maintenance (VACUUM, ANALYZE)...")

	if _, err := s.db.ExecContext(ctx, "VACUUM;"); err != nil {
		s.logger.ErrorContext(ctx, "VACUUM failed", "error", err)
		return fmt.Errorf("vacuum failed: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, "ANALYZE;"); err != nil {
		s.logger.ErrorContext(ctx, "ANALYZE failed", "error", err)
		return fmt.Errorf("analyze failed: %w", err)
	}

	s.logger.InfoContext(ctx, "SQL maintenance completed successfully.")
	return nil
}
