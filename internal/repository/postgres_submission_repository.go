package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stwalsh4118/dissent/internal/database"
	"github.com/stwalsh4118/dissent/internal/models"
)

const submissionSchema = `
	CREATE TABLE IF NOT EXISTS manual_submissions (
		id             UUID PRIMARY KEY,
		email          TEXT NOT NULL,
		event_date     DATE NOT NULL,
		locality       TEXT NOT NULL,
		state          TEXT NOT NULL DEFAULT '',
		title          TEXT NOT NULL,
		event_type     TEXT NOT NULL DEFAULT '',
		claims_summary TEXT NOT NULL DEFAULT '',
		size_estimate  INTEGER,
		submitted_at   TIMESTAMPTZ NOT NULL
	)`

// postgresSubmissionRepository stores submissions in the manual_submissions table.
type postgresSubmissionRepository struct {
	db *database.Database
}

// NewPostgresSubmissionRepository creates a SubmissionRepository backed by PostgreSQL,
// creating the manual_submissions table if it does not exist.
func NewPostgresSubmissionRepository(ctx context.Context, db *database.Database) (SubmissionRepository, error) {
	if _, err := db.Pool.Exec(ctx, submissionSchema); err != nil {
		return nil, fmt.Errorf("failed to ensure submission schema: %w", err)
	}
	return &postgresSubmissionRepository{db: db}, nil
}

// Append inserts the submission. IDs are generated by the service, so a duplicate insert
// surfaces as a constraint error.
func (r *postgresSubmissionRepository) Append(ctx context.Context, s models.Submission) error {
	query := `
		INSERT INTO manual_submissions (
			id, email, event_date, locality, state, title,
			event_type, claims_summary, size_estimate, submitted_at
		) VALUES ($1, $2, $3::date, $4, $5, $6, $7, $8, $9, $10)`

	var size *int32
	if s.SizeEstimate != nil {
		v := int32(*s.SizeEstimate)
		size = &v
	}

	_, err := r.db.Pool.Exec(ctx, query,
		s.ID.String(), s.Email, s.Date, s.Locality, s.State, s.Title,
		s.EventType, s.ClaimsSummary, size, s.SubmittedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert submission: %w", err)
	}
	return nil
}

// List returns the newest submissions, oldest first.
func (r *postgresSubmissionRepository) List(ctx context.Context, limit int) ([]models.Submission, error) {
	query := `
		SELECT id::text, email, event_date::text, locality, state, title,
			event_type, claims_summary, size_estimate, submitted_at
		FROM (
			SELECT * FROM manual_submissions
			ORDER BY submitted_at DESC, id DESC
			LIMIT $1
		) recent
		ORDER BY submitted_at ASC, id ASC`

	var limitArg *int
	if limit > 0 {
		limitArg = &limit
	}

	rows, err := r.db.Pool.Query(ctx, query, limitArg)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	submissions, err := pgx.CollectRows(rows, scanSubmission)
	if err != nil {
		return nil, fmt.Errorf("failed to scan submissions: %w", err)
	}
	if submissions == nil {
		submissions = []models.Submission{}
	}
	return submissions, nil
}

func scanSubmission(row pgx.CollectableRow) (models.Submission, error) {
	var (
		s           models.Submission
		id          string
		size        *int32
		submittedAt time.Time
	)
	if err := row.Scan(&id, &s.Email, &s.Date, &s.Locality, &s.State, &s.Title,
		&s.EventType, &s.ClaimsSummary, &size, &submittedAt); err != nil {
		return models.Submission{}, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return models.Submission{}, fmt.Errorf("invalid submission id %q: %w", id, err)
	}
	s.ID = parsed
	s.SubmittedAt = submittedAt.UTC()
	if size != nil {
		v := int(*size)
		s.SizeEstimate = &v
	}
	return s, nil
}
