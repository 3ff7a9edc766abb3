package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	apperrors "github.com/vibeanalyze/vibeanalyze-backend/internal/core/errors"
	"github.com/vibeanalyze/vibeanalyze-backend/internal/core/domain"
)

const analysisColumns = `id, post_id, status, status_description, started_at, finished_at, created_at, updated_at`

// StatusUpdate is a status transition. StartedAt and FinishedAt are only
// written when set.
type StatusUpdate struct {
	Status      domain.AnalysisStatus
	Description *string
	StartedAt   *time.Time
	FinishedAt  *time.Time
}

// CreateAnalysis inserts a post for url and a PENDING analysis for it in one transaction.
func (db *DB) CreateAnalysis(ctx context.Context, url string, platform domain.Platform) (*domain.Analysis, error) {
	var analysis *domain.Analysis

	err := pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		var postID pgtype.UUID

		if err := tx.QueryRow(ctx, `
			INSERT INTO posts (url, platform) VALUES ($1, $2) RETURNING id
		`, SanitizeUTF8(url), string(platform)).Scan(&postID); err != nil {
			return fmt.Errorf("insert post: %w", err)
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO analyses (post_id, status)
			VALUES ($1, $2)
			RETURNING `+analysisColumns, postID, string(domain.AnalysisPending))

		a, err := scanAnalysis(row)
		if err != nil {
			return fmt.Errorf("insert analysis: %w", err)
		}

		analysis = a

		return nil
	})
	if err != nil {
		return nil, err
	}

	return analysis, nil
}

// GetAnalysis returns the analysis by id or apperrors.ErrAnalysisNotFound.
func (db *DB) GetAnalysis(ctx context.Context, id string) (*domain.Analysis, error) {
	uid := toUUID(id)
	if !uid.Valid {
		return nil, apperrors.ErrAnalysisNotFound
	}

	row := db.Pool.QueryRow(ctx, `SELECT `+analysisColumns+` FROM analyses WHERE id = $1`, uid)

	a, err := scanAnalysis(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrAnalysisNotFound
		}

		return nil, fmt.Errorf(errQueryAnalysis, id, err)
	}

	return a, nil
}

// UpdateAnalysisStatus applies a status transition.
func (db *DB) UpdateAnalysisStatus(ctx context.Context, id string, upd StatusUpdate) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE analyses SET
			status = $2,
			status_description = $3,
			started_at = COALESCE($4, started_at),
			finished_at = COALESCE($5, finished_at),
			updated_at = now()
		WHERE id = $1
	`, toUUID(id), string(upd.Status), sanitizePtr(upd.Description), upd.StartedAt, upd.FinishedAt)
	if err != nil {
		return fmt.Errorf("update analysis %s status: %w", id, err)
	}

	if tag.RowsAffected() == 0 {
		return apperrors.ErrAnalysisNotFound
	}

	return nil
}

// ClaimAnalysis moves a PENDING analysis to COLLECTING_DATA. It reports false
// when another worker already claimed it or it is no longer PENDING.
func (db *DB) ClaimAnalysis(ctx context.Context, id string, startedAt time.Time) (bool, error) {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE analyses SET
			status = $2,
			status_description = NULL,
			started_at = $3,
			updated_at = now()
		WHERE id = $1 AND status = $4
	`, toUUID(id), string(domain.AnalysisCollectingData), startedAt, string(domain.AnalysisPending))
	if err != nil {
		return false, fmt.Errorf("claim analysis %s: %w", id, err)
	}

	return tag.RowsAffected() == 1, nil
}

// CancelAnalysis marks the analysis CANCELLED unless it has already reached a
// state that cannot be cancelled, in which case apperrors.ErrAnalysisNotActive
// is returned.
func (db *DB) CancelAnalysis(ctx context.Context, id string) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE analyses SET status = $2, updated_at = now()
		WHERE id = $1 AND status NOT IN ($3, $4, $5, $6)
	`, toUUID(id), string(domain.AnalysisCancelled),
		string(domain.AnalysisCompleted), string(domain.AnalysisFailed),
		string(domain.AnalysisCancelled), string(domain.AnalysisPaused))
	if err != nil {
		return fmt.Errorf("cancel analysis %s: %w", id, err)
	}

	if tag.RowsAffected() > 0 {
		return nil
	}

	if _, err := db.GetAnalysis(ctx, id); err != nil {
		return err
	}

	return apperrors.ErrAnalysisNotActive
}

// ListAnalysesByStatus returns analyses in the given status, oldest first.
func (db *DB) ListAnalysesByStatus(ctx context.Context, status domain.AnalysisStatus) ([]domain.Analysis, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+analysisColumns+`
		FROM analyses
		WHERE status = $1
		ORDER BY created_at
	`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list analyses by status: %w", err)
	}
	defer rows.Close()

	var out []domain.Analysis

	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}

		out = append(out, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list analyses by status: %w", err)
	}

	return out, nil
}

func scanAnalysis(row pgx.Row) (*domain.Analysis, error) {
	var (
		a      domain.Analysis
		id     pgtype.UUID
		postID pgtype.UUID
		status string
	)

	if err := row.Scan(&id, &postID, &status, &a.StatusDescription, &a.StartedAt, &a.FinishedAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}

	a.ID = fromUUID(id)
	a.PostID = fromUUID(postID)
	a.Status = domain.AnalysisStatus(status)

	return &a, nil
}
