package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new analysis.
func (r *PGRepo) Create(ctx context.Context, analysis Analysis) error {
	const query = `
INSERT INTO analyses (id, user_id, title, file_key, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6)`
	_, err := r.DB.ExecContext(ctx, query,
		analysis.ID,
		analysis.UserID,
		analysis.Title,
		analysis.FileKey,
		analysis.Status,
		analysis.CreatedAt,
	)
	return err
}

// GetByID returns an analysis by ID.
func (r *PGRepo) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	const query = `
SELECT id, user_id, title, file_key, status, error_code, error_message, result, provider_results,
       created_at, updated_at, completed_at
FROM analyses
WHERE id = $1
LIMIT 1`
	var a Analysis
	var errorCode, errorMessage sql.NullString
	var result, providerResults sql.NullString
	var completedAt sql.NullTime
	err := r.DB.QueryRowContext(ctx, query, analysisID).Scan(
		&a.ID,
		&a.UserID,
		&a.Title,
		&a.FileKey,
		&a.Status,
		&errorCode,
		&errorMessage,
		&result,
		&providerResults,
		&a.CreatedAt,
		&a.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Analysis{}, ErrNotFound
		}
		return Analysis{}, err
	}
	if errorCode.Valid {
		a.ErrorCode = &errorCode.String
	}
	if errorMessage.Valid {
		a.ErrorMessage = &errorMessage.String
	}
	if result.Valid {
		var report Report
		if err := json.Unmarshal([]byte(result.String), &report); err == nil {
			a.Result = &report
		}
	}
	if providerResults.Valid {
		if err := json.Unmarshal([]byte(providerResults.String), &a.ProviderResults); err != nil {
			a.ProviderResults = nil
		}
	}
	if completedAt.Valid {
		a.CompletedAt = &completedAt.Time
	}
	return a, nil
}

// UpdateStatus moves the job between pipeline statuses. Terminal rows are
// left untouched and the call reports ErrAlreadyFinal.
func (r *PGRepo) UpdateStatus(ctx context.Context, analysisID, status string) error {
	const query = `
UPDATE analyses SET status = $1, updated_at = now()
WHERE id = $2 AND status NOT IN ('completed', 'failed')`
	res, err := r.DB.ExecContext(ctx, query, status, analysisID)
	if err != nil {
		return err
	}
	return requireRowTouched(ctx, r.DB, res, analysisID)
}

// Finalize writes the terminal state exactly once.
func (r *PGRepo) Finalize(ctx context.Context, analysisID, status string, result *Report, providerResults []ProviderResult, errorCode, errorMessage *string, completedAt time.Time) error {
	if status != StatusCompleted && status != StatusFailed {
		return ErrInvalidStatus
	}
	resultPayload, err := marshalJSONB(result)
	if err != nil {
		return err
	}
	providerPayload, err := marshalJSONB(providerResults)
	if err != nil {
		return err
	}
	const query = `
UPDATE analyses
SET status = $1,
    result = $2,
    provider_results = $3,
    error_code = $4,
    error_message = $5,
    completed_at = $6,
    updated_at = now()
WHERE id = $7 AND status NOT IN ('completed', 'failed')`
	res, err := r.DB.ExecContext(ctx, query,
		status, resultPayload, providerPayload, errorCode, errorMessage, completedAt, analysisID)
	if err != nil {
		return err
	}
	return requireRowTouched(ctx, r.DB, res, analysisID)
}

// ListByUser returns analyses for a user, newest first, with limit/offset.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Analysis, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
SELECT id, user_id, title, file_key, status, error_code, error_message, result, provider_results,
       created_at, updated_at, completed_at
FROM analyses
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`
	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Analysis{}
	for rows.Next() {
		var a Analysis
		var errorCode, errorMessage sql.NullString
		var result, providerResults sql.NullString
		var completedAt sql.NullTime
		if err := rows.Scan(
			&a.ID, &a.UserID, &a.Title, &a.FileKey, &a.Status,
			&errorCode, &errorMessage, &result, &providerResults,
			&a.CreatedAt, &a.UpdatedAt, &completedAt,
		); err != nil {
			return nil, err
		}
		if errorCode.Valid {
			a.ErrorCode = &errorCode.String
		}
		if errorMessage.Valid {
			a.ErrorMessage = &errorMessage.String
		}
		if result.Valid {
			var report Report
			if err := json.Unmarshal([]byte(result.String), &report); err == nil {
				a.Result = &report
			}
		}
		if providerResults.Valid {
			if err := json.Unmarshal([]byte(providerResults.String), &a.ProviderResults); err != nil {
				a.ProviderResults = nil
			}
		}
		if completedAt.Valid {
			a.CompletedAt = &completedAt.Time
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// requireRowTouched distinguishes a missing row from an already-terminal one.
func requireRowTouched(ctx context.Context, db *sql.DB, res sql.Result, analysisID string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}
	var exists bool
	if err := db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM analyses WHERE id = $1)`, analysisID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrAlreadyFinal
}

func marshalJSONB(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch typed := v.(type) {
	case *Report:
		if typed == nil {
			return nil, nil
		}
	case []ProviderResult:
		if len(typed) == 0 {
			return nil, nil
		}
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(payload), nil
}

var _ Repo = (*PGRepo)(nil)
