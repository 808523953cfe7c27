package repository

import (
	"context"
	"fmt"
)

// IdempotencyKeyRow backs the HTTP Idempotency-Key contract.
type IdempotencyKeyRow struct {
	IdempotencyKey string
	RequestHash    string
	Method         string
	Path           string
	ResponseStatus int32
	ResponseBody   []byte
	ContentType    string
	InProgress     bool
}

// GetIdempotencyKey loads a stored key. pgx.ErrNoRows when absent.
func (q *Queries) GetIdempotencyKey(ctx context.Context, key string) (IdempotencyKeyRow, error) {
	var row IdempotencyKeyRow
	err := q.db.QueryRow(ctx, `
		SELECT idempotency_key, request_hash, method, path,
		       COALESCE(response_status, 0), COALESCE(response_body, ''::bytea),
		       COALESCE(content_type, ''), in_progress
		FROM idempotency_keys
		WHERE idempotency_key = $1
	`, key).Scan(&row.IdempotencyKey, &row.RequestHash, &row.Method, &row.Path,
		&row.ResponseStatus, &row.ResponseBody, &row.ContentType, &row.InProgress)
	if err != nil {
		return row, err
	}
	return row, nil
}

// ReserveIdempotencyKey claims a key for the current request. The insert
// loses to a concurrent reservation via ON CONFLICT, which surfaces as
// pgx.ErrNoRows from the RETURNING clause.
func (q *Queries) ReserveIdempotencyKey(ctx context.Context, key, requestHash, method, path string) (string, error) {
	var reserved string
	err := q.db.QueryRow(ctx, `
		INSERT INTO idempotency_keys (idempotency_key, request_hash, method, path, in_progress, created_at)
		VALUES ($1, $2, $3, $4, TRUE, NOW())
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING idempotency_key
	`, key, requestHash, method, path).Scan(&reserved)
	if err != nil {
		return "", err
	}
	return reserved, nil
}

// FinalizeIdempotencyKey stores the response for replay and clears the
// in-progress flag.
func (q *Queries) FinalizeIdempotencyKey(ctx context.Context, key, requestHash string, status int32, body []byte, contentType string) (IdempotencyKeyRow, error) {
	var row IdempotencyKeyRow
	err := q.db.QueryRow(ctx, `
		UPDATE idempotency_keys
		SET response_status = $3, response_body = $4, content_type = $5, in_progress = FALSE
		WHERE idempotency_key = $1 AND request_hash = $2
		RETURNING idempotency_key, request_hash, method, path, response_status, response_body, content_type, in_progress
	`, key, requestHash, status, body, contentType).Scan(&row.IdempotencyKey, &row.RequestHash,
		&row.Method, &row.Path, &row.ResponseStatus, &row.ResponseBody, &row.ContentType, &row.InProgress)
	if err != nil {
		return row, err
	}
	return row, nil
}

// DeleteExpiredIdempotencyKeys prunes keys older than the retention window.
func (q *Queries) DeleteExpiredIdempotencyKeys(ctx context.Context, olderThan string) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		DELETE FROM idempotency_keys WHERE created_at < NOW() - $1::interval
	`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("delete expired idempotency keys: %w", err)
	}
	return tag.RowsAffected(), nil
}
