package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/loanflow/loanflow/internal/model"
)

const idempotencyColumns = `idempotency_key, route_path, payload_hash, request_mode, execution_mode,
		status, response_code, response_body, created_at, updated_at`

// GetIdempotencyByKey returns the record bound to key on any route.
// The bool is false when no such record exists.
func (t *Tx) GetIdempotencyByKey(ctx context.Context, key string) (model.IdempotencyRecord, bool, error) {
	row := t.queryRow(ctx, `
		SELECT `+idempotencyColumns+`
		FROM idempotency_keys
		WHERE idempotency_key = ?
	`, key)
	return scanIdempotency(row)
}

// GetIdempotency returns the record for (key, route).
func (t *Tx) GetIdempotency(ctx context.Context, key, route string) (model.IdempotencyRecord, bool, error) {
	row := t.queryRow(ctx, `
		SELECT `+idempotencyColumns+`
		FROM idempotency_keys
		WHERE idempotency_key = ? AND route_path = ?
	`, key, route)
	return scanIdempotency(row)
}

// InsertIdempotency inserts rec with status IN_PROGRESS. A collision on
// either the (key, route) primary key or the key alone yields
// ErrUniqueViolation.
func (t *Tx) InsertIdempotency(ctx context.Context, rec model.IdempotencyRecord) error {
	now := t.Now()
	_, err := t.exec(ctx, `
		INSERT INTO idempotency_keys
		(idempotency_key, route_path, payload_hash, request_mode, execution_mode, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.Key,
		rec.Route,
		rec.PayloadHash,
		rec.RequestMode,
		rec.ExecutionMode,
		string(model.IdemInProgress),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("insert idempotency record: %w", err)
	}
	return nil
}

// TransitionIdempotency moves (key, route) from one status to another.
// It reports false when the record was not in the from status.
func (t *Tx) TransitionIdempotency(ctx context.Context, key, route string, from, to model.IdempotencyStatus) (bool, error) {
	res, err := t.exec(ctx, `
		UPDATE idempotency_keys
		SET status = ?, updated_at = ?
		WHERE idempotency_key = ? AND route_path = ? AND status = ?
	`, string(to), t.Now(), key, route, string(from))
	if err != nil {
		return false, fmt.Errorf("transition idempotency record: %w", err)
	}
	return affected(res)
}

// CompleteIdempotency stores the response and marks (key, route)
// COMPLETED. Only IN_PROGRESS records are updated; the bool reports
// whether one was.
func (t *Tx) CompleteIdempotency(ctx context.Context, key, route string, code int, body []byte) (bool, error) {
	res, err := t.exec(ctx, `
		UPDATE idempotency_keys
		SET status = ?, response_code = ?, response_body = ?, updated_at = ?
		WHERE idempotency_key = ? AND route_path = ? AND status = ?
	`, string(model.IdemCompleted), code, string(body), t.Now(), key, route, string(model.IdemInProgress))
	if err != nil {
		return false, fmt.Errorf("complete idempotency record: %w", err)
	}
	return affected(res)
}

func scanIdempotency(row *sql.Row) (model.IdempotencyRecord, bool, error) {
	var (
		rec    model.IdempotencyRecord
		status string
		code   sql.NullInt64
		body   sql.NullString
	)
	err := row.Scan(
		&rec.Key,
		&rec.Route,
		&rec.PayloadHash,
		&rec.RequestMode,
		&rec.ExecutionMode,
		&status,
		&code,
		&body,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.IdempotencyRecord{}, false, nil
	}
	if err != nil {
		return model.IdempotencyRecord{}, false, fmt.Errorf("scan idempotency record: %w", err)
	}
	rec.Status = model.IdempotencyStatus(status)
	rec.ResponseCode = int(code.Int64)
	if body.Valid {
		rec.ResponseBody = []byte(body.String)
	}
	return rec, true, nil
}
