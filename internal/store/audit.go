package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/loanflow/loanflow/internal/model"
)

// AppendAudit records one audit entry and returns its id.
func (t *Tx) AppendAudit(ctx context.Context, applicationID, action string, details any) (int64, error) {
	if details == nil {
		details = map[string]any{}
	}
	payload, err := json.Marshal(details)
	if err != nil {
		return 0, fmt.Errorf("append audit: %w", err)
	}

	var id int64
	err = t.queryRow(ctx, `
		INSERT INTO audit_logs (application_id, action, details, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`, applicationID, action, string(payload), t.Now()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("append audit: %w", mapError(err))
	}
	return id, nil
}

// ListAudit returns the audit trail for an application ordered by id.
// Returns an empty slice (not nil) when there are no entries.
func (t *Tx) ListAudit(ctx context.Context, applicationID string) ([]model.AuditEntry, error) {
	rows, err := t.query(ctx, `
		SELECT id, application_id, action, details, created_at
		FROM audit_logs
		WHERE application_id = ?
		ORDER BY id ASC
	`, applicationID)
	if err != nil {
		return nil, fmt.Errorf("query audit logs: %w", err)
	}
	defer rows.Close()

	entries := []model.AuditEntry{}
	for rows.Next() {
		var (
			e       model.AuditEntry
			details string
		)
		if err := rows.Scan(&e.ID, &e.ApplicationID, &e.Action, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		e.Details = json.RawMessage(details)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit logs: %w", err)
	}
	return entries, nil
}
