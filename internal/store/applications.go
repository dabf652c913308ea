package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/loanflow/loanflow/internal/model"
)

// InsertApplication stores a new application. CreatedAt and UpdatedAt are
// set from the transaction clock and written back into app.
func (t *Tx) InsertApplication(ctx context.Context, app *model.Application) error {
	applicant, err := json.Marshal(app.Applicant)
	if err != nil {
		return fmt.Errorf("insert application: %w", err)
	}
	decision, err := json.Marshal(app.DecisionData)
	if err != nil {
		return fmt.Errorf("insert application: %w", err)
	}

	now := t.Now()
	_, err = t.exec(ctx, `
		INSERT INTO applications (id, status, applicant_data, decision_data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, app.ID, string(app.Status), string(applicant), string(decision), now, now)
	if err != nil {
		return fmt.Errorf("insert application: %w", err)
	}
	app.CreatedAt = now
	app.UpdatedAt = now
	return nil
}

// GetApplication loads an application by id. The bool is false when it
// does not exist.
func (t *Tx) GetApplication(ctx context.Context, id string) (model.Application, bool, error) {
	var (
		app       model.Application
		status    string
		applicant string
		decision  string
	)
	err := t.queryRow(ctx, `
		SELECT id, status, applicant_data, decision_data, created_at, updated_at
		FROM applications
		WHERE id = ?
	`, id).Scan(&app.ID, &status, &applicant, &decision, &app.CreatedAt, &app.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Application{}, false, nil
	}
	if err != nil {
		return model.Application{}, false, fmt.Errorf("get application: %w", err)
	}

	app.Status = model.ApplicationStatus(status)
	if err := json.Unmarshal([]byte(applicant), &app.Applicant); err != nil {
		return model.Application{}, false, fmt.Errorf("decode applicant_data: %w", err)
	}
	if err := json.Unmarshal([]byte(decision), &app.DecisionData); err != nil {
		return model.Application{}, false, fmt.Errorf("decode decision_data: %w", err)
	}
	return app, true, nil
}

// UpdateApplication writes the status and decision data of app and bumps
// UpdatedAt. Applicant data is immutable after creation.
func (t *Tx) UpdateApplication(ctx context.Context, app *model.Application) error {
	decision, err := json.Marshal(app.DecisionData)
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}

	now := t.Now()
	res, err := t.exec(ctx, `
		UPDATE applications
		SET status = ?, decision_data = ?, updated_at = ?
		WHERE id = ?
	`, string(app.Status), string(decision), now, app.ID)
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	ok, err := affected(res)
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	if !ok {
		return model.NotFound("application %s not found", app.ID)
	}
	app.UpdatedAt = now
	return nil
}
