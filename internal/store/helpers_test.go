package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loanflow/loanflow/internal/model"
	"github.com/loanflow/loanflow/internal/testutil"
)

// createTestStore opens a SQLite store in a temp dir with a deterministic
// clock.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := OpenSQLite(context.Background(), path, WithClock(testutil.NewDeterministicClock().Now))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func inTx(t *testing.T, s *Store, fn func(tx *Tx) error) {
	t.Helper()
	require.NoError(t, s.WithTx(context.Background(), fn))
}

func testApplication(id string) *model.Application {
	return &model.Application{
		ID:     id,
		Status: model.StatusNew,
		Applicant: model.Applicant{
			ApplicantID:   "applicant-1",
			ApplicantName: "Ada Lovelace",
			Amount:        10000,
			Income:        85000,
			Debt:          12000,
		},
	}
}
