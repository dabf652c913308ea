package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loanflow/loanflow/internal/store"
)

// MigrateResult is the output of the migrate command.
type MigrateResult struct {
	Driver        string `json:"driver"`
	SchemaVersion int    `json:"schema_version"`
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply store migrations",
		Long: `Create or upgrade the store schema and print the resulting version.

Migrations are idempotent; running migrate against an up-to-date store
is a no-op.

Examples:
  loanctl migrate
  loanctl migrate --dsn ./loans.db --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			if dsn != "" {
				cfg.Store.DSN = dsn
			}
			if _, err := rootOpts.logger(cfg, cmd.ErrOrStderr()); err != nil {
				return err
			}
			out := rootOpts.formatter(cmd)

			st, err := store.Open(cmd.Context(), store.Config{Driver: cfg.Store.Driver, DSN: cfg.Store.DSN})
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open store", err)
			}
			defer st.Close()

			version, err := st.Migrate(cmd.Context())
			if err != nil {
				return WrapExitError(ExitFailure, "migration failed", err)
			}
			out.VerboseLog("store %s at schema version %d", cfg.Store.Driver, version)

			result := MigrateResult{Driver: cfg.Store.Driver, SchemaVersion: version}
			if out.Format == "json" {
				return out.Success(result)
			}
			return out.Success(fmt.Sprintf("Schema version %d (%s)", version, cfg.Store.Driver))
		},
	}

	cmd.Flags().StringVar(&dsn, "dsn", "", "store DSN (overrides store.dsn)")

	return cmd
}
