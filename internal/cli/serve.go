package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/loanflow/loanflow/internal/api"
	"github.com/loanflow/loanflow/internal/config"
	"github.com/loanflow/loanflow/internal/service"
	"github.com/loanflow/loanflow/internal/store"
	"github.com/loanflow/loanflow/internal/telemetry"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr string
	DSN  string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the loan API server",
		Long: `Open the store, apply migrations and serve the loan API over HTTP.

The server shuts down gracefully on SIGINT or SIGTERM, waiting up to
http.shutdown_timeout for in-flight requests.

Examples:
  loanctl serve
  loanctl serve --addr :9090 --dsn ./loans.db
  LOANFLOW_STORE_DRIVER=postgres LOANFLOW_STORE_DSN=postgres://... loanctl serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if opts.Addr != "" {
				cfg.HTTP.Addr = opts.Addr
			}
			if opts.DSN != "" {
				cfg.Store.DSN = opts.DSN
			}
			logger, err := opts.logger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides http.addr)")
	cmd.Flags().StringVar(&opts.DSN, "dsn", "", "store DSN (overrides store.dsn)")

	return cmd
}

// serve runs the API until ctx is cancelled.
func serve(ctx context.Context, cfg config.Config, logger *slog.Logger, out io.Writer) error {
	shutdownTracing, err := telemetry.Setup(ctx, cfg.Tracing)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to set up tracing", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error("error flushing traces", "error", err)
		}
	}()

	logger.Info("opening store", "driver", cfg.Store.Driver)
	st, err := store.Open(ctx, store.Config{Driver: cfg.Store.Driver, DSN: cfg.Store.DSN})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing store", "error", closeErr)
		}
	}()

	svc, err := service.New(st, service.WithLogger(logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build service", err)
	}

	ln, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}

	srv := &http.Server{
		Handler:      api.NewRouter(svc, logger),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	logger.Info("server started", "addr", ln.Addr().String())
	fmt.Fprintf(out, "Listening on %s\n", ln.Addr())

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitFailure, "server error", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.HTTP.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "graceful shutdown failed", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return WrapExitError(ExitFailure, "server error", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}
