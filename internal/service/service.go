// Package service implements the loan API operations. Every mutating
// operation runs through the idempotency ledger: the lock commits first,
// then the handler's writes, audit entries and the stored response commit
// together in a second transaction.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/loanflow/loanflow/internal/canonical"
	"github.com/loanflow/loanflow/internal/evaluator"
	"github.com/loanflow/loanflow/internal/idempotency"
	"github.com/loanflow/loanflow/internal/model"
	"github.com/loanflow/loanflow/internal/origination"
	"github.com/loanflow/loanflow/internal/planning"
	"github.com/loanflow/loanflow/internal/store"
	"github.com/loanflow/loanflow/internal/validate"
	"github.com/loanflow/loanflow/internal/workflow"
)

// Service is the loan API core. It is safe for concurrent use.
type Service struct {
	store     *store.Store
	ledger    *idempotency.Ledger
	loan      *origination.Workflow
	planner   *planning.Planner
	validator *validate.Validator
	logger    *slog.Logger
}

// Option configures a Service.
type Option func(*settings)

type settings struct {
	logger *slog.Logger
	eval   evaluator.Func
	wfOpts []workflow.Option
}

// WithLogger sets the logger for the service and its components.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithEvaluator replaces evaluator.Evaluate.
func WithEvaluator(eval evaluator.Func) Option {
	return func(s *settings) { s.eval = eval }
}

// WithWorkflowOptions passes options to the loan workflow.
func WithWorkflowOptions(opts ...workflow.Option) Option {
	return func(s *settings) { s.wfOpts = append(s.wfOpts, opts...) }
}

// New wires a Service over st.
func New(st *store.Store, opts ...Option) (*Service, error) {
	cfg := settings{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	wfOpts := append([]workflow.Option{workflow.WithLogger(cfg.logger)}, cfg.wfOpts...)

	loan, err := origination.New(cfg.eval, wfOpts...)
	if err != nil {
		return nil, err
	}
	planner, err := planning.New(cfg.eval,
		planning.WithLogger(cfg.logger),
		planning.WithWorkflowOptions(wfOpts...),
	)
	if err != nil {
		return nil, err
	}
	validator, err := validate.New()
	if err != nil {
		return nil, err
	}

	return &Service{
		store:     st,
		ledger:    idempotency.New(st, idempotency.WithLogger(cfg.logger)),
		loan:      loan,
		planner:   planner,
		validator: validator,
		logger:    cfg.logger,
	}, nil
}

type handlerFunc func(ctx context.Context, tx *store.Tx) (any, error)

// guarded runs handler under the ledger. payload is the normalized request
// body that the payload hash is computed over.
func (s *Service) guarded(ctx context.Context, call Call, mode model.Mode, payload any, code int, handler handlerFunc) (Response, error) {
	value, err := canonical.FromStruct(payload)
	if err != nil {
		return Response{}, model.Validation("request body cannot be canonicalized: %v", err)
	}

	out, err := s.ledger.CheckAndLock(ctx, idempotency.Request{
		Key:           call.Key,
		Route:         call.Route,
		Payload:       value,
		RequestMode:   call.Method,
		ExecutionMode: string(mode),
	})
	if err != nil {
		return Response{}, err
	}
	if out.Replay {
		return Response{Code: out.Code, Body: out.Body, Replayed: true}, nil
	}

	var body []byte
	handlerFailed := false
	err = s.store.WithTx(ctx, func(tx *store.Tx) error {
		result, err := handler(ctx, tx)
		if err != nil {
			handlerFailed = true
			return err
		}
		body, err = json.Marshal(result)
		if err != nil {
			handlerFailed = true
			return model.Internal(err, "encode response")
		}
		return s.ledger.Complete(ctx, tx, call.Key, call.Route, code, body)
	})
	if err != nil && !handlerFailed {
		// Completion or commit failed; the record is left IN_PROGRESS.
		s.logger.Error("idempotency record stuck in progress",
			"key", call.Key,
			"route", call.Route,
			"error", err,
		)
		return Response{}, model.Internal(err, "request could not be completed and its idempotency record is stuck in progress")
	}
	if err != nil {
		if failErr := s.ledger.Fail(ctx, call.Key, call.Route); failErr != nil {
			return Response{}, model.Internal(err, "request failed and its idempotency record is stuck in progress")
		}
		s.logger.Info("request failed, idempotency record released",
			"key", call.Key,
			"route", call.Route,
			"kind", model.KindOf(err),
		)
		return Response{}, err
	}
	return Response{Code: code, Body: body}, nil
}

// read runs fn in a transaction without touching the ledger.
func (s *Service) read(ctx context.Context, fn func(tx *store.Tx) error) error {
	return s.store.WithTx(ctx, fn)
}

func loadApplication(ctx context.Context, tx *store.Tx, id string) (model.Application, error) {
	app, found, err := tx.GetApplication(ctx, id)
	if err != nil {
		return model.Application{}, err
	}
	if !found {
		return model.Application{}, model.NotFound("application %s not found", id)
	}
	return app, nil
}

// Health verifies the store is reachable.
func (s *Service) Health(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("store unreachable: %w", err)
	}
	return nil
}
