// Package idempotency implements the request ledger that makes every
// mutating call safe to retry.
//
// A call is identified by its idempotency key and route. The first call
// locks an IN_PROGRESS record in its own committed transaction; the
// handler's writes and the stored response are then committed together
// through Complete. Retries with the same key, route and payload replay
// the stored response byte for byte.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/loanflow/loanflow/internal/canonical"
	"github.com/loanflow/loanflow/internal/model"
	"github.com/loanflow/loanflow/internal/store"
)

// MaxKeyLength is the longest accepted idempotency key, in bytes.
const MaxKeyLength = 255

// Tx is the part of a store transaction the ledger uses.
// *store.Tx implements it.
type Tx interface {
	GetIdempotencyByKey(ctx context.Context, key string) (model.IdempotencyRecord, bool, error)
	GetIdempotency(ctx context.Context, key, route string) (model.IdempotencyRecord, bool, error)
	InsertIdempotency(ctx context.Context, rec model.IdempotencyRecord) error
	TransitionIdempotency(ctx context.Context, key, route string, from, to model.IdempotencyStatus) (bool, error)
	CompleteIdempotency(ctx context.Context, key, route string, code int, body []byte) (bool, error)
}

// Request identifies one call.
type Request struct {
	Key           string
	Route         string
	Payload       canonical.Value
	RequestMode   string
	ExecutionMode string
}

// Outcome tells the caller whether to run the handler or replay.
type Outcome struct {
	Replay bool
	Code   int
	Body   []byte
}

// Proceed reports whether the caller holds the lock and must run the
// handler.
func (o Outcome) Proceed() bool { return !o.Replay }

type txFunc func(ctx context.Context, fn func(Tx) error) error

// Ledger guards handlers with idempotency records.
type Ledger struct {
	withTx txFunc
	logger *slog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(led *Ledger) {
		if l != nil {
			led.logger = l
		}
	}
}

// New creates a ledger backed by s.
func New(s *store.Store, opts ...Option) *Ledger {
	return newLedger(func(ctx context.Context, fn func(Tx) error) error {
		return s.WithTx(ctx, func(tx *store.Tx) error { return fn(tx) })
	}, opts...)
}

func newLedger(withTx txFunc, opts ...Option) *Ledger {
	l := &Ledger{withTx: withTx, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ValidateKey checks the idempotency key format.
func ValidateKey(key string) error {
	if key == "" {
		return model.Validation("Idempotency-Key header is required")
	}
	if len(key) > MaxKeyLength {
		return model.Validation("Idempotency-Key must be at most %d bytes", MaxKeyLength)
	}
	return nil
}

// CheckAndLock looks up the record for the request and either returns a
// replay of the stored response or takes the IN_PROGRESS lock. The lock is
// committed before CheckAndLock returns.
//
// Errors:
//   - Validation: bad key or non-canonical payload
//   - Conflict: key used on another route or with another payload, a call
//     with this key is in progress, or a concurrent insert won the race
func (l *Ledger) CheckAndLock(ctx context.Context, req Request) (Outcome, error) {
	if err := ValidateKey(req.Key); err != nil {
		return Outcome{}, err
	}
	payload := req.Payload
	if payload == nil {
		payload = canonical.Object{}
	}
	hash, err := canonical.PayloadHash(payload, req.RequestMode, req.ExecutionMode)
	if err != nil {
		return Outcome{}, model.Validation("payload cannot be canonicalized: %v", err)
	}

	var out Outcome
	err = l.withTx(ctx, func(tx Tx) error {
		var err error
		out, err = l.lock(ctx, tx, req, hash)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrUniqueViolation) {
			l.logger.Warn("concurrent idempotent request",
				"key", req.Key,
				"route", req.Route,
			)
			return Outcome{}, model.Conflict("concurrent request detected for this Idempotency-Key")
		}
		if model.IsConflict(err) {
			l.logger.Warn("idempotency conflict",
				"key", req.Key,
				"route", req.Route,
				"error", err,
			)
			return Outcome{}, err
		}
		l.logger.Error("idempotency lock failed",
			"key", req.Key,
			"route", req.Route,
			"error", err,
		)
		return Outcome{}, model.Internal(err, "idempotency lock")
	}

	if out.Replay {
		l.logger.Info("idempotent replay",
			"key", req.Key,
			"route", req.Route,
			"code", out.Code,
		)
	}
	return out, nil
}

func (l *Ledger) lock(ctx context.Context, tx Tx, req Request, hash string) (Outcome, error) {
	existing, found, err := tx.GetIdempotencyByKey(ctx, req.Key)
	if err != nil {
		return Outcome{}, err
	}
	if found && existing.Route != req.Route {
		return Outcome{}, model.Conflict("Idempotency-Key already used for route %s", existing.Route)
	}
	if found && existing.PayloadHash != hash {
		return Outcome{}, model.Conflict("Idempotency-Key reused with a different payload")
	}

	rec, found, err := tx.GetIdempotency(ctx, req.Key, req.Route)
	if err != nil {
		return Outcome{}, err
	}
	if !found {
		err := tx.InsertIdempotency(ctx, model.IdempotencyRecord{
			Key:           req.Key,
			Route:         req.Route,
			PayloadHash:   hash,
			RequestMode:   req.RequestMode,
			ExecutionMode: req.ExecutionMode,
		})
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{}, nil
	}
	if rec.PayloadHash != hash {
		return Outcome{}, model.Conflict("Idempotency-Key reused with a different payload")
	}

	switch rec.Status {
	case model.IdemCompleted:
		return Outcome{Replay: true, Code: rec.ResponseCode, Body: rec.ResponseBody}, nil
	case model.IdemInProgress:
		return Outcome{}, model.Conflict("request is currently in progress")
	default:
		ok, err := tx.TransitionIdempotency(ctx, req.Key, req.Route, rec.Status, model.IdemInProgress)
		if err != nil {
			return Outcome{}, err
		}
		if !ok {
			return Outcome{}, model.Conflict("concurrent request detected for this Idempotency-Key")
		}
		return Outcome{}, nil
	}
}

// Complete stores the response for (key, route) inside the caller's
// transaction. The record must be IN_PROGRESS; a completed body is never
// overwritten.
func (l *Ledger) Complete(ctx context.Context, tx Tx, key, route string, code int, body []byte) error {
	ok, err := tx.CompleteIdempotency(ctx, key, route, code, body)
	if err != nil {
		return fmt.Errorf("complete idempotency record: %w", err)
	}
	if !ok {
		return model.Conflict("idempotency record for %s is not in progress", route)
	}
	return nil
}

// Fail releases the lock by marking (key, route) FAILED so a retry with
// the same key runs the handler again. It runs in its own transaction
// after the handler's transaction has rolled back.
func (l *Ledger) Fail(ctx context.Context, key, route string) error {
	err := l.withTx(ctx, func(tx Tx) error {
		ok, err := tx.TransitionIdempotency(ctx, key, route, model.IdemInProgress, model.IdemFailed)
		if err != nil {
			return err
		}
		if !ok {
			return model.Conflict("idempotency record for %s is not in progress", route)
		}
		return nil
	})
	if err != nil {
		l.logger.Error("idempotency record stuck in progress",
			"key", key,
			"route", route,
			"error", err,
		)
		return fmt.Errorf("mark idempotency record failed: %w", err)
	}
	return nil
}
