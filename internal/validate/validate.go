// Package validate checks request bodies against embedded CUE schemas
// before they are decoded into typed structs.
package validate

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/loanflow/loanflow/internal/model"
)

//go:embed schemas.cue
var schemasCUE string

// Schema names.
const (
	ApplicationCreate = "#ApplicationCreate"
	KYCResult         = "#KYCResult"
	FraudResult       = "#FraudResult"
	CreditScore       = "#CreditScore"
	PlanOptions       = "#PlanOptions"
	BookingCreate     = "#BookingCreate"
	EvaluatorInput    = "#EvaluatorInput"
)

// ErrMalformed is wrapped by the error Validate returns when the body is
// not JSON at all.
var ErrMalformed = errors.New("malformed JSON body")

// FieldError describes the first schema violation in a document.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *FieldError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validator holds the compiled schemas. A cue.Context is not safe for
// concurrent use, so Validate serializes through mu.
type Validator struct {
	mu      sync.Mutex
	ctx     *cue.Context
	schemas cue.Value
}

// New compiles the embedded schemas.
func New() (*Validator, error) {
	ctx := cuecontext.New()
	schemas := ctx.CompileString(schemasCUE, cue.Filename("schemas.cue"))
	if err := schemas.Err(); err != nil {
		return nil, fmt.Errorf("compile schemas: %w", err)
	}
	return &Validator{ctx: ctx, schemas: schemas}, nil
}

// Validate checks the JSON document data against the named schema. An
// empty document is treated as {}. Violations are returned as a
// model.Error of kind VALIDATION wrapping a *FieldError.
func (v *Validator) Validate(schema string, data []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	def := v.schemas.LookupPath(cue.ParsePath(schema))
	if !def.Exists() {
		return fmt.Errorf("unknown schema %s", schema)
	}

	if len(strings.TrimSpace(string(data))) == 0 {
		data = []byte("{}")
	}
	if !json.Valid(data) {
		return &model.Error{Kind: model.KindValidation, Message: ErrMalformed.Error(), Err: ErrMalformed}
	}
	doc := v.ctx.CompileBytes(data, cue.Filename("body.json"))
	if err := doc.Err(); err != nil {
		return &model.Error{Kind: model.KindValidation, Message: ErrMalformed.Error(), Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}

	if err := def.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return invalid(formatCUEError(err))
	}
	return nil
}

// Decode validates data against schema and then unmarshals it into dst.
func (v *Validator) Decode(schema string, data []byte, dst any) error {
	if err := v.Validate(schema, data); err != nil {
		return err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return &model.Error{Kind: model.KindValidation, Message: err.Error(), Err: err}
	}
	return nil
}

func invalid(fe *FieldError) error {
	return &model.Error{Kind: model.KindValidation, Message: fe.Error(), Err: fe}
}

// formatCUEError reduces a CUE error list to its first entry.
func formatCUEError(err error) *FieldError {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &FieldError{Message: err.Error()}
	}

	first := errs[0]
	path := first.Path()
	if len(path) > 0 && strings.HasPrefix(path[0], "#") {
		path = path[1:]
	}
	format, args := first.Msg()
	return &FieldError{
		Field:   strings.Join(path, "."),
		Message: fmt.Sprintf(format, args...),
	}
}
