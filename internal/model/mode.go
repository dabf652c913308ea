package model

import "fmt"

// Mode selects how a workflow run treats side effects.
type Mode string

const (
	// ModeExecute performs every step's effects.
	ModeExecute Mode = "EXECUTE"

	// ModeDryRun computes the outcome but skips effects.
	ModeDryRun Mode = "DRY_RUN"

	// ModePlan computes the outcome for a persisted plan but skips effects.
	ModePlan Mode = "PLAN"
)

// Previewing reports whether side-effecting steps must skip their effect.
func (m Mode) Previewing() bool {
	return m == ModeDryRun || m == ModePlan
}

// Validate returns an error if m is not one of the known modes.
func (m Mode) Validate() error {
	switch m {
	case ModeExecute, ModeDryRun, ModePlan:
		return nil
	default:
		return fmt.Errorf("unknown mode %q", string(m))
	}
}

// ParseMode converts s into a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if err := m.Validate(); err != nil {
		return "", err
	}
	return m, nil
}
