package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/loanflow/loanflow/internal/model"
)

// Scenario is one decision test case.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	Input  Input  `yaml:"input"`
	Expect Expect `yaml:"expect"`
}

// Input is the application snapshot fed to the evaluator.
type Input struct {
	// ApplicationID defaults to the scenario name.
	ApplicationID string      `yaml:"application_id,omitempty"`
	Application   Application `yaml:"application"`
	KYC           *KYC        `yaml:"kyc_result,omitempty"`
	Fraud         *Fraud      `yaml:"fraud_result,omitempty"`
	CreditScore   int64       `yaml:"credit_score"`
}

// Application mirrors model.Applicant with YAML field names.
type Application struct {
	ApplicantID   string `yaml:"applicant_id"`
	ApplicantName string `yaml:"applicant_name"`
	Amount        int64  `yaml:"amount"`
	Income        int64  `yaml:"income"`
	Debt          int64  `yaml:"debt"`
	Email         string `yaml:"email,omitempty"`
}

// KYC mirrors model.KYCResult.
type KYC struct {
	Status string `yaml:"status"`
}

// Fraud mirrors model.FraudResult.
type Fraud struct {
	RiskScore int64 `yaml:"risk_score"`
}

// Expect is the outcome the scenario asserts.
type Expect struct {
	Decision model.Decision `yaml:"decision"`

	// ReasonCodes must match exactly, order included. Nil means no reasons.
	ReasonCodes []string `yaml:"reason_codes"`

	// Rate is the expected display rate. Only checked when set.
	Rate *float64 `yaml:"rate,omitempty"`
}

// Inputs converts the scenario input into evaluator inputs.
func (s *Scenario) Inputs() model.Inputs {
	id := s.Input.ApplicationID
	if id == "" {
		id = s.Name
	}
	a := s.Input.Application
	in := model.Inputs{
		ApplicationID: id,
		Applicant: model.Applicant{
			ApplicantID:   a.ApplicantID,
			ApplicantName: a.ApplicantName,
			Amount:        a.Amount,
			Income:        a.Income,
			Debt:          a.Debt,
			Email:         a.Email,
		},
		CreditScore: s.Input.CreditScore,
	}
	if s.Input.KYC != nil {
		in.KYC = &model.KYCResult{Status: s.Input.KYC.Status}
	}
	if s.Input.Fraud != nil {
		in.Fraud = &model.FraudResult{RiskScore: s.Input.Fraud.RiskScore}
	}
	return in
}

// Load reads and parses a scenario YAML file. Unknown fields are rejected.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := validateScenario(&sc); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &sc, nil
}

// LoadDir loads every *.yaml and *.yml file in dir, sorted by file name.
// Duplicate scenario names are an error.
func LoadDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario dir: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	seen := make(map[string]string, len(paths))
	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		sc, err := Load(p)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[sc.Name]; dup {
			return nil, fmt.Errorf("duplicate scenario name %q in %s and %s", sc.Name, prev, p)
		}
		seen[sc.Name] = p
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}

func validateScenario(sc *Scenario) error {
	var errs []error
	if sc.Name == "" {
		errs = append(errs, errors.New("name is required"))
	}
	switch sc.Expect.Decision {
	case model.DecisionApprove, model.DecisionReject:
	case "":
		errs = append(errs, errors.New("expect.decision is required"))
	default:
		errs = append(errs, fmt.Errorf("expect.decision %q must be APPROVE or REJECT", sc.Expect.Decision))
	}
	if sc.Input.KYC != nil && sc.Input.KYC.Status != model.KYCPass && sc.Input.KYC.Status != model.KYCFail {
		errs = append(errs, fmt.Errorf("input.kyc_result.status %q must be PASS or FAIL", sc.Input.KYC.Status))
	}
	return errors.Join(errs...)
}
