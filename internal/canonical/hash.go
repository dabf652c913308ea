package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainPlanInputs separates plan input hashes from any other digest.
// The version suffix allows future algorithm migration.
const DomainPlanInputs = "loanflow/plan-inputs/v1"

// PayloadHash computes the idempotency hash of a request.
// Format: hex(SHA256(canonical(value) + "|" + requestMode + "|" + executionMode))
func PayloadHash(value Value, requestMode, executionMode string) (string, error) {
	data, err := Marshal(value)
	if err != nil {
		return "", fmt.Errorf("PayloadHash: %w", err)
	}
	h := sha256.New()
	h.Write(data)
	h.Write([]byte("|" + requestMode + "|" + executionMode))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// InputsHash computes the staleness hash pinned to a decision plan.
// Format: hex(SHA256(domain + 0x00 + canonical(value)))
func InputsHash(value Value) (string, error) {
	data, err := Marshal(value)
	if err != nil {
		return "", fmt.Errorf("InputsHash: %w", err)
	}
	return hashWithDomain(DomainPlanInputs, data), nil
}

// hashWithDomain computes SHA-256 with domain separation.
// The null byte prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
