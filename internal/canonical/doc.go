// Package canonical provides RFC 8785 canonical JSON and the content hashes
// built on it.
//
// Two hashes are derived from canonical bytes:
//   - PayloadHash: idempotency matching of a request body plus its modes
//   - InputsHash: staleness detection for decision plans
//
// Both are stable across field-order permutations of the hashed value.
// Floats are forbidden (they break determinism); numbers must be integers.
package canonical
