package model

import "github.com/google/uuid"

// DeriveID maps an idempotency key to a stable UUIDv5 in the OID namespace,
// so replays of the same request always name the same resource.
func DeriveID(key string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}

// DeriveRunID is DeriveID with the "run_" prefix used for workflow runs.
func DeriveRunID(key string) string {
	return "run_" + DeriveID(key)
}
