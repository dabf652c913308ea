package model

// IdempotencyStatus is the lifecycle state of a ledger record.
type IdempotencyStatus string

const (
	IdemInProgress IdempotencyStatus = "IN_PROGRESS"
	IdemCompleted  IdempotencyStatus = "COMPLETED"
	IdemFailed     IdempotencyStatus = "FAILED"
)

// IdempotencyRecord is one ledger row, identified by (Key, Route).
//
// INVARIANT: while Status is IdemCompleted, ResponseBody never changes.
type IdempotencyRecord struct {
	Key           string
	Route         string
	PayloadHash   string
	RequestMode   string
	ExecutionMode string
	Status        IdempotencyStatus
	ResponseCode  int
	ResponseBody  []byte
	CreatedAt     string
	UpdatedAt     string
}
