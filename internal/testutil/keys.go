package testutil

import (
	"fmt"
	"sync/atomic"
)

// KeyGenerator hands out idempotency keys "<prefix>-1", "<prefix>-2", ...
// so a test can issue distinct requests while staying reproducible.
//
// Thread-safety: Next is safe for concurrent use.
type KeyGenerator struct {
	prefix string
	n      atomic.Int64
}

// NewKeyGenerator creates a generator. An empty prefix becomes "test-key".
func NewKeyGenerator(prefix string) *KeyGenerator {
	if prefix == "" {
		prefix = "test-key"
	}
	return &KeyGenerator{prefix: prefix}
}

// Next returns the next key.
func (g *KeyGenerator) Next() string {
	return fmt.Sprintf("%s-%d", g.prefix, g.n.Add(1))
}
