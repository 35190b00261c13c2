// Package ledger provides the default, in-process double-spend ledger.
// It exists above the cryptographic core per spec.md §1's explicit
// non-goal: redeemCredential asserts cryptographic validity only, and
// deduplication is layered on separately.
package ledger

import (
	"context"
	"sync"
)

// MemoryLedger tracks redeemed tokens in an in-process map. Suitable for
// tests and single-node demo deployments; production deployments swap in
// a persistent store implementing the same service.RedemptionLedger
// interface without touching the core or the service package.
type MemoryLedger struct {
	mu   sync.Mutex
	seen map[[32]byte]struct{}
}

// NewMemoryLedger constructs an empty ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{seen: make(map[[32]byte]struct{})}
}

// SeenBefore reports whether token has already been marked redeemed.
func (l *MemoryLedger) SeenBefore(ctx context.Context, token [32]byte) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[token]
	return ok, nil
}

// MarkSeen records token as redeemed.
func (l *MemoryLedger) MarkSeen(ctx context.Context, token [32]byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen[token] = struct{}{}
	return nil
}
