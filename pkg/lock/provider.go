// Package lock implements lease-based distributed locks with automatic
// renewal, leader election, and an advisory deadlock probe, backed by
// Redis SETNX+EXPIRE semantics.
package lock

import (
	"context"
	"time"
)

// Type distinguishes the lock semantics a key is held under.
type Type string

const (
	// TypeExclusive is a general-purpose mutex: one holder at a time.
	TypeExclusive Type = "exclusive"
	// TypeShared allows multiple concurrent readers under the same key.
	TypeShared Type = "shared"
	// TypeLeader is a leader-election lease.
	TypeLeader Type = "leader"
	// TypeCritical is an exclusive lock. Providers handle it exactly like
	// TypeExclusive; no code path preempts it.
	TypeCritical Type = "critical"
)

func (t Type) Valid() bool {
	switch t {
	case TypeExclusive, TypeShared, TypeLeader, TypeCritical:
		return true
	}
	return false
}

// Info is the record a Provider stores per held lock.
type Info struct {
	Key           string
	Value         string // owner nonce
	OwnerID       string
	Type          Type
	AcquiredAt    time.Time
	ExpiresAt     time.Time
	RenewalCount  int
}

// Stats summarizes a Provider's lock activity.
type Stats struct {
	TotalAcquired   int64
	CurrentlyHeld   int64
	ContentionCount int64
}

// Provider is the lock-backend abstraction: acquire/release/extend/info/
// list/stats. Backends implement SETNX+EXPIRE-equivalent atomicity.
type Provider interface {
	Acquire(ctx context.Context, key, nonce, ownerID string, lockType Type, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, nonce, ownerID string) (bool, error)
	Extend(ctx context.Context, key, nonce string, ttl time.Duration) (bool, error)
	GetInfo(ctx context.Context, key string) (*Info, error)
	List(ctx context.Context) ([]*Info, error)
	Stats(ctx context.Context) (Stats, error)
}
