package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryProvider is an in-process Provider used for tests and for
// single-instance deployments that don't need cross-process coordination.
// It implements the same SETNX+EXPIRE contract as RedisProvider, including
// Shared locks' multiple-concurrent-holder semantics.
type MemoryProvider struct {
	mu              sync.Mutex
	entries         map[string]*memoryKeyState
	totalAcquired   int64
	contentionCount int64
}

// memoryHolder is one nonce's lease on a key. Exclusive/Leader/Critical
// keys carry exactly one holder at a time; Shared keys may carry several.
type memoryHolder struct {
	nonce        string
	ownerID      string
	acquiredAt   time.Time
	expiresAt    time.Time
	renewalCount int
}

type memoryKeyState struct {
	lockType Type
	holders  map[string]*memoryHolder // nonce -> holder
}

// NewMemoryProvider builds an empty in-memory lock table.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{entries: map[string]*memoryKeyState{}}
}

// pruneExpired drops holders whose lease has lapsed.
func pruneExpired(state *memoryKeyState, now time.Time) {
	for nonce, h := range state.holders {
		if now.After(h.expiresAt) {
			delete(state.holders, nonce)
		}
	}
}

func (p *MemoryProvider) Acquire(_ context.Context, key, nonce, ownerID string, lockType Type, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	state, ok := p.entries[key]
	if ok {
		pruneExpired(state, now)
		if len(state.holders) > 0 {
			if lockType != TypeShared || state.lockType != TypeShared {
				p.contentionCount++
				return false, nil
			}
		} else {
			ok = false
		}
	}
	if !ok {
		state = &memoryKeyState{lockType: lockType, holders: map[string]*memoryHolder{}}
		p.entries[key] = state
	}

	state.holders[nonce] = &memoryHolder{
		nonce:      nonce,
		ownerID:    ownerID,
		acquiredAt: now,
		expiresAt:  now.Add(ttl),
	}
	p.totalAcquired++
	return true, nil
}

func (p *MemoryProvider) Release(_ context.Context, key, nonce, ownerID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, ok := p.entries[key]
	if !ok {
		return false, nil
	}
	h, ok := state.holders[nonce]
	if !ok || h.ownerID != ownerID {
		return false, nil
	}
	delete(state.holders, nonce)
	if len(state.holders) == 0 {
		delete(p.entries, key)
	}
	return true, nil
}

func (p *MemoryProvider) Extend(_ context.Context, key, nonce string, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, ok := p.entries[key]
	if !ok {
		return false, nil
	}
	h, ok := state.holders[nonce]
	if !ok {
		return false, nil
	}
	h.expiresAt = time.Now().Add(ttl)
	h.renewalCount++
	return true, nil
}

// GetInfo returns the most recently acquired active holder for key. For a
// Shared key with multiple concurrent holders, use List to see all of them.
func (p *MemoryProvider) GetInfo(_ context.Context, key string) (*Info, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, ok := p.entries[key]
	if !ok {
		return nil, nil
	}
	pruneExpired(state, time.Now())
	if len(state.holders) == 0 {
		delete(p.entries, key)
		return nil, nil
	}

	var latest *memoryHolder
	for _, h := range state.holders {
		if latest == nil || h.acquiredAt.After(latest.acquiredAt) {
			latest = h
		}
	}
	return holderInfo(key, state.lockType, latest), nil
}

// List returns one Info per active holder, so a Shared key with N
// concurrent holders contributes N rows.
func (p *MemoryProvider) List(_ context.Context) ([]*Info, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	var out []*Info
	for key, state := range p.entries {
		pruneExpired(state, now)
		if len(state.holders) == 0 {
			delete(p.entries, key)
			continue
		}
		for _, h := range state.holders {
			out = append(out, holderInfo(key, state.lockType, h))
		}
	}
	return out, nil
}

func (p *MemoryProvider) Stats(_ context.Context) (Stats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	var held int64
	for key, state := range p.entries {
		pruneExpired(state, now)
		if len(state.holders) == 0 {
			delete(p.entries, key)
			continue
		}
		held += int64(len(state.holders))
	}
	return Stats{TotalAcquired: p.totalAcquired, CurrentlyHeld: held, ContentionCount: p.contentionCount}, nil
}

func holderInfo(key string, lockType Type, h *memoryHolder) *Info {
	return &Info{
		Key:          key,
		Value:        h.nonce,
		OwnerID:      h.ownerID,
		Type:         lockType,
		AcquiredAt:   h.acquiredAt,
		ExpiresAt:    h.expiresAt,
		RenewalCount: h.renewalCount,
	}
}
