// Package snmp implements the priority-aware, concurrency-bounded polling
// scheduler (C6) and the pure OID-to-NodeStatus derived-state mapper (C7).
package snmp

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// Priority mirrors the policy package's priority scale for poll ordering.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

// PollingTask is one scheduled SNMP target.
type PollingTask struct {
	ID                  uuid.UUID
	NodeID              string
	Target              string // host:port
	Community           string
	OIDs                []string
	Priority            Priority
	Interval            time.Duration
	PollTimeout         time.Duration
	// Jitter bounds a random offset applied to every scheduled NextPollTime
	// so a large fleet of tasks sharing an interval don't all fire in lockstep.
	Jitter              time.Duration
	Enabled             bool
	NextPollTime        time.Time
	LastAttempt         time.Time
	LastSuccess         time.Time
	LastError           string
	ConsecutiveFailures int
}

// backoffMultiplier and maxRetries bound the exponential backoff applied
// to a task's next poll time after consecutive failures.
const (
	backoffMultiplier = 2.0
	maxRetries        = 5
)

// due reports whether t should be polled at "now".
func (t *PollingTask) due(now time.Time) bool {
	return t.Enabled && !now.Before(t.NextPollTime)
}

// scheduleNext computes NextPollTime from the configured interval and the
// current failure streak: interval * multiplier^min(failures, maxRetries),
// plus a random offset in [-Jitter, +Jitter) to spread a fleet of tasks
// sharing an interval across time instead of polling in lockstep.
func (t *PollingTask) scheduleNext(at time.Time) {
	retries := t.ConsecutiveFailures
	if retries > maxRetries {
		retries = maxRetries
	}
	backoff := float64(t.Interval)
	for i := 0; i < retries; i++ {
		backoff *= backoffMultiplier
	}
	t.NextPollTime = at.Add(time.Duration(backoff)).Add(t.jitterOffset())
}

// jitterOffset draws a random duration in [-Jitter, +Jitter). A zero Jitter
// always yields zero, keeping scheduling deterministic for tasks that don't
// opt in.
func (t *PollingTask) jitterOffset() time.Duration {
	if t.Jitter <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(2*t.Jitter))) - t.Jitter
}

// IsHealthy reports whether t has produced a successful poll within
// maxSilence of now. A task with no successful poll yet counts as healthy.
func (t *PollingTask) IsHealthy(now time.Time, maxSilence time.Duration) bool {
	if t.LastSuccess.IsZero() {
		return true
	}
	return now.Sub(t.LastSuccess) <= maxSilence
}

// PollingResult is emitted once per task per tick it is polled, regardless
// of outcome.
type PollingResult struct {
	TaskID  uuid.UUID
	NodeID  string
	Success bool
	Values  map[string]string
	Err     error
	At      time.Time
}
