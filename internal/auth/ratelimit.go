// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

package auth

import (
	"sync"
	"time"
)

// Handshake throttling defaults.
const (
	// LockoutDuration is how long a remote host is refused after too many
	// failed handshakes.
	LockoutDuration = 5 * time.Minute

	// LockoutThreshold is the number of consecutive failures that triggers
	// a lockout.
	LockoutThreshold = 10
)

// RateLimitResult is the outcome of a Check.
type RateLimitResult struct {
	// IsLockedOut indicates the host is temporarily refused.
	IsLockedOut bool

	// LockoutRemaining is the time until the lockout expires.
	LockoutRemaining time.Duration
}

type failureRecord struct {
	failures    int
	lockedUntil time.Time
}

// FailureLimiter counts failed handshakes per remote host and locks a host
// out once it reaches the threshold. Success clears the count.
type FailureLimiter struct {
	threshold int
	lockout   time.Duration
	now       func() time.Time

	mu      sync.Mutex
	records map[string]*failureRecord
}

// NewFailureLimiter creates a limiter. Non-positive arguments take the
// package defaults.
func NewFailureLimiter(threshold int, lockout time.Duration) *FailureLimiter {
	if threshold <= 0 {
		threshold = LockoutThreshold
	}
	if lockout <= 0 {
		lockout = LockoutDuration
	}
	return &FailureLimiter{
		threshold: threshold,
		lockout:   lockout,
		now:       time.Now,
		records:   make(map[string]*failureRecord),
	}
}

// Check reports whether key is currently locked out. An expired lockout is
// forgotten.
func (l *FailureLimiter) Check(key string) RateLimitResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[key]
	if !ok || rec.lockedUntil.IsZero() {
		return RateLimitResult{}
	}
	now := l.now()
	if !rec.lockedUntil.After(now) {
		delete(l.records, key)
		return RateLimitResult{}
	}
	return RateLimitResult{IsLockedOut: true, LockoutRemaining: rec.lockedUntil.Sub(now)}
}

// Fail records a failure for key and returns the resulting state.
func (l *FailureLimiter) Fail(key string) RateLimitResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[key]
	if !ok {
		rec = &failureRecord{}
		l.records[key] = rec
	}
	rec.failures++
	if rec.failures < l.threshold {
		return RateLimitResult{}
	}
	rec.lockedUntil = l.now().Add(l.lockout)
	return RateLimitResult{IsLockedOut: true, LockoutRemaining: l.lockout}
}

// Reset clears key after a successful handshake.
func (l *FailureLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.records, key)
}

// Len returns the number of tracked hosts.
func (l *FailureLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}
