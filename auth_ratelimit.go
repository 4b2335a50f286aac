package main

import (
	"fmt"
	"sync"
	"time"
)

// AuthRateLimiter tracks failed login attempts per IP+login and blocks
// repeat offenders for a fixed duration.
type AuthRateLimiter struct {
	mu              sync.RWMutex
	attempts        map[string]*authAttemptRecord
	maxAttempts     int
	blockDuration   time.Duration
	attemptsWindow  time.Duration
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

type authAttemptRecord struct {
	firstAttempt time.Time
	lastAttempt  time.Time
	failureCount int
	blockedUntil time.Time
}

// NewAuthRateLimiter creates a rate limiter and starts its cleanup loop.
func NewAuthRateLimiter(maxAttempts int, blockDuration, attemptsWindow time.Duration) *AuthRateLimiter {
	rl := &AuthRateLimiter{
		attempts:        make(map[string]*authAttemptRecord),
		maxAttempts:     maxAttempts,
		blockDuration:   blockDuration,
		attemptsWindow:  attemptsWindow,
		cleanupInterval: time.Minute,
		stopCleanup:     make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// RecordFailure records a failed attempt and returns whether the key is now
// blocked, plus the failure count in the current window.
func (rl *AuthRateLimiter) RecordFailure(ip, login string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	key := rl.makeKey(ip, login)
	now := time.Now()

	record, exists := rl.attempts[key]
	if !exists {
		rl.attempts[key] = &authAttemptRecord{
			firstAttempt: now,
			lastAttempt:  now,
			failureCount: 1,
		}
		return false, 1
	}

	if now.Before(record.blockedUntil) {
		record.lastAttempt = now
		record.failureCount++
		return true, record.failureCount
	}

	if now.Sub(record.firstAttempt) > rl.attemptsWindow {
		record.firstAttempt = now
		record.lastAttempt = now
		record.failureCount = 1
		return false, 1
	}

	record.lastAttempt = now
	record.failureCount++
	if record.failureCount >= rl.maxAttempts {
		record.blockedUntil = now.Add(rl.blockDuration)
		return true, record.failureCount
	}
	return false, record.failureCount
}

// IsBlocked reports whether an IP+login is currently blocked.
func (rl *AuthRateLimiter) IsBlocked(ip, login string) (bool, time.Time) {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	record, exists := rl.attempts[rl.makeKey(ip, login)]
	if !exists {
		return false, time.Time{}
	}
	if now := time.Now(); now.Before(record.blockedUntil) {
		return true, record.blockedUntil
	}
	return false, time.Time{}
}

// RecordSuccess clears the failure record for an IP+login.
func (rl *AuthRateLimiter) RecordSuccess(ip, login string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.attempts, rl.makeKey(ip, login))
}

// Stop terminates the cleanup loop.
func (rl *AuthRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCleanup) })
}

func (rl *AuthRateLimiter) makeKey(ip, login string) string {
	return fmt.Sprintf("%s:%s", ip, login)
}

func (rl *AuthRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *AuthRateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for key, record := range rl.attempts {
		expired := now.After(record.blockedUntil) &&
			now.Sub(record.lastAttempt) > rl.attemptsWindow
		if expired {
			delete(rl.attempts, key)
		}
	}
}
