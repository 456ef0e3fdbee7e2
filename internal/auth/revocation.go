package auth

import (
	"sync"
	"time"
)

// RevocationList is a concurrent TTL set of revoked credential fingerprints.
// Membership checks re-evaluate the entry's expiry, so sweeping is purely a
// liveness concern: an elapsed entry reads as not-revoked even before the
// sweeper removes it.
type RevocationList struct {
	mu      sync.RWMutex
	entries map[string]time.Time // fingerprint -> entry expiry
	done    chan struct{}
	closed  bool
}

// NewRevocationList creates an empty list. A background goroutine sweeps
// expired entries once a minute; call Close to stop it.
func NewRevocationList() *RevocationList {
	l := &RevocationList{
		entries: make(map[string]time.Time),
		done:    make(chan struct{}),
	}
	go l.sweeper()
	return l
}

// Revoke marks a credential fingerprint revoked for ttl. Revoking an entry
// that is already revoked keeps the original expiry, so the call is
// idempotent. The caller caps ttl at the credential's own expiry; an entry
// kept longer would just be dead weight.
func (l *RevocationList) Revoke(fingerprint string, ttl time.Duration) {
	if fingerprint == "" || ttl <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if expiry, ok := l.entries[fingerprint]; ok && now.Before(expiry) {
		return
	}
	l.entries[fingerprint] = now.Add(ttl)
}

// IsRevoked reports whether the fingerprint is currently revoked. Bounded
// time regardless of list size.
func (l *RevocationList) IsRevoked(fingerprint string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	expiry, ok := l.entries[fingerprint]
	if !ok {
		return false
	}
	return time.Now().Before(expiry)
}

// Sweep removes entries whose ttl elapsed before now.
func (l *RevocationList) Sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for fingerprint, expiry := range l.entries {
		if !now.Before(expiry) {
			delete(l.entries, fingerprint)
		}
	}
}

// Len returns the number of stored entries, elapsed ones included.
func (l *RevocationList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func (l *RevocationList) sweeper() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.Sweep(time.Now())
		case <-l.done:
			return
		}
	}
}

// Close stops the background sweeper. Safe to call multiple times.
func (l *RevocationList) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		close(l.done)
		l.closed = true
	}
}
