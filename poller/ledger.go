// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package poller

import (
	"sync"
	"time"
)

// Ledger tracks event ids that have already been delivered. An id is
// registered in the same critical section that approves its delivery, so
// two concurrent ticks can never both decide "deliver" for one id.
//
// Entries older than the delivery window are purged at the start of each
// tick; within the window the set is sufficient to guarantee at-most-once
// delivery, and memory stays bounded.
type Ledger struct {
	mu        sync.Mutex
	delivered map[string]time.Time // id -> delivery timestamp
}

// NewLedger creates an empty delivery ledger.
func NewLedger() *Ledger {
	return &Ledger{
		delivered: make(map[string]time.Time),
	}
}

// ShouldDeliver reports whether the event should be delivered now. It
// returns true iff the id has not been delivered before and the event is
// no older than the window; on true the id is registered atomically.
// Events older than the window are dropped even on first sight, which
// bounds the catch-up storm after a gap at the cost of hiding activity
// during an outage longer than the window.
func (l *Ledger) ShouldDeliver(id string, occurred, now time.Time, window time.Duration) bool {
	if now.Sub(occurred) > window {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, seen := l.delivered[id]; seen {
		return false
	}
	l.delivered[id] = now
	return true
}

// Purge drops entries delivered before now-window and returns how many
// were removed.
func (l *Ledger) Purge(now time.Time, window time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-window)
	removed := 0
	for id, deliveredAt := range l.delivered {
		if deliveredAt.Before(cutoff) {
			delete(l.delivered, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of ids currently tracked.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.delivered)
}
