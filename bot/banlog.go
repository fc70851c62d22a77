// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// BanEntry is one recorded ban.
type BanEntry struct {
	UserID        string    `json:"user_id"`
	UserName      string    `json:"user_name"`
	ModeratorID   string    `json:"moderator_id"`
	ModeratorName string    `json:"moderator_name"`
	Reason        string    `json:"reason"`
	Timestamp     time.Time `json:"timestamp"`
	ExtraNote     string    `json:"extra_note,omitempty"`
}

// BanLog is the in-memory moderation log, process lifetime only.
type BanLog struct {
	mu      sync.Mutex
	entries []BanEntry
}

// NewBanLog creates an empty ban log.
func NewBanLog() *BanLog {
	return &BanLog{}
}

// Append records a ban.
func (l *BanLog) Append(e BanEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

// Entry returns the n-th most recent ban, 1-indexed.
func (l *BanLog) Entry(n int) (BanEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n < 1 || n > len(l.entries) {
		return BanEntry{}, fmt.Errorf("invalid ban index %d, %d entries logged", n, len(l.entries))
	}
	return l.entries[len(l.entries)-n], nil
}

// Entries returns a copy of all entries, oldest first.
func (l *BanLog) Entries() []BanEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]BanEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of logged bans.
func (l *BanLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// RenderJSON renders an entry as an indented JSON block.
func RenderJSON(e BanEntry) (string, error) {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to render ban entry: %w", err)
	}
	return string(data), nil
}

// RenderDict renders an entry as an indented key/value block.
func RenderDict(e BanEntry) string {
	lines := []struct{ k, v string }{
		{"user_id", e.UserID},
		{"user_name", e.UserName},
		{"moderator_id", e.ModeratorID},
		{"moderator_name", e.ModeratorName},
		{"reason", e.Reason},
		{"timestamp", e.Timestamp.Format(time.RFC3339)},
	}
	if e.ExtraNote != "" {
		lines = append(lines, struct{ k, v string }{"extra_note", e.ExtraNote})
	}

	out := "{\n"
	for _, l := range lines {
		out += fmt.Sprintf("  %s: %s\n", l.k, l.v)
	}
	return out + "}"
}
