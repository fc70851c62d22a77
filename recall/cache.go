// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package recall

import (
	"context"
	"sync"
	"time"

	"github.com/absmach/guildbot/server/otel"
)

// Author identifies the author of a cached message.
type Author struct {
	ID        string
	Name      string
	AvatarURL string
}

// Message is the platform message snapshot handed to the write path.
type Message struct {
	ID             string
	ChannelID      string
	Content        string
	Author         Author
	CreatedAt      time.Time
	AttachmentURLs []string
	JumpLink       string
}

// DeletedMessage is an immutable snapshot of a deleted message.
type DeletedMessage struct {
	ChannelID      string
	Content        string
	Author         Author
	CreatedAt      time.Time
	AttachmentURLs []string
}

// EditedMessage is an immutable snapshot of a message edit.
type EditedMessage struct {
	ChannelID     string
	ContentBefore string
	ContentAfter  string
	EditedAt      time.Time
	Author        Author
	JumpLink      string
}

// Stats is a snapshot of cache counters for the status surface.
type Stats struct {
	DeletionChannels int `json:"deletion_channels"`
	EditChannels     int `json:"edit_channels"`
	Entries          int `json:"entries"`
}

// Cache keeps fixed-capacity, newest-first rings of recently deleted and
// recently edited messages, one ring per channel per kind. A channel with
// no recorded activity has no ring at all; that is the initial state, and
// it is distinct from an empty ring.
type Cache struct {
	mu        sync.Mutex
	selfID    string
	capacity  int
	deletions map[string][]DeletedMessage
	edits     map[string][]EditedMessage
	metrics   *otel.Metrics
	now       func() time.Time
}

// New creates a recall cache. Messages authored by selfID (the bot's own
// user id) are never recorded. The metrics argument may be nil.
func New(selfID string, capacity int, metrics *otel.Metrics) *Cache {
	if capacity <= 0 {
		capacity = 10
	}
	return &Cache{
		selfID:    selfID,
		capacity:  capacity,
		deletions: make(map[string][]DeletedMessage),
		edits:     make(map[string][]EditedMessage),
		metrics:   metrics,
		now:       time.Now,
	}
}

// RecordDeletion snapshots a deleted message at the front of its
// channel's deletion ring, evicting the oldest entry past capacity.
// Deletions of the bot's own messages are ignored.
func (c *Cache) RecordDeletion(msg Message) {
	if msg.Author.ID == c.selfID {
		return
	}

	entry := DeletedMessage{
		ChannelID:      msg.ChannelID,
		Content:        msg.Content,
		Author:         msg.Author,
		CreatedAt:      msg.CreatedAt,
		AttachmentURLs: append([]string(nil), msg.AttachmentURLs...),
	}

	c.mu.Lock()
	ring := c.deletions[msg.ChannelID]
	ring = append([]DeletedMessage{entry}, ring...)
	evicted := 0
	if len(ring) > c.capacity {
		ring = ring[:c.capacity]
		evicted = 1
	}
	c.deletions[msg.ChannelID] = ring
	c.mu.Unlock()

	c.metrics.AddRecallEntries(context.Background(), 1-evicted)
}

// RecordEdit snapshots a message edit at the front of its channel's edit
// ring. Edits by the bot itself and no-op edits (unchanged content, e.g.
// embed-only updates) are ignored.
func (c *Cache) RecordEdit(before, after Message) {
	if before.Author.ID == c.selfID {
		return
	}
	if before.Content == after.Content {
		return
	}

	entry := EditedMessage{
		ChannelID:     after.ChannelID,
		ContentBefore: before.Content,
		ContentAfter:  after.Content,
		EditedAt:      c.now(),
		Author:        before.Author,
		JumpLink:      after.JumpLink,
	}

	c.mu.Lock()
	ring := c.edits[after.ChannelID]
	ring = append([]EditedMessage{entry}, ring...)
	evicted := 0
	if len(ring) > c.capacity {
		ring = ring[:c.capacity]
		evicted = 1
	}
	c.edits[after.ChannelID] = ring
	c.mu.Unlock()

	c.metrics.AddRecallEntries(context.Background(), 1-evicted)
}

// Deletion returns the n-th most recent deletion in a channel, 1-indexed.
func (c *Cache) Deletion(channelID string, n int) (DeletedMessage, error) {
	if n < 1 {
		return DeletedMessage{}, ErrInvalidIndex
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ring, ok := c.deletions[channelID]
	if !ok {
		return DeletedMessage{}, ErrNothingRecorded
	}
	if n > len(ring) {
		return DeletedMessage{}, &OutOfRangeError{Requested: n, Available: len(ring)}
	}
	return ring[n-1], nil
}

// Edit returns the n-th most recent edit in a channel, 1-indexed.
func (c *Cache) Edit(channelID string, n int) (EditedMessage, error) {
	if n < 1 {
		return EditedMessage{}, ErrInvalidIndex
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ring, ok := c.edits[channelID]
	if !ok {
		return EditedMessage{}, ErrNothingRecorded
	}
	if n > len(ring) {
		return EditedMessage{}, &OutOfRangeError{Requested: n, Available: len(ring)}
	}
	return ring[n-1], nil
}

// Stats returns a snapshot of the cache's counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := 0
	for _, ring := range c.deletions {
		entries += len(ring)
	}
	for _, ring := range c.edits {
		entries += len(ring)
	}

	return Stats{
		DeletionChannels: len(c.deletions),
		EditChannels:     len(c.edits),
		Entries:          entries,
	}
}
