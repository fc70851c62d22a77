// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package recall

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	botID     = "bot-1"
	channelID = "chan-1"
)

func userMessage(content string) Message {
	return Message{
		ID:        "msg-" + content,
		ChannelID: channelID,
		Content:   content,
		Author:    Author{ID: "user-1", Name: "alice"},
		CreatedAt: time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestRecordDeletionEviction(t *testing.T) {
	c := New(botID, 10, nil)

	for i := 1; i <= 11; i++ {
		c.RecordDeletion(userMessage(fmt.Sprintf("m%d", i)))
	}

	first, err := c.Deletion(channelID, 1)
	require.NoError(t, err)
	assert.Equal(t, "m11", first.Content)

	last, err := c.Deletion(channelID, 10)
	require.NoError(t, err)
	assert.Equal(t, "m2", last.Content)

	_, err = c.Deletion(channelID, 11)
	var oor *OutOfRangeError
	require.ErrorAs(t, err, &oor)
	assert.Equal(t, 10, oor.Available)
}

func TestRecordDeletionIgnoresBot(t *testing.T) {
	c := New(botID, 10, nil)

	msg := userMessage("secret")
	msg.Author.ID = botID
	c.RecordDeletion(msg)

	_, err := c.Deletion(channelID, 1)
	assert.ErrorIs(t, err, ErrNothingRecorded)
}

func TestDeletionUnknownChannel(t *testing.T) {
	c := New(botID, 10, nil)

	_, err := c.Deletion("never-seen", 1)
	assert.ErrorIs(t, err, ErrNothingRecorded)
}

func TestDeletionInvalidIndex(t *testing.T) {
	c := New(botID, 10, nil)
	c.RecordDeletion(userMessage("m1"))

	for _, n := range []int{0, -1} {
		_, err := c.Deletion(channelID, n)
		assert.ErrorIs(t, err, ErrInvalidIndex, "Deletion(%d)", n)
	}
}

func TestDeletionKeepsAttachments(t *testing.T) {
	c := New(botID, 10, nil)

	msg := userMessage("with files")
	msg.AttachmentURLs = []string{"https://cdn.example.com/a.png", "https://cdn.example.com/b.png"}
	c.RecordDeletion(msg)

	got, err := c.Deletion(channelID, 1)
	require.NoError(t, err)
	assert.Equal(t, msg.AttachmentURLs, got.AttachmentURLs)
}

func TestRecordEdit(t *testing.T) {
	c := New(botID, 10, nil)

	before := userMessage("tpyo")
	after := before
	after.Content = "typo"
	after.JumpLink = "https://chat.example.com/jump/1"
	c.RecordEdit(before, after)

	got, err := c.Edit(channelID, 1)
	require.NoError(t, err)
	assert.Equal(t, "tpyo", got.ContentBefore)
	assert.Equal(t, "typo", got.ContentAfter)
	assert.Equal(t, "https://chat.example.com/jump/1", got.JumpLink)
}

func TestRecordEditNoOp(t *testing.T) {
	c := New(botID, 10, nil)

	before := userMessage("same")
	after := before // embed-only change, content untouched
	c.RecordEdit(before, after)

	_, err := c.Edit(channelID, 1)
	assert.ErrorIs(t, err, ErrNothingRecorded)
}

func TestRecordEditIgnoresBot(t *testing.T) {
	c := New(botID, 10, nil)

	before := userMessage("draft")
	before.Author.ID = botID
	after := before
	after.Content = "final"
	c.RecordEdit(before, after)

	_, err := c.Edit(channelID, 1)
	assert.ErrorIs(t, err, ErrNothingRecorded)
}

func TestRingsAreIndependentPerChannel(t *testing.T) {
	c := New(botID, 10, nil)

	a := userMessage("in-a")
	a.ChannelID = "chan-a"
	b := userMessage("in-b")
	b.ChannelID = "chan-b"
	c.RecordDeletion(a)
	c.RecordDeletion(b)

	got, err := c.Deletion("chan-a", 1)
	require.NoError(t, err)
	assert.Equal(t, "in-a", got.Content)

	_, err = c.Deletion("chan-a", 2)
	assert.Error(t, err, "chan-a should hold exactly one entry")
}

func TestDeletionAndEditRingsAreIndependent(t *testing.T) {
	c := New(botID, 10, nil)

	c.RecordDeletion(userMessage("gone"))

	_, err := c.Edit(channelID, 1)
	assert.ErrorIs(t, err, ErrNothingRecorded)
}

func TestStats(t *testing.T) {
	c := New(botID, 10, nil)

	c.RecordDeletion(userMessage("m1"))
	c.RecordDeletion(userMessage("m2"))
	before := userMessage("a")
	after := before
	after.Content = "b"
	c.RecordEdit(before, after)

	stats := c.Stats()
	assert.Equal(t, 1, stats.DeletionChannels)
	assert.Equal(t, 1, stats.EditChannels)
	assert.Equal(t, 3, stats.Entries)
}
