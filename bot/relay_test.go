// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/absmach/guildbot/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outboundFrame struct {
	eventType string
	payload   any
}

type fakeLink struct {
	handlers map[string][]gateway.Handler
	sent     []outboundFrame
}

func newFakeLink() *fakeLink {
	return &fakeLink{handlers: make(map[string][]gateway.Handler)}
}

func (l *fakeLink) On(eventType string, h gateway.Handler) {
	l.handlers[eventType] = append(l.handlers[eventType], h)
}

func (l *fakeLink) Send(ctx context.Context, eventType string, payload any) error {
	l.sent = append(l.sent, outboundFrame{eventType: eventType, payload: payload})
	return nil
}

func (l *fakeLink) dispatch(t *testing.T, eventType string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	for _, h := range l.handlers[eventType] {
		h(context.Background(), data)
	}
}

func TestRelaySend(t *testing.T) {
	link := newFakeLink()
	r := NewRelay(link)

	err := r.Send(context.Background(), "chan-1", Content{Description: "hello"})
	require.NoError(t, err)

	require.Len(t, link.sent, 1)
	assert.Equal(t, gateway.EventMessageSend, link.sent[0].eventType)

	msg, ok := link.sent[0].payload.(outboundMessage)
	require.True(t, ok, "unexpected payload type %T", link.sent[0].payload)
	assert.Equal(t, "chan-1", msg.ChannelID)
	assert.Equal(t, "hello", msg.Content.Description)
}

func TestRelayModeration(t *testing.T) {
	link := newFakeLink()
	r := NewRelay(link)
	ctx := context.Background()

	require.NoError(t, r.Ban(ctx, "guild-1", "user-2", "spamming"))
	until := time.Now().UTC().Add(30 * time.Minute)
	require.NoError(t, r.Timeout(ctx, "guild-1", "user-2", until, "spamming"))
	require.NoError(t, r.LockChannel(ctx, "guild-1", "chan-1"))

	require.Len(t, link.sent, 3)
	assert.Equal(t, gateway.EventGuildBan, link.sent[0].eventType)
	assert.Equal(t, gateway.EventGuildTimeout, link.sent[1].eventType)
	assert.Equal(t, gateway.EventChannelLock, link.sent[2].eventType)

	req, ok := link.sent[1].payload.(timeoutRequest)
	require.True(t, ok, "unexpected payload type %T", link.sent[1].payload)
	assert.True(t, req.Until.Equal(until))

	lock, ok := link.sent[2].payload.(lockRequest)
	require.True(t, ok, "unexpected payload type %T", link.sent[2].payload)
	assert.Equal(t, "guild-1", lock.GuildID)
	assert.Equal(t, "chan-1", lock.ChannelID)
}

func TestRelayMemberCount(t *testing.T) {
	link := newFakeLink()
	r := NewRelay(link)
	ctx := context.Background()

	_, err := r.MemberCount(ctx, "guild-1")
	require.Error(t, err, "expected error before any membership frame")

	link.dispatch(t, gateway.EventGuildStatus, gateway.GuildStatus{
		GuildID:     "guild-1",
		MemberCount: 41,
	})

	count, err := r.MemberCount(ctx, "guild-1")
	require.NoError(t, err)
	assert.Equal(t, 41, count)

	link.dispatch(t, gateway.EventGuildMemberAdd, gateway.MemberAdd{
		GuildID:     "guild-1",
		User:        gateway.User{ID: "user-9", Username: "newbie"},
		MemberCount: 42,
	})

	count, err = r.MemberCount(ctx, "guild-1")
	require.NoError(t, err)
	assert.Equal(t, 42, count)
}
