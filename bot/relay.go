// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/absmach/guildbot/gateway"
)

// Link is the subset of the gateway client the relay adapter uses.
type Link interface {
	On(eventType string, h gateway.Handler)
	Send(ctx context.Context, eventType string, payload any) error
}

// Relay adapts the gateway's outbound frame path to the display,
// moderation and directory boundaries. The relay endpoint owns platform
// formatting and API credentials; the bot only ships structured content
// and action requests.
type Relay struct {
	link Link

	mu     sync.Mutex
	counts map[string]int // guild id to last known member count
}

// NewRelay creates the adapter and subscribes it to membership frames so
// MemberCount can answer from the last relay-reported figure.
func NewRelay(link Link) *Relay {
	r := &Relay{
		link:   link,
		counts: make(map[string]int),
	}
	link.On(gateway.EventGuildStatus, r.handleGuildStatus)
	link.On(gateway.EventGuildMemberAdd, r.handleMemberAdd)
	return r
}

type outboundMessage struct {
	ChannelID string  `json:"channel_id"`
	Content   Content `json:"content"`
}

// Send implements Display by shipping the content to the relay.
func (r *Relay) Send(ctx context.Context, channelID string, c Content) error {
	return r.link.Send(ctx, gateway.EventMessageSend, outboundMessage{
		ChannelID: channelID,
		Content:   c,
	})
}

type banRequest struct {
	GuildID string `json:"guild_id"`
	UserID  string `json:"user_id"`
	Reason  string `json:"reason"`
}

// Ban implements Moderator.
func (r *Relay) Ban(ctx context.Context, guildID, userID, reason string) error {
	return r.link.Send(ctx, gateway.EventGuildBan, banRequest{
		GuildID: guildID,
		UserID:  userID,
		Reason:  reason,
	})
}

type timeoutRequest struct {
	GuildID string    `json:"guild_id"`
	UserID  string    `json:"user_id"`
	Until   time.Time `json:"until"`
	Reason  string    `json:"reason"`
}

// Timeout implements Moderator.
func (r *Relay) Timeout(ctx context.Context, guildID, userID string, until time.Time, reason string) error {
	return r.link.Send(ctx, gateway.EventGuildTimeout, timeoutRequest{
		GuildID: guildID,
		UserID:  userID,
		Until:   until,
		Reason:  reason,
	})
}

type lockRequest struct {
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
}

// LockChannel implements Moderator: the relay revokes the default role's
// send permission on the channel.
func (r *Relay) LockChannel(ctx context.Context, guildID, channelID string) error {
	return r.link.Send(ctx, gateway.EventChannelLock, lockRequest{
		GuildID:   guildID,
		ChannelID: channelID,
	})
}

// MemberCount implements Directory from the last relay-reported figure.
func (r *Relay) MemberCount(ctx context.Context, guildID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count, ok := r.counts[guildID]
	if !ok {
		return 0, fmt.Errorf("no membership information for guild %s yet", guildID)
	}
	return count, nil
}

func (r *Relay) handleGuildStatus(ctx context.Context, data json.RawMessage) {
	var status gateway.GuildStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return
	}
	r.setCount(status.GuildID, status.MemberCount)
}

func (r *Relay) handleMemberAdd(ctx context.Context, data json.RawMessage) {
	var m gateway.MemberAdd
	if err := json.Unmarshal(data, &m); err != nil {
		return
	}
	r.setCount(m.GuildID, m.MemberCount)
}

func (r *Relay) setCount(guildID string, count int) {
	if guildID == "" || count <= 0 {
		return
	}
	r.mu.Lock()
	r.counts[guildID] = count
	r.mu.Unlock()
}
