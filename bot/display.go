// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"time"
)

// Field is one name/value pair in a structured message.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Content is the platform-agnostic shape of an outbound message. The
// display adapter decides how to render it; the bot never builds
// platform-specific rich layouts itself.
type Content struct {
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	URL         string    `json:"url,omitempty"`
	AuthorName  string    `json:"author_name,omitempty"`
	AuthorIcon  string    `json:"author_icon,omitempty"`
	Fields      []Field   `json:"fields,omitempty"`
	Image       string    `json:"image,omitempty"`
	Footer      string    `json:"footer,omitempty"`
	Timestamp   time.Time `json:"timestamp,omitempty"`
}

// Display delivers content to a channel.
type Display interface {
	Send(ctx context.Context, channelID string, c Content) error
}

// Moderator executes moderation actions against the platform. The bot
// validates and logs; the adapter owns the actual API calls.
type Moderator interface {
	Ban(ctx context.Context, guildID, userID, reason string) error
	Timeout(ctx context.Context, guildID, userID string, until time.Time, reason string) error
	LockChannel(ctx context.Context, guildID, channelID string) error
}

// Directory answers guild-level questions the command layer needs.
type Directory interface {
	MemberCount(ctx context.Context, guildID string) (int, error)
}
