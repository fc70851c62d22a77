// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package gateway

import "time"

// User identifies a platform user as carried on the wire. Staff is
// resolved upstream by the relay; the bot itself carries no permission
// logic beyond checking the flag.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
	Bot       bool   `json:"bot"`
	Staff     bool   `json:"staff"`
}

// Attachment is one file attached to a message.
type Attachment struct {
	URL string `json:"url"`
}

// Message is the wire shape of a platform message.
type Message struct {
	ID          string       `json:"id"`
	ChannelID   string       `json:"channel_id"`
	GuildID     string       `json:"guild_id"`
	Content     string       `json:"content"`
	Author      User         `json:"author"`
	Timestamp   time.Time    `json:"timestamp"`
	Attachments []Attachment `json:"attachments"`
	Mentions    []User       `json:"mentions"`
	JumpLink    string       `json:"jump_link"`
}

// MessageUpdate carries both revisions of an edited message. The relay
// supplies the pre-edit snapshot alongside the new one.
type MessageUpdate struct {
	Before Message `json:"before"`
	After  Message `json:"after"`
}

// GuildStatus is pushed by the relay on connect and whenever guild
// membership changes.
type GuildStatus struct {
	GuildID     string `json:"guild_id"`
	GuildName   string `json:"guild_name"`
	MemberCount int    `json:"member_count"`
}

// MemberAdd is the wire shape of a member-join notification.
type MemberAdd struct {
	GuildID     string `json:"guild_id"`
	GuildName   string `json:"guild_name"`
	User        User   `json:"user"`
	MemberCount int    `json:"member_count"`
}
