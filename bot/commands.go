// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/absmach/guildbot/gateway"
	"github.com/absmach/guildbot/github"
	"github.com/absmach/guildbot/recall"
)

// Config holds command layer settings.
type Config struct {
	Prefix           string
	SelfID           string
	Org              string
	WelcomeChannelID string
	UpdatesChannelID string
}

// Bot is the command and notification layer: it feeds the recall cache
// from platform notifications, answers prefix commands, and implements
// the poller's sink for the updates channel.
type Bot struct {
	cfg       Config
	display   Display
	cache     *recall.Cache
	banlog    *BanLog
	moderator Moderator // may be nil
	directory Directory // may be nil
	logger    *slog.Logger
}

// New creates the command layer. moderator and directory may be nil;
// the affected commands then reply that the backend is unavailable.
func New(cfg Config, display Display, cache *recall.Cache, moderator Moderator, directory Directory, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "$"
	}

	return &Bot{
		cfg:       cfg,
		display:   display,
		cache:     cache,
		banlog:    NewBanLog(),
		moderator: moderator,
		directory: directory,
		logger:    logger,
	}
}

// BanLog exposes the moderation log for the status surface.
func (b *Bot) BanLog() *BanLog {
	return b.banlog
}

// Register subscribes the bot's handlers on the gateway.
func (b *Bot) Register(gw *gateway.Client) {
	gw.On(gateway.EventMessageCreate, b.handleMessageCreate)
	gw.On(gateway.EventMessageDelete, b.handleMessageDelete)
	gw.On(gateway.EventMessageUpdate, b.handleMessageUpdate)
	gw.On(gateway.EventGuildMemberAdd, b.handleMemberAdd)
}

// ShowActivity implements the poller's sink: one delivered repository
// event becomes one message in the updates channel.
func (b *Bot) ShowActivity(ctx context.Context, ev github.Event) error {
	return b.display.Send(ctx, b.cfg.UpdatesChannelID, BuildActivity(b.cfg.Org, ev))
}

func (b *Bot) handleMessageDelete(ctx context.Context, data json.RawMessage) {
	var msg gateway.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		b.logger.Warn("malformed message delete payload", slog.String("error", err.Error()))
		return
	}
	b.cache.RecordDeletion(toRecallMessage(msg))
}

func (b *Bot) handleMessageUpdate(ctx context.Context, data json.RawMessage) {
	var upd gateway.MessageUpdate
	if err := json.Unmarshal(data, &upd); err != nil {
		b.logger.Warn("malformed message update payload", slog.String("error", err.Error()))
		return
	}
	b.cache.RecordEdit(toRecallMessage(upd.Before), toRecallMessage(upd.After))
}

func (b *Bot) handleMemberAdd(ctx context.Context, data json.RawMessage) {
	var m gateway.MemberAdd
	if err := json.Unmarshal(data, &m); err != nil {
		b.logger.Warn("malformed member add payload", slog.String("error", err.Error()))
		return
	}
	if b.cfg.WelcomeChannelID == "" {
		return
	}
	if err := b.display.Send(ctx, b.cfg.WelcomeChannelID, BuildWelcome(m)); err != nil {
		b.logger.Warn("failed to send welcome message", slog.String("error", err.Error()))
	}
}

func (b *Bot) handleMessageCreate(ctx context.Context, data json.RawMessage) {
	var msg gateway.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		b.logger.Warn("malformed message create payload", slog.String("error", err.Error()))
		return
	}
	if msg.Author.Bot || msg.Author.ID == b.cfg.SelfID {
		return
	}
	if !strings.HasPrefix(msg.Content, b.cfg.Prefix) {
		return
	}

	args := strings.Fields(msg.Content)
	cmd := strings.TrimPrefix(args[0], b.cfg.Prefix)
	args = args[1:]

	switch cmd {
	case "snipe":
		b.cmdSnipe(ctx, msg, args)
	case "editsnipe":
		b.cmdEditSnipe(ctx, msg, args)
	case "membercount":
		b.cmdMemberCount(ctx, msg)
	case "avatar":
		b.cmdAvatar(ctx, msg)
	case "links":
		b.cmdLinks(ctx, msg)
	case "memberhelp":
		b.cmdMemberHelp(ctx, msg)
	case "staffhelp":
		b.cmdStaffHelp(ctx, msg)
	case "ban":
		b.cmdBan(ctx, msg, args)
	case "timeout":
		b.cmdTimeout(ctx, msg, args)
	case "lockchannel":
		b.cmdLockChannel(ctx, msg, args)
	case "logban":
		b.cmdLogBan(ctx, msg, args)
	case "banlogshow":
		b.cmdBanLogShow(ctx, msg)
	}
}

func (b *Bot) reply(ctx context.Context, channelID, text string) {
	if err := b.display.Send(ctx, channelID, Content{Description: text}); err != nil {
		b.logger.Warn("failed to send reply", slog.String("error", err.Error()))
	}
}

func (b *Bot) send(ctx context.Context, channelID string, c Content) {
	if err := b.display.Send(ctx, channelID, c); err != nil {
		b.logger.Warn("failed to send message", slog.String("error", err.Error()))
	}
}

// requireStaff gates a staff command; replies and returns false when the
// caller is not flagged as staff.
func (b *Bot) requireStaff(ctx context.Context, msg gateway.Message) bool {
	if !msg.Author.Staff {
		b.reply(ctx, msg.ChannelID, "You don't have permission to use this command.")
		return false
	}
	return true
}

// recallIndex parses the optional 1-indexed lookup argument, default 1.
func recallIndex(args []string) (int, error) {
	if len(args) == 0 {
		return 1, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("invalid index %q", args[0])
	}
	return n, nil
}

func (b *Bot) cmdSnipe(ctx context.Context, msg gateway.Message, args []string) {
	n, err := recallIndex(args)
	if err != nil {
		b.reply(ctx, msg.ChannelID, "Invalid index. Use a number like `$snipe 2`.")
		return
	}

	entry, err := b.cache.Deletion(msg.ChannelID, n)
	if err != nil {
		b.reply(ctx, msg.ChannelID, recallErrorText(err, "deleted"))
		return
	}
	b.send(ctx, msg.ChannelID, BuildDeletion(entry))
}

func (b *Bot) cmdEditSnipe(ctx context.Context, msg gateway.Message, args []string) {
	n, err := recallIndex(args)
	if err != nil {
		b.reply(ctx, msg.ChannelID, "Invalid index. Use a number like `$editsnipe 2`.")
		return
	}

	entry, err := b.cache.Edit(msg.ChannelID, n)
	if err != nil {
		b.reply(ctx, msg.ChannelID, recallErrorText(err, "edited"))
		return
	}
	b.send(ctx, msg.ChannelID, BuildEdit(entry))
}

// recallErrorText maps recall lookup errors to user-facing replies.
func recallErrorText(err error, kind string) string {
	var oor *recall.OutOfRangeError
	switch {
	case errors.Is(err, recall.ErrNothingRecorded):
		return fmt.Sprintf("No %s messages recorded in this channel.", kind)
	case errors.Is(err, recall.ErrInvalidIndex):
		return "Index must be at least 1."
	case errors.As(err, &oor):
		return fmt.Sprintf("Only %d %s messages recorded in this channel.", oor.Available, kind)
	default:
		return "Lookup failed."
	}
}

func (b *Bot) cmdMemberCount(ctx context.Context, msg gateway.Message) {
	if b.directory == nil {
		b.reply(ctx, msg.ChannelID, "Member count is unavailable right now.")
		return
	}

	count, err := b.directory.MemberCount(ctx, msg.GuildID)
	if err != nil {
		b.logger.Warn("member count lookup failed", slog.String("error", err.Error()))
		b.reply(ctx, msg.ChannelID, "Member count is unavailable right now.")
		return
	}

	b.send(ctx, msg.ChannelID, Content{
		Title:       "Server Member Count",
		Description: fmt.Sprintf("There are currently **%d** members in this server.", count),
		Timestamp:   time.Now().UTC(),
	})
}

func (b *Bot) cmdAvatar(ctx context.Context, msg gateway.Message) {
	target := msg.Author
	if len(msg.Mentions) > 0 {
		target = msg.Mentions[0]
	}

	b.send(ctx, msg.ChannelID, Content{
		Title:     fmt.Sprintf("%s's Avatar", target.Username),
		Image:     target.AvatarURL,
		Timestamp: time.Now().UTC(),
	})
}

func (b *Bot) cmdLinks(ctx context.Context, msg gateway.Message) {
	b.send(ctx, msg.ChannelID, Content{
		Title:       "Important Links",
		Description: "Here are important links for our community:",
		Fields: []Field{
			{Name: "GitHub", Value: fmt.Sprintf("https://github.com/%s", b.cfg.Org)},
		},
		Timestamp: time.Now().UTC(),
	})
}

func (b *Bot) cmdMemberHelp(ctx context.Context, msg gateway.Message) {
	p := b.cfg.Prefix
	b.send(ctx, msg.ChannelID, Content{
		Title:       "Member Commands",
		Description: "Here are the commands available to all members:",
		Fields: []Field{
			{Name: fmt.Sprintf("`%smembercount`", p), Value: "Show current member count"},
			{Name: fmt.Sprintf("`%savatar`", p), Value: "Display your avatar or another user's avatar"},
			{Name: fmt.Sprintf("`%slinks`", p), Value: "Display important links"},
			{Name: fmt.Sprintf("`%ssnipe [n]`", p), Value: "Recall a recently deleted message"},
			{Name: fmt.Sprintf("`%seditsnipe [n]`", p), Value: "Recall a recent message edit"},
		},
		Timestamp: time.Now().UTC(),
	})
}

func (b *Bot) cmdStaffHelp(ctx context.Context, msg gateway.Message) {
	if !b.requireStaff(ctx, msg) {
		return
	}

	p := b.cfg.Prefix
	b.send(ctx, msg.ChannelID, Content{
		Title:       "Staff Commands",
		Description: "Here are the commands available to staff members:",
		Fields: []Field{
			{Name: fmt.Sprintf("`%sban <user> <reason>`", p), Value: "Ban a user from the server"},
			{Name: fmt.Sprintf("`%stimeout <user> <time> [toJson|toDict] [reason]`", p), Value: "Timeout a user"},
			{Name: fmt.Sprintf("`%slockchannel <option> <channelID>`", p), Value: "Lock a channel"},
			{Name: fmt.Sprintf("`%slogban <n> <toJson|toDict> [note]`", p), Value: "Log a ban entry"},
			{Name: fmt.Sprintf("`%sbanlogshow`", p), Value: "Display the ban logs"},
		},
		Footer:    "Only staff members can use these commands",
		Timestamp: time.Now().UTC(),
	})
}

func (b *Bot) cmdBan(ctx context.Context, msg gateway.Message, args []string) {
	if !b.requireStaff(ctx, msg) {
		return
	}
	if len(msg.Mentions) == 0 {
		b.reply(ctx, msg.ChannelID, "Mention the user to ban.")
		return
	}
	if b.moderator == nil {
		b.reply(ctx, msg.ChannelID, "Moderation backend is unavailable right now.")
		return
	}

	target := msg.Mentions[0]
	reason := "No reason provided"
	if len(args) > 1 {
		reason = strings.Join(args[1:], " ")
	}

	if err := b.moderator.Ban(ctx, msg.GuildID, target.ID, reason); err != nil {
		b.logger.Warn("ban failed",
			slog.String("user_id", target.ID),
			slog.String("error", err.Error()))
		b.reply(ctx, msg.ChannelID, "I don't have permission to ban that user.")
		return
	}

	b.banlog.Append(BanEntry{
		UserID:        target.ID,
		UserName:      target.Username,
		ModeratorID:   msg.Author.ID,
		ModeratorName: msg.Author.Username,
		Reason:        reason,
		Timestamp:     time.Now().UTC(),
	})

	b.send(ctx, msg.ChannelID, Content{
		Title:       "User Banned",
		Description: fmt.Sprintf("%s has been banned from the server.", target.Username),
		Fields: []Field{
			{Name: "User", Value: fmt.Sprintf("%s (%s)", target.Username, target.ID)},
			{Name: "Moderator", Value: msg.Author.Username},
			{Name: "Reason", Value: reason},
		},
		Timestamp: time.Now().UTC(),
	})
}

func (b *Bot) cmdTimeout(ctx context.Context, msg gateway.Message, args []string) {
	if !b.requireStaff(ctx, msg) {
		return
	}
	if len(msg.Mentions) == 0 || len(args) < 2 {
		b.reply(ctx, msg.ChannelID, "Usage: mention a user and a duration, e.g. `$timeout @user 30m spamming`.")
		return
	}
	if b.moderator == nil {
		b.reply(ctx, msg.ChannelID, "Moderation backend is unavailable right now.")
		return
	}

	duration, err := ParseTimeout(args[1])
	if err != nil {
		b.reply(ctx, msg.ChannelID, "Invalid time format. Use format like 30s, 5m, 2h, 1d.")
		return
	}

	rest := args[2:]
	logFormat := ""
	if len(rest) > 0 {
		switch strings.ToLower(rest[0]) {
		case "tojson", "todict":
			logFormat = strings.ToLower(rest[0])
			rest = rest[1:]
		}
	}
	reason := "No reason provided"
	if len(rest) > 0 {
		reason = strings.Join(rest, " ")
	}

	target := msg.Mentions[0]
	until := time.Now().UTC().Add(duration)

	if err := b.moderator.Timeout(ctx, msg.GuildID, target.ID, until, reason); err != nil {
		b.logger.Warn("timeout failed",
			slog.String("user_id", target.ID),
			slog.String("error", err.Error()))
		b.reply(ctx, msg.ChannelID, "I don't have permission to timeout that user.")
		return
	}

	b.send(ctx, msg.ChannelID, Content{
		Title:       "User Timed Out",
		Description: fmt.Sprintf("%s has been timed out.", target.Username),
		Fields: []Field{
			{Name: "User", Value: fmt.Sprintf("%s (%s)", target.Username, target.ID)},
			{Name: "Moderator", Value: msg.Author.Username},
			{Name: "Duration", Value: args[1]},
			{Name: "Reason", Value: reason},
		},
		Timestamp: time.Now().UTC(),
	})

	if logFormat != "" {
		entry := BanEntry{
			UserID:        target.ID,
			UserName:      target.Username,
			ModeratorID:   msg.Author.ID,
			ModeratorName: msg.Author.Username,
			Reason:        reason,
			Timestamp:     time.Now().UTC(),
		}
		b.replyRendered(ctx, msg.ChannelID, entry, logFormat)
	}
}

// cmdLockChannel locks the current channel, or another one named by id
// when the option is not "current".
func (b *Bot) cmdLockChannel(ctx context.Context, msg gateway.Message, args []string) {
	if !b.requireStaff(ctx, msg) {
		return
	}
	if b.moderator == nil {
		b.reply(ctx, msg.ChannelID, "Moderation backend is unavailable right now.")
		return
	}

	option := "current"
	if len(args) > 0 {
		option = args[0]
	}

	var channelID string
	switch {
	case strings.EqualFold(option, "current"):
		channelID = msg.ChannelID
	case len(args) > 1:
		channelID = args[1]
		if _, err := strconv.ParseUint(channelID, 10, 64); err != nil {
			b.reply(ctx, msg.ChannelID, "Invalid channel ID.")
			return
		}
	default:
		b.reply(ctx, msg.ChannelID, "Please specify a valid channel option.")
		return
	}

	if err := b.moderator.LockChannel(ctx, msg.GuildID, channelID); err != nil {
		b.logger.Warn("channel lock failed",
			slog.String("channel_id", channelID),
			slog.String("error", err.Error()))
		b.reply(ctx, msg.ChannelID, "I don't have permission to manage that channel.")
		return
	}

	b.send(ctx, msg.ChannelID, Content{
		Title:       "Channel Locked",
		Description: fmt.Sprintf("<#%s> has been locked. Members cannot send messages.", channelID),
		Fields: []Field{
			{Name: "Locked by", Value: msg.Author.Username},
		},
		Timestamp: time.Now().UTC(),
	})
}

func (b *Bot) cmdLogBan(ctx context.Context, msg gateway.Message, args []string) {
	if !b.requireStaff(ctx, msg) {
		return
	}
	if len(args) < 2 {
		b.reply(ctx, msg.ChannelID, "Usage: `$logban <n> <toJson|toDict> [note]`.")
		return
	}

	n, err := strconv.Atoi(args[0])
	if err != nil {
		b.reply(ctx, msg.ChannelID, "Invalid ban index. Please check the ban logs using `$banlogshow`.")
		return
	}

	entry, err := b.banlog.Entry(n)
	if err != nil {
		b.reply(ctx, msg.ChannelID, "Invalid ban index. Please check the ban logs using `$banlogshow`.")
		return
	}

	if len(args) > 2 {
		entry.ExtraNote = strings.Join(args[2:], " ")
	}

	format := strings.ToLower(args[1])
	if format != "tojson" && format != "todict" {
		b.reply(ctx, msg.ChannelID, "Invalid format type. Please use 'toJson' or 'toDict'.")
		return
	}
	b.replyRendered(ctx, msg.ChannelID, entry, format)
}

func (b *Bot) replyRendered(ctx context.Context, channelID string, entry BanEntry, format string) {
	switch format {
	case "tojson":
		rendered, err := RenderJSON(entry)
		if err != nil {
			b.reply(ctx, channelID, "Failed to render log entry.")
			return
		}
		b.reply(ctx, channelID, "```json\n"+rendered+"\n```")
	case "todict":
		b.reply(ctx, channelID, "```\n"+RenderDict(entry)+"\n```")
	}
}

func (b *Bot) cmdBanLogShow(ctx context.Context, msg gateway.Message) {
	if !b.requireStaff(ctx, msg) {
		return
	}

	entries := b.banlog.Entries()
	if len(entries) == 0 {
		b.reply(ctx, msg.ChannelID, "No ban logs found.")
		return
	}

	c := Content{
		Title:       "Ban Logs",
		Description: fmt.Sprintf("Showing %d ban entries", len(entries)),
		Timestamp:   time.Now().UTC(),
	}
	for i, e := range entries {
		c.Fields = append(c.Fields, Field{
			Name: fmt.Sprintf("Ban #%d", i+1),
			Value: fmt.Sprintf("User: %s (%s)\nModerator: %s\nReason: %s\nTime: %s",
				e.UserName, e.UserID, e.ModeratorName, e.Reason,
				e.Timestamp.Format("2006-01-02 15:04:05")),
		})
	}
	b.send(ctx, msg.ChannelID, c)
}

// toRecallMessage converts a wire message into a recall snapshot input.
func toRecallMessage(msg gateway.Message) recall.Message {
	urls := make([]string, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		urls = append(urls, a.URL)
	}

	return recall.Message{
		ID:        msg.ID,
		ChannelID: msg.ChannelID,
		Content:   msg.Content,
		Author: recall.Author{
			ID:        msg.Author.ID,
			Name:      msg.Author.Username,
			AvatarURL: msg.Author.AvatarURL,
		},
		CreatedAt:      msg.Timestamp,
		AttachmentURLs: urls,
		JumpLink:       msg.JumpLink,
	}
}
