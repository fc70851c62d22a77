// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/absmach/guildbot/gateway"
	"github.com/absmach/guildbot/github"
	"github.com/absmach/guildbot/recall"
)

const maxCommitLines = 5

// BuildActivity renders one repository event for the updates channel.
func BuildActivity(org string, ev github.Event) Content {
	c := Content{
		Title:      fmt.Sprintf("GitHub Update: %s", ev.Origin),
		URL:        fmt.Sprintf("https://github.com/%s/%s", org, ev.Origin),
		AuthorName: ev.Actor.Login,
		AuthorIcon: ev.Actor.AvatarURL,
		Footer:     fmt.Sprintf("GitHub Tracker • %s", ev.Origin),
		Timestamp:  ev.OccurredAt,
	}

	switch ev.Kind {
	case github.KindPush:
		c.Description = "**New Push** to repository"
		if len(ev.Commits) > 0 {
			lines := make([]string, 0, maxCommitLines+1)
			for i, msg := range ev.Commits {
				if i == maxCommitLines {
					lines = append(lines, fmt.Sprintf("... and %d more", len(ev.Commits)-maxCommitLines))
					break
				}
				lines = append(lines, "• "+msg)
			}
			c.Fields = append(c.Fields, Field{Name: "Commits", Value: strings.Join(lines, "\n")})
		}
	case github.KindIssue:
		c.Description = fmt.Sprintf("**Issue %s**: %s", ev.Action, ev.Title)
	case github.KindPullRequest:
		c.Description = fmt.Sprintf("**Pull Request %s**: %s", ev.Action, ev.Title)
	default:
		c.Description = fmt.Sprintf("**%s** event occurred", ev.RawType)
	}

	return c
}

// BuildWelcome renders the greeting for a newly joined member.
func BuildWelcome(m gateway.MemberAdd) Content {
	return Content{
		Title: fmt.Sprintf("Welcome to the Server, %s!", m.User.Username),
		Description: fmt.Sprintf(
			"Thank you for joining our community, %s. We're glad to have you here!",
			m.User.Username),
		AuthorIcon: m.User.AvatarURL,
		Fields: []Field{
			{
				Name:  "Getting Started",
				Value: "Please check the server rules and information channels to get familiar with our community.",
			},
			{
				Name:  "Need Help?",
				Value: "Use `$memberhelp` to see available commands or reach out to our staff team.",
			},
		},
		Footer:    fmt.Sprintf("Member #%d", m.MemberCount),
		Timestamp: time.Now().UTC(),
	}
}

// BuildDeletion renders a recalled deleted message.
func BuildDeletion(d recall.DeletedMessage) Content {
	c := Content{
		Description: d.Content,
		AuthorName:  d.Author.Name,
		AuthorIcon:  d.Author.AvatarURL,
		Footer:      "Deleted message",
		Timestamp:   d.CreatedAt,
	}
	if len(d.AttachmentURLs) > 0 {
		c.Image = d.AttachmentURLs[0]
		if len(d.AttachmentURLs) > 1 {
			c.Fields = append(c.Fields, Field{
				Name:  "Attachments",
				Value: strings.Join(d.AttachmentURLs, "\n"),
			})
		}
	}
	return c
}

// BuildEdit renders a recalled message edit.
func BuildEdit(e recall.EditedMessage) Content {
	return Content{
		URL:        e.JumpLink,
		AuthorName: e.Author.Name,
		AuthorIcon: e.Author.AvatarURL,
		Fields: []Field{
			{Name: "Before", Value: e.ContentBefore},
			{Name: "After", Value: e.ContentAfter},
		},
		Footer:    "Edited message",
		Timestamp: e.EditedAt,
	}
}
