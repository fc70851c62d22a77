// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package github

import "time"

// Kind classifies a repository event.
type Kind string

const (
	KindPush        Kind = "push"
	KindIssue       Kind = "issue"
	KindPullRequest Kind = "pull-request"
	KindOther       Kind = "other"
)

// Actor identifies who triggered an event.
type Actor struct {
	Login     string
	AvatarURL string
}

// Repo is a repository reference within the tracked organization.
type Repo struct {
	Name string
}

// Event is one repository activity record as fetched from the API.
// Immutable once fetched; discarded after delivery filtering.
type Event struct {
	ID         string
	OccurredAt time.Time
	Kind       Kind
	Origin     string // repository name
	Actor      Actor

	// Kind-specific payload
	Commits []string // push: ordered commit messages
	Action  string   // issue, pull-request: action verb
	Title   string   // issue, pull-request: title
	RawType string   // upstream event type, kept for "other" display
}

// Wire-format shapes for the GitHub REST API.

type apiRepo struct {
	Name string `json:"name"`
}

type apiActor struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
}

type apiCommit struct {
	Message string `json:"message"`
}

type apiIssue struct {
	Title string `json:"title"`
}

type apiPullRequest struct {
	Title string `json:"title"`
}

type apiPayload struct {
	Action      string          `json:"action"`
	Commits     []apiCommit     `json:"commits"`
	Issue       *apiIssue       `json:"issue"`
	PullRequest *apiPullRequest `json:"pull_request"`
}

type apiEvent struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	CreatedAt string     `json:"created_at"`
	Actor     apiActor   `json:"actor"`
	Payload   apiPayload `json:"payload"`
}
