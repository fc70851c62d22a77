// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/absmach/guildbot/config"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const timestampLayout = "2006-01-02T15:04:05Z"

// Client fetches organization activity from the GitHub REST API.
// All requests share one rate limiter; the events endpoint additionally
// sits behind a circuit breaker so a flapping upstream is not hammered
// on every poll tick.
type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  *slog.Logger
	now     func() time.Time
}

// NewClient creates a GitHub API client.
func NewClient(cfg config.GitHubConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "github-events",
		MaxRequests: 1,
		Timeout:     cfg.Breaker.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.Breaker.FailureThreshold)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("github circuit breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})

	return &Client{
		baseURL: cfg.APIURL,
		token:   cfg.Token,
		httpc:   &http.Client{Timeout: cfg.RequestTimeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestRate), cfg.RequestBurst),
		breaker: breaker,
		logger:  logger,
		now:     time.Now,
	}
}

// ListRepos returns the repositories of an organization.
func (c *Client) ListRepos(ctx context.Context, org string) ([]Repo, error) {
	var repos []apiRepo
	url := fmt.Sprintf("%s/orgs/%s/repos", c.baseURL, org)
	if err := c.get(ctx, url, &repos); err != nil {
		return nil, fmt.Errorf("list repos for %s: %w", org, err)
	}

	out := make([]Repo, 0, len(repos))
	for _, r := range repos {
		out = append(out, Repo{Name: r.Name})
	}
	return out, nil
}

// FetchEvents returns the recent events of one repository, newest-first
// as supplied by upstream.
func (c *Client) FetchEvents(ctx context.Context, org, repo string) ([]Event, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		var events []apiEvent
		url := fmt.Sprintf("%s/repos/%s/%s/events", c.baseURL, org, repo)
		if err := c.get(ctx, url, &events); err != nil {
			return nil, err
		}
		return events, nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch events for %s/%s: %w", org, repo, err)
	}

	raw := result.([]apiEvent)
	out := make([]Event, 0, len(raw))
	for _, e := range raw {
		out = append(out, c.toEvent(e, repo))
	}
	return out, nil
}

// toEvent converts a wire event into an Event. A missing or malformed
// timestamp is substituted with the current wall-clock time rather than
// rejecting the record.
func (c *Client) toEvent(e apiEvent, repo string) Event {
	occurred, err := time.Parse(timestampLayout, e.CreatedAt)
	if err != nil {
		c.logger.Warn("malformed event timestamp, substituting current time",
			slog.String("event_id", e.ID),
			slog.String("repo", repo),
			slog.String("created_at", e.CreatedAt))
		occurred = c.now().UTC()
	}

	ev := Event{
		ID:         e.ID,
		OccurredAt: occurred,
		Origin:     repo,
		Actor:      Actor{Login: e.Actor.Login, AvatarURL: e.Actor.AvatarURL},
		RawType:    e.Type,
	}

	switch e.Type {
	case "PushEvent":
		ev.Kind = KindPush
		for _, commit := range e.Payload.Commits {
			ev.Commits = append(ev.Commits, commit.Message)
		}
	case "IssuesEvent":
		ev.Kind = KindIssue
		ev.Action = e.Payload.Action
		if e.Payload.Issue != nil {
			ev.Title = e.Payload.Issue.Title
		}
	case "PullRequestEvent":
		ev.Kind = KindPullRequest
		ev.Action = e.Payload.Action
		if e.Payload.PullRequest != nil {
			ev.Title = e.Payload.PullRequest.Title
		}
	default:
		ev.Kind = KindOther
	}

	return ev
}

// get performs a rate-limited GET and decodes the JSON response into v.
func (c *Client) get(ctx context.Context, url string, v interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(v)
}
