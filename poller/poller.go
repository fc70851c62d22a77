// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/absmach/guildbot/github"
	"github.com/absmach/guildbot/server/otel"
	"github.com/google/uuid"
)

// Source fetches organization activity.
type Source interface {
	ListRepos(ctx context.Context, org string) ([]github.Repo, error)
	FetchEvents(ctx context.Context, org, repo string) ([]github.Event, error)
}

// Sink receives delivered events, one at a time, in chronological order.
type Sink interface {
	ShowActivity(ctx context.Context, ev github.Event) error
}

// Config holds poller settings.
type Config struct {
	Org      string
	Interval time.Duration
	Window   time.Duration
}

// Stats is a snapshot of poller counters for the status surface.
type Stats struct {
	Ticks      uint64    `json:"ticks"`
	Delivered  uint64    `json:"delivered"`
	LedgerSize int       `json:"ledger_size"`
	LastTick   time.Time `json:"last_tick"`
}

// Poller periodically fetches activity for every repository of the
// tracked organization, filters it through the delivery ledger, and
// hands surviving events to the sink in chronological order.
//
// Ticks are serialized by a mutex; a tick still running when the next
// fires simply delays it. Failures never stop the loop: a repo-list
// failure aborts the current tick, a single repository's fetch failure
// skips only that repository, and a panic is recovered at the tick
// boundary.
type Poller struct {
	cfg     Config
	source  Source
	sink    Sink
	ledger  *Ledger
	logger  *slog.Logger
	metrics *otel.Metrics
	now     func() time.Time

	ready     chan struct{}
	readyOnce sync.Once

	tickMu sync.Mutex // serializes ticks

	statsMu   sync.Mutex
	ticks     uint64
	delivered uint64
	lastTick  time.Time
}

// New creates a poller. The metrics argument may be nil.
func New(cfg Config, source Source, sink Sink, logger *slog.Logger, metrics *otel.Metrics) *Poller {
	if logger == nil {
		logger = slog.Default()
	}

	return &Poller{
		cfg:     cfg,
		source:  source,
		sink:    sink,
		ledger:  NewLedger(),
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
		ready:   make(chan struct{}),
	}
}

// SetReady releases the poll loop. Ticking begins only after the
// surrounding process reports itself ready.
func (p *Poller) SetReady() {
	p.readyOnce.Do(func() { close(p.ready) })
}

// Run blocks until ctx is cancelled, ticking on the configured interval
// once SetReady has been called.
func (p *Poller) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ready:
	}

	p.logger.Info("update poller started",
		slog.String("org", p.cfg.Org),
		slog.Duration("interval", p.cfg.Interval),
		slog.Duration("window", p.cfg.Window))

	p.Tick(ctx)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("update poller stopped")
			return ctx.Err()
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick executes one poll cycle.
func (p *Poller) Tick(ctx context.Context) {
	p.tickMu.Lock()
	defer p.tickMu.Unlock()

	tickID := uuid.NewString()
	start := p.now()
	delivered := 0

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic during poll tick, tick aborted",
				slog.String("tick_id", tickID),
				slog.Any("panic", r))
		}

		p.metrics.RecordTick(ctx, p.now().Sub(start))
		p.metrics.AddDelivered(ctx, delivered)

		p.statsMu.Lock()
		p.ticks++
		p.delivered += uint64(delivered)
		p.lastTick = start
		p.statsMu.Unlock()
	}()

	if purged := p.ledger.Purge(start, p.cfg.Window); purged > 0 {
		p.logger.Debug("purged expired ledger entries",
			slog.String("tick_id", tickID),
			slog.Int("purged", purged))
	}

	repos, err := p.source.ListRepos(ctx, p.cfg.Org)
	if err != nil {
		p.logger.Error("failed to list repositories, aborting tick",
			slog.String("tick_id", tickID),
			slog.String("error", err.Error()))
		return
	}

	for _, repo := range repos {
		events, err := p.source.FetchEvents(ctx, p.cfg.Org, repo.Name)
		if err != nil {
			p.logger.Warn("failed to fetch events, skipping repository",
				slog.String("tick_id", tickID),
				slog.String("repo", repo.Name),
				slog.String("error", err.Error()))
			p.metrics.AddFetchError(ctx)
			continue
		}

		// Upstream supplies newest-first; walk backwards so qualifying
		// events are emitted in chronological order.
		for i := len(events) - 1; i >= 0; i-- {
			ev := events[i]
			if !p.ledger.ShouldDeliver(ev.ID, ev.OccurredAt, p.now(), p.cfg.Window) {
				continue
			}
			delivered++
			if err := p.sink.ShowActivity(ctx, ev); err != nil {
				p.logger.Warn("failed to display event",
					slog.String("tick_id", tickID),
					slog.String("event_id", ev.ID),
					slog.String("error", err.Error()))
			}
		}
	}

	p.logger.Debug("poll tick finished",
		slog.String("tick_id", tickID),
		slog.Int("repos", len(repos)),
		slog.Int("delivered", delivered),
		slog.Duration("took", p.now().Sub(start)))
}

// Stats returns a snapshot of the poller's counters.
func (p *Poller) Stats() Stats {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()

	return Stats{
		Ticks:      p.ticks,
		Delivered:  p.delivered,
		LedgerSize: p.ledger.Len(),
		LastTick:   p.lastTick,
	}
}
