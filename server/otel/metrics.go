// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package otel

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds OpenTelemetry metric instruments for the guild bot.
// All record methods are safe to call on a nil receiver, so components
// can carry a nil *Metrics when telemetry is disabled.
type Metrics struct {
	meter metric.Meter

	pollTicks         metric.Int64Counter
	eventsDelivered   metric.Int64Counter
	fetchErrors       metric.Int64Counter
	gatewayReconnects metric.Int64Counter

	recallEntries metric.Int64UpDownCounter

	tickDuration metric.Float64Histogram
}

// NewMetrics creates a new Metrics instance with all instruments initialized.
func NewMetrics() (*Metrics, error) {
	m := &Metrics{
		meter: otel.Meter("guildbot"),
	}

	var err error

	m.pollTicks, err = m.meter.Int64Counter(
		"guildbot.poll.ticks.total",
		metric.WithDescription("Total number of poll ticks executed"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pollTicks counter: %w", err)
	}

	m.eventsDelivered, err = m.meter.Int64Counter(
		"guildbot.events.delivered.total",
		metric.WithDescription("Total activity events delivered to the updates channel"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create eventsDelivered counter: %w", err)
	}

	m.fetchErrors, err = m.meter.Int64Counter(
		"guildbot.fetch.errors.total",
		metric.WithDescription("Total failed repository event fetches"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetchErrors counter: %w", err)
	}

	m.gatewayReconnects, err = m.meter.Int64Counter(
		"guildbot.gateway.reconnects.total",
		metric.WithDescription("Total gateway reconnection attempts"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gatewayReconnects counter: %w", err)
	}

	m.recallEntries, err = m.meter.Int64UpDownCounter(
		"guildbot.recall.entries.current",
		metric.WithDescription("Current number of cached recall entries"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create recallEntries gauge: %w", err)
	}

	m.tickDuration, err = m.meter.Float64Histogram(
		"guildbot.poll.tick.duration",
		metric.WithDescription("Poll tick duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tickDuration histogram: %w", err)
	}

	return m, nil
}

// RecordTick records one completed poll tick and its duration.
func (m *Metrics) RecordTick(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.pollTicks.Add(ctx, 1)
	m.tickDuration.Record(ctx, d.Seconds())
}

// AddDelivered records delivered activity events.
func (m *Metrics) AddDelivered(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.eventsDelivered.Add(ctx, int64(n))
}

// AddFetchError records one failed repository fetch.
func (m *Metrics) AddFetchError(ctx context.Context) {
	if m == nil {
		return
	}
	m.fetchErrors.Add(ctx, 1)
}

// AddGatewayReconnect records one gateway reconnection attempt.
func (m *Metrics) AddGatewayReconnect(ctx context.Context) {
	if m == nil {
		return
	}
	m.gatewayReconnects.Add(ctx, 1)
}

// AddRecallEntries adjusts the cached recall entry gauge.
func (m *Metrics) AddRecallEntries(ctx context.Context, delta int) {
	if m == nil || delta == 0 {
		return
	}
	m.recallEntries.Add(ctx, int64(delta))
}
