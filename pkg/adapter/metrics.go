// SPDX-License-Identifier: MIT
// Copyright © 2024–2026 Alexander Demin

package adapter

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/GwynCerbin/scraper_rabbit/pkg/adapter"

type metrics struct {
	reconnects      metric.Int64Counter
	deliveries      metric.Int64Counter
	handlerFailures metric.Int64Counter
	published       metric.Int64Counter
	queue           attribute.KeyValue
}

func newMetrics(mp metric.MeterProvider, queue string) (*metrics, error) {
	meter := mp.Meter(meterName)

	reconnects, err := meter.Int64Counter(
		"scraper_rabbit.reconnects",
		metric.WithDescription("Number of scheduled reconnection attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	deliveries, err := meter.Int64Counter(
		"scraper_rabbit.deliveries",
		metric.WithDescription("Number of deliveries handed to the message handler"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	handlerFailures, err := meter.Int64Counter(
		"scraper_rabbit.handler_failures",
		metric.WithDescription("Number of message handler invocations that failed"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	published, err := meter.Int64Counter(
		"scraper_rabbit.published",
		metric.WithDescription("Number of messages handed to the transport"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, err
	}

	return &metrics{
		reconnects:      reconnects,
		deliveries:      deliveries,
		handlerFailures: handlerFailures,
		published:       published,
		queue:           attribute.String("queue", queue),
	}, nil
}

func (m *metrics) recordReconnect(ctx context.Context) {
	m.reconnects.Add(ctx, 1, metric.WithAttributes(m.queue))
}

func (m *metrics) recordDelivery(ctx context.Context, failed bool) {
	if failed {
		m.handlerFailures.Add(ctx, 1, metric.WithAttributes(m.queue))
	}

	m.deliveries.Add(ctx, 1, metric.WithAttributes(m.queue))
}

func (m *metrics) recordPublish(ctx context.Context, eventType string) {
	m.published.Add(ctx, 1, metric.WithAttributes(m.queue, attribute.String("event_type", eventType)))
}
