package websocket

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "bankcap.websocket"

// hubMetrics records hub activity
type hubMetrics struct {
	connections metric.Int64UpDownCounter
	messages    metric.Int64Counter
	dropped     metric.Int64Counter
}

func newHubMetrics(meter metric.Meter) (*hubMetrics, error) {
	connections, err := meter.Int64UpDownCounter(
		"websocket_connections_active",
		metric.WithDescription("Connected websocket clients"),
	)
	if err != nil {
		return nil, err
	}

	messages, err := meter.Int64Counter(
		"websocket_messages_sent_total",
		metric.WithDescription("Messages queued to websocket clients"),
	)
	if err != nil {
		return nil, err
	}

	dropped, err := meter.Int64Counter(
		"websocket_dropped_messages_total",
		metric.WithDescription("Messages dropped because a buffer was full"),
	)
	if err != nil {
		return nil, err
	}

	return &hubMetrics{connections: connections, messages: messages, dropped: dropped}, nil
}

func (m *hubMetrics) connected(ctx context.Context)    { m.connections.Add(ctx, 1) }
func (m *hubMetrics) disconnected(ctx context.Context) { m.connections.Add(ctx, -1) }

func (m *hubMetrics) sent(ctx context.Context, messageType string, n int) {
	m.messages.Add(ctx, int64(n), metric.WithAttributes(attribute.String("message_type", messageType)))
}

func (m *hubMetrics) drop(ctx context.Context, reason string) {
	m.dropped.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
