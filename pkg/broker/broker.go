// Package broker is the STOMP transport boundary (spec.md §6): subscribe
// to the upstream destination, ack consumed frames by message-id, and
// publish to the downstream error/reject/duplicate/notification topics.
package broker

import "context"

// Downstream destinations (spec.md §6).
const (
	DestErrors       = "/topic/feeds.aprs.is.errors"
	DestRejects      = "/topic/feeds.aprs.is.rejects"
	DestDuplicates   = "/topic/feeds.aprs.is.duplicates"
	DestNotifyAPRS   = "/topic/notify.aprs.messages"
)

// Frame is one received broker message: the raw UTF-8 body (newline
// separated packet lines) plus the headers needed to ack it.
type Frame struct {
	Body          string
	MessageID     string
	SubscriptionID string
}

// Broker is the upstream/downstream transport Worker depends on.
type Broker interface {
	// Subscribe opens a subscription to destination with the given
	// subscription id, prefetch window, and heart-beat header
	// (spec.md §6). The returned channel is closed when the
	// subscription ends.
	Subscribe(ctx context.Context, destination, subscriptionID string, prefetch int, heartBeat string) (<-chan Frame, error)

	// Ack acknowledges one consumed frame.
	Ack(ctx context.Context, messageID, subscriptionID string) error

	// Publish sends body to destination.
	Publish(ctx context.Context, destination, body string) error

	Close() error
}
