package publish

import (
	"context"
	"errors"
)

var (
	// ErrPublisherClosed is returned by Publish after Close
	ErrPublisherClosed = errors.New("publisher is closed")
	// ErrPublishTimeout is returned when the broker does not acknowledge in time
	ErrPublishTimeout = errors.New("publish timeout")
)

// Publisher sends a payload to a topic on a message transport
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close() error
}
