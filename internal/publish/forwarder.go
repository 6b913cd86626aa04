package publish

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/samijaber1/aegis-compliance/internal/alert"
	"github.com/samijaber1/aegis-compliance/internal/logger"
	"github.com/samijaber1/aegis-compliance/internal/metrics"
)

const defaultQueueSize = 256

// Forwarder mirrors alert events onto a Publisher. It implements
// alert.Notifier and never blocks the caller: when the queue is full the
// event is dropped and counted.
type Forwarder struct {
	pub     Publisher
	prefix  string
	timeout time.Duration
	log     zerolog.Logger

	queue chan alert.Event
	done  chan struct{}
	once  sync.Once

	mu      sync.Mutex
	closed  bool
	dropped int64
}

// NewForwarder starts a forwarder publishing to <prefix>/alerts/<kind>
func NewForwarder(pub Publisher, prefix string, queueSize int) *Forwarder {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if prefix == "" {
		prefix = "aegis"
	}

	f := &Forwarder{
		pub:     pub,
		prefix:  prefix,
		timeout: 5 * time.Second,
		log:     logger.WithComponent("publisher"),
		queue:   make(chan alert.Event, queueSize),
		done:    make(chan struct{}),
	}

	go f.run()
	return f
}

// Notify queues an event for publication
func (f *Forwarder) Notify(e alert.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}

	select {
	case f.queue <- e:
		metrics.PublishQueueSize.Set(float64(len(f.queue)))
	default:
		f.dropped++
		metrics.PublishedMessagesTotal.WithLabelValues("dropped").Inc()
		f.log.Warn().Str("alert_id", e.ID).Msg("publish queue full, dropping alert")
	}
}

// Topic returns the topic an event is published to
func (f *Forwarder) Topic(e alert.Event) string {
	return f.prefix + "/alerts/" + string(e.Kind)
}

// Dropped returns the number of events dropped on a full queue
func (f *Forwarder) Dropped() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

func (f *Forwarder) run() {
	defer close(f.done)

	for e := range f.queue {
		metrics.PublishQueueSize.Set(float64(len(f.queue)))

		payload, err := json.Marshal(e)
		if err != nil {
			f.log.Error().Err(err).Str("alert_id", e.ID).Msg("failed to encode alert")
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
		err = f.pub.Publish(ctx, f.Topic(e), payload)
		cancel()

		if err != nil {
			f.log.Error().Err(err).Str("alert_id", e.ID).Str("kind", string(e.Kind)).Msg("failed to publish alert")
		}
	}
}

// Close stops accepting events, drains the queue and closes the publisher.
// It waits at most timeout for the queue to drain.
func (f *Forwarder) Close(timeout time.Duration) error {
	f.once.Do(func() {
		f.mu.Lock()
		f.closed = true
		close(f.queue)
		f.mu.Unlock()
	})

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-f.done:
	case <-timer.C:
		f.log.Warn().Msg("publish queue not drained before close")
	}

	return f.pub.Close()
}
