package alert

import (
	"sync"

	"github.com/samijaber1/aegis-compliance/internal/metrics"
	"github.com/samijaber1/aegis-compliance/internal/threshold"
)

// DefaultCapacity is the number of alerts retained by a log
const DefaultCapacity = 1000

// DefaultLimit is the page size used when callers do not ask for one
const DefaultLimit = 100

// Notifier is told about every appended alert
type Notifier interface {
	Notify(Event)
}

// Log is a bounded, goroutine-safe ring of alerts. Once full, the oldest
// alert is dropped for every new one.
type Log struct {
	mu        sync.RWMutex
	buf       []Event
	head      int
	size      int
	notifiers []Notifier
}

// NewLog creates a log retaining at most capacity alerts
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{buf: make([]Event, capacity)}
}

// AddNotifier registers n to receive every subsequently appended alert
func (l *Log) AddNotifier(n Notifier) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.notifiers = append(l.notifiers, n)
}

// Append stores an alert, filling in ID and Kind when missing
func (l *Log) Append(e Event) Event {
	if e.ID == "" {
		e.ID = NewID()
	}
	if e.Kind == "" {
		e.Kind = KindCompliance
	}

	l.mu.Lock()
	if l.size < len(l.buf) {
		l.buf[(l.head+l.size)%len(l.buf)] = e
		l.size++
	} else {
		l.buf[l.head] = e
		l.head = (l.head + 1) % len(l.buf)
	}
	notifiers := l.notifiers
	l.mu.Unlock()

	metrics.AlertsRaisedTotal.WithLabelValues(string(e.Kind), string(e.Status)).Inc()

	for _, n := range notifiers {
		n.Notify(e)
	}
	return e
}

// Recent returns up to limit of the newest alerts, most recent first.
// A non-nil status keeps only matching alerts from that window; it does
// not look further back. limit <= 0 selects the whole retained window.
func (l *Log) Recent(limit int, status *threshold.Status) []Event {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if limit <= 0 || limit > l.size {
		limit = l.size
	}

	out := make([]Event, 0, limit)
	for i := 0; i < limit; i++ {
		e := l.buf[(l.head+l.size-1-i)%len(l.buf)]
		if status != nil && e.Status != *status {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Len returns the number of retained alerts
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}
