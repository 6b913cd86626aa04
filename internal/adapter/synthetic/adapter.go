package synthetic

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/samijaber1/aegis-compliance/internal/storage"
)

// ErrorUnknownSignal is the error kind reported for references without a fixture
const ErrorUnknownSignal = "unknown_signal"

// Fixture is a canned classification for one signal reference
type Fixture struct {
	Label      string        `json:"label"`
	Detected   bool          `json:"detected"`
	Confidence float64       `json:"confidence"`
	ErrorKind  string        `json:"errorKind,omitempty"`
	Delay      time.Duration `json:"delay,omitempty"`
	// Err makes Classify fail as if the collaborator were unreachable
	Err string `json:"err,omitempty"`
}

// Classifier answers classifications from fixtures keyed by signal reference
type Classifier struct {
	mu       sync.RWMutex
	fixtures map[string]Fixture
}

// NewClassifier creates an empty synthetic classifier
func NewClassifier() *Classifier {
	return &Classifier{
		fixtures: make(map[string]Fixture),
	}
}

// LoadFixtures loads a JSON object of signalRef -> Fixture
func (c *Classifier) LoadFixtures(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read fixture: %w", err)
	}

	var fixtures map[string]Fixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("failed to parse fixture: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for ref, f := range fixtures {
		c.fixtures[ref] = f
	}
	return nil
}

// SetFixture directly sets a fixture (useful for testing)
func (c *Classifier) SetFixture(signalRef string, fixture Fixture) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fixtures[signalRef] = fixture
}

// Classify returns the fixture for signalRef
func (c *Classifier) Classify(ctx context.Context, signalRef string) (storage.ProcessingResult, error) {
	c.mu.RLock()
	fixture, ok := c.fixtures[signalRef]
	c.mu.RUnlock()

	if !ok {
		return storage.ProcessingResult{
			ErrorKind:   ErrorUnknownSignal,
			ProcessedAt: time.Now(),
		}, nil
	}

	if fixture.Delay > 0 {
		select {
		case <-ctx.Done():
			return storage.ProcessingResult{}, ctx.Err()
		case <-time.After(fixture.Delay):
		}
	}

	if fixture.Err != "" {
		return storage.ProcessingResult{}, fmt.Errorf("synthetic classifier: %s", fixture.Err)
	}

	return storage.ProcessingResult{
		Label:          fixture.Label,
		Detected:       fixture.Detected,
		Confidence:     fixture.Confidence,
		ErrorKind:      fixture.ErrorKind,
		ProcessingTime: fixture.Delay,
		ProcessedAt:    time.Now(),
	}, nil
}
