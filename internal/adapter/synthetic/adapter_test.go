package synthetic

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifier_Fixtures(t *testing.T) {
	c := NewClassifier()
	c.SetFixture("a.wav", Fixture{Label: "drone", Detected: true, Confidence: 0.95})

	result, err := c.Classify(context.Background(), "a.wav")
	require.NoError(t, err)
	assert.Equal(t, "drone", result.Label)
	assert.True(t, result.Detected)

	unknown, err := c.Classify(context.Background(), "missing.wav")
	require.NoError(t, err)
	assert.Equal(t, ErrorUnknownSignal, unknown.ErrorKind)
}

func TestClassifier_LoadFixtures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.json")
	doc := `{"b.wav": {"label": "bird", "confidence": 0.4}, "c.wav": {"err": "connection refused"}}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	c := NewClassifier()
	require.NoError(t, c.LoadFixtures(path))

	result, err := c.Classify(context.Background(), "b.wav")
	require.NoError(t, err)
	assert.Equal(t, "bird", result.Label)
	assert.False(t, result.Detected)

	_, err = c.Classify(context.Background(), "c.wav")
	assert.Error(t, err)

	assert.Error(t, c.LoadFixtures(filepath.Join(t.TempDir(), "nope.json")))
}

func TestClassifier_DelayRespectsContext(t *testing.T) {
	c := NewClassifier()
	c.SetFixture("slow.wav", Fixture{Label: "drone", Delay: time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Classify(ctx, "slow.wav")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
