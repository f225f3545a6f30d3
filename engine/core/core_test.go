package core

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockElapsed(t *testing.T) {
	now := time.Unix(100, 0)
	c := NewClockWithSource(func() time.Time { return now })

	c.Update()
	assert.Zero(t, c.Elapsed(), "a clock that was never started does not advance")

	c.Start()
	now = now.Add(1500 * time.Millisecond)
	assert.Zero(t, c.Elapsed(), "elapsed only moves on Update")
	c.Update()
	assert.InDelta(t, 1.5, c.Elapsed(), 1e-9)

	c.Stop()
	now = now.Add(time.Second)
	c.Update()
	assert.InDelta(t, 1.5, c.Elapsed(), 1e-9)
}

func TestIDGeneratorNeverReturnsZero(t *testing.T) {
	g := NewIDGenerator()
	assert.Zero(t, g.Last())

	var wg sync.WaitGroup
	seen := sync.Map{}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := g.Next()
				_, dup := seen.LoadOrStore(id, struct{}{})
				assert.False(t, dup)
				assert.NotZero(t, id)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(800), g.Last())
}

func TestErrorClassification(t *testing.T) {
	assert.False(t, IsFatal(nil))
	assert.False(t, IsFatal(ErrSwapchainBooting))
	assert.False(t, IsFatal(fmt.Errorf("tick: %w", ErrSwapchainBooting)))
	assert.True(t, IsFatal(ErrDeviceLost))
	assert.True(t, IsFatal(errors.New("boom")))

	err := Invariantf("slot %d out of range", 4)
	assert.ErrorIs(t, err, ErrInvariant)
	assert.Contains(t, err.Error(), "slot 4 out of range")
}

func TestParseLogLevel(t *testing.T) {
	for _, name := range []string{"debug", "info", "warn", "error"} {
		level, err := ParseLogLevel(name)
		require.NoError(t, err)
		assert.Equal(t, name, level.String())
	}
	_, err := ParseLogLevel("verbose")
	assert.Error(t, err)
}

func TestSetLogLevel(t *testing.T) {
	previous := GetLogLevel()
	t.Cleanup(func() { SetLogLevel(previous) })

	SetLogLevel(WarnLevel)
	assert.Equal(t, WarnLevel, GetLogLevel())
}

func TestMetricsAverage(t *testing.T) {
	m := NewMetrics()
	for i := 0; i < AVG_COUNT*2; i++ {
		m.Update(0.010)
	}
	assert.InDelta(t, 10.0, m.FrameTime(), 1e-9)

	m.Update(0.040)
	// one 40ms sample among 29 of 10ms
	assert.InDelta(t, (29*10.0+40.0)/float64(AVG_COUNT), m.FrameTime(), 1e-9)
}

func TestMetricsFPS(t *testing.T) {
	m := NewMetrics()
	assert.Zero(t, m.FPS())
	for i := 0; i < 101; i++ {
		m.Update(0.010)
	}
	fps, _ := m.Frame()
	assert.Equal(t, 100.0, fps)
}
