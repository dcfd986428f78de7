package progress

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounterMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Applying template (0/12)", counterMessage("Applying template", 0, 12))
	assert.Equal(t, "Refreshing (3/4)", counterMessage("Refreshing", 3, 4))
}

func TestCounter_Disabled(t *testing.T) {
	t.Parallel()

	c := StartCounter("Applying template", 8, false)
	assert.Nil(t, c.spinner)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Done()
		}()
	}
	wg.Wait()
	c.Stop()
	assert.Equal(t, 8, c.Finished())
}

func TestCounter_SingleRepository(t *testing.T) {
	t.Parallel()

	c := StartCounter("Applying template", 1, true)
	assert.Nil(t, c.spinner)
	c.Done()
	c.Stop()
	assert.Equal(t, 1, c.Finished())
}

func TestCounter_Message(t *testing.T) {
	t.Parallel()

	c := StartCounter("Refreshing", 3, false)
	c.Done()
	c.Done()
	assert.Equal(t, "Refreshing (2/3)", c.message())
}

func TestSpinner_StopBeforeStart(t *testing.T) {
	t.Parallel()

	s := NewSpinner(func() string { return "Cloning" })
	assert.False(t, s.Running())
	// Stopping a spinner that never started is a no-op.
	s.Stop()
	assert.False(t, s.Running())
}
