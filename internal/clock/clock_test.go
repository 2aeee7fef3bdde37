package clock_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/maynagashev/tokenvault/internal/clock"
)

func TestManual(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	c := clock.NewManual(start)
	assert.Equal(t, start.Unix(), c.Now().Unix())

	got := c.Advance(6 * time.Second)
	assert.Equal(t, start.Unix()+6, got.Unix())
	assert.Equal(t, got, c.Now())

	c.Set(start)
	assert.Equal(t, start.Unix(), c.Now().Unix())
}

func TestManual_Concurrent(t *testing.T) {
	c := clock.NewManual(time.Unix(0, 0))
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Advance(time.Second)
			_ = c.Now()
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), c.Now().Unix())
}

func TestSystem(t *testing.T) {
	var c clock.Clock = clock.System{}
	now := c.Now()
	assert.Equal(t, time.UTC, now.Location())
	assert.WithinDuration(t, time.Now(), now, time.Second)
}
