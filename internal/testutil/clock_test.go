package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualScheduler_StartsAtZero(t *testing.T) {
	s := NewManualScheduler()
	assert.Equal(t, time.Duration(0), s.Now())
	assert.Equal(t, 0, s.Pending())
}

func TestManualScheduler_FiresOnlyWhenDue(t *testing.T) {
	s := NewManualScheduler()
	fired := 0
	s.AfterFunc(500*time.Millisecond, func() { fired++ })

	assert.Equal(t, 0, s.Advance(499*time.Millisecond))
	assert.Equal(t, 0, fired)
	assert.Equal(t, 1, s.Pending())

	assert.Equal(t, 1, s.Advance(time.Millisecond))
	assert.Equal(t, 1, fired)
	assert.Equal(t, 0, s.Pending())

	// Fired timers never fire again
	assert.Equal(t, 0, s.Advance(time.Hour))
	assert.Equal(t, 1, fired)
}

func TestManualScheduler_FiresInDueOrder(t *testing.T) {
	s := NewManualScheduler()
	var order []string
	s.AfterFunc(2*time.Second, func() { order = append(order, "late") })
	s.AfterFunc(time.Second, func() { order = append(order, "early") })
	s.AfterFunc(time.Second, func() { order = append(order, "early-2") })

	assert.Equal(t, 3, s.Advance(5*time.Second))
	assert.Equal(t, []string{"early", "early-2", "late"}, order)
}

func TestManualScheduler_Stop(t *testing.T) {
	s := NewManualScheduler()
	fired := false
	timer := s.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop(), "second stop reports already stopped")
	assert.Equal(t, 0, s.Advance(time.Minute))
	assert.False(t, fired)
}

func TestManualScheduler_StopAfterFire(t *testing.T) {
	s := NewManualScheduler()
	timer := s.AfterFunc(time.Second, func() {})
	s.Advance(time.Second)
	assert.False(t, timer.Stop())
}

func TestManualScheduler_ThreadSafe(t *testing.T) {
	s := NewManualScheduler()
	const n = 50

	var mu sync.Mutex
	count := 0
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			s.AfterFunc(time.Millisecond, func() {
				mu.Lock()
				count++
				mu.Unlock()
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, n, s.Advance(time.Millisecond))
	assert.Equal(t, n, count)
}
