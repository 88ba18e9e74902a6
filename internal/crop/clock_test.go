package crop

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClock_Next(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())
}

func TestClock_At(t *testing.T) {
	c := NewClockAt(41)
	assert.Equal(t, int64(42), c.Next())
}

func TestClock_Advance(t *testing.T) {
	c := NewClockAt(10)
	c.Advance(5)
	assert.Equal(t, int64(10), c.Current(), "advance never moves backwards")
	c.Advance(20)
	assert.Equal(t, int64(20), c.Current())
}

func TestClock_ConcurrentUnique(t *testing.T) {
	c := NewClock()
	const n = 100

	var mu sync.Mutex
	seen := make(map[int64]bool)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := c.Next()
			mu.Lock()
			seen[v] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
	assert.Equal(t, int64(n), c.Current())
}
