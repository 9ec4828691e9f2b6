package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeterministicClock_ResetReplaysSequence(t *testing.T) {
	clock := NewDeterministicClock()
	assert.Equal(t, int64(0), clock.Current())

	first := []int64{clock.Next(), clock.Next(), clock.Next()}
	clock.Reset()
	second := []int64{clock.Next(), clock.Next(), clock.Next()}

	assert.Equal(t, []int64{1, 2, 3}, first)
	assert.Equal(t, first, second)
}

func TestDeterministicClock_ConcurrentNext(t *testing.T) {
	clock := NewDeterministicClock()
	var wg sync.WaitGroup
	for w := 0; w < 10; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				clock.Next()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1000), clock.Current())
}
