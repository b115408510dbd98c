package rng

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceIsReproducibleForSequentialDraws(t *testing.T) {
	a := New(7)
	b := New(7)
	for i := 0; i < 50; i++ {
		require.Equal(t, a.Float64(), b.Float64())
		require.Equal(t, a.IntBetween(3, 9), b.IntBetween(3, 9))
	}
}

func TestIntBetweenIsInclusive(t *testing.T) {
	s := New(1)
	seen := map[int]bool{}
	for i := 0; i < 500; i++ {
		v := s.IntBetween(2, 4)
		require.GreaterOrEqual(t, v, 2)
		require.LessOrEqual(t, v, 4)
		seen[v] = true
	}
	assert.Len(t, seen, 3)
	assert.Equal(t, 5, s.IntBetween(5, 5))
	v := s.IntBetween(9, 8)
	assert.True(t, v == 8 || v == 9)
}

func TestSourceConcurrentDraws(t *testing.T) {
	s := New(3)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				f := s.Fractional()
				for _, x := range f {
					if x < 0 || x >= 1 {
						t.Errorf("fractional draw out of range: %v", x)
					}
				}
			}
		}()
	}
	wg.Wait()
}
