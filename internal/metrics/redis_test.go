package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCacheHitTracker_StartsAtZero(t *testing.T) {
	tr := NewCacheHitTracker()
	assert.Equal(t, int64(0), tr.hits)
	assert.Equal(t, int64(0), tr.misses)
}

func TestCacheHitTracker_HitAndMiss(t *testing.T) {
	tr := NewCacheHitTracker()

	tr.Hit()
	tr.Hit()
	tr.Miss()

	assert.Equal(t, int64(2), tr.hits)
	assert.Equal(t, int64(1), tr.misses)
}

func TestCacheHitTracker_Reset(t *testing.T) {
	tr := NewCacheHitTracker()
	tr.Hit()
	tr.Miss()

	tr.Reset()

	assert.Equal(t, int64(0), tr.hits)
	assert.Equal(t, int64(0), tr.misses)
}

func TestCacheHitTracker_RefreshDoesNotPanicAtZeroTotal(t *testing.T) {
	tr := NewCacheHitTracker()
	assert.NotPanics(t, func() {
		tr.refresh()
	})
}

func TestCacheHitTracker_ConcurrentAccess(t *testing.T) {
	tr := NewCacheHitTracker()
	done := make(chan struct{})
	for i := 0; i < 20; i++ {
		go func(i int) {
			if i%2 == 0 {
				tr.Hit()
			} else {
				tr.Miss()
			}
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < 20; i++ {
		<-done
	}
	assert.Equal(t, int64(10), tr.hits)
	assert.Equal(t, int64(10), tr.misses)
}
