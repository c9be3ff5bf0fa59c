package partition

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSerializesPerKey(t *testing.T) {
	r := NewRouter()

	const workers = 16
	const iters = 200
	counter := 0 // guarded only by the partition lock

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iters; j++ {
				_ = r.Do("k", func() error {
					counter++
					return nil
				})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, workers*iters, counter)
}

func TestDoKeysAreIndependent(t *testing.T) {
	r := NewRouter()

	release := make(chan struct{})
	holding := make(chan struct{})
	go func() {
		_ = r.Do("a", func() error {
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	// A different key must not block behind "a".
	done := make(chan struct{})
	go func() {
		_ = r.Do("b", func() error { return nil })
		close(done)
	}()
	<-done
	close(release)
}

func TestDoEvictsIdleKeys(t *testing.T) {
	r := NewRouter()
	require.NoError(t, r.Do("room:1", func() error { return nil }))
	require.NoError(t, r.Do(GlobalKey, func() error { return nil }))

	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Empty(t, r.entries)
}

func TestDoReturnsFnError(t *testing.T) {
	r := NewRouter()
	want := assert.AnError
	err := r.Do("k", func() error { return want })
	assert.ErrorIs(t, err, want)
}

func TestRoomKey(t *testing.T) {
	assert.Equal(t, "room:42", RoomKey("42"))
}
