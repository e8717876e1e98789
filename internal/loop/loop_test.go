package loop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunPendingKeepsOrder(t *testing.T) {
	l := New()
	var got []int
	for i := 0; i < 5; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}

	assert.Equal(t, 5, l.RunPending())
	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
	assert.Zero(t, l.RunPending())
}

func TestPostFromCallbackRunsLater(t *testing.T) {
	l := New()
	var got []string
	l.Post(func() {
		got = append(got, "outer")
		l.Post(func() { got = append(got, "inner") })
	})

	l.RunPending()
	assert.Equal(t, []string{"outer", "inner"}, got)
}

func TestRunProcessesPostsFromOtherGoroutines(t *testing.T) {
	l := New()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var mu sync.Mutex
	count := 0
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Post(func() {
				mu.Lock()
				count++
				done := count == 10
				mu.Unlock()
				if done {
					l.Quit()
				}
			})
		}()
	}

	require.NoError(t, l.Run(ctx))
	wg.Wait()
	assert.Equal(t, 10, count)
}

func TestRunStopsOnContext(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, l.Run(ctx), context.Canceled)

	ran := false
	l.Post(func() { ran = true })
	assert.Zero(t, l.RunPending())
	assert.False(t, ran)
}

func TestAfterFunc(t *testing.T) {
	l := New()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fired := false
	l.AfterFunc(10*time.Millisecond, func() {
		fired = true
		l.Quit()
	})

	require.NoError(t, l.Run(ctx))
	assert.True(t, fired)
}

func TestAfterFuncCancel(t *testing.T) {
	l := New()
	fired := false
	cancelTimer := l.AfterFunc(20*time.Millisecond, func() { fired = true })
	cancelTimer()

	time.Sleep(60 * time.Millisecond)
	l.RunPending()
	assert.False(t, fired)
}

func TestAfterFuncAfterQuit(t *testing.T) {
	l := New()
	l.Quit()
	l.Quit()

	cancelTimer := l.AfterFunc(time.Millisecond, func() { t.Error("must not fire") })
	cancelTimer()
	time.Sleep(10 * time.Millisecond)
	assert.Zero(t, l.RunPending())
}
