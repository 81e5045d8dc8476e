package schedule

import (
	"context"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/require"
)

// startLoop runs a loop in the current bubble and returns it with a stop function.
func startLoop(t *testing.T) (*Loop, func()) {
	t.Helper()

	loop := NewLoop()

	go loop.Run(context.Background())

	return loop, func() {
		loop.Close()
		synctest.Wait()
	}
}

// TestScheduler_Repeat fires on every period until cancelled.
func TestScheduler_Repeat(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		loop, stop := startLoop(t)
		defer stop()

		scheduler := NewScheduler(loop)

		var (
			calls int
			token Token
		)

		require.NoError(t, loop.Do(context.Background(), func() {
			token = scheduler.Repeat(time.Second, func() { calls++ })
		}))

		time.Sleep(3*time.Second + time.Millisecond)
		synctest.Wait()

		var (
			seen                  int
			first, second         bool
			remaining, afterStops int
		)

		require.NoError(t, loop.Do(context.Background(), func() {
			seen = calls
			first = scheduler.Cancel(token)
			second = scheduler.Cancel(token)
		}))
		require.Equal(t, 3, seen)
		require.True(t, first)
		require.False(t, second)

		time.Sleep(5 * time.Second)
		synctest.Wait()

		require.NoError(t, loop.Do(context.Background(), func() {
			afterStops = calls
			remaining = scheduler.Len()
		}))
		require.Equal(t, 3, afterStops)
		require.Zero(t, remaining)
	})
}

// TestScheduler_After fires once and retires its token.
func TestScheduler_After(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		loop, stop := startLoop(t)
		defer stop()

		scheduler := NewScheduler(loop)

		var (
			fired bool
			token Token
		)

		require.NoError(t, loop.Do(context.Background(), func() {
			token = scheduler.After(30*time.Second, func() { fired = true })
		}))

		time.Sleep(29 * time.Second)
		synctest.Wait()

		var firedEarly, activeEarly, firedLate, activeLate bool

		require.NoError(t, loop.Do(context.Background(), func() {
			firedEarly, activeEarly = fired, scheduler.Active(token)
		}))
		require.False(t, firedEarly)
		require.True(t, activeEarly)

		time.Sleep(2 * time.Second)
		synctest.Wait()

		require.NoError(t, loop.Do(context.Background(), func() {
			firedLate, activeLate = fired, scheduler.Active(token)
		}))
		require.True(t, firedLate)
		require.False(t, activeLate)
	})
}

// TestScheduler_CancelBeforeFire drops a timer cancelled ahead of its deadline.
func TestScheduler_CancelBeforeFire(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		loop, stop := startLoop(t)
		defer stop()

		scheduler := NewScheduler(loop)
		fired := false

		cancelled := false

		require.NoError(t, loop.Do(context.Background(), func() {
			token := scheduler.After(time.Second, func() { fired = true })
			scheduler.Repeat(time.Second, func() { fired = true })
			cancelled = scheduler.Cancel(token)
			scheduler.CancelAll()
		}))
		require.True(t, cancelled)

		time.Sleep(10 * time.Second)
		synctest.Wait()

		observed := true

		require.NoError(t, loop.Do(context.Background(), func() { observed = fired }))
		require.False(t, observed)
	})
}

// TestLoop_Closed rejects work once closed.
func TestLoop_Closed(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		loop, stop := startLoop(t)
		stop()

		require.False(t, loop.Post(func() {}))
		require.ErrorIs(t, loop.Do(context.Background(), func() {}), ErrLoopClosed)
		require.NoError(t, loop.Wait(context.Background()))
	})
}

// TestLoop_RunsInOrder executes posted closures sequentially.
func TestLoop_RunsInOrder(t *testing.T) {
	t.Parallel()

	synctest.Test(t, func(t *testing.T) {
		loop, stop := startLoop(t)
		defer stop()

		var order []int

		for i := range 5 {
			require.True(t, loop.Post(func() { order = append(order, i) }))
		}

		require.NoError(t, loop.Do(context.Background(), func() {}))
		require.Equal(t, []int{0, 1, 2, 3, 4}, order)
	})
}
