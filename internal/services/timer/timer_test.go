package timer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountdown_TicksDownAndCompletes(t *testing.T) {
	var mu sync.Mutex
	var ticks []int
	done := make(chan struct{})

	StartEvery(time.Millisecond, 3,
		func(remaining int) {
			mu.Lock()
			ticks = append(ticks, remaining)
			mu.Unlock()
		},
		func() { close(done) },
	)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("countdown did not complete")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{2, 1, 0}, ticks)
}

func TestCountdown_NonPositiveDurationCompletesSynchronously(t *testing.T) {
	for _, seconds := range []int{0, -5} {
		completed := false
		ticked := false
		Start(seconds,
			func(int) { ticked = true },
			func() { completed = true },
		)
		// no goroutine involved, the callback already ran
		assert.True(t, completed)
		assert.False(t, ticked)
	}
}

func TestCountdown_StopSuppressesCallbacks(t *testing.T) {
	var mu sync.Mutex
	ticks := 0
	completed := false

	c := StartEvery(time.Millisecond, 1000,
		func(int) {
			mu.Lock()
			ticks++
			mu.Unlock()
		},
		func() {
			mu.Lock()
			completed = true
			mu.Unlock()
		},
	)

	time.Sleep(10 * time.Millisecond)
	c.Stop()

	mu.Lock()
	after := ticks
	mu.Unlock()

	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, after, ticks, "no ticks after Stop returned")
	assert.False(t, completed)
}

func TestCountdown_StopIsIdempotent(t *testing.T) {
	c := StartEvery(time.Millisecond, 10, nil, nil)
	c.Stop()
	c.Stop()

	done := make(chan struct{})
	Start(0, nil, func() { close(done) })
	select {
	case <-done:
	default:
		t.Fatal("zero-duration countdown must complete before Start returns")
	}
}

func TestCountdown_RearmFiresOnePerRound(t *testing.T) {
	// the caller decides round progression, the timer just completes once per arm
	const rounds = 5
	completions := 0
	for round := 1; round <= rounds; round++ {
		done := make(chan struct{})
		StartEvery(time.Millisecond, 2, nil, func() {
			completions++
			close(done)
		})
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatalf("round %d did not complete", round)
		}
	}
	require.Equal(t, rounds, completions)
}
