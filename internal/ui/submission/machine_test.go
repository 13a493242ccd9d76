package submission

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() func() time.Time {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var n int
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func TestNewMachineStartsIdle(t *testing.T) {
	m := New(WithClock(fixedClock()))
	snap := m.Snapshot()
	assert.Equal(t, StatusIdle, snap.Status)
	assert.Empty(t, snap.Message)
	assert.Zero(t, snap.Attempt)
	assert.True(t, m.Mounted())
}

func TestBeginResolveSuccess(t *testing.T) {
	m := New()
	attempt, err := m.Begin()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), attempt.ID)
	assert.Equal(t, StatusPending, m.Snapshot().Status)
	assert.True(t, m.Snapshot().Locked())

	require.NoError(t, m.Resolve(attempt, Success("Email sent")))
	snap := m.Snapshot()
	assert.Equal(t, StatusSucceeded, snap.Status)
	assert.Equal(t, "Email sent", snap.Message)
}

func TestResolveFailureFallsBackToDefaultMessage(t *testing.T) {
	m := New()
	attempt, err := m.Begin()
	require.NoError(t, err)
	require.NoError(t, m.Resolve(attempt, Failure("  ")))
	snap := m.Snapshot()
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, DefaultFailureMessage, snap.Message)
}

func TestBeginWhilePendingIsRejected(t *testing.T) {
	m := New()
	first, err := m.Begin()
	require.NoError(t, err)

	_, err = m.Begin()
	assert.ErrorIs(t, err, ErrPending)
	assert.Equal(t, first.ID, m.Snapshot().Attempt)
}

func TestRetryClearsMessageBeforeResolution(t *testing.T) {
	m := New()
	attempt, _ := m.Begin()
	require.NoError(t, m.Resolve(attempt, Failure("User not found")))

	assert.True(t, m.Edit())
	assert.Equal(t, StatusIdle, m.Snapshot().Status)
	assert.Empty(t, m.Snapshot().Message)

	next, err := m.Begin()
	require.NoError(t, err)
	snap := m.Snapshot()
	assert.Equal(t, StatusPending, snap.Status)
	assert.Empty(t, snap.Message)
	assert.Equal(t, uint64(2), next.ID)
}

func TestBeginFromTerminalStartsNewAttempt(t *testing.T) {
	m := New()
	attempt, _ := m.Begin()
	require.NoError(t, m.Resolve(attempt, Success("done")))

	_, err := m.Begin()
	require.NoError(t, err)
	assert.Empty(t, m.Snapshot().Message)
}

func TestResolveStaleAttemptIsDiscarded(t *testing.T) {
	m := New()
	old, _ := m.Begin()
	require.NoError(t, m.Resolve(old, Failure("first")))
	current, _ := m.Begin()

	assert.ErrorIs(t, m.Resolve(old, Success("late")), ErrStale)
	assert.Equal(t, StatusPending, m.Snapshot().Status)

	require.NoError(t, m.Resolve(current, Success("ok")))
	assert.ErrorIs(t, m.Resolve(current, Failure("twice")), ErrStale)
	assert.Equal(t, StatusSucceeded, m.Snapshot().Status)
}

func TestUnmountDiscardsInFlightResolution(t *testing.T) {
	m := New()
	attempt, _ := m.Begin()
	m.Unmount()

	assert.ErrorIs(t, m.Resolve(attempt, Success("late")), ErrStale)
	assert.Equal(t, StatusPending, m.Snapshot().Status)
	_, err := m.Begin()
	assert.ErrorIs(t, err, ErrUnmounted)
	assert.False(t, m.Mounted())
}

func TestEditIgnoredWhileIdleOrPending(t *testing.T) {
	m := New()
	assert.False(t, m.Edit())
	_, _ = m.Begin()
	assert.False(t, m.Edit())
	assert.False(t, m.Reset())
	assert.Equal(t, StatusPending, m.Snapshot().Status)
}

func TestSubscribeReceivesTransitions(t *testing.T) {
	m := New()
	ch := make(chan Snapshot, 4)
	cancel := m.Subscribe(ch)

	attempt, _ := m.Begin()
	require.NoError(t, m.Resolve(attempt, Success("ok")))

	first := <-ch
	second := <-ch
	assert.Equal(t, StatusPending, first.Status)
	assert.Equal(t, StatusSucceeded, second.Status)

	cancel()
	m.Edit()
	select {
	case snap := <-ch:
		t.Fatalf("unexpected update after unsubscribe: %+v", snap)
	default:
	}
}

func TestSubscribeDoesNotBlockOnFullChannel(t *testing.T) {
	m := New()
	ch := make(chan Snapshot)
	m.Subscribe(ch)

	done := make(chan struct{})
	go func() {
		_, _ = m.Begin()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Begin blocked on an unread subscriber")
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusIdle, StatusPending, true},
		{StatusIdle, StatusSucceeded, false},
		{StatusPending, StatusSucceeded, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusIdle, false},
		{StatusSucceeded, StatusFailed, false},
		{StatusFailed, StatusSucceeded, false},
		{StatusFailed, StatusPending, true},
		{StatusSucceeded, StatusIdle, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestMachineFollowsTransitionTable(t *testing.T) {
	m := New()
	ch := make(chan Snapshot, 32)
	m.Subscribe(ch)

	ops := []func(){
		func() { m.Edit() },
		func() { m.Reset() },
		func() { _, _ = m.Begin() },
		func() { _, _ = m.Begin() },
		func() { m.Edit() },
		func() { _ = m.Resolve(Attempt{ID: m.Snapshot().Attempt}, Failure("nope")) },
		func() { _ = m.Resolve(Attempt{ID: m.Snapshot().Attempt}, Success("late")) },
		func() { _, _ = m.Begin() },
		func() { _ = m.Resolve(Attempt{ID: m.Snapshot().Attempt}, Success("ok")) },
		func() { m.Reset() },
		func() { m.Edit() },
	}
	for _, op := range ops {
		op()
	}
	close(ch)

	from := StatusIdle
	var seen []Status
	for snap := range ch {
		assert.True(t, CanTransition(from, snap.Status), "%s -> %s", from, snap.Status)
		from = snap.Status
		seen = append(seen, snap.Status)
	}
	assert.Equal(t, []Status{StatusPending, StatusFailed, StatusPending, StatusSucceeded, StatusIdle}, seen)
}

func TestStatusRegion(t *testing.T) {
	assert.Equal(t, "", StatusIdle.Region())
	assert.Equal(t, "progress", StatusPending.Region())
	assert.Equal(t, "success", StatusSucceeded.Region())
	assert.Equal(t, "error", StatusFailed.Region())
}
