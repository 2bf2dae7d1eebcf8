package timer

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

type notification struct {
	remaining int
	running   bool
	duration  int
}

func collector() (NotifyFunc, chan notification) {
	ch := make(chan notification, 64)
	notify := func(roomID uuid.UUID, remaining int, running bool, duration int) {
		ch <- notification{remaining: remaining, running: running, duration: duration}
	}
	return notify, ch
}

func recv(t *testing.T, ch chan notification) notification {
	t.Helper()
	select {
	case n := <-ch:
		return n
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for notification")
		return notification{}
	}
}

func assertSilent(t *testing.T, ch chan notification) {
	t.Helper()
	select {
	case n := <-ch:
		t.Fatalf("unexpected notification: %+v", n)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEngineFullCountdown(t *testing.T) {
	clock := clockwork.NewFakeClock()
	engine := NewEngineWithClock(clock)
	notify, ch := collector()
	roomID := uuid.New()

	engine.Start(roomID, 3, notify)

	want := []notification{
		{remaining: 2, running: true, duration: 3},
		{remaining: 1, running: true, duration: 3},
		{remaining: 0, running: true, duration: 3},
	}
	for i, w := range want {
		clock.BlockUntil(1)
		clock.Advance(time.Second)
		if got := recv(t, ch); got != w {
			t.Fatalf("tick %d: got %+v, want %+v", i, got, w)
		}
	}

	// Terminal notification fires without another tick.
	if got := recv(t, ch); got != (notification{remaining: 0, running: false, duration: 3}) {
		t.Fatalf("terminal: got %+v", got)
	}
	assertSilent(t, ch)

	snap, ok := engine.State(roomID)
	if !ok {
		t.Fatal("expected state after countdown")
	}
	if snap.Remaining != 0 || snap.Running {
		t.Fatalf("unexpected terminal snapshot: %+v", snap)
	}
}

func TestEngineZeroDuration(t *testing.T) {
	clock := clockwork.NewFakeClock()
	engine := NewEngineWithClock(clock)
	notify, ch := collector()
	roomID := uuid.New()

	engine.Start(roomID, 0, notify)

	if got := recv(t, ch); got != (notification{remaining: 0, running: false, duration: 0}) {
		t.Fatalf("got %+v", got)
	}
	assertSilent(t, ch)
}

func TestEnginePauseResume(t *testing.T) {
	clock := clockwork.NewFakeClock()
	engine := NewEngineWithClock(clock)
	notify, ch := collector()
	roomID := uuid.New()

	engine.Start(roomID, 10, notify)

	for _, want := range []int{9, 8} {
		clock.BlockUntil(1)
		clock.Advance(time.Second)
		if got := recv(t, ch); got.remaining != want || !got.running {
			t.Fatalf("got %+v, want remaining=%d running", got, want)
		}
	}

	// Make sure the ticking goroutine is asleep before pausing.
	clock.BlockUntil(1)
	engine.Pause(roomID)

	// The ticking goroutine observes the flag on its next wake and exits
	// after one paused-snapshot notification.
	clock.Advance(time.Second)
	if got := recv(t, ch); got != (notification{remaining: 8, running: false, duration: 10}) {
		t.Fatalf("pause snapshot: got %+v", got)
	}
	assertSilent(t, ch)

	if snap, _ := engine.State(roomID); snap.Remaining != 8 || snap.Running {
		t.Fatalf("unexpected paused state: %+v", snap)
	}

	// Resume continues from the paused remaining, not from the duration.
	engine.Resume(roomID, notify)
	clock.BlockUntil(1)
	clock.Advance(time.Second)
	if got := recv(t, ch); got != (notification{remaining: 7, running: true, duration: 10}) {
		t.Fatalf("resume tick: got %+v", got)
	}

	// Resuming an already running timer is a no-op.
	engine.Resume(roomID, notify)
	assertSilent(t, ch)
}

func TestEngineResetWithoutDuration(t *testing.T) {
	clock := clockwork.NewFakeClock()
	engine := NewEngineWithClock(clock)
	notify, ch := collector()
	roomID := uuid.New()

	engine.Start(roomID, 5, notify)
	for i := 0; i < 2; i++ {
		clock.BlockUntil(1)
		clock.Advance(time.Second)
		recv(t, ch)
	}

	engine.Reset(roomID, nil, notify)
	if got := recv(t, ch); got != (notification{remaining: 5, running: false, duration: 5}) {
		t.Fatalf("reset snapshot: got %+v", got)
	}

	// The still-sleeping goroutine wakes, observes the stopped flag and exits
	// with one final snapshot.
	clock.Advance(time.Second)
	if got := recv(t, ch); got != (notification{remaining: 5, running: false, duration: 5}) {
		t.Fatalf("final snapshot: got %+v", got)
	}
	assertSilent(t, ch)

	if snap, _ := engine.State(roomID); snap.Remaining != 5 || snap.Duration != 5 || snap.Running {
		t.Fatalf("unexpected state after reset: %+v", snap)
	}
}

func TestEngineResetWithDuration(t *testing.T) {
	clock := clockwork.NewFakeClock()
	engine := NewEngineWithClock(clock)
	notify, ch := collector()
	roomID := uuid.New()

	engine.Start(roomID, 5, notify)
	clock.BlockUntil(1)

	d := 25
	engine.Reset(roomID, &d, notify)

	// Reset emits the new snapshot; the cancelled goroutine adds one
	// best-effort final snapshot of the same state.
	for i := 0; i < 2; i++ {
		if got := recv(t, ch); got != (notification{remaining: 25, running: false, duration: 25}) {
			t.Fatalf("got %+v", got)
		}
	}
	assertSilent(t, ch)
}

func TestEngineResetNoStateNoDuration(t *testing.T) {
	engine := NewEngineWithClock(clockwork.NewFakeClock())
	notify, ch := collector()

	engine.Reset(uuid.New(), nil, notify)
	assertSilent(t, ch)
}

func TestEngineStopIsSilent(t *testing.T) {
	clock := clockwork.NewFakeClock()
	engine := NewEngineWithClock(clock)
	notify, ch := collector()
	roomID := uuid.New()

	engine.Start(roomID, 5, notify)
	clock.BlockUntil(1)

	engine.Stop(roomID)
	assertSilent(t, ch)

	if _, ok := engine.State(roomID); ok {
		t.Fatal("expected no state after stop")
	}

	// Idempotent on a missing room.
	engine.Stop(roomID)
	engine.Pause(roomID)
	engine.Resume(roomID, notify)
	assertSilent(t, ch)
}

func TestEngineStartReplacesRunningTimer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	engine := NewEngineWithClock(clock)
	notify, ch := collector()
	roomID := uuid.New()

	engine.Start(roomID, 5, notify)
	clock.BlockUntil(1)

	engine.Start(roomID, 7, notify)
	// The replaced goroutine emits one best-effort snapshot of the new state.
	if got := recv(t, ch); got != (notification{remaining: 7, running: true, duration: 7}) {
		t.Fatalf("replace snapshot: got %+v", got)
	}
	// Old abandoned waiter plus the new goroutine's waiter.
	clock.BlockUntil(2)

	engine.Start(roomID, 3, notify)
	if got := recv(t, ch); got != (notification{remaining: 3, running: true, duration: 3}) {
		t.Fatalf("replace snapshot: got %+v", got)
	}
	clock.BlockUntil(3)

	// Only the last timer may tick: exactly one notification per advance,
	// counting down from the last configured duration.
	for _, want := range []int{2, 1, 0} {
		clock.Advance(time.Second)
		got := recv(t, ch)
		if got.remaining != want || !got.running || got.duration != 3 {
			t.Fatalf("got %+v, want remaining=%d running duration=3", got, want)
		}
		if want > 0 {
			assertSilent(t, ch)
			clock.BlockUntil(1)
		}
	}

	if got := recv(t, ch); got != (notification{remaining: 0, running: false, duration: 3}) {
		t.Fatalf("terminal: got %+v", got)
	}
	assertSilent(t, ch)
}

func TestEngineRoomsAreIndependent(t *testing.T) {
	clock := clockwork.NewFakeClock()
	engine := NewEngineWithClock(clock)
	roomA, roomB := uuid.New(), uuid.New()

	notifyA, chA := collector()
	notifyB, chB := collector()

	engine.Start(roomA, 4, notifyA)
	clock.BlockUntil(1)
	engine.Start(roomB, 9, notifyB)
	clock.BlockUntil(2)

	clock.Advance(time.Second)
	a, b := recv(t, chA), recv(t, chB)
	if a.remaining != 3 || a.duration != 4 {
		t.Fatalf("room A: got %+v", a)
	}
	if b.remaining != 8 || b.duration != 9 {
		t.Fatalf("room B: got %+v", b)
	}

	engine.Stop(roomA)
	if _, ok := engine.State(roomA); ok {
		t.Fatal("room A should be gone")
	}
	if snap, ok := engine.State(roomB); !ok || snap.Remaining != 8 {
		t.Fatalf("room B should be untouched: %+v", snap)
	}
}
