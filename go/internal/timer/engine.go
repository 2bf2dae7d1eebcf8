package timer

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// NotifyFunc receives one update per elapsed second plus one terminal update
// per countdown. It is always invoked outside the engine lock, so it may call
// back into the engine. Implementations must not block; slow sinks should
// buffer or drop.
type NotifyFunc func(roomID uuid.UUID, remaining int, running bool, duration int)

// Snapshot is an immutable read of a room's timer state at one instant.
type Snapshot struct {
	Duration  int  `json:"duration"`
	Remaining int  `json:"remaining"`
	Running   bool `json:"is_running"`
}

// Engine owns one countdown state machine per room. Every running timer is
// driven by a single background goroutine that decrements once per second and
// pushes updates through the caller-supplied NotifyFunc. At most one goroutine
// owns a room's state at any time; Start and Resume cancel and replace any
// prior owner.
type Engine struct {
	clock clockwork.Clock

	mu     sync.Mutex
	states map[uuid.UUID]*roomState
}

type roomState struct {
	duration  int
	remaining int
	running   bool
	// cancel is non-nil while a ticking goroutine owns this state. Closing it
	// asks the owner to exit after one best-effort final notification.
	cancel chan struct{}
}

// NewEngine creates an engine backed by the real clock.
func NewEngine() *Engine {
	return NewEngineWithClock(clockwork.NewRealClock())
}

// NewEngineWithClock creates an engine with an injectable clock. Tests pass a
// clockwork.FakeClock to drive ticks deterministically.
func NewEngineWithClock(clock clockwork.Clock) *Engine {
	return &Engine{
		clock:  clock,
		states: make(map[uuid.UUID]*roomState),
	}
}

// Start initializes a fresh countdown for the room and spawns its ticking
// goroutine. Any timer already running for the room is cancelled and replaced
// (last writer wins). A duration of zero terminates immediately with a single
// terminal notification.
func (e *Engine) Start(roomID uuid.UUID, duration int, notify NotifyFunc) {
	if duration < 0 {
		duration = 0
	}

	e.mu.Lock()
	if st, ok := e.states[roomID]; ok && st.cancel != nil {
		close(st.cancel)
		log.Debug().Str("room_id", roomID.String()).Msg("replacing running timer")
	}
	cancel := make(chan struct{})
	e.states[roomID] = &roomState{
		duration:  duration,
		remaining: duration,
		running:   true,
		cancel:    cancel,
	}
	e.mu.Unlock()

	log.Debug().
		Str("room_id", roomID.String()).
		Int("duration", duration).
		Msg("timer started")

	go e.run(roomID, cancel, notify)
}

// Pause flags the room's countdown as stopped. The ticking goroutine observes
// the flag on its next wake and exits after notifying the paused snapshot.
// No-op if the room has no timer state.
func (e *Engine) Pause(roomID uuid.UUID) {
	e.mu.Lock()
	if st, ok := e.states[roomID]; ok {
		st.running = false
	}
	e.mu.Unlock()
}

// Resume continues a paused countdown from its current remaining value.
// No-op if the room has no timer state or the timer is already running.
func (e *Engine) Resume(roomID uuid.UUID, notify NotifyFunc) {
	e.mu.Lock()
	st, ok := e.states[roomID]
	if !ok || st.running {
		e.mu.Unlock()
		return
	}
	// A paused task that has not woken yet may still hold ownership.
	if st.cancel != nil {
		close(st.cancel)
	}
	cancel := make(chan struct{})
	st.running = true
	st.cancel = cancel
	e.mu.Unlock()

	log.Debug().Str("room_id", roomID.String()).Msg("timer resumed")

	go e.run(roomID, cancel, notify)
}

// Reset restores the countdown to a full cycle without running it. With a
// duration it replaces the state outright; without one it restores remaining
// to the previously configured duration. Emits exactly one notification with
// the resulting snapshot, or nothing when there is no state and no duration.
func (e *Engine) Reset(roomID uuid.UUID, duration *int, notify NotifyFunc) {
	e.mu.Lock()
	st, ok := e.states[roomID]
	if duration != nil {
		d := *duration
		if d < 0 {
			d = 0
		}
		if ok && st.cancel != nil {
			close(st.cancel)
		}
		st = &roomState{duration: d, remaining: d, running: false}
		e.states[roomID] = st
	} else {
		if !ok {
			e.mu.Unlock()
			return
		}
		st.remaining = st.duration
		st.running = false
	}
	remaining, dur := st.remaining, st.duration
	e.mu.Unlock()

	notify(roomID, remaining, false, dur)
}

// Stop cancels any ticking goroutine and removes the room's state entirely.
// Used for teardown when the last subscriber leaves; no notification is sent
// on this path.
func (e *Engine) Stop(roomID uuid.UUID) {
	e.mu.Lock()
	if st, ok := e.states[roomID]; ok {
		if st.cancel != nil {
			close(st.cancel)
		}
		delete(e.states, roomID)
	}
	e.mu.Unlock()

	log.Debug().Str("room_id", roomID.String()).Msg("timer stopped")
}

// State returns a consistent snapshot of the room's timer, or false if the
// room has no timer state.
func (e *Engine) State(roomID uuid.UUID) (Snapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.states[roomID]
	if !ok {
		return Snapshot{}, false
	}
	return Snapshot{Duration: st.duration, Remaining: st.remaining, Running: st.running}, true
}

// run is the per-room ticking loop. It owns the room's state for as long as
// state.cancel is the channel it was spawned with; any mismatch means the
// timer was replaced and the loop must exit silently.
func (e *Engine) run(roomID uuid.UUID, cancel chan struct{}, notify NotifyFunc) {
	for {
		e.mu.Lock()
		st, ok := e.states[roomID]
		if !ok || st.cancel != cancel {
			e.mu.Unlock()
			return
		}
		if !st.running {
			st.cancel = nil
			remaining, dur := st.remaining, st.duration
			e.mu.Unlock()
			notify(roomID, remaining, false, dur)
			return
		}
		if st.remaining <= 0 {
			st.running = false
			st.cancel = nil
			dur := st.duration
			e.mu.Unlock()
			notify(roomID, 0, false, dur)
			return
		}
		e.mu.Unlock()

		select {
		case <-cancel:
			e.notifyFinal(roomID, notify)
			return
		case <-e.clock.After(time.Second):
		}

		e.mu.Lock()
		st, ok = e.states[roomID]
		if !ok || st.cancel != cancel {
			e.mu.Unlock()
			return
		}
		if !st.running {
			st.cancel = nil
			remaining, dur := st.remaining, st.duration
			e.mu.Unlock()
			notify(roomID, remaining, false, dur)
			return
		}
		st.remaining--
		if st.remaining < 0 {
			st.remaining = 0
		}
		remaining, dur := st.remaining, st.duration
		e.mu.Unlock()

		notify(roomID, remaining, true, dur)
	}
}

// notifyFinal sends one best-effort snapshot after abrupt cancellation. If the
// state was removed (Stop path) nothing is sent.
func (e *Engine) notifyFinal(roomID uuid.UUID, notify NotifyFunc) {
	e.mu.Lock()
	st, ok := e.states[roomID]
	if !ok {
		e.mu.Unlock()
		return
	}
	remaining, running, dur := st.remaining, st.running, st.duration
	e.mu.Unlock()

	notify(roomID, remaining, running, dur)
}
