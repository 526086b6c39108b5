// Package pause implements a 3-state machine (None / Manual /
// AutoSilence) observed by every other pipeline component. The
// controller publishes changes to subscribers one-way; no subscriber
// holds a back-reference to it.
package pause

import (
	"sync"

	"github.com/sumerc/voxpipe/internal/logging"
)

// State is one of the three pause states.
type State int

const (
	None State = iota
	Manual
	AutoSilence
)

func (s State) String() string {
	switch s {
	case Manual:
		return "manual"
	case AutoSilence:
		return "auto_silence"
	default:
		return "none"
	}
}

// Controller owns the pause state and notifies subscribers on change.
// All methods are safe for concurrent use; the capture callback thread,
// the VAD, and the window buffer all call into it independently.
type Controller struct {
	mu    sync.Mutex
	state State
	subs  []func(State)
}

// New returns a Controller starting in the None state.
func New() *Controller {
	return &Controller{state: None}
}

// Subscribe registers a callback invoked with the new state on every
// transition. The callback must not block or re-enter the controller.
func (c *Controller) Subscribe(fn func(State)) {
	c.mu.Lock()
	c.subs = append(c.subs, fn)
	c.mu.Unlock()
}

// State returns the current pause state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Paused reports whether the pipeline should currently drop frames
// before window assembly.
func (c *Controller) Paused() bool {
	return c.State() != None
}

// SetManual applies a user-driven pause/resume. Manual strictly
// dominates AutoSilence.
func (c *Controller) SetManual(on bool) {
	c.transition(func(cur State) (State, bool) {
		if on {
			if cur == Manual {
				return cur, false
			}
			return Manual, true
		}
		if cur != Manual {
			return cur, false
		}
		return None, true
	})
}

// ApplyAutoSilence is called by the VAD when silence has held for Ts.
// It is a no-op while Manual (Manual dominates every VAD event).
func (c *Controller) ApplyAutoSilence() {
	c.transition(func(cur State) (State, bool) {
		if cur != None {
			return cur, false
		}
		return AutoSilence, true
	})
}

// ApplySpeechResume is called by the VAD on speech detection. It only
// takes effect out of AutoSilence; Manual is unaffected (dominates).
func (c *Controller) ApplySpeechResume() {
	c.transition(func(cur State) (State, bool) {
		if cur != AutoSilence {
			return cur, false
		}
		return None, true
	})
}

func (c *Controller) transition(fn func(State) (State, bool)) {
	c.mu.Lock()
	cur := c.state
	next, changed := fn(cur)
	if !changed {
		c.mu.Unlock()
		return
	}
	c.state = next
	subs := append([]func(State){}, c.subs...)
	c.mu.Unlock()

	logging.PauseTransition(cur.String(), next.String())
	for _, sub := range subs {
		sub(next)
	}
}
