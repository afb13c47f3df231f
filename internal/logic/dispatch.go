package logic

import (
	"fmt"
	"log/slog"
)

// HandlerFunc handles a gesture. n is the click count for clicks and the
// number of clicks preceding the hold for holds (0 = bare hold).
type HandlerFunc func(n int) error

// Dispatcher routes a fired gesture to application code.
// handled is false when nothing was registered for the event.
type Dispatcher interface {
	Dispatch(ev Event) (handled bool, err error)
}

// Registry maps click and hold counts to handlers.
// Not safe for concurrent use with a running Button.
type Registry struct {
	clicks map[int]HandlerFunc
	holds  map[int]HandlerFunc
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		clicks: make(map[int]HandlerFunc),
		holds:  make(map[int]HandlerFunc),
	}
}

// OnClick registers fn for an n-click, replacing any previous handler.
// A nil fn removes the registration. fn is returned for chaining.
func (r *Registry) OnClick(n int, fn HandlerFunc) HandlerFunc {
	register(r.clicks, n, fn)
	return fn
}

// OnHold registers fn for a hold preceded by n clicks, replacing any
// previous handler. A nil fn removes the registration. fn is returned for chaining.
func (r *Registry) OnHold(n int, fn HandlerFunc) HandlerFunc {
	register(r.holds, n, fn)
	return fn
}

func register(m map[int]HandlerFunc, n int, fn HandlerFunc) {
	if fn == nil {
		delete(m, n)
		return
	}
	m[n] = fn
}

// Dispatch calls the handler registered for the event's type and count.
func (r *Registry) Dispatch(ev Event) (bool, error) {
	var fn HandlerFunc
	switch ev.Type {
	case GestureClick:
		fn = r.clicks[ev.Count]
	case GestureHold:
		fn = r.holds[ev.Count]
	}
	if fn == nil {
		return false, nil
	}
	return true, fn(ev.Count)
}

// Hooks is the blanket strategy: one handler for every click count and one
// for every hold count. A nil hook leaves that gesture unhandled.
type Hooks struct {
	WhenClicked HandlerFunc
	WhenHeld    HandlerFunc
}

// Dispatch calls WhenClicked or WhenHeld.
func (h Hooks) Dispatch(ev Event) (bool, error) {
	var fn HandlerFunc
	switch ev.Type {
	case GestureClick:
		fn = h.WhenClicked
	case GestureHold:
		fn = h.WhenHeld
	}
	if fn == nil {
		return false, nil
	}
	return true, fn(ev.Count)
}

// Chain tries each dispatcher in order and stops at the first that handles
// the event. Chain{registry, hooks} gives per-count handlers priority over
// the blanket hooks.
type Chain []Dispatcher

// Dispatch implements Dispatcher.
func (c Chain) Dispatch(ev Event) (bool, error) {
	for _, d := range c {
		if d == nil {
			continue
		}
		handled, err := d.Dispatch(ev)
		if handled || err != nil {
			return handled, err
		}
	}
	return false, nil
}

// safeDispatch is the single fault boundary between the state machine and
// handlers. Errors and panics are logged and reported as false; the caller
// carries on as if the handler had succeeded.
func safeDispatch(logger *slog.Logger, name string, d Dispatcher, ev Event) (ok bool) {
	if d == nil {
		return true
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("gesture handler panicked",
				"button", name, "gesture", ev.Type, "count", ev.Count, "panic", fmt.Sprint(r))
			ok = false
		}
	}()

	if _, err := d.Dispatch(ev); err != nil {
		logger.Error("gesture handler failed",
			"button", name, "gesture", ev.Type, "count", ev.Count, "error", err)
		return false
	}
	return true
}
