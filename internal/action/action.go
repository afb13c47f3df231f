// Package action turns recognised gestures into named actions.
//
// Bindings from the config file become logic.HandlerFuncs that publish an
// Action. Publishing is the only side effect; what an action means is left
// to whoever subscribes to it.
package action

import (
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/button-sensor/internal/config"
	"github.com/sweeney/button-sensor/internal/logic"
)

// Action is a named intent produced by a gesture.
type Action struct {
	Name      string
	Gesture   logic.GestureType
	Count     int
	Timestamp time.Time
}

// Publisher delivers actions, usually to MQTT.
type Publisher interface {
	PublishAction(a Action) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(a Action) error

// PublishAction calls f(a).
func (f PublisherFunc) PublishAction(a Action) error { return f(a) }

// ErrNoPublisher is returned by handlers built without a publisher.
var ErrNoPublisher = errors.New("action: no publisher")

// Builder creates handlers that publish actions.
type Builder struct {
	pub   Publisher
	clock func() time.Time
}

// NewBuilder returns a Builder publishing to pub. clock may be nil.
func NewBuilder(pub Publisher, clock func() time.Time) *Builder {
	if clock == nil {
		clock = time.Now
	}
	return &Builder{pub: pub, clock: clock}
}

// Handler returns a HandlerFunc that publishes name for the given gesture.
func (b *Builder) Handler(name string, gesture logic.GestureType) logic.HandlerFunc {
	return func(n int) error {
		if b.pub == nil {
			return ErrNoPublisher
		}
		a := Action{Name: name, Gesture: gesture, Count: n, Timestamp: b.clock()}
		if err := b.pub.PublishAction(a); err != nil {
			return fmt.Errorf("publish action %s: %w", name, err)
		}
		return nil
	}
}

// Registry binds each configured count to its action.
func (b *Builder) Registry(bindings config.BindingsConfig) *logic.Registry {
	r := logic.NewRegistry()
	for n, name := range bindings.Clicks {
		r.OnClick(n, b.Handler(name, logic.GestureClick))
	}
	for n, name := range bindings.Holds {
		r.OnHold(n, b.Handler(name, logic.GestureHold))
	}
	return r
}

// Hooks publishes one action name for every click and one for every hold.
// An empty name leaves that gesture unhandled.
func (b *Builder) Hooks(clickAction, holdAction string) logic.Hooks {
	var h logic.Hooks
	if clickAction != "" {
		h.WhenClicked = b.Handler(clickAction, logic.GestureClick)
	}
	if holdAction != "" {
		h.WhenHeld = b.Handler(holdAction, logic.GestureHold)
	}
	return h
}

// Build returns the dispatcher selected by d.Mode.
func (b *Builder) Build(d config.DispatchConfig, bindings config.BindingsConfig) (logic.Dispatcher, error) {
	switch d.Mode {
	case config.DispatchRegistry:
		return b.Registry(bindings), nil
	case config.DispatchHooks:
		return b.Hooks(d.ClickAction, d.HoldAction), nil
	case config.DispatchChain:
		return logic.Chain{b.Registry(bindings), b.Hooks(d.ClickAction, d.HoldAction)}, nil
	default:
		return nil, fmt.Errorf("unknown dispatch mode %q", d.Mode)
	}
}
