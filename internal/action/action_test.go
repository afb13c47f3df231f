package action

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/button-sensor/internal/config"
	"github.com/sweeney/button-sensor/internal/logic"
)

var now = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

type capture struct {
	actions []Action
	err     error
}

func (c *capture) PublishAction(a Action) error {
	c.actions = append(c.actions, a)
	return c.err
}

func click(n int) logic.Event { return logic.Event{Type: logic.GestureClick, Count: n} }
func hold(n int) logic.Event  { return logic.Event{Type: logic.GestureHold, Count: n} }

func bindings() config.BindingsConfig {
	return config.BindingsConfig{
		Clicks: map[int]string{1: "toggle", 2: "next"},
		Holds:  map[int]string{0: "volume_up"},
	}
}

func newBuilder(pub Publisher) *Builder {
	return NewBuilder(pub, func() time.Time { return now })
}

func TestHandlerPublishesAction(t *testing.T) {
	pub := &capture{}
	err := newBuilder(pub).Handler("toggle", logic.GestureClick)(1)
	require.NoError(t, err)

	require.Len(t, pub.actions, 1)
	assert.Equal(t, Action{Name: "toggle", Gesture: logic.GestureClick, Count: 1, Timestamp: now}, pub.actions[0])
}

func TestHandlerWrapsPublishError(t *testing.T) {
	boom := errors.New("broker down")
	err := newBuilder(&capture{err: boom}).Handler("toggle", logic.GestureClick)(1)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "toggle")
}

func TestHandlerWithoutPublisher(t *testing.T) {
	err := NewBuilder(nil, nil).Handler("toggle", logic.GestureClick)(1)
	assert.ErrorIs(t, err, ErrNoPublisher)
}

func TestBuildRegistry(t *testing.T) {
	pub := &capture{}
	d, err := newBuilder(pub).Build(config.DispatchConfig{Mode: config.DispatchRegistry}, bindings())
	require.NoError(t, err)

	handled, err := d.Dispatch(click(2))
	require.NoError(t, err)
	assert.True(t, handled)

	handled, err = d.Dispatch(click(3))
	require.NoError(t, err)
	assert.False(t, handled, "unbound count is a no-op")

	handled, _ = d.Dispatch(hold(0))
	assert.True(t, handled)

	require.Len(t, pub.actions, 2)
	assert.Equal(t, "next", pub.actions[0].Name)
	assert.Equal(t, "volume_up", pub.actions[1].Name)
	assert.Equal(t, logic.GestureHold, pub.actions[1].Gesture)
}

func TestBuildHooks(t *testing.T) {
	pub := &capture{}
	d, err := newBuilder(pub).Build(config.DispatchConfig{
		Mode:        config.DispatchHooks,
		ClickAction: "click",
	}, bindings())
	require.NoError(t, err)

	handled, _ := d.Dispatch(click(2))
	assert.True(t, handled)
	handled, _ = d.Dispatch(hold(0))
	assert.False(t, handled, "empty hold action leaves holds unhandled")

	require.Len(t, pub.actions, 1)
	assert.Equal(t, Action{Name: "click", Gesture: logic.GestureClick, Count: 2, Timestamp: now}, pub.actions[0])
}

func TestBuildChainPrefersBindings(t *testing.T) {
	pub := &capture{}
	d, err := newBuilder(pub).Build(config.DispatchConfig{
		Mode:        config.DispatchChain,
		ClickAction: "click",
		HoldAction:  "hold",
	}, bindings())
	require.NoError(t, err)

	for _, ev := range []logic.Event{click(1), click(4), hold(0), hold(2)} {
		handled, err := d.Dispatch(ev)
		require.NoError(t, err)
		assert.True(t, handled)
	}

	var names []string
	for _, a := range pub.actions {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"toggle", "click", "volume_up", "hold"}, names)
}

func TestBuildUnknownMode(t *testing.T) {
	_, err := newBuilder(&capture{}).Build(config.DispatchConfig{Mode: "broadcast"}, bindings())
	assert.Error(t, err)
}

func TestPublishFailureCountsAsFault(t *testing.T) {
	pub := &capture{err: errors.New("broker down")}
	d, err := newBuilder(pub).Build(config.DispatchConfig{Mode: config.DispatchRegistry}, bindings())
	require.NoError(t, err)

	b := logic.NewButton(logic.DefaultConfig(), d)
	b.Update(true, now)
	b.Update(false, now.Add(100*time.Millisecond))
	ev := b.Update(false, now.Add(400*time.Millisecond))

	require.NotNil(t, ev)
	assert.Equal(t, 1, ev.Count)
	assert.Len(t, pub.actions, 1)
	assert.Equal(t, 1, b.EventCountsSnapshot().Faults)
}

func TestPublisherFunc(t *testing.T) {
	var got Action
	pub := PublisherFunc(func(a Action) error { got = a; return nil })
	require.NoError(t, newBuilder(pub).Handler("next", logic.GestureClick)(2))
	assert.Equal(t, "next", got.Name)
}
