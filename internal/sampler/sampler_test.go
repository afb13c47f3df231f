package sampler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/button-sensor/internal/gpio"
	"github.com/sweeney/button-sensor/internal/logic"
)

var start = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// fakeClock returns a function that yields start, start+step, start+2*step, ...
// on successive calls. Only called from the sampler goroutine.
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

// levels returns n copies of v.
func levels(v bool, n int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = v
	}
	return out
}

type result struct {
	samples int
	events  []logic.Event
}

// harness runs a sampler in the background and lets the test feed ticks.
type harness struct {
	tick   chan time.Time
	cancel context.CancelFunc
	done   chan error
	res    *result
}

func startSampler(t *testing.T, reader gpio.Reader, mode Mode, opts ...Option) *harness {
	t.Helper()
	res := &result{}
	button := logic.NewButton(logic.Config{
		ClickTime:       25 * time.Millisecond,
		DoubleClickTime: 200 * time.Millisecond,
		HoldTime:        time.Second,
	}, nil)

	opts = append([]Option{WithClock(fakeClock(start, 10*time.Millisecond))}, opts...)
	s, err := New(reader, button, mode, func(now time.Time, ev *logic.Event) {
		res.samples++
		if ev != nil {
			res.events = append(res.events, *ev)
		}
	}, opts...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{
		tick:   make(chan time.Time),
		cancel: cancel,
		done:   make(chan error, 1),
		res:    res,
	}
	go func() { h.done <- s.Run(ctx, h.tick) }()
	t.Cleanup(cancel)
	return h
}

func (h *harness) ticks(n int) {
	for i := 0; i < n; i++ {
		h.tick <- time.Time{}
	}
}

// stop cancels the sampler and waits for it; results are safe to read afterwards.
func (h *harness) stop(t *testing.T) *result {
	t.Helper()
	h.cancel()
	select {
	case err := <-h.done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sampler did not stop")
	}
	return h.res
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("poll")
	assert.NoError(t, err)
	assert.Equal(t, ModePoll, m)

	m, err = ParseMode("edge")
	assert.NoError(t, err)
	assert.Equal(t, ModeEdge, m)

	_, err = ParseMode("interrupt")
	assert.Error(t, err)
}

type plainReader struct{}

func (plainReader) Read() (bool, error) { return false, nil }
func (plainReader) Close() error        { return nil }

func TestNewEdgeModeNeedsEdgeReader(t *testing.T) {
	b := logic.NewButton(logic.DefaultConfig(), nil)

	_, err := New(plainReader{}, b, ModeEdge, nil)
	assert.Error(t, err)

	_, err = New(plainReader{}, b, ModePoll, nil)
	assert.NoError(t, err)

	_, err = New(gpio.NewFakeReader(nil), b, ModeEdge, nil, WithBurstCount(0))
	assert.Error(t, err)

	_, err = New(plainReader{}, b, Mode("bogus"), nil)
	assert.Error(t, err)
}

func TestPollModeSingleClick(t *testing.T) {
	// 40ms pressed, then released; finalised once idle > 200ms.
	samples := append(levels(true, 4), levels(false, 40)...)
	h := startSampler(t, gpio.NewFakeReader(samples), ModePoll)

	h.ticks(len(samples))
	res := h.stop(t)

	assert.Equal(t, len(samples), res.samples)
	require.Len(t, res.events, 1)
	assert.Equal(t, logic.GestureClick, res.events[0].Type)
	assert.Equal(t, 1, res.events[0].Count)
	// Released at 40ms, fired at the first sample with dt > 200ms.
	assert.Equal(t, start.Add(250*time.Millisecond), res.events[0].Timestamp)
}

// faultReader returns errors for a range of Read() calls.
type faultReader struct {
	inner      *gpio.FakeReader
	call       int
	faultStart int
	faultEnd   int
}

func (r *faultReader) Read() (bool, error) {
	i := r.call
	r.call++
	if i >= r.faultStart && i < r.faultEnd {
		return false, errors.New("gpio fault")
	}
	return r.inner.Read()
}

func (r *faultReader) Close() error { return r.inner.Close() }

func TestPollModeSkipsReadErrors(t *testing.T) {
	samples := append(levels(true, 150), levels(false, 5)...)
	reader := &faultReader{inner: gpio.NewFakeReader(samples), faultStart: 10, faultEnd: 20}
	h := startSampler(t, reader, ModePoll)

	h.ticks(120)
	res := h.stop(t)

	assert.Equal(t, 110, res.samples, "failed reads are not fed to the button")
	require.Len(t, res.events, 1)
	assert.Equal(t, logic.GestureHold, res.events[0].Type)
}

func TestEdgeModeBurstEndsAfterRelease(t *testing.T) {
	samples := append(levels(true, 3), levels(false, 20)...)
	reader := gpio.NewFakeReader(samples)
	reader.Trigger()
	h := startSampler(t, reader, ModeEdge, WithBurstCount(5))

	// 1 sample on the edge, 2 more pressed, then 5 released.
	h.ticks(7)

	select {
	case h.tick <- time.Time{}:
		t.Fatal("sampler should be idle after the burst")
	case <-time.After(50 * time.Millisecond):
	}

	res := h.stop(t)
	assert.Equal(t, 8, res.samples)
	assert.Empty(t, res.events, "burst too short to finalise the click")
}

func TestEdgeModeBurstFinalisesClick(t *testing.T) {
	samples := append(levels(true, 5), levels(false, 40)...)
	reader := gpio.NewFakeReader(samples)
	reader.Trigger()
	h := startSampler(t, reader, ModeEdge, WithBurstCount(30))

	h.ticks(34)
	res := h.stop(t)

	assert.Equal(t, 35, res.samples)
	require.Len(t, res.events, 1)
	assert.Equal(t, 1, res.events[0].Count)
	assert.Equal(t, start.Add(260*time.Millisecond), res.events[0].Timestamp)
}

func TestEdgeModeBurstStaysAliveWhilePressed(t *testing.T) {
	samples := append(levels(true, 120), levels(false, 10)...)
	reader := gpio.NewFakeReader(samples)
	reader.Trigger()
	h := startSampler(t, reader, ModeEdge, WithBurstCount(3))

	// Far more ticks than the burst count: the press keeps it alive.
	h.ticks(110)
	res := h.stop(t)

	assert.Equal(t, 111, res.samples)
	require.Len(t, res.events, 1)
	assert.Equal(t, logic.GestureHold, res.events[0].Type)
	assert.Equal(t, 0, res.events[0].Count)
}

func TestEdgeModeWakesOnNextEdge(t *testing.T) {
	samples := append(levels(true, 3), levels(false, 20)...)
	reader := gpio.NewFakeReader(samples)
	reader.Trigger()
	h := startSampler(t, reader, ModeEdge, WithBurstCount(2))

	h.ticks(4) // 3 pressed samples incl. edge sample, 2 released

	select {
	case h.tick <- time.Time{}:
		t.Fatal("sampler should be idle after the burst")
	case <-time.After(50 * time.Millisecond):
	}

	reader.Trigger()
	h.ticks(2)
	res := h.stop(t)

	assert.Equal(t, 8, res.samples)
}
