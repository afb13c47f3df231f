package console

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/button-sensor/internal/gpio"
	"github.com/sweeney/button-sensor/internal/status"
)

var _ gpio.EdgeReader = (*Level)(nil)

// step is one observed level with the simulated time spent at it.
type step struct {
	pressed bool
	d       time.Duration
}

// newTestConsole returns a Console whose sleeps are recorded instead of taken.
func newTestConsole(t *testing.T, tracker *status.Tracker) (*Console, *Level, *[]step, *bytes.Buffer) {
	t.Helper()
	level := NewLevel()
	var out bytes.Buffer
	c := New(level, tracker, &out)

	var steps []step
	c.sleep = func(ctx context.Context, d time.Duration) error {
		p, _ := level.Read()
		steps = append(steps, step{p, d})
		return ctx.Err()
	}
	return c, level, &steps, &out
}

func pressed(t *testing.T, l *Level) bool {
	t.Helper()
	p, err := l.Read()
	require.NoError(t, err)
	return p
}

func TestLevelEdges(t *testing.T) {
	l := NewLevel()
	assert.False(t, pressed(t, l))

	l.Set(false)
	select {
	case <-l.Edges():
		t.Fatal("no edge expected without a change")
	default:
	}

	l.Set(true)
	l.Set(false)
	l.Set(true)
	assert.True(t, pressed(t, l))

	select {
	case <-l.Edges():
	default:
		t.Fatal("expected an edge")
	}
	select {
	case <-l.Edges():
		t.Fatal("edges should coalesce")
	default:
	}
	assert.NoError(t, l.Close())
}

func TestPressRelease(t *testing.T) {
	c, level, _, _ := newTestConsole(t, nil)
	ctx := context.Background()

	require.NoError(t, c.Execute(ctx, "press"))
	assert.True(t, pressed(t, level))
	require.NoError(t, c.Execute(ctx, "r"))
	assert.False(t, pressed(t, level))
}

func TestTap(t *testing.T) {
	c, level, steps, _ := newTestConsole(t, nil)

	require.NoError(t, c.Execute(context.Background(), "tap"))
	assert.Equal(t, []step{{true, DefaultTapTime}}, *steps)
	assert.False(t, pressed(t, level))

	*steps = nil
	require.NoError(t, c.Execute(context.Background(), "tap 150"))
	assert.Equal(t, []step{{true, 150 * time.Millisecond}}, *steps)
}

func TestClick(t *testing.T) {
	c, level, steps, _ := newTestConsole(t, nil)

	require.NoError(t, c.Execute(context.Background(), "click 3"))
	assert.Equal(t, []step{
		{true, DefaultTapTime},
		{false, DefaultGapTime},
		{true, DefaultTapTime},
		{false, DefaultGapTime},
		{true, DefaultTapTime},
	}, *steps)
	assert.False(t, pressed(t, level))

	assert.Error(t, c.Execute(context.Background(), "click 0"))
	assert.Error(t, c.Execute(context.Background(), "click many"))
}

func TestHold(t *testing.T) {
	c, level, steps, _ := newTestConsole(t, nil)

	require.NoError(t, c.Execute(context.Background(), "hold 1.5s"))
	assert.Equal(t, []step{{true, 1500 * time.Millisecond}}, *steps)
	assert.False(t, pressed(t, level))

	assert.Error(t, c.Execute(context.Background(), "hold"))
	assert.Error(t, c.Execute(context.Background(), "hold -2s"))
}

func TestHoldCancelledReleases(t *testing.T) {
	c, level, _, _ := newTestConsole(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Execute(ctx, "hold 10s")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, pressed(t, level), "a cancelled hold still releases")
}

func TestStatus(t *testing.T) {
	tr := status.NewTracker(time.Now(), status.Config{ButtonName: "bench"})
	c, _, _, out := newTestConsole(t, tr)

	require.NoError(t, c.Execute(context.Background(), "status"))
	assert.Contains(t, out.String(), `"name": "bench"`)

	c2, _, _, _ := newTestConsole(t, nil)
	assert.Error(t, c2.Execute(context.Background(), "status"))
}

func TestHelpUnknownAndQuit(t *testing.T) {
	c, _, _, out := newTestConsole(t, nil)
	ctx := context.Background()

	require.NoError(t, c.Execute(ctx, "help"))
	assert.Contains(t, out.String(), "Commands:")

	require.NoError(t, c.Execute(ctx, "   "))
	assert.Error(t, c.Execute(ctx, "jump"))
	assert.ErrorIs(t, c.Execute(ctx, "quit"), errQuit)
}

func TestDurationArg(t *testing.T) {
	d, err := durationArg(nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)

	d, err = durationArg([]string{"250"}, 0)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)

	d, err = durationArg([]string{"2s"}, 0)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d)

	_, err = durationArg([]string{"soon"}, 0)
	assert.Error(t, err)
}

func TestWriterWithoutReadline(t *testing.T) {
	var buf bytes.Buffer
	w := &Writer{out: &buf}
	n, err := w.Write([]byte("hello\n"))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, "hello\n", buf.String())
}
