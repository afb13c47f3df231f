// Package console is an interactive bench for the gesture recogniser.
//
// It replaces the GPIO pin with a software Level that the operator drives
// from a readline prompt, so gestures can be exercised on a laptop.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/sweeney/button-sensor/internal/status"
)

// DefaultTapTime is how long tap and click keep the level pressed.
const DefaultTapTime = 80 * time.Millisecond

// DefaultGapTime is the released gap between taps of a multi-click.
const DefaultGapTime = 80 * time.Millisecond

// Console reads commands and drives a Level.
type Console struct {
	level   *Level
	tracker *status.Tracker
	out     io.Writer
	sleep   func(ctx context.Context, d time.Duration) error
}

// New creates a Console. tracker may be nil, which disables "status".
func New(level *Level, tracker *status.Tracker, out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	return &Console{
		level:   level,
		tracker: tracker,
		out:     out,
		sleep:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// errQuit is returned by Execute for "quit".
var errQuit = errors.New("quit")

// Execute runs one command line.
func (c *Console) Execute(ctx context.Context, line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}

	switch parts[0] {
	case "press", "p":
		c.level.Set(true)

	case "release", "r":
		c.level.Set(false)

	case "tap", "t":
		d, err := durationArg(parts[1:], DefaultTapTime)
		if err != nil {
			return err
		}
		return c.taps(ctx, 1, d)

	case "click", "c":
		n := 1
		if len(parts) > 1 {
			v, err := strconv.Atoi(parts[1])
			if err != nil || v < 1 {
				return fmt.Errorf("click count must be a positive integer, got %q", parts[1])
			}
			n = v
		}
		return c.taps(ctx, n, DefaultTapTime)

	case "hold", "h":
		if len(parts) < 2 {
			return errors.New("usage: hold <duration>")
		}
		d, err := durationArg(parts[1:], 0)
		if err != nil {
			return err
		}
		c.level.Set(true)
		err = c.sleep(ctx, d)
		c.level.Set(false)
		return err

	case "status", "s":
		if c.tracker == nil {
			return errors.New("status not available")
		}
		fmt.Fprintln(c.out, string(status.FormatJSON(c.tracker.Snapshot())))

	case "help", "?":
		fmt.Fprintln(c.out, "Commands:")
		fmt.Fprintln(c.out, "  press | p              - Press and keep pressed")
		fmt.Fprintln(c.out, "  release | r            - Release")
		fmt.Fprintln(c.out, "  tap [duration]         - Press for duration (default 80ms), then release")
		fmt.Fprintln(c.out, "  click [n]              - n quick taps")
		fmt.Fprintln(c.out, "  hold <duration>        - Press for duration (e.g. 1.5s), then release")
		fmt.Fprintln(c.out, "  status | s             - Print the status JSON")
		fmt.Fprintln(c.out, "  quit                   - Exit")

	case "quit", "exit", "q":
		return errQuit

	default:
		return fmt.Errorf("unknown command: %s (try 'help')", parts[0])
	}
	return nil
}

func (c *Console) taps(ctx context.Context, n int, press time.Duration) error {
	for i := 0; i < n; i++ {
		if i > 0 {
			if err := c.sleep(ctx, DefaultGapTime); err != nil {
				return err
			}
		}
		c.level.Set(true)
		err := c.sleep(ctx, press)
		c.level.Set(false)
		if err != nil {
			return err
		}
	}
	return nil
}

// durationArg parses args[0] as a Go duration or a bare millisecond count.
func durationArg(args []string, def time.Duration) (time.Duration, error) {
	if len(args) == 0 {
		return def, nil
	}
	if ms, err := strconv.Atoi(args[0]); err == nil && ms >= 0 {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(args[0])
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid duration %q", args[0])
	}
	return d, nil
}

// Writer wraps log output so it does not corrupt the prompt.
type Writer struct {
	rl  *readline.Instance
	out io.Writer
}

// Write clears the prompt line, writes p, then redraws the prompt.
func (w *Writer) Write(p []byte) (int, error) {
	if w.rl != nil {
		w.rl.Clean()
	}
	n, err := w.out.Write(p)
	if w.rl != nil {
		w.rl.Refresh()
	}
	return n, err
}

// Prompt owns the readline instance.
type Prompt struct {
	rl  *readline.Instance
	Log *Writer
}

// NewPrompt opens a readline prompt with persistent history.
func NewPrompt() (*Prompt, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "button> ",
		HistoryFile: historyFile(),
	})
	if err != nil {
		return nil, fmt.Errorf("readline init: %w", err)
	}
	return &Prompt{rl: rl, Log: &Writer{rl: rl, out: os.Stderr}}, nil
}

// Stdout is a writer that prints above the prompt.
func (p *Prompt) Stdout() io.Writer {
	return p.rl.Stdout()
}

// Close releases the terminal.
func (p *Prompt) Close() error {
	return p.rl.Close()
}

// Run reads lines and executes them until EOF, Ctrl+C, "quit" or ctx is
// cancelled. cancel is called on Ctrl+C and quit so the daemon shuts down too.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc, p *Prompt) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		for {
			line, err := p.rl.Readline()
			if errors.Is(err, readline.ErrInterrupt) {
				cancel()
				return
			}
			if err != nil {
				return
			}
			select {
			case lines <- strings.TrimSpace(line):
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprintln(c.out, "Bench console ready (type 'help' for commands)")
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				cancel()
				return
			}
			err := c.Execute(ctx, line)
			if errors.Is(err, errQuit) {
				cancel()
				return
			}
			if err != nil {
				fmt.Fprintf(c.out, "Error: %v\n", err)
			}
		}
	}
}

func historyFile() string {
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		cacheDir = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(cacheDir, "button-sensor")
	_ = os.MkdirAll(dir, 0o750)
	return filepath.Join(dir, "console_history")
}
