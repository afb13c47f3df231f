package gpio

import (
	"errors"
	"testing"
)

func TestFakeReaderRead(t *testing.T) {
	f := NewFakeReader([]bool{true, false, true})

	for i, want := range []bool{true, false, true} {
		got, err := f.Read()
		if err != nil {
			t.Fatalf("sample %d: unexpected error: %v", i, err)
		}
		if got != want {
			t.Errorf("sample %d: expected %v, got %v", i, want, got)
		}
	}

	// Fourth read should repeat last sample
	got, err := f.Read()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got {
		t.Error("sample 3 (repeat): expected true, got false")
	}
}

func TestFakeReaderNoSamples(t *testing.T) {
	f := NewFakeReader(nil)

	_, err := f.Read()
	if err == nil {
		t.Error("expected error with no samples")
	}
}

func TestFakeReaderError(t *testing.T) {
	f := NewFakeReader([]bool{true})
	f.ReadError = errors.New("simulated error")

	_, err := f.Read()
	if err == nil {
		t.Fatal("expected error to be returned")
	}
	if err.Error() != "simulated error" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFakeReaderClose(t *testing.T) {
	f := NewFakeReader([]bool{true})

	if f.Closed {
		t.Error("should not be closed initially")
	}
	if err := f.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !f.Closed {
		t.Error("should be closed after Close()")
	}
}

func TestFakeReaderReset(t *testing.T) {
	f := NewFakeReader([]bool{true, false})

	f.Read()
	f.Reset()

	got, _ := f.Read()
	if !got {
		t.Error("after reset: expected first sample (true)")
	}
}

func TestFakeReaderTriggerCoalesces(t *testing.T) {
	f := NewFakeReader([]bool{false})

	f.Trigger()
	f.Trigger()
	f.Trigger()

	select {
	case <-f.Edges():
	default:
		t.Fatal("expected an edge notification")
	}
	select {
	case <-f.Edges():
		t.Fatal("expected edges to coalesce into one notification")
	default:
	}
}

func TestFakeReaderImplementsEdgeReader(t *testing.T) {
	var _ EdgeReader = NewFakeReader(nil)
}

func TestParseBias(t *testing.T) {
	tests := []struct {
		in      string
		want    Bias
		wantErr bool
	}{
		{"pull-up", BiasPullUp, false},
		{"pull-down", BiasPullDown, false},
		{"none", BiasNone, false},
		{"", "", true},
		{"pullup", "", true},
	}

	for _, tt := range tests {
		got, err := ParseBias(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseBias(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseBias(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if opts.Chip != "gpiochip0" || opts.Pin != 17 {
		t.Errorf("unexpected default line %s/%d", opts.Chip, opts.Pin)
	}
	if !opts.ActiveLow || opts.Bias != BiasPullUp {
		t.Errorf("expected active-low with pull-up, got %+v", opts)
	}
}
