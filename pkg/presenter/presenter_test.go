package presenter

import (
	"image/color"
	"testing"

	"github.com/tuffrabit/tinygo-grblstatus-rp2040/pkg/config"
	"github.com/tuffrabit/tinygo-grblstatus-rp2040/pkg/parser"
)

type fakeDisplay struct {
	calls int
	last  color.RGBA
}

func (d *fakeDisplay) SetAll(c color.RGBA) {
	d.calls++
	d.last = c
}

type fakePoller struct {
	writes []string
}

func (p *fakePoller) WriteString(s string) error {
	p.writes = append(p.writes, s)
	return nil
}

func testConfig() Config {
	return Config{
		BlinkInterval: 250,
		PollTimeout:   5000,
	}
}

func newTestMachine(now uint32) (*Machine, *fakeDisplay, *fakePoller) {
	d := &fakeDisplay{}
	p := &fakePoller{}
	return New(testConfig(), d, p, now), d, p
}

func TestStartupShowsRed(t *testing.T) {
	_, d, _ := newTestMachine(0)

	if d.calls != 1 {
		t.Fatalf("Expected 1 display update at startup, got %d", d.calls)
	}
	if d.last != config.ColorRed {
		t.Errorf("Expected startup color red, got %v", d.last)
	}
}

func TestBlinkBeforeBoot(t *testing.T) {
	m, d, _ := newTestMachine(0)

	// Not yet due.
	m.Tick(100, parser.StatusUnrecognized)
	if d.calls != 1 {
		t.Fatalf("Blink fired early: %d display updates", d.calls)
	}

	// First toggle: red -> purple, exactly one update.
	m.Tick(250, parser.StatusUnrecognized)
	if d.calls != 2 {
		t.Fatalf("Expected exactly 2 display updates after one interval, got %d", d.calls)
	}
	if d.last != config.ColorPurple {
		t.Errorf("Expected purple after first toggle, got %v", d.last)
	}

	// Still in the same phase.
	m.Tick(400, parser.StatusUnrecognized)
	if d.calls != 2 {
		t.Errorf("Blink toggled again too early: %d updates", d.calls)
	}

	// Second toggle back to red.
	m.Tick(500, parser.StatusUnrecognized)
	if d.calls != 3 {
		t.Fatalf("Expected 3 display updates after two intervals, got %d", d.calls)
	}
	if d.last != config.ColorRed {
		t.Errorf("Expected red after second toggle, got %v", d.last)
	}
}

func TestBootTransition(t *testing.T) {
	m, d, _ := newTestMachine(0)

	m.Tick(100, parser.StatusBooted)

	if !m.Booted() {
		t.Fatal("Expected machine to be booted")
	}
	if d.last != config.ColorGreen {
		t.Errorf("Expected green after boot, got %v", d.last)
	}

	// Blink must stop once booted.
	calls := d.calls
	m.Tick(1000, parser.StatusUnrecognized)
	if d.calls != calls {
		t.Errorf("Blink ran after boot: %d extra updates", d.calls-calls)
	}

	// A second boot message re-evaluates color but triggers nothing new.
	m.Tick(1100, parser.StatusBooted)
	if d.calls != calls {
		t.Errorf("Second boot message caused %d extra updates", d.calls-calls)
	}
	if !m.Booted() {
		t.Error("Machine lost booted state")
	}
}

func TestStatusBeforeBootIgnored(t *testing.T) {
	m, d, _ := newTestMachine(0)
	calls := d.calls

	m.Tick(100, parser.StatusRun)

	if m.Booted() {
		t.Error("Run status must not count as boot")
	}
	if d.calls != calls {
		t.Errorf("Pre-boot status updated the display: %d extra updates", d.calls-calls)
	}
}

func TestDisplayDebounce(t *testing.T) {
	m, d, _ := newTestMachine(0)
	m.Tick(100, parser.StatusBooted)

	m.Tick(200, parser.StatusRun)
	calls := d.calls
	if d.last != config.ColorCyan {
		t.Fatalf("Expected cyan for Run, got %v", d.last)
	}

	// Same status again: no hardware write.
	m.Tick(300, parser.StatusRun)
	if d.calls != calls {
		t.Errorf("Repeated status caused %d extra updates", d.calls-calls)
	}
}

func TestSharedColorDebounce(t *testing.T) {
	m, d, _ := newTestMachine(0)
	m.Tick(100, parser.StatusBooted)

	m.Tick(200, parser.StatusJog)
	calls := d.calls
	if d.last != config.ColorPurple {
		t.Fatalf("Expected purple for Jog, got %v", d.last)
	}

	// Home maps to the same color; the write is suppressed.
	m.Tick(300, parser.StatusHome)
	if d.calls != calls {
		t.Errorf("Same-color status caused %d extra updates", d.calls-calls)
	}
}

func TestPollTimers(t *testing.T) {
	m, _, p := newTestMachine(0)
	m.Tick(0, parser.StatusBooted)

	// First poll waits a full timeout after boot.
	m.Tick(4999, parser.StatusUnrecognized)
	if len(p.writes) != 0 {
		t.Fatalf("Poll sent early: %v", p.writes)
	}

	m.Tick(5000, parser.StatusUnrecognized)
	if len(p.writes) != 1 {
		t.Fatalf("Expected 1 poll request, got %d", len(p.writes))
	}
	if p.writes[0] != PollRequest {
		t.Errorf("Expected %q, got %q", PollRequest, p.writes[0])
	}

	// No duplicate flood within the window.
	for now := uint32(5001); now < 10000; now += 500 {
		m.Tick(now, parser.StatusUnrecognized)
	}
	if len(p.writes) != 1 {
		t.Fatalf("Poll flood within window: %d requests", len(p.writes))
	}

	// Second window elapses with still no status.
	m.Tick(10000, parser.StatusUnrecognized)
	if len(p.writes) != 2 {
		t.Fatalf("Expected 2 poll requests after second window, got %d", len(p.writes))
	}

	// A fresh status resets the status timer and holds polling off.
	m.Tick(10001, parser.StatusIdle)
	m.Tick(15000, parser.StatusUnrecognized)
	if len(p.writes) != 2 {
		t.Fatalf("Polled before status timer elapsed: %d requests", len(p.writes))
	}
	m.Tick(15001, parser.StatusUnrecognized)
	if len(p.writes) != 3 {
		t.Errorf("Expected 3 poll requests, got %d", len(p.writes))
	}
}

func TestNoPollBeforeBoot(t *testing.T) {
	m, _, p := newTestMachine(0)

	for now := uint32(0); now <= 20000; now += 1000 {
		m.Tick(now, parser.StatusUnrecognized)
	}

	if len(p.writes) != 0 {
		t.Errorf("Polled before boot: %v", p.writes)
	}
}

func TestTimestampWraparound(t *testing.T) {
	start := uint32(0xFFFFFF00)
	m, d, _ := newTestMachine(start)

	// 240ms elapsed, still below the blink interval.
	m.Tick(start+240, parser.StatusUnrecognized)
	if d.calls != 1 {
		t.Fatalf("Blink fired before interval near wrap: %d updates", d.calls)
	}

	// The counter wraps; elapsed time is 266ms via modular arithmetic.
	m.Tick(0x0000000A, parser.StatusUnrecognized)
	if d.calls != 2 {
		t.Errorf("Blink missed across counter wrap: %d updates", d.calls)
	}
}

func TestPollTimerWraparound(t *testing.T) {
	start := uint32(0xFFFFF000)
	d := &fakeDisplay{}
	p := &fakePoller{}
	m := New(testConfig(), d, p, start)

	m.Tick(start, parser.StatusBooted)

	// 5000ms later the counter has wrapped past zero.
	m.Tick(start+5000, parser.StatusUnrecognized)
	if len(p.writes) != 1 {
		t.Errorf("Expected 1 poll request across wrap, got %d", len(p.writes))
	}
}

func TestSnapshot(t *testing.T) {
	m, _, _ := newTestMachine(0)

	booted, last := m.Snapshot()
	if booted {
		t.Error("Expected not booted initially")
	}
	if last != parser.StatusUnrecognized {
		t.Errorf("Expected Unrecognized initially, got %v", last)
	}

	m.Tick(100, parser.StatusBooted)
	m.Tick(200, parser.StatusAlarm)

	booted, last = m.Snapshot()
	if !booted {
		t.Error("Expected booted after boot message")
	}
	if last != parser.StatusAlarm {
		t.Errorf("Expected Alarm in snapshot, got %v", last)
	}
}
