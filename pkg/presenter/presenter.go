// Package presenter owns the firmware's display logic: which color the
// LED chain shows for which controller state, the boot-wait blink, and
// when to proactively poll the controller for a status report.
//
// The presenter is pure state-machine code driven by an external loop.
// It never blocks, never sleeps, and never fails; all timing is derived
// from the millisecond timestamps passed into Tick.
package presenter

import (
	"image/color"

	"github.com/tuffrabit/tinygo-grblstatus-rp2040/pkg/config"
	"github.com/tuffrabit/tinygo-grblstatus-rp2040/pkg/parser"
)

// PollRequest is the control sequence sent to solicit a status report.
const PollRequest = "?\n"

// Display applies a solid color across the whole LED chain.
type Display interface {
	SetAll(c color.RGBA)
}

// Poller sends raw bytes to the controller.
type Poller interface {
	WriteString(s string) error
}

// Config holds the presenter's timing parameters in milliseconds.
// The values are fixed for the lifetime of the Machine.
type Config struct {
	BlinkInterval uint32
	PollTimeout   uint32
}

// Machine is the presentation state machine. It is owned by the core
// loop and must only be used from there.
type Machine struct {
	cfg       Config
	display   Display
	transport Poller

	booted     bool
	lastStatus parser.Status
	lastColor  color.RGBA
	shown      bool

	blinkPhase  bool
	lastBlinkMs uint32

	lastStatusMs uint32
	lastPollMs   uint32
}

// New builds a Machine and shows the first boot-wait color. The blink
// timer is seeded with now so the first toggle happens a full interval
// after startup.
func New(cfg Config, display Display, transport Poller, now uint32) *Machine {
	m := &Machine{
		cfg:        cfg,
		display:    display,
		transport:  transport,
		lastStatus: parser.StatusUnrecognized,

		lastBlinkMs: now,
	}
	m.setColor(config.ColorRed)
	return m
}

// Booted reports whether the boot confirmation has been seen.
func (m *Machine) Booted() bool {
	return m.booted
}

// Snapshot returns the boot flag and the last status shown on the
// display, for reporting over the maintenance protocol.
func (m *Machine) Snapshot() (booted bool, last parser.Status) {
	return m.booted, m.lastStatus
}

// Tick advances the state machine by one loop iteration. st is the
// classifier result for any line completed since the previous tick, or
// StatusUnrecognized when no recognized line arrived. now is a
// monotonically increasing millisecond timestamp; elapsed times are
// computed with unsigned subtraction so a counter wrap is harmless.
func (m *Machine) Tick(now uint32, st parser.Status) {
	if st != parser.StatusUnrecognized {
		if st == parser.StatusBooted {
			m.booted = true
			m.lastStatusMs = now
			// Seed the poll timer too, so the first "?" waits a
			// full timeout instead of firing immediately.
			m.lastPollMs = now
			m.showStatus(st)
		} else if m.booted {
			m.lastStatusMs = now
			m.showStatus(st)
		}
		// A recognized status before boot is ignored for display.
	}

	if m.booted &&
		now-m.lastStatusMs >= m.cfg.PollTimeout &&
		now-m.lastPollMs >= m.cfg.PollTimeout {
		m.transport.WriteString(PollRequest)
		m.lastPollMs = now
	}

	// Before boot: blink red/purple until the controller announces
	// itself. This overrides the status color logic above.
	if !m.booted {
		if now-m.lastBlinkMs >= m.cfg.BlinkInterval {
			m.blinkPhase = !m.blinkPhase
			if m.blinkPhase {
				m.setColor(config.ColorPurple)
			} else {
				m.setColor(config.ColorRed)
			}
			m.lastBlinkMs = now
		}
	}
}

// statusColor is the static status-to-color table.
func statusColor(st parser.Status) (color.RGBA, bool) {
	switch st {
	case parser.StatusBooted, parser.StatusIdle:
		return config.ColorGreen, true
	case parser.StatusRun:
		return config.ColorCyan, true
	case parser.StatusHold:
		return config.ColorYellow, true
	case parser.StatusJog, parser.StatusHome:
		return config.ColorPurple, true
	case parser.StatusDoor:
		return config.ColorOrange, true
	case parser.StatusAlarm:
		return config.ColorRed, true
	}
	return color.RGBA{}, false
}

// showStatus updates the display for a recognized status, debounced on
// the mapped color so redundant hardware writes are suppressed.
func (m *Machine) showStatus(st parser.Status) {
	c, ok := statusColor(st)
	if !ok {
		return
	}
	if m.setColor(c) {
		m.lastStatus = st
	}
}

// setColor writes c to the display unless it is already showing.
// Returns true when a hardware update happened.
func (m *Machine) setColor(c color.RGBA) bool {
	if m.shown && c == m.lastColor {
		return false
	}
	m.display.SetAll(c)
	m.lastColor = c
	m.shown = true
	return true
}
