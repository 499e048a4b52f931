// Package parser turns the raw byte stream coming from a grbl/FluidNC
// controller into classified machine status codes. It has no hardware
// dependencies so it can be unit tested on the host.
//
// The controller speaks a line-oriented text protocol: one status report
// per line, newline terminated, carriage returns optional. Only the
// leading characters of a line matter for classification, so oversized
// lines are truncated rather than rejected.
package parser

import (
	"strings"
)

// Status is the classified machine state reported by the controller.
type Status uint8

const (
	StatusBooted Status = iota
	StatusIdle
	StatusRun
	StatusHold
	StatusJog
	StatusDoor
	StatusHome
	StatusAlarm
	StatusUnrecognized
)

// String returns a short human-readable name, used by the maintenance
// protocol and tests.
func (s Status) String() string {
	switch s {
	case StatusBooted:
		return "Booted"
	case StatusIdle:
		return "Idle"
	case StatusRun:
		return "Run"
	case StatusHold:
		return "Hold"
	case StatusJog:
		return "Jog"
	case StatusDoor:
		return "Door"
	case StatusHome:
		return "Home"
	case StatusAlarm:
		return "Alarm"
	}
	return "Unrecognized"
}

// LineCap is the capacity of the assembler's line buffer. Status report
// prefixes are short, so lines longer than this are safe to truncate.
const LineCap = 64

// LineAssembler reconstructs newline-delimited lines one byte at a
// time without blocking. The zero value is ready to use.
type LineAssembler struct {
	buf [LineCap]byte
	n   int
}

// Feed consumes a single input byte. When the byte completes a line,
// Feed returns the accumulated line (without terminator) and true, and
// the assembler resets for the next line. Carriage returns are
// discarded so both "\n" and "\r\n" endings work. Once the buffer is
// full, further bytes of the current line are dropped; the truncated
// prefix is still returned on the next line feed.
func (a *LineAssembler) Feed(b byte) (string, bool) {
	switch b {
	case '\r':
		return "", false
	case '\n':
		line := string(a.buf[:a.n])
		a.n = 0
		return line, true
	}

	if a.n < LineCap-1 {
		a.buf[a.n] = b
		a.n++
	}

	return "", false
}

// Len reports the number of bytes buffered for the current line.
func (a *LineAssembler) Len() int {
	return a.n
}

// statusPrefixes maps known report prefixes to status codes. The order
// is fixed so classification stays deterministic if a future prefix
// extends an existing one.
var statusPrefixes = []struct {
	prefix string
	status Status
}{
	{"[MSG:INFO: Connected", StatusBooted},
	{"<Idle", StatusIdle},
	{"<Run", StatusRun},
	{"<Hold", StatusHold},
	{"<Jog", StatusJog},
	{"<Door", StatusDoor},
	{"<Home", StatusHome},
	{"<Alarm", StatusAlarm},
}

// Classify matches a completed line against the known status prefixes
// and returns the status of the first match. Matching is case-sensitive
// and only inspects the start of the line; everything else, including
// the empty line, classifies as StatusUnrecognized.
func Classify(line string) Status {
	for _, p := range statusPrefixes {
		if strings.HasPrefix(line, p.prefix) {
			return p.status
		}
	}
	return StatusUnrecognized
}
