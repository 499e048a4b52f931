// Package serial wraps a machine.Serialer as the byte transport the
// core loop and the maintenance protocol talk through. Reads on the
// core path are strictly non-blocking; the only waiting happens inside
// Read, which exists for the protocol goroutine.
package serial

import (
	"machine"
	"runtime"
)

type Transport struct {
	port machine.Serialer
}

func NewTransport(port machine.Serialer) *Transport {
	return &Transport{
		port: port,
	}
}

// Available reports whether at least one byte is waiting.
func (t *Transport) Available() bool {
	return t.port.Buffered() > 0
}

// ReadByte returns the next buffered byte. It never blocks; when no
// byte is waiting it returns the underlying driver's error.
func (t *Transport) ReadByte() (byte, error) {
	return t.port.ReadByte()
}

// WriteString sends s out the port. The underlying driver may block
// until the hardware accepts the bytes.
func (t *Transport) WriteString(s string) error {
	_, err := t.port.Write([]byte(s))
	return err
}

// Write implements io.Writer.
func (t *Transport) Write(p []byte) (int, error) {
	return t.port.Write(p)
}

// Read implements io.Reader for the protocol goroutine. It blocks
// until at least one byte is available, yielding to the scheduler so
// the core loop keeps running.
func (t *Transport) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	for t.port.Buffered() == 0 {
		runtime.Gosched()
	}

	n := 0
	for n < len(p) && t.port.Buffered() > 0 {
		b, err := t.port.ReadByte()
		if err != nil {
			break
		}
		p[n] = b
		n++
	}

	return n, nil
}
