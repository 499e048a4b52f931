package main

import (
	"machine"
	"time"

	"github.com/tuffrabit/tinygo-grblstatus-rp2040/pkg/config"
	"github.com/tuffrabit/tinygo-grblstatus-rp2040/pkg/display"
	"github.com/tuffrabit/tinygo-grblstatus-rp2040/pkg/parser"
	"github.com/tuffrabit/tinygo-grblstatus-rp2040/pkg/presenter"
	"github.com/tuffrabit/tinygo-grblstatus-rp2040/pkg/protocol"
	"github.com/tuffrabit/tinygo-grblstatus-rp2040/pkg/storage"
	"github.com/tuffrabit/tinygo-grblstatus-rp2040/serial"
)

const ledPin = machine.GP16

// MAIN THREAD DUTIES
//
// The main goroutine runs the status loop: drain controller bytes,
// classify completed lines, tick the presenter. The USB maintenance
// protocol runs on its own goroutine and only touches the presenter
// through a read-only snapshot.

func main() {
	uart := machine.UART0
	uart.Configure(machine.UARTConfig{
		BaudRate: config.BaudRate,
		TX:       machine.UART0_TX_PIN,
		RX:       machine.UART0_RX_PIN,
	})
	controller := serial.NewTransport(uart)

	cfg := config.Default()
	store, err := storage.New(machine.Flash, true)
	if err == nil {
		var saved config.DeviceConfig
		if store.LoadDevice(&saved) == nil && saved.Validate() == nil {
			cfg = saved
		}
	} else {
		// No filesystem is survivable: run on defaults.
		store = nil
	}

	leds := display.NewManager(ledPin, int(cfg.NumLEDs), cfg.Brightness)

	start := time.Now()
	now := func() uint32 {
		return uint32(time.Since(start) / time.Millisecond)
	}

	machineState := presenter.New(presenter.Config{
		BlinkInterval: uint32(cfg.BlinkMs),
		PollTimeout:   uint32(cfg.PollTimeoutMs),
	}, leds, controller, now())

	handler := protocol.NewHandler(store, machineState)
	usb := serial.NewTransport(machine.Serial) // USB CDC Serial
	go handler.Serve(usb)

	var assembler parser.LineAssembler
	for {
		st := parser.StatusUnrecognized
		for controller.Available() {
			b, err := controller.ReadByte()
			if err != nil {
				break
			}
			if line, ok := assembler.Feed(b); ok {
				if s := parser.Classify(line); s != parser.StatusUnrecognized {
					st = s
					break
				}
			}
		}

		machineState.Tick(now(), st)
	}
}
