//go:build !noled

// Package display drives the WS2812 status LED chain. The whole chain
// always shows a single solid color; per-pixel patterns are not needed
// for a status light.
//
// To build without LED output (e.g. bench testing the serial side), use:
//
//	tinygo build -tags=noled -target=pico -o firmware.uf2 .
package display

import (
	"image/color"
	"machine"

	"tinygo.org/x/drivers/ws2812"
)

// Manager owns the LED chain. The pixel buffer is allocated once at
// startup; SetAll does not allocate.
type Manager struct {
	dev        ws2812.Device
	pixels     []color.RGBA
	brightness uint8
}

// NewManager configures the data pin and prepares a chain of numLEDs
// pixels. brightness (0-255) is applied to every color written out.
func NewManager(pin machine.Pin, numLEDs int, brightness uint8) *Manager {
	if numLEDs < 1 {
		numLEDs = 1
	}

	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})

	return &Manager{
		dev:        ws2812.New(pin),
		pixels:     make([]color.RGBA, numLEDs),
		brightness: brightness,
	}
}

// SetAll applies a solid color across the whole chain and writes it to
// the hardware.
func (m *Manager) SetAll(c color.RGBA) {
	c = scale(c, m.brightness)
	for i := range m.pixels {
		m.pixels[i] = c
	}
	m.dev.WriteColors(m.pixels)
}

// scale dims a color by brightness b using the usual (v * (b+1)) >> 8
// integer approximation.
func scale(c color.RGBA, b uint8) color.RGBA {
	s := uint16(b) + 1
	return color.RGBA{
		R: uint8(uint16(c.R) * s >> 8),
		G: uint8(uint16(c.G) * s >> 8),
		B: uint8(uint16(c.B) * s >> 8),
		A: c.A,
	}
}
