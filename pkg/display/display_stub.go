//go:build noled

// Package display provides a no-op stub when built with the noled tag.
// This saves memory by excluding the WS2812 driver, and lets the rest
// of the firmware run on boards without an LED chain attached.
//
// To build without LED output, use:
//
//	tinygo build -tags=noled -target=pico -o firmware.uf2 .
package display

import (
	"image/color"
	"machine"
)

// Manager is a no-op stub when the noled build tag is used.
type Manager struct{}

// NewManager returns a stub manager that discards all updates.
func NewManager(pin machine.Pin, numLEDs int, brightness uint8) *Manager {
	return &Manager{}
}

// SetAll is a no-op in noled mode.
func (m *Manager) SetAll(c color.RGBA) {}
