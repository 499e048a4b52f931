// Package config defines the device settings for the status light.
// Build-time defaults mirror the values the firmware shipped with; a
// stored DeviceConfig in flash may override them once at startup.
// The struct is designed for zero-allocation binary serialization.
package config

import (
	"encoding/binary"
	"errors"
	"image/color"
)

// CurrentVersion is the config format version.
// Bump this when making breaking changes to the config format.
// When firmware boots and finds a different version in flash, the
// stored config is wiped and defaults apply.
const CurrentVersion uint16 = 1

// Build-time defaults.
const (
	DefaultBrightness    = 31   // LED brightness 0-255
	DefaultNumLEDs       = 1    // length of the WS2812 chain
	DefaultBlinkMs       = 250  // boot-wait blink half period
	DefaultPollTimeoutMs = 5000 // silence before a "?" poll is sent

	BaudRate = 115200
)

// Status colors (RGB888). The alpha channel is ignored by the LED
// driver but kept at full for image/color compatibility.
var (
	ColorRed    = color.RGBA{R: 0xff, A: 0xff}
	ColorOrange = color.RGBA{R: 0xff, G: 0x5f, A: 0xff}
	ColorYellow = color.RGBA{R: 0xff, G: 0xcf, A: 0xff}
	ColorGreen  = color.RGBA{G: 0xff, A: 0xff}
	ColorCyan   = color.RGBA{G: 0x7f, B: 0xff, A: 0xff}
	ColorPurple = color.RGBA{R: 0xff, B: 0xff, A: 0xff}
)

// DeviceConfig holds the runtime-tunable device settings.
// Total size: 12 bytes
// Layout:
//
//	[0-1]:   Version (uint16)
//	[2-5]:   Flags (uint32)
//	[6]:     Brightness (uint8)
//	[7]:     NumLEDs (uint8)
//	[8-9]:   BlinkMs (uint16)
//	[10-11]: PollTimeoutMs (uint16)
type DeviceConfig struct {
	Version       uint16 // Config format version
	Flags         uint32 // Global feature flags
	Brightness    uint8  // LED brightness 0-255
	NumLEDs       uint8  // LED chain length, >= 1
	BlinkMs       uint16 // Boot-wait blink half period in ms
	PollTimeoutMs uint16 // Poll timeout threshold in ms
}

// Errors
var (
	ErrInvalidSize   = errors.New("invalid config size")
	ErrInvalidConfig = errors.New("invalid config values")
)

// Default returns a DeviceConfig populated with the build-time values.
func Default() DeviceConfig {
	return DeviceConfig{
		Version:       CurrentVersion,
		Brightness:    DefaultBrightness,
		NumLEDs:       DefaultNumLEDs,
		BlinkMs:       DefaultBlinkMs,
		PollTimeoutMs: DefaultPollTimeoutMs,
	}
}

// Validate checks that the config values are usable by the firmware.
func (d *DeviceConfig) Validate() error {
	if d.NumLEDs < 1 {
		return ErrInvalidConfig
	}
	if d.BlinkMs == 0 || d.PollTimeoutMs == 0 {
		return ErrInvalidConfig
	}
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler for DeviceConfig.
func (d *DeviceConfig) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint16(buf[0:], d.Version)
	binary.LittleEndian.PutUint32(buf[2:], d.Flags)
	buf[6] = d.Brightness
	buf[7] = d.NumLEDs
	binary.LittleEndian.PutUint16(buf[8:], d.BlinkMs)
	binary.LittleEndian.PutUint16(buf[10:], d.PollTimeoutMs)
	return buf, nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler for DeviceConfig.
func (d *DeviceConfig) UnmarshalBinary(data []byte) error {
	if len(data) < 12 {
		return ErrInvalidSize
	}

	d.Version = binary.LittleEndian.Uint16(data[0:])
	d.Flags = binary.LittleEndian.Uint32(data[2:])
	d.Brightness = data[6]
	d.NumLEDs = data[7]
	d.BlinkMs = binary.LittleEndian.Uint16(data[8:])
	d.PollTimeoutMs = binary.LittleEndian.Uint16(data[10:])
	return nil
}
