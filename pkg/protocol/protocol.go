// Package protocol implements a binary serial protocol for PC app
// communication over USB CDC. It lets a host tool inspect the status
// light and tune its stored settings without reflashing.
//
// Frame format:
//
//	[SYNC:1][CMD:1][LEN:2][PAYLOAD:LEN][CRC:2]
//	- SYNC: 0xAA (frame start marker)
//	- CMD: Command byte
//	- LEN: Payload length (uint16, little-endian)
//	- PAYLOAD: Variable length data
//	- CRC: CRC16-CCITT of [CMD][LEN][PAYLOAD]
//
// Response format is identical.
package protocol

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/tuffrabit/tinygo-grblstatus-rp2040/pkg/config"
	"github.com/tuffrabit/tinygo-grblstatus-rp2040/pkg/parser"
	"github.com/tuffrabit/tinygo-grblstatus-rp2040/pkg/storage"
)

const (
	SyncByte = 0xAA

	// Command codes (PC → Device)
	CmdGetDeviceConfig = 0x01
	CmdSetDeviceConfig = 0x02
	CmdGetStatus       = 0x03
	CmdPing            = 0x04
	CmdFactoryReset    = 0x05
	CmdGetVersion      = 0x06

	// Response status codes (Device → PC)
	StatusOK              = 0x00
	StatusError           = 0x01
	StatusInvalidCmd      = 0x02
	StatusInvalidData     = 0x03
	StatusNotFound        = 0x04
	StatusVersionMismatch = 0x05
	StatusCRCError        = 0x06
)

// Firmware version reported by CmdGetVersion.
const (
	FirmwareMajor = 0
	FirmwareMinor = 1
)

var (
	ErrInvalidFrame = errors.New("invalid frame")
	ErrCRCMismatch  = errors.New("CRC mismatch")
)

// maxPayload bounds incoming frames; no command needs more.
const maxPayload = 64

// StatusSource provides the current machine state for CmdGetStatus.
type StatusSource interface {
	Snapshot() (booted bool, last parser.Status)
}

// Handler processes protocol commands.
type Handler struct {
	storage *storage.Manager
	source  StatusSource
}

// NewHandler creates a new protocol handler. storage may be nil when
// the filesystem failed to mount; config commands then report errors
// while status commands keep working.
func NewHandler(sm *storage.Manager, source StatusSource) *Handler {
	return &Handler{
		storage: sm,
		source:  source,
	}
}

// Frame represents a protocol frame.
type Frame struct {
	Cmd     uint8
	Payload []byte
}

// Response represents a protocol response.
type Response struct {
	Status  uint8
	Payload []byte
}

// ReadFrame reads and validates a frame from the reader.
func ReadFrame(r io.Reader) (*Frame, error) {
	// Read sync byte
	sync := make([]byte, 1)
	if _, err := io.ReadFull(r, sync); err != nil {
		return nil, err
	}
	if sync[0] != SyncByte {
		return nil, ErrInvalidFrame
	}

	// Read header (cmd + len)
	header := make([]byte, 3)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	cmd := header[0]
	length := binary.LittleEndian.Uint16(header[1:])

	if length > maxPayload {
		return nil, ErrInvalidFrame
	}

	// Read payload
	var payload []byte
	if length > 0 {
		payload = make([]byte, length)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
	}

	// Read CRC
	crcBytes := make([]byte, 2)
	if _, err := io.ReadFull(r, crcBytes); err != nil {
		return nil, err
	}
	receivedCRC := binary.LittleEndian.Uint16(crcBytes)

	calculatedCRC := calcCRC(append(header, payload...))
	if receivedCRC != calculatedCRC {
		return nil, ErrCRCMismatch
	}

	return &Frame{
		Cmd:     cmd,
		Payload: payload,
	}, nil
}

// WriteResponse writes a response frame to the writer.
func WriteResponse(w io.Writer, resp *Response) error {
	payloadLen := uint16(len(resp.Payload))
	frameLen := 1 + 1 + 2 + int(payloadLen) + 2 // sync + status + len + payload + crc

	buf := make([]byte, 0, frameLen)
	buf = append(buf, SyncByte)
	buf = append(buf, resp.Status)

	lenBytes := make([]byte, 2)
	binary.LittleEndian.PutUint16(lenBytes, payloadLen)
	buf = append(buf, lenBytes...)

	buf = append(buf, resp.Payload...)

	// CRC covers status + len + payload, not the sync byte
	crc := calcCRC(buf[1:])
	crcBytes := make([]byte, 2)
	binary.LittleEndian.PutUint16(crcBytes, crc)
	buf = append(buf, crcBytes...)

	_, err := w.Write(buf)
	return err
}

// WriteFrame writes a request frame (for testing/PC side).
func WriteFrame(w io.Writer, frame *Frame) error {
	payloadLen := uint16(len(frame.Payload))
	frameLen := 1 + 1 + 2 + int(payloadLen) + 2

	buf := make([]byte, 0, frameLen)
	buf = append(buf, SyncByte)
	buf = append(buf, frame.Cmd)

	lenBytes := make([]byte, 2)
	binary.LittleEndian.PutUint16(lenBytes, payloadLen)
	buf = append(buf, lenBytes...)

	buf = append(buf, frame.Payload...)

	crc := calcCRC(buf[1:])
	crcBytes := make([]byte, 2)
	binary.LittleEndian.PutUint16(crcBytes, crc)
	buf = append(buf, crcBytes...)

	_, err := w.Write(buf)
	return err
}

// Serve reads frames from rw and writes back responses until a read
// error other than framing/CRC occurs. Framing and CRC failures get an
// error response and the stream continues.
func (h *Handler) Serve(rw io.ReadWriter) error {
	for {
		frame, err := ReadFrame(rw)
		if err != nil {
			switch err {
			case ErrInvalidFrame:
				// Resync on the next sync byte
				continue
			case ErrCRCMismatch:
				WriteResponse(rw, &Response{Status: StatusCRCError})
				continue
			default:
				return err
			}
		}

		if err := WriteResponse(rw, h.Handle(frame)); err != nil {
			return err
		}
	}
}

// Handle processes a command frame and returns a response.
func (h *Handler) Handle(frame *Frame) *Response {
	switch frame.Cmd {
	case CmdPing:
		return h.handlePing(frame.Payload)
	case CmdGetDeviceConfig:
		return h.handleGetDeviceConfig()
	case CmdSetDeviceConfig:
		return h.handleSetDeviceConfig(frame.Payload)
	case CmdGetStatus:
		return h.handleGetStatus()
	case CmdFactoryReset:
		return h.handleFactoryReset()
	case CmdGetVersion:
		return h.handleGetVersion()
	default:
		return &Response{Status: StatusInvalidCmd}
	}
}

// handlePing responds with the same payload (echo).
func (h *Handler) handlePing(payload []byte) *Response {
	return &Response{
		Status:  StatusOK,
		Payload: payload,
	}
}

// handleGetDeviceConfig returns the stored device configuration.
func (h *Handler) handleGetDeviceConfig() *Response {
	if h.storage == nil {
		return &Response{Status: StatusError}
	}

	var cfg config.DeviceConfig
	if err := h.storage.LoadDevice(&cfg); err != nil {
		if err == storage.ErrConfigNotFound {
			return &Response{Status: StatusNotFound}
		}
		return &Response{Status: StatusError}
	}

	data, err := cfg.MarshalBinary()
	if err != nil {
		return &Response{Status: StatusError}
	}

	return &Response{
		Status:  StatusOK,
		Payload: data,
	}
}

// handleSetDeviceConfig stores a new device configuration. The new
// values take effect on the next boot.
// Payload: [DeviceConfig:12 bytes]
func (h *Handler) handleSetDeviceConfig(payload []byte) *Response {
	if len(payload) != 12 {
		return &Response{Status: StatusInvalidData}
	}

	var cfg config.DeviceConfig
	if err := cfg.UnmarshalBinary(payload); err != nil {
		return &Response{Status: StatusInvalidData}
	}

	if cfg.Version != config.CurrentVersion {
		return &Response{Status: StatusVersionMismatch}
	}
	if err := cfg.Validate(); err != nil {
		return &Response{Status: StatusInvalidData}
	}

	if h.storage == nil {
		return &Response{Status: StatusError}
	}
	if err := h.storage.SaveDevice(&cfg); err != nil {
		return &Response{Status: StatusError}
	}

	return &Response{Status: StatusOK}
}

// handleGetStatus returns the current machine state.
// Response: [Booted:1][Status:1]
func (h *Handler) handleGetStatus() *Response {
	if h.source == nil {
		return &Response{Status: StatusError}
	}

	booted, last := h.source.Snapshot()

	payload := make([]byte, 2)
	if booted {
		payload[0] = 1
	}
	payload[1] = uint8(last)

	return &Response{
		Status:  StatusOK,
		Payload: payload,
	}
}

// handleFactoryReset wipes the stored configuration.
func (h *Handler) handleFactoryReset() *Response {
	if h.storage == nil {
		return &Response{Status: StatusError}
	}
	if err := h.storage.ForceWipe(); err != nil {
		return &Response{Status: StatusError}
	}
	return &Response{Status: StatusOK}
}

// handleGetVersion returns firmware and config version info.
// Response: [FirmwareVersionMajor:1][FirmwareVersionMinor:1][ConfigVersion:2]
func (h *Handler) handleGetVersion() *Response {
	payload := make([]byte, 4)
	payload[0] = FirmwareMajor
	payload[1] = FirmwareMinor
	binary.LittleEndian.PutUint16(payload[2:], config.CurrentVersion)

	return &Response{
		Status:  StatusOK,
		Payload: payload,
	}
}

// calcCRC calculates CRC16-CCITT.
// Polynomial: 0x1021, Initial: 0xFFFF
func calcCRC(data []byte) uint16 {
	var crc uint16 = 0xFFFF

	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}

	return crc
}
