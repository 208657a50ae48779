// Package link implements the USB/TCP wire protocol of CPC200-class
// CarPlay and Android Auto adapters.
//
// Every frame is a 16 byte little-endian header followed by a payload:
//
//	offset 0  u32 magic    = 0x55AA55AA
//	offset 4  u32 length   - payload size
//	offset 8  u32 type     - command ID
//	offset 12 u32 typeN    - type XOR 0xFFFFFFFF
package link

import (
	"encoding/binary"
	"errors"
)

const Magic uint32 = 0x55AA55AA

const HeaderSize = 16

// MaxPayload - a header that promises more is considered garbage
const MaxPayload = 1 << 20

var (
	ErrMagic    = errors.New("link: wrong magic")
	ErrChecksum = errors.New("link: wrong checksum")
	ErrTooLarge = errors.New("link: payload too large")

	// ErrShortPayload - payload smaller than the command schema requires.
	// Stream stays in sync, caller should drop this single frame.
	ErrShortPayload = errors.New("link: payload too short")

	// ErrDesync - too much garbage without a valid header,
	// caller should reconnect the transport
	ErrDesync = errors.New("link: can't resync")
)

type Header struct {
	Magic  uint32
	Length uint32
	Type   uint32
	TypeN  uint32
}

func (h *Header) Check() error {
	if h.Magic != Magic {
		return ErrMagic
	}
	if h.TypeN != h.Type^0xFFFFFFFF {
		return ErrChecksum
	}
	if h.Length > MaxPayload {
		return ErrTooLarge
	}
	return nil
}

func DecodeHeader(b []byte) *Header {
	return &Header{
		Magic:  binary.LittleEndian.Uint32(b),
		Length: binary.LittleEndian.Uint32(b[4:]),
		Type:   binary.LittleEndian.Uint32(b[8:]),
		TypeN:  binary.LittleEndian.Uint32(b[12:]),
	}
}

func EncodeHeader(b []byte, msgType, length uint32) {
	binary.LittleEndian.PutUint32(b, Magic)
	binary.LittleEndian.PutUint32(b[4:], length)
	binary.LittleEndian.PutUint32(b[8:], msgType)
	binary.LittleEndian.PutUint32(b[12:], msgType^0xFFFFFFFF)
}
