// Package probe talks to a serial-attached bench probe that exposes the
// target's memory bus, letting the engine run against real silicon from
// the host during bring-up. Single-register accesses cross the link one
// at a time, so inter-step latency is stretched by the serial turnaround;
// the calibrated waits themselves execute probe-side, keeping pulse
// widths honest.
package probe

import (
	"encoding/binary"
	"fmt"
)

// Probe link opcodes. Responses echo the opcode with the high bit set.
const (
	OpPing       = 0x01
	OpRead8      = 0x02
	OpWrite8     = 0x03
	OpRead32     = 0x04
	OpWrite32    = 0x05
	OpWrite16    = 0x06
	OpIrqSave    = 0x07
	OpIrqRestore = 0x08
	OpWait       = 0x09
	respFlag     = 0x80
	checksumSeed = 0xA5
	statusOK     = 0x00
	protoVersion = 0x01
)

// Device codes reported by the probe's ping response.
const (
	DeviceSH7055 = 0x01
	DeviceSH7051 = 0x02
)

// DeviceName maps a ping device code to its profile name.
func DeviceName(code uint8) string {
	switch code {
	case DeviceSH7055:
		return "sh7055"
	case DeviceSH7051:
		return "sh7051"
	default:
		return "unknown"
	}
}

// Request is one probe command: opcode, target address and an
// operand whose width depends on the opcode.
type Request struct {
	Op   uint8
	Addr uint32
	Data []byte
}

// Encode serializes the request (before SLIP framing):
// op, 32-bit big-endian address, operand bytes, XOR checksum.
func (r *Request) Encode() []byte {
	out := make([]byte, 0, 6+len(r.Data))
	out = append(out, r.Op)
	out = binary.BigEndian.AppendUint32(out, r.Addr)
	out = append(out, r.Data...)
	return append(out, checksum(out))
}

// Response is the probe's reply: echoed opcode with the high bit set, a
// status byte and the optional read-back payload.
type Response struct {
	Op     uint8
	Status uint8
	Data   []byte
}

// OK reports whether the probe accepted the request.
func (r *Response) OK() bool { return r.Status == statusOK }

// DecodeResponse parses a reply (after SLIP unframing) and verifies its
// checksum and direction bit.
func DecodeResponse(data []byte) (*Response, error) {
	if len(data) < 3 {
		return nil, fmt.Errorf("response too short: %d bytes", len(data))
	}
	body, sum := data[:len(data)-1], data[len(data)-1]
	if got := checksum(body); got != sum {
		return nil, fmt.Errorf("response checksum mismatch: got 0x%02X, want 0x%02X", sum, got)
	}
	if body[0]&respFlag == 0 {
		return nil, fmt.Errorf("not a response: opcode 0x%02X", body[0])
	}
	return &Response{
		Op:     body[0] &^ respFlag,
		Status: body[1],
		Data:   body[2:],
	}, nil
}

func checksum(data []byte) byte {
	sum := byte(checksumSeed)
	for _, b := range data {
		sum ^= b
	}
	return sum
}
