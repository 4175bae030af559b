// Package status defines the fixed result taxonomy of the reflashing
// engine. The values live in the same numbering space as the kernel's
// negative response codes, so the diagnostic layer upstream can forward
// them to the field tool without reinterpretation.
package status

import "fmt"

// Code is a kernel status code. A successful operation returns a nil
// error, never a Code.
type Code uint8

const (
	// DeviceError: the flash write-enable precondition does not hold
	// (FWE deasserted or a latched flash error is pending).
	DeviceError Code = 0x80

	// BadBlock: erase block index out of range.
	BadBlock Code = 0x84
	// EraseVerifyFailed: no erase attempt left the block reading blank
	// within the retry budget.
	EraseVerifyFailed Code = 0x85

	// OutOfBounds: write destination beyond the ROM.
	OutOfBounds Code = 0x88
	// Misaligned: write destination not on a page boundary.
	Misaligned Code = 0x89
	// BadLength: write length not a multiple of the page size.
	BadLength Code = 0x8A
	// ProgramVerifyFatal: a bit that should read 1 came back 0. The
	// silicon violated its programming contract; retrying cannot help.
	ProgramVerifyFatal Code = 0x8B
	// WriteMaxRetries: the page never verified clean within the retry
	// budget.
	WriteMaxRetries Code = 0x8C
)

// Message returns a human-readable description for a status code.
func Message(c Code) string {
	switch c {
	case DeviceError:
		return "flash write-enable precondition failed"
	case BadBlock:
		return "block index out of range"
	case EraseVerifyFailed:
		return "erase verify failed after max retries"
	case OutOfBounds:
		return "destination out of ROM bounds"
	case Misaligned:
		return "destination not page-aligned"
	case BadLength:
		return "length not a multiple of the page size"
	case ProgramVerifyFatal:
		return "program verify fatal: unsettable bit detected"
	case WriteMaxRetries:
		return "write verify failed after max retries"
	default:
		return "unknown status code"
	}
}

func (c Code) Error() string {
	return fmt.Sprintf("flash error 0x%02X: %s", uint8(c), Message(c))
}
