// Package slip implements the SLIP framing used on the bench-probe
// serial link.
package slip

const (
	End    = 0xC0
	Esc    = 0xDB
	EscEnd = 0xDC
	EscEsc = 0xDD
)

// Frame wraps a payload in SLIP framing: END delimiters on both sides,
// END/ESC bytes in the payload escaped.
func Frame(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+8)
	out = append(out, End)
	for _, b := range payload {
		switch b {
		case End:
			out = append(out, Esc, EscEnd)
		case Esc:
			out = append(out, Esc, EscEsc)
		default:
			out = append(out, b)
		}
	}
	return append(out, End)
}

// Unframe recovers the payload from one frame, dropping the delimiters
// and unescaping. A dangling trailing escape is discarded.
func Unframe(frame []byte) []byte {
	lo, hi := 0, len(frame)
	for lo < hi && frame[lo] == End {
		lo++
	}
	for hi > lo && frame[hi-1] == End {
		hi--
	}
	if lo >= hi {
		return nil
	}

	out := make([]byte, 0, hi-lo)
	esc := false
	for _, b := range frame[lo:hi] {
		switch {
		case esc:
			switch b {
			case EscEnd:
				out = append(out, End)
			case EscEsc:
				out = append(out, Esc)
			default:
				out = append(out, b)
			}
			esc = false
		case b == Esc:
			esc = true
		default:
			out = append(out, b)
		}
	}
	return out
}

// Extract scans a receive buffer for one complete frame. It returns the
// frame including its delimiters and the unconsumed remainder; a nil
// frame means more bytes are needed.
func Extract(buf []byte) (frame, rest []byte) {
	start := -1
	for i, b := range buf {
		if b == End {
			start = i
			break
		}
	}
	if start == -1 {
		return nil, buf
	}

	body := false
	for i := start; i < len(buf); i++ {
		switch {
		case buf[i] != End:
			body = true
		case body:
			return buf[start : i+1], buf[i+1:]
		}
	}
	return nil, buf
}
