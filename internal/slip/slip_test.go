package slip

import (
	"bytes"
	"testing"
)

func TestFrame(t *testing.T) {
	cases := []struct {
		name    string
		payload []byte
		want    []byte
	}{
		{"empty", []byte{}, []byte{End, End}},
		{"plain", []byte{0x01, 0x02}, []byte{End, 0x01, 0x02, End}},
		{"end escaped", []byte{0xC0}, []byte{End, Esc, EscEnd, End}},
		{"esc escaped", []byte{0xDB}, []byte{End, Esc, EscEsc, End}},
		{"mixed", []byte{0x01, 0xC0, 0xDB, 0x02}, []byte{End, 0x01, Esc, EscEnd, Esc, EscEsc, 0x02, End}},
	}
	for _, tc := range cases {
		if got := Frame(tc.payload); !bytes.Equal(got, tc.want) {
			t.Errorf("%s: Frame(% X) = % X, want % X", tc.name, tc.payload, got, tc.want)
		}
	}
}

func TestUnframe(t *testing.T) {
	cases := []struct {
		name  string
		frame []byte
		want  []byte
	}{
		{"plain", []byte{End, 0x01, 0x02, End}, []byte{0x01, 0x02}},
		{"escaped end", []byte{End, Esc, EscEnd, End}, []byte{0xC0}},
		{"escaped esc", []byte{End, Esc, EscEsc, End}, []byte{0xDB}},
		{"no delimiters", []byte{0x01, 0x02}, []byte{0x01, 0x02}},
		{"extra delimiters", []byte{End, End, 0x05, End, End}, []byte{0x05}},
		{"dangling escape", []byte{End, 0x01, Esc, End}, []byte{0x01}},
		{"only delimiters", []byte{End, End}, nil},
	}
	for _, tc := range cases {
		if got := Unframe(tc.frame); !bytes.Equal(got, tc.want) {
			t.Errorf("%s: Unframe(% X) = % X, want % X", tc.name, tc.frame, got, tc.want)
		}
	}
}

func TestFrameRoundTrip(t *testing.T) {
	payloads := [][]byte{
		{0x00},
		{0xC0, 0xC0, 0xDB, 0xDB},
		{0xDB, 0xDC, 0xDD, 0xC0},
		bytes.Repeat([]byte{0xC0}, 64),
	}
	for _, p := range payloads {
		if got := Unframe(Frame(p)); !bytes.Equal(got, p) {
			t.Errorf("Unframe(Frame(% X)) = % X", p, got)
		}
	}
}

func TestExtract(t *testing.T) {
	frame := Frame([]byte{0x01, 0x02})

	// Incomplete input yields no frame.
	got, rest := Extract(frame[:len(frame)-1])
	if got != nil {
		t.Errorf("Extract(partial) = % X, want nil", got)
	}
	if !bytes.Equal(rest, frame[:len(frame)-1]) {
		t.Errorf("Extract(partial) rest = % X, want input unchanged", rest)
	}

	// A complete frame with trailing bytes leaves the remainder.
	buf := append(append([]byte{}, frame...), 0x99, 0x98)
	got, rest = Extract(buf)
	if !bytes.Equal(got, frame) {
		t.Errorf("Extract(frame+tail) = % X, want % X", got, frame)
	}
	if !bytes.Equal(rest, []byte{0x99, 0x98}) {
		t.Errorf("Extract(frame+tail) rest = % X, want 99 98", rest)
	}

	// Line noise before the first delimiter is skipped.
	buf = append([]byte{0x13, 0x37}, frame...)
	got, _ = Extract(buf)
	if !bytes.Equal(got, frame) {
		t.Errorf("Extract(noise+frame) = % X, want % X", got, frame)
	}

	// No delimiter at all.
	got, rest = Extract([]byte{0x01, 0x02})
	if got != nil || !bytes.Equal(rest, []byte{0x01, 0x02}) {
		t.Errorf("Extract(no delimiter) = % X, % X", got, rest)
	}
}
