package probe

import (
	"bytes"
	"testing"
)

func TestRequest_Encode(t *testing.T) {
	req := &Request{Op: OpWrite8, Addr: 0x0000FF00, Data: []byte{0xAB}}
	got := req.Encode()
	want := []byte{0x03, 0x00, 0x00, 0xFF, 0x00, 0xAB, 0xF2}
	if !bytes.Equal(got, want) {
		t.Errorf("Encode() = % X, want % X", got, want)
	}
}

func TestRequest_Encode_NoData(t *testing.T) {
	req := &Request{Op: OpPing}
	got := req.Encode()
	if len(got) != 6 {
		t.Fatalf("Encode() = %d bytes, want 6", len(got))
	}
	if got[0] != OpPing {
		t.Errorf("Encode()[0] = 0x%02X, want 0x%02X", got[0], OpPing)
	}
	if got[5] != checksum(got[:5]) {
		t.Errorf("Encode() checksum = 0x%02X, want 0x%02X", got[5], checksum(got[:5]))
	}
}

func TestDecodeResponse(t *testing.T) {
	body := []byte{OpRead8 | respFlag, statusOK, 0x5A}
	resp, err := DecodeResponse(append(body, checksum(body)))
	if err != nil {
		t.Fatalf("DecodeResponse() = %v, want nil", err)
	}
	if resp.Op != OpRead8 {
		t.Errorf("Op = 0x%02X, want 0x%02X", resp.Op, OpRead8)
	}
	if !resp.OK() {
		t.Errorf("OK() = false, want true")
	}
	if !bytes.Equal(resp.Data, []byte{0x5A}) {
		t.Errorf("Data = % X, want 5A", resp.Data)
	}
}

func TestDecodeResponse_Errors(t *testing.T) {
	badSum := []byte{OpRead8 | respFlag, statusOK, 0x5A}
	badSum = append(badSum, checksum(badSum)^0xFF)

	notResp := []byte{OpRead8, statusOK}
	notResp = append(notResp, checksum(notResp))

	cases := []struct {
		name string
		data []byte
	}{
		{"too short", []byte{0x82, 0x00}},
		{"empty", nil},
		{"bad checksum", badSum},
		{"direction bit missing", notResp},
	}
	for _, tc := range cases {
		if _, err := DecodeResponse(tc.data); err == nil {
			t.Errorf("%s: DecodeResponse(% X) = nil error, want failure", tc.name, tc.data)
		}
	}
}

func TestDecodeResponse_Status(t *testing.T) {
	body := []byte{OpWrite8 | respFlag, 0x01}
	resp, err := DecodeResponse(append(body, checksum(body)))
	if err != nil {
		t.Fatalf("DecodeResponse() = %v", err)
	}
	if resp.OK() {
		t.Errorf("OK() = true for status 0x01, want false")
	}
}

func TestDeviceName(t *testing.T) {
	cases := []struct {
		code uint8
		want string
	}{
		{DeviceSH7055, "sh7055"},
		{DeviceSH7051, "sh7051"},
		{0x7F, "unknown"},
	}
	for _, tc := range cases {
		if got := DeviceName(tc.code); got != tc.want {
			t.Errorf("DeviceName(0x%02X) = %q, want %q", tc.code, got, tc.want)
		}
	}
}
