package sim

import (
	"bytes"
	"testing"

	"github.com/ecufix/shflash/internal/device"
)

// pulseProgram drives the raw register sequence for one program pulse on
// bank 1: latch the bytes, toggle P, let the model commit.
func pulseProgram(m *MCU, prof *device.Profile, addr uint32, data []byte) {
	r := prof.Regs.FLMCR1
	m.Write8(r, m.Read8(r)|device.BitSWE)
	for i, b := range data {
		m.Write8(addr+uint32(i), b)
	}
	m.Write8(r, m.Read8(r)|device.BitP)
	m.Write8(r, m.Read8(r)&^device.BitP)
	m.Write8(r, m.Read8(r)&^device.BitSWE)
}

func TestProgram_OnlyClearsBits(t *testing.T) {
	prof := device.SH7055()
	m := New(prof)

	pulseProgram(m, prof, 0x100, []byte{0x0F})
	if got := m.Peek(0x100, 1); got[0] != 0x0F {
		t.Fatalf("programmed cell = 0x%02X, want 0x0F", got[0])
	}

	// A second pulse with 1 bits in the latch must not set anything back.
	pulseProgram(m, prof, 0x100, []byte{0xF0})
	if got := m.Peek(0x100, 1); got[0] != 0x00 {
		t.Errorf("cell after overlapping pulses = 0x%02X, want 0x00", got[0])
	}
}

func TestLatch_RequiresSWE(t *testing.T) {
	prof := device.SH7055()
	m := New(prof)
	r := prof.Regs.FLMCR1

	// Flash store without SWE: discarded, not latched.
	m.Write8(0x200, 0x00)
	m.Write8(r, m.Read8(r)|device.BitSWE)
	m.Write8(r, m.Read8(r)|device.BitP)
	m.Write8(r, m.Read8(r)&^device.BitP)
	if got := m.Peek(0x200, 1); got[0] != 0xFF {
		t.Errorf("cell programmed from a pre-SWE store: 0x%02X", got[0])
	}
}

func TestVerifyMode_IgnoresProbeWrites(t *testing.T) {
	prof := device.SH7055()
	m := New(prof)
	r := prof.Regs.FLMCR1

	m.Write8(r, m.Read8(r)|device.BitSWE|device.BitPV)
	m.Write8(0x300, 0x00) // probe write in verify mode, must not latch
	m.Write8(r, m.Read8(r)&^device.BitPV)
	m.Write8(r, m.Read8(r)|device.BitP)
	m.Write8(r, m.Read8(r)&^device.BitP)
	if got := m.Peek(0x300, 1); got[0] != 0xFF {
		t.Errorf("verify-mode probe write reached the array: 0x%02X", got[0])
	}
}

func TestErase_SelectedBlockOnly(t *testing.T) {
	prof := device.SH7055()
	m := New(prof)
	r := prof.Regs.FLMCR1

	m.Poke(0x1000, []byte{0x00}) // block 1
	m.Poke(0x2000, []byte{0x00}) // block 2

	m.Write8(r, m.Read8(r)|device.BitSWE)
	for _, w := range prof.BlockEnable(1) {
		m.Write8(w.Addr, w.Val)
	}
	m.Write8(r, m.Read8(r)|device.BitE)
	m.Write8(r, m.Read8(r)&^device.BitE)
	for _, w := range prof.BlockDisable() {
		m.Write8(w.Addr, w.Val)
	}
	m.Write8(r, m.Read8(r)&^device.BitSWE)

	if got := m.Peek(0x1000, 1); got[0] != 0xFF {
		t.Errorf("selected block not erased: 0x%02X", got[0])
	}
	if got := m.Peek(0x2000, 1); got[0] != 0x00 {
		t.Errorf("unselected block erased: 0x%02X", got[0])
	}
}

func TestStickLow(t *testing.T) {
	prof := device.SH7055()
	m := New(prof)

	m.StickLow(0x10, 0x81)
	if got := m.Read8(0x10); got != 0x7E {
		t.Errorf("Read8(stuck cell) = 0x%02X, want 0x7E", got)
	}
	// The underlying cell is untouched.
	if got := m.Peek(0x10, 1); got[0] != 0xFF {
		t.Errorf("Peek(stuck cell) = 0x%02X, want 0xFF", got[0])
	}
}

func TestLongPulse_DepositsMoreEnergy(t *testing.T) {
	prof := device.SH7055()
	m := New(prof)
	m.RequireProgramPulses(0x40, 0, 4)
	r := prof.Regs.FLMCR1

	m.Write8(r, m.Read8(r)|device.BitSWE)
	m.Write8(0x40, 0xFE)
	m.Write8(r, m.Read8(r)|device.BitP)
	m.Wait(prof.Delays.ProgPulseLong) // held past the short width
	m.Write8(r, m.Read8(r)&^device.BitP)
	m.Write8(r, m.Read8(r)&^device.BitSWE)

	if got := m.Peek(0x40, 1); got[0] != 0xFE {
		t.Errorf("long pulse on 4-unit bit left 0x%02X, want 0xFE", got[0])
	}
}

func TestImageRoundTrip(t *testing.T) {
	prof := device.SH7051()
	m := New(prof)
	m.Poke(0, []byte{0x11, 0x22, 0x33})

	path := t.TempDir() + "/rom.bin"
	if err := m.SaveImage(path); err != nil {
		t.Fatalf("SaveImage() = %v", err)
	}
	m2, err := LoadImage(prof, path)
	if err != nil {
		t.Fatalf("LoadImage() = %v", err)
	}
	if got := m2.Peek(0, 3); !bytes.Equal(got, []byte{0x11, 0x22, 0x33}) {
		t.Errorf("image round trip = % X, want 11 22 33", got)
	}
}
