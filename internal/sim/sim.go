// Package sim implements a behavioral model of the SH705x flash macro
// behind the hw.Port interface. The model enforces the physical contract
// of the silicon: program pulses can only clear bits, nothing sets a bit
// back to 1 short of a block erase, and verify-mode probe writes never
// disturb the array. Pulse stubbornness and stuck bits are injectable so
// the retry and fatal paths of the engine can be exercised.
package sim

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/ecufix/shflash/internal/device"
)

// defaultLongPulseWeight is the programming energy of a long pulse
// relative to a short one.
const defaultLongPulseWeight = 4

type bitRef struct {
	addr uint32
	bit  uint8
}

// Spy counts the hardware accesses the engine performs, for asserting
// the no-touch and cleanup invariants.
type Spy struct {
	Writes       int // every store through the port, flash and registers alike
	WDTStarts    int
	WDTStops     int
	WDTResetArms int
	SWESets      int
	SWEClears    int
	WaitLoops    uint64
}

// MCU is a simulated target. It implements hw.Port.
type MCU struct {
	prof  *device.Profile
	rom   []byte
	regs  map[uint32]uint8
	latch map[uint32]uint8
	stuck map[uint32]uint8

	progNeed  map[bitRef]int
	progAcc   map[bitRef]int
	eraseNeed map[int]int

	wdtRunning bool
	irqDepth   uint32
	pulseLoops uint32

	// LongPulseWeight is how much programming energy a long pulse
	// deposits compared to a short one.
	LongPulseWeight int

	Spy Spy
}

// New returns a blank (fully erased) simulated target for the profile.
// The FWE pin is modeled asserted, as on a bench harness.
func New(prof *device.Profile) *MCU {
	m := &MCU{
		prof:            prof,
		rom:             make([]byte, prof.MaxROM+1),
		regs:            make(map[uint32]uint8),
		latch:           make(map[uint32]uint8),
		stuck:           make(map[uint32]uint8),
		progNeed:        make(map[bitRef]int),
		progAcc:         make(map[bitRef]int),
		eraseNeed:       make(map[int]int),
		LongPulseWeight: defaultLongPulseWeight,
	}
	for i := range m.rom {
		m.rom[i] = 0xFF
	}
	m.regs[prof.Regs.FLMCR1] = device.BitFWE
	return m
}

// LoadImage returns a target whose flash array is seeded from an image
// file, padded with the erased pattern.
func LoadImage(prof *device.Profile, path string) (*MCU, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if uint32(len(data)) > prof.MaxROM+1 {
		return nil, fmt.Errorf("image is %d bytes, ROM holds %d", len(data), prof.MaxROM+1)
	}
	m := New(prof)
	copy(m.rom, data)
	return m, nil
}

// SaveImage writes the flash array back to an image file.
func (m *MCU) SaveImage(path string) error {
	if err := os.WriteFile(path, m.rom, 0o644); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	return nil
}

func (m *MCU) isFlash(addr uint32) bool { return addr <= m.prof.MaxROM }

func (m *MCU) flmcr(addr uint32) uint8 {
	return m.regs[m.prof.AddrBank(addr).FLMCR]
}

// verifying reports whether the bank controlling addr is in erase- or
// program-verify mode; probe writes in those modes must not latch.
func (m *MCU) verifying(addr uint32) bool {
	return m.flmcr(addr)&(device.BitEV|device.BitPV) != 0
}

func (m *MCU) sweOn(addr uint32) bool {
	swe := m.prof.SWEReg(m.prof.AddrBank(addr))
	return m.regs[swe]&device.BitSWE != 0
}

func (m *MCU) Read8(addr uint32) uint8 {
	if m.isFlash(addr) {
		return m.rom[addr] &^ m.stuck[addr]
	}
	return m.regs[addr]
}

func (m *MCU) Write8(addr uint32, v uint8) {
	m.Spy.Writes++
	if m.isFlash(addr) {
		if m.verifying(addr) {
			return
		}
		if m.sweOn(addr) {
			m.latch[addr] = v
		}
		return
	}
	m.writeReg(addr, v)
}

func (m *MCU) Read32(addr uint32) uint32 {
	if !m.isFlash(addr) {
		return 0
	}
	var b [4]byte
	for i := range b {
		b[i] = m.Read8(addr + uint32(i))
	}
	return binary.BigEndian.Uint32(b[:])
}

func (m *MCU) Write32(addr uint32, v uint32) {
	m.Spy.Writes++
	// The engine only issues 32-bit stores as verify probes; the latch
	// path is byte-wide by hardware contract. Nothing to model either
	// way: probes never disturb the array.
	_ = v
}

func (m *MCU) Write16(addr uint32, v uint16) {
	m.Spy.Writes++
	switch addr {
	case m.prof.Regs.WDTCSR:
		switch v {
		case m.prof.WDT.Stop:
			m.Spy.WDTStops++
			m.wdtRunning = false
		case m.prof.WDT.EraseStart, m.prof.WDT.WriteStart:
			m.Spy.WDTStarts++
			m.wdtRunning = true
		}
	case m.prof.Regs.WDTRSTCSR:
		if v == m.prof.WDT.ResetCSR {
			m.Spy.WDTResetArms++
		}
	}
}

func (m *MCU) DisableInterrupts() uint32 {
	prev := m.irqDepth
	m.irqDepth++
	return prev
}

func (m *MCU) RestoreInterrupts(state uint32) {
	m.irqDepth = state
}

func (m *MCU) Wait(loops uint32) {
	m.Spy.WaitLoops += uint64(loops)
	if m.pulseActive() {
		m.pulseLoops += loops
	}
}

func (m *MCU) pulseActive() bool {
	bits := m.regs[m.prof.Regs.FLMCR1] | m.regs[m.prof.Regs.FLMCR2]
	return bits&(device.BitE|device.BitP) != 0
}

func (m *MCU) writeReg(addr uint32, v uint8) {
	old := m.regs[addr]
	m.regs[addr] = v
	if addr != m.prof.Regs.FLMCR1 && addr != m.prof.Regs.FLMCR2 {
		return
	}
	rising := v &^ old
	falling := old &^ v
	if rising&device.BitSWE != 0 {
		m.Spy.SWESets++
	}
	if falling&device.BitSWE != 0 {
		m.Spy.SWEClears++
	}
	if rising&(device.BitE|device.BitP) != 0 {
		m.pulseLoops = 0
	}
	if falling&device.BitP != 0 {
		m.commitProgram()
	}
	if falling&device.BitE != 0 {
		m.commitErase()
	}
}

// commitProgram applies the page latch to the array when the program
// pulse drops. A latch bit of 0 deposits energy into the cell; the cell
// clears once it has absorbed its required energy. Bits with a latch of
// 1 are left alone regardless of cell state.
func (m *MCU) commitProgram() {
	energy := 1
	if m.pulseLoops > m.prof.Delays.ProgPulseShort {
		energy = m.LongPulseWeight
	}
	for addr, b := range m.latch {
		for bit := uint8(0); bit < 8; bit++ {
			mask := uint8(1) << bit
			if b&mask != 0 || m.rom[addr]&mask == 0 {
				continue
			}
			ref := bitRef{addr, bit}
			m.progAcc[ref] += energy
			need := m.progNeed[ref]
			if need == 0 {
				need = 1
			}
			if m.progAcc[ref] >= need {
				m.rom[addr] &^= mask
				delete(m.progAcc, ref)
			}
		}
	}
	m.latch = make(map[uint32]uint8)
	m.pulseLoops = 0
}

// commitErase blanks every currently selected block when the erase pulse
// drops, honoring injected per-block stubbornness.
func (m *MCU) commitErase() {
	for block := 0; block < m.prof.BlockCount(); block++ {
		if !m.blockSelected(block) {
			continue
		}
		rem, ok := m.eraseNeed[block]
		if !ok {
			rem = 1
		}
		rem--
		if rem > 0 {
			m.eraseNeed[block] = rem
			continue
		}
		delete(m.eraseNeed, block)
		sp, _, _ := m.prof.ResolveBlock(block)
		for a := sp.Start; a < sp.End; a++ {
			m.rom[a] = 0xFF
			delete(m.latch, a)
		}
		for ref := range m.progAcc {
			if ref.addr >= sp.Start && ref.addr < sp.End {
				delete(m.progAcc, ref)
			}
		}
	}
	m.pulseLoops = 0
}

func (m *MCU) blockSelected(block int) bool {
	for _, w := range m.prof.BlockEnable(block) {
		if m.regs[w.Addr]&w.Val != w.Val {
			return false
		}
	}
	return true
}

// Test and bench hooks.

// Poke seeds the flash array directly, bypassing the programming model.
func (m *MCU) Poke(addr uint32, data []byte) {
	copy(m.rom[addr:], data)
}

// Peek reads the flash array directly.
func (m *MCU) Peek(addr uint32, n int) []byte {
	out := make([]byte, n)
	copy(out, m.rom[addr:])
	return out
}

// SetReg forces a control register value without going through the
// write model or the spy.
func (m *MCU) SetReg(addr uint32, v uint8) {
	m.regs[addr] = v
}

// Reg returns the current value of a control register.
func (m *MCU) Reg(addr uint32) uint8 { return m.regs[addr] }

// StickLow forces the masked bits at addr to read as 0 even when the
// cell holds 1, emulating the fatal silicon failure mode.
func (m *MCU) StickLow(addr uint32, mask uint8) {
	m.stuck[addr] |= mask
}

// RequireProgramPulses makes one bit absorb n units of pulse energy
// before it programs. A long pulse deposits LongPulseWeight units.
func (m *MCU) RequireProgramPulses(addr uint32, bit uint8, n int) {
	m.progNeed[bitRef{addr, bit}] = n
}

// RequireErasePulses makes a block need n erase pulses before it blanks.
func (m *MCU) RequireErasePulses(block, n int) {
	m.eraseNeed[block] = n
}

// WDTRunning reports whether the watchdog is currently counting.
func (m *MCU) WDTRunning() bool { return m.wdtRunning }

// IRQDepth returns the current interrupt mask nesting depth; zero means
// interrupts are enabled.
func (m *MCU) IRQDepth() uint32 { return m.irqDepth }

// ResetSpy clears the access counters.
func (m *MCU) ResetSpy() { m.Spy = Spy{} }
