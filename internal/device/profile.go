// Package device describes the flash macro of a supported target: block
// map, control register layout, watchdog control words and the timing
// constants of the erase/program pulse sequences. A Profile is chosen
// once at startup and treated as immutable afterwards.
package device

import (
	"fmt"

	"github.com/ecufix/shflash/internal/status"
)

// FLMCR bit assignments, identical across the supported targets.
const (
	BitFWE  uint8 = 0x80 // flash write enable (read-only, pin-driven)
	BitFLER uint8 = 0x80 // latched flash error, lives in FLMCR2
	BitSWE  uint8 = 0x40 // software write enable
	BitESU  uint8 = 0x20 // erase setup
	BitPSU  uint8 = 0x10 // program setup
	BitEV   uint8 = 0x08 // erase verify mode
	BitPV   uint8 = 0x04 // program verify mode
	BitE    uint8 = 0x02 // erase pulse
	BitP    uint8 = 0x01 // program pulse
)

// waitLoopCycles is the cost of one calibrated busy-wait loop iteration
// in CPU clock cycles.
const waitLoopCycles = 4

// Loops converts a microsecond delay into busy-wait loop iterations for
// the given CPU clock. The +1 keeps the result a floor, never less than
// the requested time.
func Loops(us, clockMHz uint32) uint32 {
	return us*clockMHz/waitLoopCycles + 1
}

// Delays holds every pulse-phase delay of a profile, pre-converted to
// busy-wait loop counts so the hot path does no arithmetic.
type Delays struct {
	SWESetup uint32 // after setting SWE
	SWEClear uint32 // after clearing SWE

	EraseSetup      uint32 // ESU asserted before the pulse
	ErasePulse      uint32 // E held
	EraseClear      uint32 // after dropping E
	EraseSetupClear uint32 // after dropping ESU

	EraseVerifySetup uint32 // after setting EV
	EraseVerifyRead  uint32 // between probe write and read-back
	EraseVerifyClear uint32 // after clearing EV

	ProgSetup          uint32 // PSU asserted before the pulse
	ProgPulseShort     uint32 // P held, first overwriteCount attempts
	ProgPulseLong      uint32 // P held, later attempts
	ProgPulseOverwrite uint32 // P held, supplemental overwrite pass
	ProgClear          uint32 // after dropping P
	ProgSetupClear     uint32 // after dropping PSU

	ProgVerifySetup uint32 // after setting PV
	ProgVerifyRead  uint32 // between probe write and read-back
	ProgVerifyClear uint32 // after clearing PV
}

// RegisterMap gives the addresses of the flash control registers and the
// watchdog.
type RegisterMap struct {
	FLMCR1 uint32
	FLMCR2 uint32
	EBR1   uint32
	EBR2   uint32

	WDTCSR    uint32 // watchdog timer control/status, 16-bit writes
	WDTRSTCSR uint32 // watchdog reset control/status, 16-bit writes
}

// WDTWords are the password-protected 16-bit control words driving the
// runaway watchdog around a pulse.
type WDTWords struct {
	Stop       uint16 // stop counting; also clears TCNT
	EraseStart uint16 // start with the slow divisor, for erase runaway
	WriteStart uint16 // start with the fast divisor, for write runaway
	ResetCSR   uint16 // configure reset-on-overflow
}

// Bank identifies one of the two parallel control register instances of
// the flash macro.
type Bank struct {
	FLMCR uint32
	EBR   uint32
}

// Span is a half-open byte range of the flash array.
type Span struct {
	Start uint32
	End   uint32 // exclusive
}

// ebrLayout selects how a block index maps onto the block-enable
// registers.
type ebrLayout int

const (
	// ebrPerBank: each bank owns an 8-bit EBR; block i sets bit i%8 in
	// its bank's register.
	ebrPerBank ebrLayout = iota
	// ebrSplit: one 12-bit selector spread over EBR1 (blocks 0..3, low
	// nibble) and EBR2 (blocks 4..11), written regardless of bank.
	ebrSplit
)

// RegWrite is one byte store to a control register.
type RegWrite struct {
	Addr uint32
	Val  uint8
}

// Profile is the complete device description the engine is parameterized
// with.
type Profile struct {
	Name     string
	ClockMHz uint32

	MaxROM   uint32 // highest valid flash address
	PageSize uint32 // program page, bytes

	MaxEraseRetries int
	MaxWriteRetries int
	// OverwriteCount is the number of leading write attempts that use
	// the short program pulse; on overwrite-capable parts those attempts
	// are also followed by the supplemental overwrite pulse.
	OverwriteCount int
	// OverwritePass is set on parts whose algorithm includes the
	// additional-programming pulse.
	OverwritePass bool
	// SWESharedBank1 is set on parts that gate SWE through FLMCR1 for
	// both banks.
	SWESharedBank1 bool

	// BankSplit is the first address controlled by the second register
	// bank. Blocks are homogeneous: a block never straddles the split.
	BankSplit uint32

	// Blocks holds the N+1 ascending block boundaries; the last entry is
	// the exclusive upper bound of the array, not a block.
	Blocks []uint32

	Regs   RegisterMap
	WDT    WDTWords
	Delays Delays

	ebr ebrLayout
}

// BlockCount returns the number of erasable blocks.
func (p *Profile) BlockCount() int { return len(p.Blocks) - 1 }

// ResolveBlock maps a block index onto its address span and control
// bank.
func (p *Profile) ResolveBlock(block int) (Span, Bank, error) {
	if block < 0 || block >= p.BlockCount() {
		return Span{}, Bank{}, status.BadBlock
	}
	sp := Span{Start: p.Blocks[block], End: p.Blocks[block+1]}
	return sp, p.AddrBank(sp.Start), nil
}

// AddrBank selects the control bank for an address. The macro splits
// control of the low and high regions across two register instances;
// driving the wrong one silently pulses the wrong half of the array.
func (p *Profile) AddrBank(addr uint32) Bank {
	if addr < p.BankSplit {
		return Bank{FLMCR: p.Regs.FLMCR1, EBR: p.Regs.EBR1}
	}
	return Bank{FLMCR: p.Regs.FLMCR2, EBR: p.Regs.EBR2}
}

// SWEReg returns the register carrying the SWE bit for operations on the
// given bank.
func (p *Profile) SWEReg(b Bank) uint32 {
	if p.SWESharedBank1 {
		return p.Regs.FLMCR1
	}
	return b.FLMCR
}

// BlockEnable returns the stores that select exactly the given block for
// erase. The hardware forbids more than one enable bit at a time, so
// callers must issue BlockDisable first.
func (p *Profile) BlockEnable(block int) []RegWrite {
	switch p.ebr {
	case ebrSplit:
		sel := uint16(1) << uint(block)
		var w []RegWrite
		if lo := uint8(sel & 0x0F); lo != 0 {
			w = append(w, RegWrite{p.Regs.EBR1, lo})
		}
		if hi := uint8(sel >> 4); hi != 0 {
			w = append(w, RegWrite{p.Regs.EBR2, hi})
		}
		return w
	default: // ebrPerBank
		b := p.AddrBank(p.Blocks[block])
		return []RegWrite{{b.EBR, 1 << uint(block%8)}}
	}
}

// BlockDisable returns the stores that deselect every block.
func (p *Profile) BlockDisable() []RegWrite {
	return []RegWrite{{p.Regs.EBR2, 0}, {p.Regs.EBR1, 0}}
}

// Validate checks the structural invariants of a profile. Built-in
// profiles are valid by construction; this guards hand-built ones.
func (p *Profile) Validate() error {
	if len(p.Blocks) < 2 {
		return fmt.Errorf("profile %s: block table needs at least one block", p.Name)
	}
	for i := 1; i < len(p.Blocks); i++ {
		if p.Blocks[i] <= p.Blocks[i-1] {
			return fmt.Errorf("profile %s: block table not strictly increasing at %d", p.Name, i)
		}
	}
	if p.Blocks[len(p.Blocks)-1] != p.MaxROM+1 {
		return fmt.Errorf("profile %s: block table does not delimit the ROM", p.Name)
	}
	if p.PageSize == 0 || p.MaxROM%p.PageSize != p.PageSize-1 {
		return fmt.Errorf("profile %s: ROM size not a multiple of the page size", p.Name)
	}
	for i := 0; i < p.BlockCount(); i++ {
		if p.Blocks[i] < p.BankSplit && p.Blocks[i+1] > p.BankSplit {
			return fmt.Errorf("profile %s: block %d straddles the bank split", p.Name, i)
		}
	}
	return nil
}

// ByName returns a built-in profile.
func ByName(name string) (*Profile, error) {
	switch name {
	case "sh7055":
		return SH7055(), nil
	case "sh7051":
		return SH7051(), nil
	default:
		return nil, fmt.Errorf("unknown device %q (want sh7055 or sh7051)", name)
	}
}
