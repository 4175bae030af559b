// Package hw defines the access capability the engine runs against: the
// memory bus and the few peripheral primitives the flash algorithm
// consumes. On target this is the real bus; on the bench it is a serial
// probe or the simulator.
package hw

// Port is the full hardware surface of the reflashing engine. All
// methods are synchronous; none may be called concurrently.
type Port interface {
	// Byte and word access to the flash array and byte-wide control
	// registers. The flash latch only accepts byte transfers; the
	// verify probes are 32-bit.
	Read8(addr uint32) uint8
	Write8(addr uint32, v uint8)
	Read32(addr uint32) uint32
	Write32(addr uint32, v uint32)

	// Write16 carries the password-protected watchdog control words.
	Write16(addr uint32, v uint16)

	// DisableInterrupts masks all interrupts and returns the previous
	// mask state for RestoreInterrupts.
	DisableInterrupts() uint32
	RestoreInterrupts(state uint32)

	// Wait spins for n calibrated busy-wait loops. It must not yield:
	// the pulse timing depends on the CPU stalling here.
	Wait(loops uint32)
}

// Reg8 is a byte-wide control register bound to a port. Control
// registers are only ever handed around as capabilities, never as bare
// addresses.
type Reg8 struct {
	p    Port
	addr uint32
}

// R8 binds a register address to a port.
func R8(p Port, addr uint32) Reg8 { return Reg8{p: p, addr: addr} }

func (r Reg8) Get() uint8  { return r.p.Read8(r.addr) }
func (r Reg8) Put(v uint8) { r.p.Write8(r.addr, v) }

// Set asserts the masked bits, leaving the rest untouched.
func (r Reg8) Set(mask uint8) { r.Put(r.Get() | mask) }

// Clear deasserts the masked bits.
func (r Reg8) Clear(mask uint8) { r.Put(r.Get() &^ mask) }

// Bit reports whether any masked bit is asserted.
func (r Reg8) Bit(mask uint8) bool { return r.Get()&mask != 0 }
