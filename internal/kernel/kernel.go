// Package kernel implements the in-field reflashing engine: the erase
// and write state machines driving the SH705x flash macro through its
// manufacturer-specified pulse sequences, with bounded retry and full
// verification of every operation.
//
// The engine is strictly sequential. Every call blocks the caller for
// the duration of its busy-wait delays, and callers must never overlap
// invocations: the surrounding dispatcher, not this package, serializes
// access.
package kernel

import (
	"github.com/ecufix/shflash/internal/device"
	"github.com/ecufix/shflash/internal/hw"
	"github.com/ecufix/shflash/internal/status"
)

// ProgressCallback is called after each page is written.
type ProgressCallback func(pagesDone, pagesTotal int)

// Kernel drives one flash macro described by a device profile. The
// protection gate starts disarmed; until Unprotect is called, erase and
// write requests validate their arguments but leave the hardware
// untouched.
type Kernel struct {
	port     hw.Port
	prof     *device.Profile
	armed    bool
	progress ProgressCallback
}

// New binds the engine to a port and profile. The gate starts disarmed.
func New(port hw.Port, prof *device.Profile) *Kernel {
	return &Kernel{port: port, prof: prof}
}

// Profile returns the device profile the engine was built with.
func (k *Kernel) Profile() *device.Profile { return k.prof }

// SetProgressCallback sets the per-page progress callback used by
// WriteRange.
func (k *Kernel) SetProgressCallback(cb ProgressCallback) {
	k.progress = cb
}

// Init checks the write-enable precondition and leaves the protection
// gate disarmed. It never touches flash contents.
func (k *Kernel) Init() error {
	k.armed = false
	if !k.fweCheck() {
		return status.DeviceError
	}
	return nil
}

// Unprotect arms the protection gate. The transition is one-way: the
// gate stays armed until the kernel is reinitialized.
func (k *Kernel) Unprotect() { k.armed = true }

// Armed reports the protection gate state.
func (k *Kernel) Armed() bool { return k.armed }

// fweCheck verifies that the FWE pin is asserted and no flash error is
// latched. Required before any destructive sequence.
func (k *Kernel) fweCheck() bool {
	if !hw.R8(k.port, k.prof.Regs.FLMCR1).Bit(device.BitFWE) {
		return false
	}
	if hw.R8(k.port, k.prof.Regs.FLMCR2).Bit(device.BitFLER) {
		return false
	}
	return true
}

// sweReg resolves the register carrying SWE for a bank.
func (k *Kernel) sweReg(b device.Bank) hw.Reg8 {
	return hw.R8(k.port, k.prof.SWEReg(b))
}

// sweSet asserts software write enable and holds its setup time.
func (k *Kernel) sweSet(swe hw.Reg8) {
	swe.Set(device.BitSWE)
	k.port.Wait(k.prof.Delays.SWESetup)
}

// sweClear deasserts software write enable and holds its hold time.
// Every erase and write path runs this on exit, success or not.
func (k *Kernel) sweClear(swe hw.Reg8) {
	swe.Clear(device.BitSWE)
	k.port.Wait(k.prof.Delays.SWEClear)
}

func (k *Kernel) writeRegs(ws []device.RegWrite) {
	for _, w := range ws {
		k.port.Write8(w.Addr, w.Val)
	}
}
