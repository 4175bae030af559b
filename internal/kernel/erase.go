package kernel

import (
	"github.com/ecufix/shflash/internal/device"
	"github.com/ecufix/shflash/internal/hw"
	"github.com/ecufix/shflash/internal/status"
)

// eraseProbe is the all-ones pattern written before each erase-verify
// read-back; an erased word must read it back exactly.
const eraseProbe = 0xFFFFFFFF

// preEraseBlankCheck would skip the erase when the block already
// verifies blank. The Renesas FDT sample does this, the Nissan kernel
// does not; until the tradeoff is settled on real silicon it stays off.
const preEraseBlankCheck = false

// EraseBlock erases one block and verifies it reads fully blank,
// retrying up to the profile's erase budget.
//
// While the protection gate is disarmed the call validates the index and
// returns success without any hardware access, so upstream sequencing
// can be exercised harmlessly.
func (k *Kernel) EraseBlock(block int) error {
	span, bank, err := k.prof.ResolveBlock(block)
	if err != nil {
		return err
	}
	if !k.armed {
		return nil
	}
	if !k.fweCheck() {
		return status.DeviceError
	}

	flmcr := hw.R8(k.port, bank.FLMCR)
	swe := k.sweReg(bank)
	k.sweSet(swe)
	defer k.sweClear(swe)
	k.wdtPrepare()

	if preEraseBlankCheck && k.eraseVerify(flmcr, span) {
		return nil
	}

	for n := 0; n < k.prof.MaxEraseRetries; n++ {
		k.erasePulse(flmcr, block)
		if k.eraseVerify(flmcr, span) {
			return nil
		}
	}
	return status.EraseVerifyFailed
}

// erasePulse selects exactly one block and applies a single guarded
// erase pulse. The enable registers are cleared first: the hardware
// forbids more than one enable bit during a pulse.
func (k *Kernel) erasePulse(flmcr hw.Reg8, block int) {
	d := &k.prof.Delays
	k.writeRegs(k.prof.BlockDisable())
	k.writeRegs(k.prof.BlockEnable(block))

	k.masked(func() {
		k.guarded(k.prof.WDT.EraseStart, func() {
			flmcr.Set(device.BitESU)
			k.port.Wait(d.EraseSetup)
			flmcr.Set(device.BitE)
			k.port.Wait(d.ErasePulse)
			flmcr.Clear(device.BitE)
			k.port.Wait(d.EraseClear)
			flmcr.Clear(device.BitESU)
			k.port.Wait(d.EraseSetupClear)
		})
	})

	k.writeRegs(k.prof.BlockDisable())
}

// eraseVerify scans the whole block in erase-verify mode: every 32-bit
// word gets an all-ones probe write and must read it back. EV is
// dropped on both the clean and the mismatch path.
func (k *Kernel) eraseVerify(flmcr hw.Reg8, span device.Span) bool {
	d := &k.prof.Delays
	ok := true
	for addr := span.Start; addr < span.End; addr += 4 {
		flmcr.Set(device.BitEV)
		k.port.Wait(d.EraseVerifySetup)
		k.port.Write32(addr, eraseProbe)
		k.port.Wait(d.EraseVerifyRead)
		if k.port.Read32(addr) != eraseProbe {
			ok = false
			break
		}
	}
	flmcr.Clear(device.BitEV)
	k.port.Wait(d.EraseVerifyClear)
	return ok
}
