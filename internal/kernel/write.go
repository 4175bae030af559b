package kernel

import (
	"encoding/binary"

	"github.com/ecufix/shflash/internal/device"
	"github.com/ecufix/shflash/internal/hw"
	"github.com/ecufix/shflash/internal/status"
)

// writeProbe is the all-ones dummy write preceding each program-verify
// read-back.
const writeProbe = 0xFFFFFFFF

// WriteRange programs src at dest, page by page. dest must be
// page-aligned and len(src) a page multiple; the target region must
// already be erased. Argument validation runs regardless of the
// protection gate, but a disarmed session performs no hardware access
// and reports success.
func (k *Kernel) WriteRange(dest uint32, src []byte) error {
	page := k.prof.PageSize
	if dest > k.prof.MaxROM {
		return status.OutOfBounds
	}
	if dest%page != 0 {
		return status.Misaligned
	}
	if uint32(len(src))%page != 0 {
		return status.BadLength
	}
	if !k.armed {
		return nil
	}

	total := len(src) / int(page)
	for p := 0; p < total; p++ {
		off := p * int(page)
		if err := k.writePage(dest+uint32(off), src[off:off+int(page)]); err != nil {
			return err
		}
		if k.progress != nil {
			k.progress(p+1, total)
		}
	}
	return nil
}

// writePage runs the program/verify/reprogram algorithm for one page.
//
// Each attempt latches the reprogram buffer, applies one guarded pulse
// (short for the first OverwriteCount attempts, long after), then scans
// the page in program-verify mode. A read-back showing 0 where the
// source wants 1 is a silicon contract violation and aborts immediately;
// any other mismatch feeds the reprogram formula src | ^readback and
// costs another attempt. Overwrite-capable parts additionally strengthen
// freshly programmed bits with one short unverified pulse during the
// early attempts.
func (k *Kernel) writePage(dest uint32, src []byte) error {
	d := &k.prof.Delays
	bank := k.prof.AddrBank(dest)
	if !k.fweCheck() {
		return status.DeviceError
	}

	reprog := make([]byte, len(src))
	copy(reprog, src)
	var overwrite []byte
	if k.prof.OverwritePass {
		overwrite = make([]byte, len(src))
	}

	flmcr := hw.R8(k.port, bank.FLMCR)
	swe := k.sweReg(bank)
	k.sweSet(swe)
	defer k.sweClear(swe)
	k.wdtPrepare()

	for n := 1; n <= k.prof.MaxWriteRetries; n++ {
		early := n <= k.prof.OverwriteCount

		k.latchPage(dest, reprog)
		tsp := d.ProgPulseLong
		if early {
			tsp = d.ProgPulseShort
		}
		k.programPulse(flmcr, tsp)

		mismatch := false
		fatal := false
		flmcr.Set(device.BitPV)
		k.port.Wait(d.ProgVerifySetup)
		for off := 0; off < len(src); off += 4 {
			addr := dest + uint32(off)
			k.port.Write32(addr, writeProbe)
			k.port.Wait(d.ProgVerifyRead)
			readback := k.port.Read32(addr)
			want := binary.BigEndian.Uint32(src[off:])
			latched := binary.BigEndian.Uint32(reprog[off:])

			if readback != want {
				mismatch = true
			}
			if k.prof.OverwritePass && early {
				binary.BigEndian.PutUint32(overwrite[off:], readback|latched)
			}
			if want&^readback != 0 {
				// Wanted 1 bits came back 0. No pulse can set a bit;
				// retrying would only deepen the damage.
				fatal = true
				break
			}
			binary.BigEndian.PutUint32(reprog[off:], want|^readback)
		}
		flmcr.Clear(device.BitPV)
		k.port.Wait(d.ProgVerifyClear)

		if fatal {
			return status.ProgramVerifyFatal
		}

		if k.prof.OverwritePass && early {
			k.latchPage(dest, overwrite)
			k.programPulse(flmcr, d.ProgPulseOverwrite)
		}

		if !mismatch {
			return nil
		}
	}
	return status.WriteMaxRetries
}

// latchPage copies a page buffer into the flash write latch. The latch
// only accepts byte transfers.
func (k *Kernel) latchPage(dest uint32, data []byte) {
	for i, b := range data {
		k.port.Write8(dest+uint32(i), b)
	}
}

// programPulse applies one guarded program pulse with the given width,
// interrupts masked across the whole setup/pulse/hold sequence.
func (k *Kernel) programPulse(flmcr hw.Reg8, tsp uint32) {
	d := &k.prof.Delays
	k.masked(func() {
		k.guarded(k.prof.WDT.WriteStart, func() {
			flmcr.Set(device.BitPSU)
			k.port.Wait(d.ProgSetup)
			flmcr.Set(device.BitP)
			k.port.Wait(tsp)
			flmcr.Clear(device.BitP)
			k.port.Wait(d.ProgClear)
			flmcr.Clear(device.BitPSU)
			k.port.Wait(d.ProgSetupClear)
		})
	})
}
