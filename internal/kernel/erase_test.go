package kernel

import (
	"bytes"
	"testing"

	"github.com/ecufix/shflash/internal/device"
	"github.com/ecufix/shflash/internal/sim"
	"github.com/ecufix/shflash/internal/status"
)

func TestEraseBlock_BadBlock(t *testing.T) {
	prof := device.SH7055()
	k, mcu := newTarget(t, prof)

	for _, block := range []int{-1, prof.BlockCount(), 99} {
		if err := k.EraseBlock(block); err != status.BadBlock {
			t.Errorf("EraseBlock(%d) = %v, want %v", block, err, status.BadBlock)
		}
	}
	if mcu.Spy.Writes != 0 {
		t.Errorf("%d hardware writes for invalid block indexes, want 0", mcu.Spy.Writes)
	}
}

func TestEraseBlock_Disarmed(t *testing.T) {
	prof := device.SH7055()
	mcu := sim.New(prof)
	k := New(mcu, prof)
	if err := k.Init(); err != nil {
		t.Fatalf("Init() = %v", err)
	}
	mcu.Poke(0, []byte{0xDE, 0xAD})
	mcu.ResetSpy()

	if err := k.EraseBlock(0); err != nil {
		t.Errorf("EraseBlock(0) disarmed = %v, want nil", err)
	}
	if mcu.Spy.Writes != 0 {
		t.Errorf("%d hardware writes while disarmed, want 0", mcu.Spy.Writes)
	}
	if got := mcu.Peek(0, 2); !bytes.Equal(got, []byte{0xDE, 0xAD}) {
		t.Errorf("flash modified while disarmed: % X", got)
	}
}

func TestEraseBlock_Success(t *testing.T) {
	for _, name := range []string{"sh7055", "sh7051"} {
		t.Run(name, func(t *testing.T) {
			prof, err := device.ByName(name)
			if err != nil {
				t.Fatalf("ByName(%q) = %v", name, err)
			}
			k, mcu := newTarget(t, prof)

			// Junk in the target block, a sentinel in its neighbor.
			span, _, _ := prof.ResolveBlock(1)
			mcu.Poke(span.Start, []byte{0x00, 0x55, 0xAA, 0x12})
			next, _, _ := prof.ResolveBlock(2)
			mcu.Poke(next.Start, []byte{0x42})

			if err := k.EraseBlock(1); err != nil {
				t.Fatalf("EraseBlock(1) = %v, want nil", err)
			}
			if got := mcu.Peek(span.Start, 4); !bytes.Equal(got, []byte{0xFF, 0xFF, 0xFF, 0xFF}) {
				t.Errorf("block 1 not blank after erase: % X", got)
			}
			if got := mcu.Peek(next.Start, 1); got[0] != 0x42 {
				t.Errorf("neighbor block disturbed: 0x%02X", got[0])
			}
			if mcu.Spy.WDTStarts != 1 {
				t.Errorf("erase pulses = %d, want 1", mcu.Spy.WDTStarts)
			}
			if mcu.Spy.WDTResetArms != 1 {
				t.Errorf("watchdog reset armed %d times, want 1", mcu.Spy.WDTResetArms)
			}
			assertCleanExit(t, mcu, prof)
		})
	}
}

func TestEraseBlock_RetryThenSuccess(t *testing.T) {
	prof := device.SH7055()
	k, mcu := newTarget(t, prof)

	span, _, _ := prof.ResolveBlock(3)
	mcu.Poke(span.Start, []byte{0x00})
	mcu.RequireErasePulses(3, 3)

	if err := k.EraseBlock(3); err != nil {
		t.Fatalf("EraseBlock(3) = %v, want nil", err)
	}
	if mcu.Spy.WDTStarts != 3 {
		t.Errorf("erase pulses = %d, want 3", mcu.Spy.WDTStarts)
	}
	if got := mcu.Peek(span.Start, 1); got[0] != 0xFF {
		t.Errorf("block not blank after retries: 0x%02X", got[0])
	}
	assertCleanExit(t, mcu, prof)
}

func TestEraseBlock_VerifyFailed(t *testing.T) {
	prof := device.SH7051()
	k, mcu := newTarget(t, prof)

	span, _, _ := prof.ResolveBlock(0)
	mcu.Poke(span.Start, []byte{0x00})
	mcu.RequireErasePulses(0, prof.MaxEraseRetries+1)

	if err := k.EraseBlock(0); err != status.EraseVerifyFailed {
		t.Fatalf("EraseBlock(0) = %v, want %v", err, status.EraseVerifyFailed)
	}
	if mcu.Spy.WDTStarts != prof.MaxEraseRetries {
		t.Errorf("erase pulses = %d, want the full budget of %d", mcu.Spy.WDTStarts, prof.MaxEraseRetries)
	}
	assertCleanExit(t, mcu, prof)
}

// TestEraseBlock_SecondBank exercises a block controlled by the second
// register bank on both enable-register layouts.
func TestEraseBlock_SecondBank(t *testing.T) {
	cases := []struct {
		name  string
		block int
	}{
		{"sh7055", 10},
		{"sh7051", 6},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			prof, err := device.ByName(tc.name)
			if err != nil {
				t.Fatalf("ByName(%q) = %v", tc.name, err)
			}
			span, bank, err := prof.ResolveBlock(tc.block)
			if err != nil {
				t.Fatalf("ResolveBlock(%d) = %v", tc.block, err)
			}
			if bank.FLMCR != prof.Regs.FLMCR2 {
				t.Fatalf("block %d resolved to bank 1, expected bank 2", tc.block)
			}

			k, mcu := newTarget(t, prof)
			mcu.Poke(span.Start, []byte{0x00, 0x00})
			mcu.Poke(0, []byte{0x77}) // bank 1 territory, must survive

			if err := k.EraseBlock(tc.block); err != nil {
				t.Fatalf("EraseBlock(%d) = %v, want nil", tc.block, err)
			}
			if got := mcu.Peek(span.Start, 2); !bytes.Equal(got, []byte{0xFF, 0xFF}) {
				t.Errorf("block %d not blank: % X", tc.block, got)
			}
			if got := mcu.Peek(0, 1); got[0] != 0x77 {
				t.Errorf("bank 1 contents disturbed: 0x%02X", got[0])
			}
			assertCleanExit(t, mcu, prof)
		})
	}
}
