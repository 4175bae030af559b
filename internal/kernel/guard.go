package kernel

// The watchdog is the only defense against a runaway pulse. The CPU
// executes the pulse with interrupts masked and busy-waiting, so it
// cannot observe its own hang; the watchdog counts independently and
// forces a hardware reset if the guarded section overruns its window.

// wdtPrepare stops the counter (which also clears TCNT) and configures
// reset-on-overflow. Run once per operation, before the first pulse.
func (k *Kernel) wdtPrepare() {
	k.port.Write16(k.prof.Regs.WDTCSR, k.prof.WDT.Stop)
	k.port.Write16(k.prof.Regs.WDTRSTCSR, k.prof.WDT.ResetCSR)
}

// guarded runs fn with the watchdog counting toward a forced reset,
// started with the given divisor word. The stop on exit is
// unconditional; the preceding stop (wdtPrepare or the previous guarded
// section) has already cleared TCNT, so the interval starts at zero.
func (k *Kernel) guarded(start uint16, fn func()) {
	k.port.Write16(k.prof.Regs.WDTCSR, start)
	defer k.port.Write16(k.prof.Regs.WDTCSR, k.prof.WDT.Stop)
	fn()
}

// masked runs fn with interrupts globally disabled, restoring the
// previous mask on every path. Pulse widths must not be stretched by an
// interrupt handler.
func (k *Kernel) masked(fn func()) {
	state := k.port.DisableInterrupts()
	defer k.port.RestoreInterrupts(state)
	fn()
}
