package device

// SH7055 returns the profile for the SH7055 (0.35 um) flash macro:
// 512 KiB in 16 blocks, 128-byte program pages, 40 MHz CPU clock.
//
// Pulse widths follow the F-ZTAT programming algorithm: the first six
// attempts use the 30 us pulse plus a 10 us additional-programming
// pulse, later attempts escalate to 200 us.
func SH7055() *Profile {
	const clk = 40

	return &Profile{
		Name:     "sh7055",
		ClockMHz: clk,

		MaxROM:   512*1024 - 1,
		PageSize: 128,

		MaxEraseRetries: 100,
		MaxWriteRetries: 1000,
		OverwriteCount:  6,
		OverwritePass:   true,

		BankSplit: 0x00008000, // EB0..7 on bank 1, EB8..15 on bank 2

		Blocks: []uint32{
			0x00000000,
			0x00001000,
			0x00002000,
			0x00003000,
			0x00004000,
			0x00005000,
			0x00006000,
			0x00007000,
			0x00008000,
			0x00010000,
			0x00020000,
			0x00030000,
			0x00040000,
			0x00050000,
			0x00060000,
			0x00070000,
			0x00080000, // exclusive upper bound
		},

		Regs: RegisterMap{
			FLMCR1:    0xFFFFE800,
			FLMCR2:    0xFFFFE801,
			EBR1:      0xFFFFE802,
			EBR2:      0xFFFFE803,
			WDTCSR:    0xFFFFEC10,
			WDTRSTCSR: 0xFFFFEC12,
		},

		WDT: WDTWords{
			Stop:       0xA558,
			EraseStart: 0xA578 | 0x06, // 1:4096 div, 26.2 ms @ 40 MHz
			WriteStart: 0xA578 | 0x05, // 1:1024 div, 6.6 ms @ 40 MHz
			ResetCSR:   0x5A5F,        // power-on reset on TCNT overflow
		},

		Delays: Delays{
			SWESetup: Loops(1, clk),
			SWEClear: Loops(100, clk),

			EraseSetup:      Loops(100, clk),
			ErasePulse:      Loops(10000, clk),
			EraseClear:      Loops(10, clk),
			EraseSetupClear: Loops(10, clk),

			EraseVerifySetup: Loops(6, clk), // Renesas sample uses 20
			EraseVerifyRead:  Loops(2, clk),
			EraseVerifyClear: Loops(4, clk),

			ProgSetup:          Loops(50, clk),
			ProgPulseShort:     Loops(30, clk),
			ProgPulseLong:      Loops(200, clk),
			ProgPulseOverwrite: Loops(10, clk),
			ProgClear:          Loops(5, clk),
			ProgSetupClear:     Loops(5, clk),

			ProgVerifySetup: Loops(4, clk),
			ProgVerifyRead:  Loops(2, clk),
			ProgVerifyClear: Loops(2, clk),
		},

		ebr: ebrPerBank,
	}
}
