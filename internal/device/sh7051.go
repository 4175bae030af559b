package device

// SH7051 returns the profile for the SH7051 flash macro: 256 KiB in 12
// blocks, 32-byte program pages, 20 MHz CPU clock.
//
// The part has no additional-programming pass; every attempt uses the
// single 500 us pulse. SWE is gated through FLMCR1 for both banks, and
// the 12 block-enable bits are spread over EBR1 (low nibble) and EBR2.
func SH7051() *Profile {
	const clk = 20

	return &Profile{
		Name:     "sh7051",
		ClockMHz: clk,

		MaxROM:   256*1024 - 1,
		PageSize: 32,

		MaxEraseRetries: 61,
		MaxWriteRetries: 400,
		OverwriteCount:  0,
		OverwritePass:   false,
		SWESharedBank1:  true,

		BankSplit: 0x00020000, // 0x20000..0x3FFFF controlled by FLMCR2

		Blocks: []uint32{
			0x00000000,
			0x00008000,
			0x00010000,
			0x00018000,
			0x00020000,
			0x00028000,
			0x00030000,
			0x00038000,
			0x0003F000,
			0x0003F400,
			0x0003F800,
			0x0003FC00,
			0x00040000, // exclusive upper bound
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
			EraseStart: 0xA578 | 0x06, // 1:4096 div, 52.4 ms @ 20 MHz
			WriteStart: 0xA578 | 0x05, // 1:1024 div, 13.1 ms @ 20 MHz
			ResetCSR:   0x5A4F,
		},

		Delays: Delays{
			SWESetup: Loops(10, clk),
			SWEClear: Loops(100, clk), // not in the datasheet, kept from field use

			EraseSetup:      Loops(200, clk),
			ErasePulse:      Loops(5000, clk),
			EraseClear:      Loops(10, clk),
			EraseSetupClear: Loops(10, clk),

			EraseVerifySetup: Loops(10, clk),
			EraseVerifyRead:  Loops(2, clk),
			EraseVerifyClear: Loops(5, clk),

			ProgSetup:          Loops(300, clk), // datasheet has 50, F-ZTAT 300
			ProgPulseShort:     Loops(500, clk),
			ProgPulseLong:      Loops(500, clk),
			ProgPulseOverwrite: Loops(500, clk), // unused, no overwrite pass
			ProgClear:          Loops(10, clk),
			ProgSetupClear:     Loops(10, clk),

			ProgVerifySetup: Loops(10, clk), // datasheet 4, F-ZTAT 10
			ProgVerifyRead:  Loops(5, clk),  // datasheet 2, F-ZTAT 5
			ProgVerifyClear: Loops(5, clk),  // datasheet 4, F-ZTAT 5
		},

		ebr: ebrSplit,
	}
}
