package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ecufix/shflash/internal/device"
	"github.com/ecufix/shflash/internal/hw"
	"github.com/ecufix/shflash/internal/kernel"
	"github.com/ecufix/shflash/internal/probe"
	"github.com/ecufix/shflash/internal/sim"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	deviceFlag string
	imageFlag  string
	portFlag   string
	baudFlag   int
	dryRunFlag bool

	blocksFlag string
	allFlag    bool

	addrFlag  string
	lenFlag   uint32
	outFlag   string
	eraseFlag bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "shflash",
		Short: "Reflash SH7055/SH7051 ECU program flash",
		Long: `shflash drives the SH705x flash reprogramming engine against either a
file-backed simulated target (--image) or a serial bench probe (--port).

The simulated target is exact down to the pulse/verify algorithm and is
the safe way to rehearse a reflash sequence before touching silicon.`,
	}
	rootCmd.PersistentFlags().StringVarP(&deviceFlag, "device", "d", "sh7055", "Target device (sh7055 or sh7051)")
	rootCmd.PersistentFlags().StringVar(&imageFlag, "image", "", "Flash image file backing a simulated target")
	rootCmd.PersistentFlags().StringVarP(&portFlag, "port", "p", "", "Serial port of a bench probe")
	rootCmd.PersistentFlags().IntVarP(&baudFlag, "baud", "b", probe.DefaultBaudRate, "Probe baud rate")
	rootCmd.PersistentFlags().BoolVar(&dryRunFlag, "dry-run", false, "Leave the protection gate disarmed: validate and sequence, touch nothing")

	eraseCmd := &cobra.Command{
		Use:   "erase",
		Short: "Erase flash blocks",
		Long: `Erase one or more blocks, each verified to read fully blank.

Blocks are independent; a failed block stops the run so the failure is
visible before more data is destroyed.`,
		RunE: runErase,
	}
	eraseCmd.Flags().StringVar(&blocksFlag, "blocks", "", "Comma-separated block indices")
	eraseCmd.Flags().BoolVar(&allFlag, "all", false, "Erase every block")

	writeCmd := &cobra.Command{
		Use:   "write <data.bin>",
		Short: "Write a binary into flash",
		Long: `Write a page-aligned binary at --addr. The target region must already
be erased; pass --erase to erase the covering blocks first.`,
		Args: cobra.ExactArgs(1),
		RunE: runWrite,
	}
	writeCmd.Flags().StringVar(&addrFlag, "addr", "0x0", "Destination address (page-aligned)")
	writeCmd.Flags().BoolVar(&eraseFlag, "erase", false, "Erase the blocks covering the range first")

	dumpCmd := &cobra.Command{
		Use:   "dump",
		Short: "Read flash contents",
		RunE:  runDump,
	}
	dumpCmd.Flags().StringVar(&addrFlag, "addr", "0x0", "Start address")
	dumpCmd.Flags().Uint32Var(&lenFlag, "len", 256, "Byte count")
	dumpCmd.Flags().StringVar(&outFlag, "out", "", "Write binary to file instead of hex to stdout")

	blocksCmd := &cobra.Command{
		Use:   "blocks",
		Short: "Show the block map of a device",
		RunE:  runBlocks,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available serial ports",
		RunE:  runList,
	}

	detectCmd := &cobra.Command{
		Use:   "detect",
		Short: "Scan serial ports for a bench probe",
		RunE:  runDetect,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("shflash %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}

	rootCmd.AddCommand(eraseCmd, writeCmd, dumpCmd, blocksCmd, listCmd, detectCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// target bundles an open backend with its cleanup.
type target struct {
	port  hw.Port
	prof  *device.Profile
	close func() error
}

// openTarget opens the probe or the file-backed simulator, whichever the
// flags select.
func openTarget() (*target, error) {
	if portFlag != "" {
		p, err := probe.Open(portFlag, baudFlag)
		if err != nil {
			return nil, err
		}
		prof, err := device.ByName(p.Device())
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("probe reports unsupported target: %w", err)
		}
		fmt.Printf("Probe on %s, target %s\n", p.PortName(), prof.Name)
		return &target{port: p, prof: prof, close: p.Close}, nil
	}

	if imageFlag == "" {
		return nil, fmt.Errorf("select a backend: --image <file> or --port <serial>")
	}
	prof, err := device.ByName(deviceFlag)
	if err != nil {
		return nil, err
	}

	var mcu *sim.MCU
	if _, err := os.Stat(imageFlag); err == nil {
		mcu, err = sim.LoadImage(prof, imageFlag)
		if err != nil {
			return nil, err
		}
	} else {
		mcu = sim.New(prof)
	}
	fmt.Printf("Simulated %s backed by %s\n", prof.Name, imageFlag)
	return &target{
		port: mcu,
		prof: prof,
		close: func() error {
			if dryRunFlag {
				return nil
			}
			return mcu.SaveImage(imageFlag)
		},
	}, nil
}

// newKernel builds and initializes the engine, arming it unless this is
// a dry run.
func newKernel(t *target) (*kernel.Kernel, error) {
	k := kernel.New(t.port, t.prof)
	if err := k.Init(); err != nil {
		return nil, fmt.Errorf("engine init failed: %w", err)
	}
	if dryRunFlag {
		fmt.Println("Dry run: protection gate stays disarmed")
	} else {
		k.Unprotect()
	}
	return k, nil
}

func runErase(cmd *cobra.Command, args []string) error {
	t, err := openTarget()
	if err != nil {
		return err
	}
	defer t.close()

	blocks, err := parseBlocks(t.prof)
	if err != nil {
		return err
	}

	k, err := newKernel(t)
	if err != nil {
		return err
	}

	for _, b := range blocks {
		span, _, err := t.prof.ResolveBlock(b)
		if err != nil {
			return err
		}
		fmt.Printf("Erasing block %d (0x%05X-0x%05X)...\n", b, span.Start, span.End-1)
		if err := k.EraseBlock(b); err != nil {
			return fmt.Errorf("block %d: %w", b, err)
		}
		if err := linkErr(t); err != nil {
			return err
		}
	}

	fmt.Println("Erase complete")
	return nil
}

func runWrite(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read data file: %w", err)
	}
	dest, err := parseAddr(addrFlag)
	if err != nil {
		return err
	}

	t, err := openTarget()
	if err != nil {
		return err
	}
	defer t.close()

	k, err := newKernel(t)
	if err != nil {
		return err
	}

	fmt.Printf("Writing %s (%d bytes) at 0x%05X\n", args[0], len(data), dest)

	if eraseFlag {
		for _, b := range coveringBlocks(t.prof, dest, uint32(len(data))) {
			fmt.Printf("Erasing block %d...\n", b)
			if err := k.EraseBlock(b); err != nil {
				return fmt.Errorf("block %d: %w", b, err)
			}
		}
	}

	pages := len(data) / int(t.prof.PageSize)
	bar := progressbar.NewOptions(pages,
		progressbar.OptionSetDescription("Writing"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(100),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	k.SetProgressCallback(func(done, total int) {
		bar.Set(done)
	})

	if err := k.WriteRange(dest, data); err != nil {
		return err
	}
	if err := linkErr(t); err != nil {
		return err
	}
	bar.Finish()

	fmt.Println("\nWrite complete")
	return nil
}

func runDump(cmd *cobra.Command, args []string) error {
	addr, err := parseAddr(addrFlag)
	if err != nil {
		return err
	}

	t, err := openTarget()
	if err != nil {
		return err
	}
	defer t.close()

	if addr > t.prof.MaxROM || lenFlag > t.prof.MaxROM+1-addr {
		return fmt.Errorf("range 0x%X+%d exceeds the %d byte ROM", addr, lenFlag, t.prof.MaxROM+1)
	}

	data := make([]byte, lenFlag)
	for i := range data {
		data[i] = t.port.Read8(addr + uint32(i))
	}
	if err := linkErr(t); err != nil {
		return err
	}

	if outFlag != "" {
		if err := os.WriteFile(outFlag, data, 0o644); err != nil {
			return fmt.Errorf("failed to write dump: %w", err)
		}
		fmt.Printf("Dumped %d bytes to %s\n", len(data), outFlag)
		return nil
	}
	fmt.Print(hex.Dump(data))
	return nil
}

func runBlocks(cmd *cobra.Command, args []string) error {
	prof, err := device.ByName(deviceFlag)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d KiB ROM, %d-byte pages, %d blocks\n",
		prof.Name, (prof.MaxROM+1)/1024, prof.PageSize, prof.BlockCount())
	for i := 0; i < prof.BlockCount(); i++ {
		span, bank, _ := prof.ResolveBlock(i)
		bankNo := 1
		if bank.FLMCR == prof.Regs.FLMCR2 {
			bankNo = 2
		}
		fmt.Printf("  EB%-2d  0x%05X-0x%05X  %6d bytes  bank %d\n",
			i, span.Start, span.End-1, span.End-span.Start, bankNo)
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	ports, err := probe.ListPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}
	fmt.Println("Available serial ports:")
	for _, p := range ports {
		fmt.Printf("  %s\n", p)
	}
	return nil
}

func runDetect(cmd *cobra.Command, args []string) error {
	fmt.Println("Scanning for bench probes...")
	probes, err := probe.ListProbes(baudFlag)
	if err != nil {
		return err
	}
	if len(probes) == 0 {
		fmt.Println("No probes found")
		return nil
	}
	for _, r := range probes {
		fmt.Printf("  Port: %s  Target: %s\n", r.Port, r.Device)
	}
	return nil
}

// linkErr surfaces a sticky probe link error; the simulator never fails.
func linkErr(t *target) error {
	if p, ok := t.port.(*probe.Probe); ok {
		return p.Err()
	}
	return nil
}

func parseAddr(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("bad address %q: %w", s, err)
	}
	return uint32(v), nil
}

func parseBlocks(prof *device.Profile) ([]int, error) {
	if allFlag {
		out := make([]int, prof.BlockCount())
		for i := range out {
			out[i] = i
		}
		return out, nil
	}
	if blocksFlag == "" {
		return nil, fmt.Errorf("select blocks: --blocks 0,1,2 or --all")
	}
	var out []int
	for _, f := range strings.Split(blocksFlag, ",") {
		b, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, fmt.Errorf("bad block index %q: %w", f, err)
		}
		out = append(out, b)
	}
	return out, nil
}

// coveringBlocks returns the blocks overlapping [dest, dest+n).
func coveringBlocks(prof *device.Profile, dest, n uint32) []int {
	var out []int
	for i := 0; i < prof.BlockCount(); i++ {
		span, _, _ := prof.ResolveBlock(i)
		if span.Start < dest+n && span.End > dest {
			out = append(out, i)
		}
	}
	return out
}
