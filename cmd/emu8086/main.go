// Command emu8086 is the CLI front end: decode, scalar-run, JIT-run, and
// fixture-bench subcommands, grounded on cmd/z80opt/main.go's cobra
// command-tree structure (root command, per-subcommand flag variables,
// RunE returning wrapped errors).
package main

import (
	"fmt"
	"os"

	"github.com/emu8086/core/pkg/config"
	"github.com/emu8086/core/pkg/cpu"
	"github.com/emu8086/core/pkg/decoder"
	"github.com/emu8086/core/pkg/inst8086"
	"github.com/emu8086/core/pkg/jit"
	"github.com/emu8086/core/pkg/logx"
	"github.com/emu8086/core/pkg/report"
	"github.com/emu8086/core/pkg/snapshot"
	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "emu8086",
		Short: "8086 emulator — scalar interpreter and AVX-512 lockstep JIT",
	}
	root.AddCommand(decodeCmd(), runCmd(), benchCmd())
	return root
}

func decodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <image>",
		Short: "Print the decoded instruction stream of a raw 8086 image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			mem, _, err := loadImage(args[0], cfg)
			if err != nil {
				return err
			}
			fmt.Printf("; Decoded from %s\nbits 16\n", args[0])
			ip := 0
			for {
				instr, err := decoder.Decode(mem, ip)
				if err != nil {
					logx.DecodeFailure(uint16(ip), err)
					return err
				}
				fmt.Println(instr.String())
				if instr.Kind == inst8086.Hlt {
					break
				}
				ip += instr.Length
				if ip <= 0 || ip >= mem.Len() {
					break
				}
			}
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	var useJIT bool
	var lanes int
	var debugBreak bool
	var restorePath string
	var savePath string

	cmd := &cobra.Command{
		Use:   "run <image>",
		Short: "Execute a raw 8086 image to halt and print the final register state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			cfg.Lanes = lanes
			cfg.DebugBreak = debugBreak
			if err := cfg.Validate(); err != nil {
				return err
			}

			mem, image, err := loadImage(args[0], cfg)
			if err != nil {
				return err
			}

			if useJIT {
				return runJIT(image, cfg)
			}
			return runScalar(mem, restorePath, savePath)
		},
	}
	cmd.Flags().BoolVar(&useJIT, "jit", false, "execute via the AVX-512 lockstep JIT instead of the scalar interpreter")
	cmd.Flags().IntVar(&lanes, "lanes", config.DefaultLanes, "number of lockstep JIT lanes")
	cmd.Flags().BoolVar(&debugBreak, "debug-break", false, "trap before entering the JIT buffer")
	cmd.Flags().StringVar(&restorePath, "restore", "", "resume execution from a snapshot file instead of the image's reset state")
	cmd.Flags().StringVar(&savePath, "save", "", "save the final CPU/memory state to a snapshot file after halt")
	return cmd
}

// runScalar executes mem's image to halt via the scalar interpreter. If
// restorePath is set, the CPU/memory state is loaded from that snapshot
// before execution starts (replacing the freshly-reset state), fulfilling
// the Lifecycle clause's "restored from a snapshot" contract. If savePath
// is set, the final state is snapshotted to that file after halt.
func runScalar(mem *cpu.Memory, restorePath, savePath string) error {
	state := cpu.NewState()
	if restorePath != "" {
		snap, err := snapshot.Load(restorePath)
		if err != nil {
			return fmt.Errorf("restore %s: %w", restorePath, err)
		}
		restoredState, restoredMem, err := snapshot.Restore(snap)
		if err != nil {
			return fmt.Errorf("restore %s: %w", restorePath, err)
		}
		state, mem = restoredState, restoredMem
	}

	ip := int(state.IP())
	for {
		instr, err := decoder.Decode(mem, ip)
		if err != nil {
			logx.DecodeFailure(uint16(ip), err)
			return err
		}
		if err := cpu.Execute(state, mem, instr); err != nil {
			logx.Unimplemented(uint16(ip), err.Error())
			return err
		}
		if instr.Kind == inst8086.Hlt {
			break
		}
		ip = int(state.IP())
		if ip <= 0 || ip >= mem.Len() {
			break
		}
	}
	printState(state)

	if savePath != "" {
		if err := snapshot.Save(savePath, snapshot.FromState(state, mem)); err != nil {
			return fmt.Errorf("save %s: %w", savePath, err)
		}
	}
	return nil
}

// runJIT translates image's instructions once with pkg/jit.Lower into a
// Buffer, runs all 32 context lanes from the same zeroed register state,
// and prints the first cfg.Lanes lanes' final register snapshots — exercising
// the vectorized path end to end the way section 5's lockstep model
// describes (every lane running the same program, diverging only
// through its own register/flag state).
func runJIT(image []byte, cfg config.Config) error {
	scratchMem, err := cpu.NewMemory(cfg.MemorySize)
	if err != nil {
		return err
	}
	if err := scratchMem.LoadImage(image); err != nil {
		return err
	}

	buf, err := jit.NewBuffer(cfg.JitBufferBytes)
	if err != nil {
		return err
	}
	defer buf.Free()

	ip := 0
	for {
		instr, err := decoder.Decode(scratchMem, ip)
		if err != nil {
			return err
		}
		if instr.Kind == inst8086.Hlt {
			break
		}
		if err := jit.Lower(buf, instr); err != nil {
			logx.JitFallback(uint16(ip), err)
			return fmt.Errorf("jit: %w (scalar fallback not wired into this CLI path)", err)
		}
		ip += instr.Length
		if ip <= 0 || ip >= scratchMem.Len() {
			break
		}
	}
	if err := buf.Ret(); err != nil {
		return err
	}

	ctx, _ := jit.AllocContext()
	stub := jit.AssembleEntryStub()
	stubBuf, err := jit.NewBuffer(len(stub))
	if err != nil {
		return err
	}
	defer stubBuf.Free()
	if err := stubBuf.WriteBytes(stub); err != nil {
		return err
	}

	jit.Call(stubBuf, buf, ctx, cfg.DebugBreak)

	for lane := 0; lane < cfg.Lanes; lane++ {
		s := ctx.Lane(lane)
		fmt.Printf("lane %02d: ax=%04x bx=%04x cx=%04x dx=%04x ip=%04x flags=%04x\n",
			lane, s.AX, s.BX, s.CX, s.DX, s.IP, s.FLAGS)
	}
	return nil
}

func printState(s *cpu.State) {
	fmt.Printf("ax=%04x bx=%04x cx=%04x dx=%04x si=%04x di=%04x bp=%04x sp=%04x ip=%04x flags=%04x\n",
		s.ReadRegister(inst8086.AX), s.ReadRegister(inst8086.BX),
		s.ReadRegister(inst8086.CX), s.ReadRegister(inst8086.DX),
		s.ReadRegister(inst8086.SI), s.ReadRegister(inst8086.DI),
		s.ReadRegister(inst8086.BP), s.ReadRegister(inst8086.SP),
		s.IP(), s.Flags())
}

func loadImage(path string, cfg config.Config) (*cpu.Memory, []byte, error) {
	image, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read image %s: %w", path, err)
	}
	mem, err := cpu.NewMemory(cfg.MemorySize)
	if err != nil {
		return nil, nil, err
	}
	if err := mem.LoadImage(image); err != nil {
		return nil, nil, err
	}
	return mem, image, nil
}

func benchCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Round-trip the shared decoder/executor/EVEX fixtures and report pass/fail",
		RunE: func(cmd *cobra.Command, args []string) error {
			summary := runFixtures()
			if asJSON {
				return report.WriteJSON(os.Stdout, summary)
			}
			for _, r := range summary.Results {
				status := "PASS"
				if !r.Passed {
					status = "FAIL"
				}
				fmt.Printf("[%s] %s %s\n", status, r.Name, r.Detail)
			}
			fmt.Printf("%d passed, %d failed\n", summary.Passed, summary.Failed)
			if summary.Failed > 0 {
				return fmt.Errorf("bench: %d fixture(s) failed", summary.Failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the report as JSON instead of text")
	return cmd
}
