package main

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/emu8086/core/pkg/cpu"
	"github.com/emu8086/core/pkg/decoder"
	"github.com/emu8086/core/pkg/evex"
	"github.com/emu8086/core/pkg/inst8086"
	"github.com/emu8086/core/pkg/report"
)

// fixture is one independently-checkable bench case: an EVEX encoding
// fixture or an end-to-end decode+execute scenario.
type fixture struct {
	name string
	run  func() error
}

// runFixtures distributes every fixture across a worker pool and
// collects a report.Summary, adapted from pkg/search/worker.go's
// WorkerPool idiom (buffered task channel, sync.WaitGroup, concurrent
// workers) — repurposed from "distribute superoptimizer search tasks"
// across candidate sequences to "distribute fixture verification
// tasks" across this binary's own correctness fixtures, the one
// CLI-level use of concurrency section 5 permits alongside the
// single-threaded core packages.
func runFixtures() report.Summary {
	fixtures := allFixtures()

	ch := make(chan fixture, len(fixtures))
	for _, f := range fixtures {
		ch <- f
	}
	close(ch)

	results := make(chan report.FixtureResult, len(fixtures))
	var wg sync.WaitGroup
	workers := len(fixtures)
	if workers > 8 {
		workers = 8
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range ch {
				if err := f.run(); err != nil {
					results <- report.FixtureResult{Name: f.name, Passed: false, Detail: err.Error()}
				} else {
					results <- report.FixtureResult{Name: f.name, Passed: true}
				}
			}
		}()
	}
	wg.Wait()
	close(results)

	var collected []report.FixtureResult
	for r := range results {
		collected = append(collected, r)
	}
	return report.NewSummary(collected)
}

func allFixtures() []fixture {
	var fixtures []fixture
	fixtures = append(fixtures, evexFixtures()...)
	fixtures = append(fixtures, scalarFixtures()...)
	return fixtures
}

// evexFixtures re-derives three of the seven byte-exact encodings
// section 6/8 name (vpsubw, vpaddw, vmovdqa64 zmm1, zmm2), the same
// assertions evex_test.go makes for them, exercised here as
// bench-reportable fixtures rather than go test cases.
func evexFixtures() []fixture {
	check := func(name string, got, want []byte) fixture {
		return fixture{name: "evex/" + name, run: func() error {
			if !bytes.Equal(got, want) {
				return fmt.Errorf("got % x, want % x", got, want)
			}
			return nil
		}}
	}
	return []fixture{
		check("vpsubw", evex.New().Op1(1).Op2(2).Op3(1).WithOpcode(evex.OpSub).Assemble(),
			[]byte{0x62, 0xF1, 0x6D, 0x48, 0xF9, 0xC9}),
		check("vpaddw", evex.New().Op1(1).Op2(2).Op3(1).WithOpcode(evex.OpAdd).Assemble(),
			[]byte{0x62, 0xF1, 0x6D, 0x48, 0xFD, 0xC9}),
		check("vmovdqa64", evex.New().Op1(1).Op2(2).WithOpcode(evex.OpMov).Assemble(),
			[]byte{0x62, 0xF1, 0xFD, 0x48, 0x6F, 0xCA}),
	}
}

// scalarFixtures decodes and executes one small program end to end,
// checking the final register state matches a hand-computed result.
func scalarFixtures() []fixture {
	return []fixture{
		{name: "scalar/mov-add", run: func() error {
			// mov ax, 5 ; add ax, 3
			mem, err := cpu.NewMemory(256)
			if err != nil {
				return err
			}
			if err := mem.LoadImage([]byte{0xB8, 0x05, 0x00, 0x05, 0x03, 0x00}); err != nil {
				return err
			}
			state := cpu.NewState()
			ip := 0
			for ip < 6 {
				instr, err := decoder.Decode(mem, ip)
				if err != nil {
					return err
				}
				if err := cpu.Execute(state, mem, instr); err != nil {
					return err
				}
				ip = int(state.IP())
			}
			if got := state.ReadRegister(inst8086.AX); got != 8 {
				return fmt.Errorf("ax = %d, want 8", got)
			}
			return nil
		}},
	}
}
