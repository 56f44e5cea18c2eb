package command

/*
 * Latte - Monitor console
 *
 * Copyright 2025, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rcornwell/latte/emu/arm"
	"github.com/rcornwell/latte/emu/machine"
	"github.com/rcornwell/latte/emu/physmem"
)

var commands = []string{
	"break", "cont", "help", "mem", "pause", "quit",
	"regs", "resume", "step", "suspend", "unbreak", "unwatch", "watch",
}

// CompleteCmd offers command name completion for the console line editor.
func CompleteCmd(line string) []string {
	var matches []string
	for _, cmd := range commands {
		if strings.HasPrefix(cmd, strings.ToLower(line)) {
			matches = append(matches, cmd)
		}
	}
	return matches
}

// Process runs one console command against the machine. It returns true
// when the console should exit.
func Process(line string, m *machine.Machine) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}

	switch strings.ToLower(fields[0]) {
	case "quit", "q":
		m.Sched.Stop()
		return true, nil
	case "help", "?":
		fmt.Print(helpText)
		return false, nil
	case "pause":
		m.Sched.Pause()
		return false, nil
	case "cont", "c":
		m.Sched.Continue()
		return false, nil
	case "regs":
		return false, cmdRegs(fields[1:], m)
	case "mem":
		return false, cmdMem(fields[1:], m)
	case "step":
		return false, cmdStep(fields[1:], m)
	case "resume":
		return false, cmdRun(fields[1:], m, true)
	case "suspend":
		return false, cmdRun(fields[1:], m, false)
	case "break", "unbreak":
		return false, cmdBreak(fields, m)
	case "watch", "unwatch":
		return false, cmdWatch(fields, m)
	default:
		return false, fmt.Errorf("unknown command %q", fields[0])
	}
}

const helpText = `Commands:
  pause                    hold all CPUs at the next quantum boundary
  cont                     continue execution
  resume <cpu>             mark a CPU runnable (arm, ppc0, ppc1, ppc2)
  suspend <cpu>            park a CPU
  step <cpu> [n]           execute n instructions on a paused machine
  regs <cpu>               dump the register file
  mem <addr> [len]         dump physical memory
  break <cpu> <addr>       set a breakpoint; unbreak removes it
  watch <cpu> r|w <addr>   set a watchpoint; unwatch removes it
  quit                     stop the machine and exit
`

func parseAddr(s string) (uint32, error) {
	value, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 32)
	if err != nil {
		return 0, fmt.Errorf("bad address %q", s)
	}
	return uint32(value), nil
}

func cpuArg(args []string, m *machine.Machine) (int, error) {
	if len(args) == 0 {
		return -1, fmt.Errorf("missing cpu name")
	}
	index := m.Index(args[0])
	if index < 0 {
		return -1, fmt.Errorf("unknown cpu %q", args[0])
	}
	return index, nil
}

func cmdRegs(args []string, m *machine.Machine) error {
	index, err := cpuArg(args, m)
	if err != nil {
		return err
	}

	if index == 0 {
		core := m.ARMCore
		for i := 0; i < 16; i += 4 {
			fmt.Printf("R%-2d %08x  R%-2d %08x  R%-2d %08x  R%-2d %08x\n",
				i, core.Regs[i], i+1, core.Regs[i+1], i+2, core.Regs[i+2], i+3, core.Regs[i+3])
		}
		fmt.Printf("CPSR %08x  SPSR %08x  mode %d thumb %v\n",
			uint32(core.CPSR), uint32(core.SPSR), core.Mode, core.Thumb)
		return nil
	}

	core := m.PPCCore[index-1]
	for i := 0; i < 32; i += 4 {
		fmt.Printf("r%-2d %08x  r%-2d %08x  r%-2d %08x  r%-2d %08x\n",
			i, core.Regs[i], i+1, core.Regs[i+1], i+2, core.Regs[i+2], i+3, core.Regs[i+3])
	}
	fmt.Printf("PC %08x  LR %08x  CTR %08x  CR %08x  XER %08x  MSR %08x\n",
		core.PC, core.LR, core.CTR, uint32(core.CR), uint32(core.XER), core.MSR)
	return nil
}

func cmdMem(args []string, m *machine.Machine) error {
	if len(args) == 0 {
		return fmt.Errorf("missing address")
	}
	addr, err := parseAddr(args[0])
	if err != nil {
		return err
	}
	length := uint32(64)
	if len(args) > 1 {
		length, err = parseAddr(args[1])
		if err != nil {
			return err
		}
	}

	for offs := uint32(0); offs < length; offs += 16 {
		line := make([]byte, 16)
		if m.Mem.Read(addr+offs, line) != physmem.OK {
			return fmt.Errorf("read failed at 0x%08x", addr+offs)
		}
		fmt.Printf("%08x:", addr+offs)
		for _, b := range line {
			fmt.Printf(" %02x", b)
		}
		fmt.Println()
	}
	return nil
}

func cmdStep(args []string, m *machine.Machine) error {
	index, err := cpuArg(args, m)
	if err != nil {
		return err
	}
	count := 1
	if len(args) > 1 {
		count, err = strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("bad count %q", args[1])
		}
	}

	if index == 0 {
		if !m.ARM.Run(count) {
			return m.ARM.Err()
		}
		fmt.Printf("arm PC=%08x\n", m.ARMCore.Regs[arm.PC])
		return nil
	}
	cpu := m.PPC[index-1]
	if !cpu.Run(count) {
		return cpu.Err()
	}
	fmt.Printf("%s PC=%08x\n", args[0], m.PPCCore[index-1].PC)
	return nil
}

func cmdRun(args []string, m *machine.Machine, resume bool) error {
	index, err := cpuArg(args, m)
	if err != nil {
		return err
	}
	if resume {
		return m.Sched.Resume(index)
	}
	return m.Sched.Suspend(index)
}

func interpFor(index int, m *machine.Machine) interface {
	SetDebug(bool)
	AddBreakpoint(uint32)
	RemoveBreakpoint(uint32)
	AddWatchpoint(bool, uint32)
	RemoveWatchpoint(bool, uint32)
} {
	if index == 0 {
		return m.ARM
	}
	return m.PPC[index-1]
}

func cmdBreak(fields []string, m *machine.Machine) error {
	index, err := cpuArg(fields[1:], m)
	if err != nil {
		return err
	}
	if len(fields) < 3 {
		return fmt.Errorf("missing address")
	}
	addr, err := parseAddr(fields[2])
	if err != nil {
		return err
	}

	cpu := interpFor(index, m)
	if fields[0] == "break" {
		cpu.SetDebug(true)
		cpu.AddBreakpoint(addr)
	} else {
		cpu.RemoveBreakpoint(addr)
	}
	return nil
}

func cmdWatch(fields []string, m *machine.Machine) error {
	index, err := cpuArg(fields[1:], m)
	if err != nil {
		return err
	}
	if len(fields) < 4 {
		return fmt.Errorf("usage: %s <cpu> r|w <addr>", fields[0])
	}
	write := fields[2] == "w"
	if !write && fields[2] != "r" {
		return fmt.Errorf("bad direction %q", fields[2])
	}
	addr, err := parseAddr(fields[3])
	if err != nil {
		return err
	}

	cpu := interpFor(index, m)
	if fields[0] == "watch" {
		cpu.SetDebug(true)
		cpu.AddWatchpoint(write, addr)
	} else {
		cpu.RemoveWatchpoint(write, addr)
	}
	return nil
}
