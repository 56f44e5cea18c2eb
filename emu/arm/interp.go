package arm

/*
 * Latte - ARM interpreter
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
	"errors"
	"fmt"
	"log/slog"

	"github.com/rcornwell/latte/emu/interp"
	"github.com/rcornwell/latte/emu/physmem"
	"github.com/rcornwell/latte/emu/virtmem"
)

// External hooks. The machine installs these to model the system
// coprocessor and the secure monitor interface.
type (
	CoprocReadFunc  func(coproc, opc, rn, rm, typ int) (uint32, bool)
	CoprocWriteFunc func(coproc, opc int, value uint32, rn, rm, typ int) bool
	SWIFunc         func(value uint32) bool
	UndefinedFunc   func() bool
)

// Condition field values.
const (
	condEQ = iota
	condNE
	condCS
	condCC
	condMI
	condPL
	condVS
	condVC
	condHI
	condLS
	condGE
	condLT
	condGT
	condLE
	condAL
)

// Interpreter decodes and executes ARM32 and Thumb instruction streams on
// top of the shared typed access path.
type Interpreter struct {
	*interp.Base
	Core *Core

	coprocRead  CoprocReadFunc
	coprocWrite CoprocWriteFunc
	swi         SWIFunc
	undefined   UndefinedFunc
}

// NewInterpreter wires a core, its MMU and physical memory together.
func NewInterpreter(core *Core, mem *physmem.Memory, mmu virtmem.Translator, bigEndian bool) *Interpreter {
	cpu := &Interpreter{
		Base: interp.New(mem, mmu, bigEndian),
		Core: core,
	}
	cpu.Attach(cpu.Step, func() uint32 { return core.Regs[PC] })
	return cpu
}

func (cpu *Interpreter) SetCoprocReadFunc(fn CoprocReadFunc)   { cpu.coprocRead = fn }
func (cpu *Interpreter) SetCoprocWriteFunc(fn CoprocWriteFunc) { cpu.coprocWrite = fn }
func (cpu *Interpreter) SetSoftwareInterruptFunc(fn SWIFunc)   { cpu.swi = fn }
func (cpu *Interpreter) SetUndefinedFunc(fn UndefinedFunc)     { cpu.undefined = fn }

// checkCondition evaluates a condition field against the current flags.
func (cpu *Interpreter) checkCondition(cond int) bool {
	cpsr := cpu.Core.CPSR
	switch cond {
	case condEQ:
		return cpsr.Get(FlagZ)
	case condNE:
		return !cpsr.Get(FlagZ)
	case condCS:
		return cpsr.Get(FlagC)
	case condCC:
		return !cpsr.Get(FlagC)
	case condMI:
		return cpsr.Get(FlagN)
	case condPL:
		return !cpsr.Get(FlagN)
	case condVS:
		return cpsr.Get(FlagV)
	case condVC:
		return !cpsr.Get(FlagV)
	case condHI:
		return cpsr.Get(FlagC) && !cpsr.Get(FlagZ)
	case condLS:
		return !cpsr.Get(FlagC) || cpsr.Get(FlagZ)
	case condGE:
		return cpsr.Get(FlagN) == cpsr.Get(FlagV)
	case condLT:
		return cpsr.Get(FlagN) != cpsr.Get(FlagV)
	case condGT:
		return !cpsr.Get(FlagZ) && cpsr.Get(FlagN) == cpsr.Get(FlagV)
	case condLE:
		return cpsr.Get(FlagZ) || cpsr.Get(FlagN) != cpsr.Get(FlagV)
	default:
		return true
	}
}

func (cpu *Interpreter) notImplemented(format string, args ...any) bool {
	msg := fmt.Sprintf(format, args...)
	slog.Error(msg)
	cpu.SetError(errors.New(msg))
	return false
}

func (cpu *Interpreter) handleCoprocessorRead(coproc, opc, rn, rm, typ int) (uint32, bool) {
	if cpu.coprocRead == nil {
		cpu.SetError(errors.New("no coprocessor read callback installed"))
		return 0, false
	}
	return cpu.coprocRead(coproc, opc, rn, rm, typ)
}

func (cpu *Interpreter) handleCoprocessorWrite(coproc, opc int, value uint32, rn, rm, typ int) bool {
	if cpu.coprocWrite == nil {
		cpu.SetError(errors.New("no coprocessor write callback installed"))
		return false
	}
	return cpu.coprocWrite(coproc, opc, value, rn, rm, typ)
}

func (cpu *Interpreter) handleSoftwareInterrupt(value uint32) bool {
	if cpu.swi == nil {
		cpu.SetError(errors.New("no software interrupt callback installed"))
		return false
	}
	return cpu.swi(value)
}

func (cpu *Interpreter) handleUndefined() bool {
	if cpu.undefined == nil {
		cpu.SetError(errors.New("no undefined instruction callback installed"))
		return false
	}
	return cpu.undefined()
}

func (cpu *Interpreter) stepARM() bool {
	value, ok := cpu.ReadCode32(cpu.Core.Regs[PC])
	if !ok {
		return false
	}

	cpu.Core.Regs[PC] += 4

	instr := instruction(value)
	if instr.cond() != 0xF && !cpu.checkCondition(instr.cond()) {
		return true
	}
	return cpu.executeARM(instr)
}

func (cpu *Interpreter) stepThumb() bool {
	value, ok := cpu.ReadCode16(cpu.Core.Regs[PC])
	if !ok {
		return false
	}

	cpu.Core.Regs[PC] += 2
	return cpu.executeThumb(thumbInstr(value))
}

// Step fetches, decodes and executes one instruction.
func (cpu *Interpreter) Step() bool {
	if cpu.Core.Thumb {
		return cpu.stepThumb()
	}
	return cpu.stepARM()
}
