package ppc

/*
 * Latte - PowerPC interpreter
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

// Interpreter decodes and executes the PowerPC instruction stream of one
// application core. The instruction set is big-endian on the wire.
type Interpreter struct {
	*interp.Base
	Core *Core
}

// NewInterpreter wires a core, its MMU and physical memory together.
func NewInterpreter(core *Core, mem *physmem.Memory, mmu virtmem.Translator) *Interpreter {
	cpu := &Interpreter{
		Base: interp.New(mem, mmu, true),
		Core: core,
	}
	cpu.Attach(cpu.Step, func() uint32 { return core.PC })
	return cpu
}

// Step fetches, decodes and executes one instruction.
func (cpu *Interpreter) Step() bool {
	value, ok := cpu.ReadCode32(cpu.Core.PC)
	if !ok {
		return false
	}

	cpu.Core.PC += 4
	return cpu.execute(instruction(value))
}

func (cpu *Interpreter) fail(err error) bool {
	slog.Error(err.Error())
	cpu.SetError(err)
	return false
}

func (cpu *Interpreter) notImplemented(format string, args ...any) bool {
	msg := fmt.Sprintf(format, args...)
	slog.Error(msg)
	cpu.SetError(errors.New(msg))
	return false
}

// The store helpers clear any other core's reservation covering the
// target address before the write goes out.

func (cpu *Interpreter) store8(addr uint32, value uint8) bool {
	cpu.Core.Lock.StoreNotify(cpu.Core, addr)
	return cpu.Write8(addr, value)
}

func (cpu *Interpreter) store16(addr uint32, value uint16) bool {
	cpu.Core.Lock.StoreNotify(cpu.Core, addr)
	return cpu.Write16(addr, value)
}

func (cpu *Interpreter) store32(addr uint32, value uint32) bool {
	cpu.Core.Lock.StoreNotify(cpu.Core, addr)
	return cpu.Write32(addr, value)
}

func (cpu *Interpreter) store64(addr uint32, value uint64) bool {
	cpu.Core.Lock.StoreNotify(cpu.Core, addr)
	return cpu.Write64(addr, value)
}
