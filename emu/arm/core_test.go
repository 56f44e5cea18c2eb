package arm

/*
 * Latte - ARM core state tests
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

import "testing"

// Switching away and back must restore the register file bit-exact.
func TestModeRoundTrip(t *testing.T) {
	core := NewCore()
	for i := range core.Regs {
		core.Regs[i] = uint32(0x1000 + i)
	}

	saved := core.Regs

	// User shares the System bank, so it is not part of the round trip.
	for _, mode := range []Mode{FIQ, IRQ, SVC, Abort, Undefined} {
		core.SetMode(mode)
		// Clobber the banked registers of the new mode.
		core.Regs[SP] = 0xDEAD0000
		core.Regs[LR] = 0xDEAD0001
		if mode == FIQ {
			for i := 8; i < 15; i++ {
				core.Regs[i] = 0xDEAD0000 + uint32(i)
			}
		}
		core.SetMode(System)
		if core.Regs != saved {
			t.Errorf("mode %d round trip corrupted registers: got %08x expected %08x",
				mode, core.Regs, saved)
		}
	}
}

// Banked registers persist per mode across switches.
func TestBankedRegs(t *testing.T) {
	core := NewCore()
	core.SetMode(SVC)
	core.Regs[SP] = 0x11110000
	core.SetMode(IRQ)
	core.Regs[SP] = 0x22220000
	core.SetMode(SVC)
	if core.Regs[SP] != 0x11110000 {
		t.Errorf("SVC SP got: %08x expected: %08x", core.Regs[SP], 0x11110000)
	}
	core.SetMode(IRQ)
	if core.Regs[SP] != 0x22220000 {
		t.Errorf("IRQ SP got: %08x expected: %08x", core.Regs[SP], 0x22220000)
	}
}

func TestUndefinedException(t *testing.T) {
	core := NewCore()
	core.Regs[PC] = 0x1000
	core.CPSR = 0x1F // System mode
	core.SetThumb(true)

	core.TriggerException(UndefinedInstruction)

	if core.Mode != Undefined {
		t.Errorf("mode got: %d expected: %d", core.Mode, Undefined)
	}
	if core.Regs[PC] != 0xFFFF0004 {
		t.Errorf("vector got: %08x expected: %08x", core.Regs[PC], 0xFFFF0004)
	}
	if core.Regs[LR] != 0x1000 {
		t.Errorf("LR got: %08x expected: %08x", core.Regs[LR], 0x1000)
	}
	if core.Thumb || core.CPSR.Get(FlagT) {
		t.Errorf("thumb state survived exception entry")
	}
	if uint32(core.SPSR)&0x3F != 0x3F { // old mode + T bit
		t.Errorf("SPSR got: %08x expected low bits 0x3F", uint32(core.SPSR))
	}
}

func TestDataAbortException(t *testing.T) {
	core := NewCore()
	core.Regs[PC] = 0x2000
	core.CPSR = 0x1F

	core.TriggerException(DataAbort)

	if core.Mode != Abort {
		t.Errorf("mode got: %d expected: %d", core.Mode, Abort)
	}
	if core.Regs[PC] != 0xFFFF0010 {
		t.Errorf("vector got: %08x expected: %08x", core.Regs[PC], 0xFFFF0010)
	}
	if core.Regs[LR] != 0x2004 {
		t.Errorf("LR got: %08x expected: %08x", core.Regs[LR], 0x2004)
	}
	if !core.CPSR.Get(MaskI) {
		t.Errorf("IRQ not masked on exception entry")
	}
}

// IRQ is ignored while CPSR.I is set.
func TestInterruptMasking(t *testing.T) {
	core := NewCore()
	core.Regs[PC] = 0x3000
	core.CPSR = 0x1F | MaskI

	core.TriggerException(InterruptRequest)
	if core.Regs[PC] != 0x3000 || core.Mode != System {
		t.Errorf("masked IRQ was delivered")
	}

	core.CPSR.Set(MaskI, false)
	core.TriggerException(InterruptRequest)
	if core.Regs[PC] != 0xFFFF0018 {
		t.Errorf("vector got: %08x expected: %08x", core.Regs[PC], 0xFFFF0018)
	}
	if core.Mode != IRQ {
		t.Errorf("mode got: %d expected: %d", core.Mode, IRQ)
	}
	if core.Regs[LR] != 0x3004 {
		t.Errorf("LR got: %08x expected: %08x", core.Regs[LR], 0x3004)
	}
}
