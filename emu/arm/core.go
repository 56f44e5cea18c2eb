package arm

/*
 * Latte - ARM core state
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
	"github.com/rcornwell/latte/util/bits"
)

// Register names within the live register file.
const (
	R0 = iota
	R1
	R2
	R3
	R4
	R5
	R6
	R7
	R8
	R9
	R10
	R11
	R12
	SP
	LR
	PC
)

// CPSR bits.
const (
	FlagN = 1 << 31
	FlagZ = 1 << 30
	FlagC = 1 << 29
	FlagV = 1 << 28
	MaskI = 1 << 7
	MaskF = 1 << 6
	FlagT = 1 << 5
)

// Mode is the processor mode held in CPSR bits 4..0.
type Mode uint32

const (
	User      Mode = 16
	FIQ       Mode = 17
	IRQ       Mode = 18
	SVC       Mode = 19
	Abort     Mode = 23
	Undefined Mode = 27
	System    Mode = 31
)

// Exception selects a vector for TriggerException.
type Exception int

const (
	UndefinedInstruction Exception = iota
	DataAbort
	InterruptRequest
)

// Core holds the ARM register state. Sixteen registers are live at any
// moment; the privileged modes keep shadow banks that are swapped in and
// out as a unit when the mode changes. RegsUser is additionally the
// user-bank view for LDM/STM with the S bit.
type Core struct {
	Mode     Mode
	Regs     [16]uint32
	RegsUser [16]uint32
	CPSR     bits.Bits
	SPSR     bits.Bits
	Thumb    bool

	regsFiq [7]uint32
	regsIrq [2]uint32
	regsSvc [2]uint32
	regsAbt [2]uint32
	regsUnd [2]uint32
	spsrFiq bits.Bits
	spsrIrq bits.Bits
	spsrSvc bits.Bits
	spsrAbt bits.Bits
	spsrUnd bits.Bits
}

// NewCore returns a core in System mode, ARM state.
func NewCore() *Core {
	return &Core{Mode: System}
}

// SetThumb selects the 16-bit instruction set and keeps CPSR.T in step.
func (c *Core) SetThumb(thumb bool) {
	c.Thumb = thumb
	c.CPSR.Set(FlagT, thumb)
}

// SetMode switches the register bank. The outgoing bank is written back
// before the incoming bank is read; interleaving the two would lose
// registers.
func (c *Core) SetMode(mode Mode) {
	c.WriteModeRegs()
	c.Mode = mode
	c.ReadModeRegs()
}

// WriteModeRegs saves the live registers into the bank of the current mode.
func (c *Core) WriteModeRegs() {
	switch c.Mode {
	case User, System:
		copy(c.RegsUser[:15], c.Regs[:15])
	case FIQ:
		copy(c.RegsUser[:8], c.Regs[:8])
		copy(c.regsFiq[:], c.Regs[8:15])
		c.spsrFiq = c.SPSR
	case IRQ:
		copy(c.RegsUser[:13], c.Regs[:13])
		copy(c.regsIrq[:], c.Regs[13:15])
		c.spsrIrq = c.SPSR
	case SVC:
		copy(c.RegsUser[:13], c.Regs[:13])
		copy(c.regsSvc[:], c.Regs[13:15])
		c.spsrSvc = c.SPSR
	case Abort:
		copy(c.RegsUser[:13], c.Regs[:13])
		copy(c.regsAbt[:], c.Regs[13:15])
		c.spsrAbt = c.SPSR
	case Undefined:
		copy(c.RegsUser[:13], c.Regs[:13])
		copy(c.regsUnd[:], c.Regs[13:15])
		c.spsrUnd = c.SPSR
	}
	c.RegsUser[15] = c.Regs[15]
}

// ReadModeRegs loads the live registers from the bank of the current mode.
func (c *Core) ReadModeRegs() {
	copy(c.Regs[:], c.RegsUser[:])
	switch c.Mode {
	case FIQ:
		copy(c.Regs[8:15], c.regsFiq[:])
		c.SPSR = c.spsrFiq
	case IRQ:
		copy(c.Regs[13:15], c.regsIrq[:])
		c.SPSR = c.spsrIrq
	case SVC:
		copy(c.Regs[13:15], c.regsSvc[:])
		c.SPSR = c.spsrSvc
	case Abort:
		copy(c.Regs[13:15], c.regsAbt[:])
		c.SPSR = c.spsrAbt
	case Undefined:
		copy(c.Regs[13:15], c.regsUnd[:])
		c.SPSR = c.spsrUnd
	}
}

// TriggerException enters the high-vector handler for the exception. The
// banked LR receives the return address with the mode specific adjustment,
// the banked SPSR receives the old CPSR, and the core drops to ARM state.
// An interrupt request is ignored while CPSR.I is set.
func (c *Core) TriggerException(exc Exception) {
	switch exc {
	case UndefinedInstruction:
		c.regsUnd[1] = c.Regs[PC]
		c.spsrUnd = c.CPSR
		c.CPSR = (c.CPSR &^ 0x1F) | 0x9B
		c.SetThumb(false)
		c.SetMode(Undefined)
		c.Regs[PC] = 0xFFFF0004
	case DataAbort:
		c.regsAbt[1] = c.Regs[PC] + 4
		c.spsrAbt = c.CPSR
		c.CPSR = (c.CPSR &^ 0x1F) | 0x97
		c.SetThumb(false)
		c.SetMode(Abort)
		c.Regs[PC] = 0xFFFF0010
	case InterruptRequest:
		if !c.CPSR.Get(MaskI) {
			c.regsIrq[1] = c.Regs[PC] + 4
			c.spsrIrq = c.CPSR
			c.CPSR = (c.CPSR &^ 0x1F) | 0x92
			c.SetThumb(false)
			c.SetMode(IRQ)
			c.Regs[PC] = 0xFFFF0018
		}
	}
}
