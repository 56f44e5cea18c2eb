package ppc

/*
 * Latte - PowerPC core state
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

	"github.com/rcornwell/latte/util/bits"
)

// FPR is one floating point register of the paired-single unit. Loads and
// stores address either the double or the two single lanes; the firmware
// never depends on punning between the views.
type FPR struct {
	PS0 float32
	PS1 float32
	Dbl float64
}

// Special purpose register numbers handled by the core. Anything else is
// delegated to the SPR callbacks.
const (
	SprXER   = 1
	SprLR    = 8
	SprCTR   = 9
	SprDSISR = 18
	SprDAR   = 19
	SprDEC   = 22
	SprSDR1  = 25
	SprSRR0  = 26
	SprSRR1  = 27
	SprUTBL  = 268
	SprUTBU  = 269
	SprSPRG0 = 272
	SprSPRG1 = 273
	SprSPRG2 = 274
	SprSPRG3 = 275
	SprTBL   = 284
	SprTBU   = 285
	SprIBAT0U = 528
	SprDBAT0U = 536
	SprUGQR0 = 896
	SprUGQR7 = 903
	SprGQR0  = 912
	SprGQR7  = 919
	SprUPIR  = 1007
	SprTHRM3 = 1022
)

// CR0 and XER bit masks.
const (
	FlagLT = 1 << 31
	FlagGT = 1 << 30
	FlagEQ = 1 << 29

	FlagSO = 1 << 31
	FlagOV = 1 << 30
	FlagCA = 1 << 29
)

// MSR bits the core inspects.
const (
	msrEE = 0x8000
)

// Exception selects a vector for TriggerException.
type Exception int

const (
	DSI Exception = iota
	ISI
	ExternalInterrupt
	Decrementer
	SystemCall
	ICI
)

// Callback signatures for state the core does not own: unhandled SPRs,
// the segment registers (owned by the MMU) and MSR side effects.
type (
	SprReadFunc  func(spr int) (uint32, bool)
	SprWriteFunc func(spr int, value uint32) bool
	MSRWriteFunc func(value uint32) bool
	SrReadFunc   func(index int) (uint32, bool)
	SrWriteFunc  func(index int, value uint32) bool
)

// Core is the register state of one application processor.
type Core struct {
	Lock *LockMgr

	Regs [32]uint32
	FPRs [32]FPR
	GQRs [8]uint32

	PC  uint32
	CR  bits.Bits
	LR  uint32
	CTR uint32
	XER bits.Bits

	MSR   uint32
	SRR0  uint32
	SRR1  uint32
	DSISR uint32
	DAR   uint32

	TB    uint64
	UPIR  uint32
	SPRG0 uint32
	SPRG1 uint32
	SPRG2 uint32
	SPRG3 uint32
	THRM3 uint32

	FPSCR uint32

	sprRead  SprReadFunc
	sprWrite SprWriteFunc
	msrWrite MSRWriteFunc
	srRead   SrReadFunc
	srWrite  SrWriteFunc

	decrementerPending bool
	iciPending         bool
}

// NewCore returns a core sharing the lock manager with its siblings.
func NewCore(lock *LockMgr) *Core {
	return &Core{Lock: lock}
}

func (c *Core) SetSprReadFunc(fn SprReadFunc)   { c.sprRead = fn }
func (c *Core) SetSprWriteFunc(fn SprWriteFunc) { c.sprWrite = fn }
func (c *Core) SetMSRWriteFunc(fn MSRWriteFunc) { c.msrWrite = fn }
func (c *Core) SetSrReadFunc(fn SrReadFunc)     { c.srRead = fn }
func (c *Core) SetSrWriteFunc(fn SrWriteFunc)   { c.srWrite = fn }

// SetSpr writes a special purpose register, delegating unknown numbers to
// the SPR write callback.
func (c *Core) SetSpr(spr int, value uint32) error {
	switch {
	case spr == SprLR:
		c.LR = value
	case spr == SprCTR:
		c.CTR = value
	case spr == SprXER:
		c.XER = bits.Bits(value)
	case spr == SprSPRG0:
		c.SPRG0 = value
	case spr == SprSPRG1:
		c.SPRG1 = value
	case spr == SprSPRG2:
		c.SPRG2 = value
	case spr == SprSPRG3:
		c.SPRG3 = value
	case spr == SprUPIR:
		c.UPIR = value
	case spr == SprTHRM3:
		c.THRM3 = value
	case spr == SprTBL:
		c.TB = (c.TB & 0xFFFFFFFF00000000) | uint64(value)
	case spr == SprTBU:
		c.TB = (c.TB & 0x00000000FFFFFFFF) | (uint64(value) << 32)
	case spr == SprDSISR:
		c.DSISR = value
	case spr == SprDAR:
		c.DAR = value
	case spr == SprSRR0:
		c.SRR0 = value
	case spr == SprSRR1:
		c.SRR1 = value
	case SprUGQR0 <= spr && spr <= SprUGQR7:
		c.GQRs[spr-SprUGQR0] = value
	case SprGQR0 <= spr && spr <= SprGQR7:
		c.GQRs[spr-SprGQR0] = value
	default:
		if c.sprWrite == nil {
			return fmt.Errorf("no SPR write callback installed (spr %d)", spr)
		}
		if !c.sprWrite(spr, value) {
			return fmt.Errorf("SPR write failed (spr %d)", spr)
		}
	}
	return nil
}

// GetSpr reads a special purpose register, delegating unknown numbers to
// the SPR read callback.
func (c *Core) GetSpr(spr int) (uint32, error) {
	switch {
	case spr == SprLR:
		return c.LR, nil
	case spr == SprCTR:
		return c.CTR, nil
	case spr == SprXER:
		return uint32(c.XER), nil
	case spr == SprSPRG0:
		return c.SPRG0, nil
	case spr == SprSPRG1:
		return c.SPRG1, nil
	case spr == SprSPRG2:
		return c.SPRG2, nil
	case spr == SprSPRG3:
		return c.SPRG3, nil
	case spr == SprUPIR:
		return c.UPIR, nil
	case spr == SprTHRM3:
		return c.THRM3, nil
	case spr == SprUTBL:
		return uint32(c.TB), nil
	case spr == SprUTBU:
		return uint32(c.TB >> 32), nil
	case spr == SprDSISR:
		return c.DSISR, nil
	case spr == SprDAR:
		return c.DAR, nil
	case spr == SprSRR0:
		return c.SRR0, nil
	case spr == SprSRR1:
		return c.SRR1, nil
	case SprUGQR0 <= spr && spr <= SprUGQR7:
		return c.GQRs[spr-SprUGQR0], nil
	case SprGQR0 <= spr && spr <= SprGQR7:
		return c.GQRs[spr-SprGQR0], nil
	default:
		if c.sprRead == nil {
			return 0, fmt.Errorf("no SPR read callback installed (spr %d)", spr)
		}
		value, ok := c.sprRead(spr)
		if !ok {
			return 0, fmt.Errorf("SPR read failed (spr %d)", spr)
		}
		return value, nil
	}
}

// SetMSR writes the machine state register. Deferred Decrementer and ICI
// exceptions latched while EE was clear are taken the moment it is set
// again.
func (c *Core) SetMSR(value uint32) error {
	c.MSR = value
	if c.msrWrite != nil {
		if !c.msrWrite(value) {
			return fmt.Errorf("MSR write failed (0x%08x)", value)
		}
	}

	if c.MSR&msrEE != 0 {
		if c.decrementerPending {
			c.decrementerPending = false
			return c.TriggerException(Decrementer)
		}
		if c.iciPending {
			c.iciPending = false
			return c.TriggerException(ICI)
		}
	}
	return nil
}

// SetSr writes a segment register through the callback.
func (c *Core) SetSr(index int, value uint32) error {
	if c.srWrite == nil {
		return fmt.Errorf("no SR write callback installed (sr %d)", index)
	}
	if !c.srWrite(index, value) {
		return fmt.Errorf("SR write failed (sr %d)", index)
	}
	return nil
}

// GetSr reads a segment register through the callback.
func (c *Core) GetSr(index int) (uint32, error) {
	if c.srRead == nil {
		return 0, fmt.Errorf("no SR read callback installed (sr %d)", index)
	}
	value, ok := c.srRead(index)
	if !ok {
		return 0, fmt.Errorf("SR read failed (sr %d)", index)
	}
	return value, nil
}

// TriggerException enters the vector for the exception. External
// interrupts are dropped while MSR.EE is clear; Decrementer and ICI are
// latched and delivered when EE comes back. SRR0 holds the restart PC and
// SRR1 the recoverable-exception view of the MSR.
func (c *Core) TriggerException(exc Exception) error {
	if c.MSR&msrEE == 0 {
		switch exc {
		case ExternalInterrupt:
			return nil
		case Decrementer:
			c.decrementerPending = true
			return nil
		case ICI:
			c.iciPending = true
			return nil
		}
	}

	c.SRR0 = c.PC
	c.SRR1 = (c.MSR & 0xFF73) | 2 // Recoverable exception
	if err := c.SetMSR(c.MSR &^ 0x4EF70); err != nil {
		return err
	}

	switch exc {
	case DSI:
		c.SRR0 = c.PC - 4
		c.PC = 0xFFF00300
	case ISI:
		c.PC = 0xFFF00400
	case ExternalInterrupt:
		c.PC = 0xFFF00500
	case Decrementer:
		c.PC = 0xFFF00900
	case SystemCall:
		c.PC = 0xFFF00C00
	case ICI:
		c.PC = 0xFFF01700
	}
	return nil
}
