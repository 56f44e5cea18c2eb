package ppc

/*
 * Latte - PowerPC instruction execution
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
	"math"
	mbits "math/bits"

	"github.com/rcornwell/latte/util/bits"
)

// instruction is a raw 32-bit PowerPC encoding. Field accessors use the
// manual's names; the primary opcode lives in the top six bits.
type instruction uint32

func (i instruction) opcd() int  { return int(i >> 26) }
func (i instruction) opcd2() int { return int(i>>1) & 0x3FF }
func (i instruction) opcd3() int { return int(i>>1) & 0x1F }

func (i instruction) rD() int { return int(i>>21) & 0x1F }
func (i instruction) rS() int { return int(i>>21) & 0x1F }
func (i instruction) rA() int { return int(i>>16) & 0x1F }
func (i instruction) rB() int { return int(i>>11) & 0x1F }
func (i instruction) rC() int { return int(i>>6) & 0x1F }

func (i instruction) simm() uint32 { return uint32(int32(int16(i))) }
func (i instruction) uimm() uint32 { return uint32(i) & 0xFFFF }
func (i instruction) d() uint32    { return i.simm() }

func (i instruction) sh() int  { return int(i>>11) & 0x1F }
func (i instruction) mb() int  { return int(i>>6) & 0x1F }
func (i instruction) me() int  { return int(i>>1) & 0x1F }
func (i instruction) rc() bool { return i&1 != 0 }

func (i instruction) lk() bool { return i&1 != 0 }
func (i instruction) aa() bool { return i>>1&1 != 0 }
func (i instruction) bo() int  { return int(i>>21) & 0x1F }
func (i instruction) bi() int  { return int(i>>16) & 0x1F }

func (i instruction) bd() uint32 {
	return uint32(int32(int16(uint16(i) & 0xFFFC)))
}

func (i instruction) li() uint32 {
	value := uint32(i) & 0x3FFFFFC
	if value&0x2000000 != 0 {
		value |= 0xFC000000
	}
	return value
}

func (i instruction) crfD() int { return int(i>>23) & 7 }
func (i instruction) crbD() int { return int(i>>21) & 0x1F }
func (i instruction) crbA() int { return int(i>>16) & 0x1F }
func (i instruction) crbB() int { return int(i>>11) & 0x1F }
func (i instruction) crm() int  { return int(i>>12) & 0xFF }

func (i instruction) spr() int { return (int(i>>16) & 0x1F) | (int(i>>11)&0x1F)<<5 }
func (i instruction) sr() int  { return int(i>>16) & 0xF }

func (i instruction) psD() uint32 {
	value := uint32(i) & 0xFFF
	if value&0x800 != 0 {
		value |= 0xFFFFF000
	}
	return value
}

func (i instruction) psI() int  { return int(i>>12) & 7 }
func (i instruction) psW() bool { return i>>15&1 != 0 }

func rotl(value uint32, amount int) uint32 {
	if amount == 0 {
		return value
	}
	return (value << amount) | (value >> (32 - amount))
}

// genmask builds the rotate mask from PowerPC bit numbers. mb > me wraps
// around, e.g. mb=28 me=3 yields 0xF000000F.
func genmask(mb, me int) uint32 {
	if mb <= me {
		return (uint32(0xFFFFFFFF) >> (31 - (me - mb))) << (31 - me)
	}
	return (uint32(0xFFFFFFFF) >> mb) | (uint32(0xFFFFFFFF) << (31 - me))
}

// checkCondition evaluates the BO/BI branch condition, decrementing CTR
// when BO asks for it.
func (cpu *Interpreter) checkCondition(instr instruction) bool {
	core := cpu.Core
	bo := instr.bo()
	if bo&4 == 0 {
		core.CTR--
		if bo&2 != 0 {
			if core.CTR != 0 {
				return false
			}
		} else if core.CTR == 0 {
			return false
		}
	}
	if bo&0x10 != 0 {
		return true
	}
	crBit := uint32(core.CR)>>(31-instr.bi())&1 != 0
	if bo&8 != 0 {
		return crBit
	}
	return !crBit
}

// updateConditions writes CR0 from the signed 32-bit result, copying
// XER.SO into the SO bit.
func (cpu *Interpreter) updateConditions(result uint32) {
	core := cpu.Core
	core.CR.Set(FlagLT, int32(result) < 0)
	core.CR.Set(FlagGT, int32(result) > 0)
	core.CR.Set(FlagEQ, result == 0)
	core.CR.Set(FlagCRSO, core.XER.Get(FlagSO))
}

// FlagCRSO is the summary overflow bit of CR0.
const FlagCRSO = 1 << 28

/********** IMMEDIATE INTEGER **********/

func (cpu *Interpreter) opAddi(instr instruction) bool {
	core := cpu.Core
	var source uint32
	if instr.rA() != 0 {
		source = core.Regs[instr.rA()]
	}
	core.Regs[instr.rD()] = source + instr.simm()
	return true
}

func (cpu *Interpreter) opAddis(instr instruction) bool {
	core := cpu.Core
	var source uint32
	if instr.rA() != 0 {
		source = core.Regs[instr.rA()]
	}
	core.Regs[instr.rD()] = source + instr.simm()<<16
	return true
}

func (cpu *Interpreter) opMulli(instr instruction) bool {
	core := cpu.Core
	core.Regs[instr.rD()] = core.Regs[instr.rA()] * instr.simm()
	return true
}

func (cpu *Interpreter) opOri(instr instruction) bool {
	core := cpu.Core
	core.Regs[instr.rA()] = core.Regs[instr.rS()] | instr.uimm()
	return true
}

func (cpu *Interpreter) opOris(instr instruction) bool {
	core := cpu.Core
	core.Regs[instr.rA()] = core.Regs[instr.rS()] | instr.uimm()<<16
	return true
}

func (cpu *Interpreter) opXori(instr instruction) bool {
	core := cpu.Core
	core.Regs[instr.rA()] = core.Regs[instr.rS()] ^ instr.uimm()
	return true
}

func (cpu *Interpreter) opXoris(instr instruction) bool {
	core := cpu.Core
	core.Regs[instr.rA()] = core.Regs[instr.rS()] ^ instr.uimm()<<16
	return true
}

func (cpu *Interpreter) opAndi(instr instruction) bool {
	core := cpu.Core
	result := core.Regs[instr.rS()] & instr.uimm()
	cpu.updateConditions(result)
	core.Regs[instr.rA()] = result
	return true
}

func (cpu *Interpreter) opAndis(instr instruction) bool {
	core := cpu.Core
	result := core.Regs[instr.rS()] & (instr.uimm() << 16)
	cpu.updateConditions(result)
	core.Regs[instr.rA()] = result
	return true
}

func (cpu *Interpreter) opAddic(instr instruction) bool {
	core := cpu.Core
	result := uint64(core.Regs[instr.rA()]) + uint64(instr.simm())
	core.XER.Set(FlagCA, result>>32 != 0)
	core.Regs[instr.rD()] = uint32(result)
	return true
}

func (cpu *Interpreter) opAddicRc(instr instruction) bool {
	core := cpu.Core
	result := uint64(core.Regs[instr.rA()]) + uint64(instr.simm())
	core.XER.Set(FlagCA, result>>32 != 0)
	cpu.updateConditions(uint32(result))
	core.Regs[instr.rD()] = uint32(result)
	return true
}

func (cpu *Interpreter) opSubfic(instr instruction) bool {
	core := cpu.Core
	result := uint64(^core.Regs[instr.rA()]) + uint64(instr.simm()) + 1
	core.XER.Set(FlagCA, result>>32 != 0)
	core.Regs[instr.rD()] = uint32(result)
	return true
}

func (cpu *Interpreter) opSrawi(instr instruction) bool {
	core := cpu.Core
	value := core.Regs[instr.rS()]
	result := uint32(int32(value) >> instr.sh())

	if instr.sh() != 0 && value>>31 != 0 {
		core.XER.Set(FlagCA, value&genmask(32-instr.sh(), 31) != 0)
	} else {
		core.XER.Set(FlagCA, false)
	}

	if instr.rc() {
		cpu.updateConditions(result)
	}
	core.Regs[instr.rA()] = result
	return true
}

/********** REGISTER INTEGER **********/

func (cpu *Interpreter) opAdd(instr instruction) bool {
	core := cpu.Core
	result := core.Regs[instr.rA()] + core.Regs[instr.rB()]
	if instr.rc() {
		cpu.updateConditions(result)
	}
	core.Regs[instr.rD()] = result
	return true
}

func (cpu *Interpreter) opAddc(instr instruction) bool {
	core := cpu.Core
	result := uint64(core.Regs[instr.rA()]) + uint64(core.Regs[instr.rB()])
	core.XER.Set(FlagCA, result>>32 != 0)
	if instr.rc() {
		cpu.updateConditions(uint32(result))
	}
	core.Regs[instr.rD()] = uint32(result)
	return true
}

func (cpu *Interpreter) opAdde(instr instruction) bool {
	core := cpu.Core
	carry := uint64(0)
	if core.XER.Get(FlagCA) {
		carry = 1
	}
	result := uint64(core.Regs[instr.rA()]) + uint64(core.Regs[instr.rB()]) + carry
	core.XER.Set(FlagCA, result>>32 != 0)
	if instr.rc() {
		cpu.updateConditions(uint32(result))
	}
	core.Regs[instr.rD()] = uint32(result)
	return true
}

func (cpu *Interpreter) opAddze(instr instruction) bool {
	core := cpu.Core
	carry := uint64(0)
	if core.XER.Get(FlagCA) {
		carry = 1
	}
	result := uint64(core.Regs[instr.rA()]) + carry
	core.XER.Set(FlagCA, result>>32 != 0)
	if instr.rc() {
		cpu.updateConditions(uint32(result))
	}
	core.Regs[instr.rD()] = uint32(result)
	return true
}

func (cpu *Interpreter) opSubf(instr instruction) bool {
	core := cpu.Core
	result := core.Regs[instr.rB()] - core.Regs[instr.rA()]
	if instr.rc() {
		cpu.updateConditions(result)
	}
	core.Regs[instr.rD()] = result
	return true
}

func (cpu *Interpreter) opSubfc(instr instruction) bool {
	core := cpu.Core
	result := uint64(^core.Regs[instr.rA()]) + uint64(core.Regs[instr.rB()]) + 1
	core.XER.Set(FlagCA, result>>32 != 0)
	if instr.rc() {
		cpu.updateConditions(uint32(result))
	}
	core.Regs[instr.rD()] = uint32(result)
	return true
}

func (cpu *Interpreter) opSubfe(instr instruction) bool {
	core := cpu.Core
	carry := uint64(0)
	if core.XER.Get(FlagCA) {
		carry = 1
	}
	result := uint64(^core.Regs[instr.rA()]) + uint64(core.Regs[instr.rB()]) + carry
	core.XER.Set(FlagCA, result>>32 != 0)
	if instr.rc() {
		cpu.updateConditions(uint32(result))
	}
	core.Regs[instr.rD()] = uint32(result)
	return true
}

func (cpu *Interpreter) opSubfze(instr instruction) bool {
	core := cpu.Core
	carry := uint64(0)
	if core.XER.Get(FlagCA) {
		carry = 1
	}
	result := uint64(^core.Regs[instr.rA()]) + carry
	core.XER.Set(FlagCA, result>>32 != 0)
	if instr.rc() {
		cpu.updateConditions(uint32(result))
	}
	core.Regs[instr.rD()] = uint32(result)
	return true
}

func (cpu *Interpreter) opMullw(instr instruction) bool {
	core := cpu.Core
	result := core.Regs[instr.rA()] * core.Regs[instr.rB()]
	if instr.rc() {
		cpu.updateConditions(result)
	}
	core.Regs[instr.rD()] = result
	return true
}

func (cpu *Interpreter) opMulhw(instr instruction) bool {
	core := cpu.Core
	result := int64(int32(core.Regs[instr.rA()])) * int64(int32(core.Regs[instr.rB()]))
	if instr.rc() {
		cpu.updateConditions(uint32(result >> 32))
	}
	core.Regs[instr.rD()] = uint32(result >> 32)
	return true
}

func (cpu *Interpreter) opMulhwu(instr instruction) bool {
	core := cpu.Core
	result := uint64(core.Regs[instr.rA()]) * uint64(core.Regs[instr.rB()])
	if instr.rc() {
		cpu.updateConditions(uint32(result >> 32))
	}
	core.Regs[instr.rD()] = uint32(result >> 32)
	return true
}

// opDivwu leaves rD unchanged on a zero divisor and skips the CR update;
// the hardware result is undefined and must not trap.
func (cpu *Interpreter) opDivwu(instr instruction) bool {
	core := cpu.Core
	dividend := core.Regs[instr.rA()]
	divisor := core.Regs[instr.rB()]
	if divisor != 0 {
		result := dividend / divisor
		if instr.rc() {
			cpu.updateConditions(result)
		}
		core.Regs[instr.rD()] = result
	}
	return true
}

func (cpu *Interpreter) opDivw(instr instruction) bool {
	core := cpu.Core
	dividend := int32(core.Regs[instr.rA()])
	divisor := int32(core.Regs[instr.rB()])
	if divisor != 0 && !(dividend == math.MinInt32 && divisor == -1) {
		result := uint32(dividend / divisor)
		if instr.rc() {
			cpu.updateConditions(result)
		}
		core.Regs[instr.rD()] = result
	}
	return true
}

func (cpu *Interpreter) opOr(instr instruction) bool {
	core := cpu.Core
	result := core.Regs[instr.rS()] | core.Regs[instr.rB()]
	if instr.rc() {
		cpu.updateConditions(result)
	}
	core.Regs[instr.rA()] = result
	return true
}

func (cpu *Interpreter) opAnd(instr instruction) bool {
	core := cpu.Core
	result := core.Regs[instr.rS()] & core.Regs[instr.rB()]
	if instr.rc() {
		cpu.updateConditions(result)
	}
	core.Regs[instr.rA()] = result
	return true
}

func (cpu *Interpreter) opXor(instr instruction) bool {
	core := cpu.Core
	result := core.Regs[instr.rS()] ^ core.Regs[instr.rB()]
	if instr.rc() {
		cpu.updateConditions(result)
	}
	core.Regs[instr.rA()] = result
	return true
}

func (cpu *Interpreter) opNor(instr instruction) bool {
	core := cpu.Core
	result := ^(core.Regs[instr.rS()] | core.Regs[instr.rB()])
	if instr.rc() {
		cpu.updateConditions(result)
	}
	core.Regs[instr.rA()] = result
	return true
}

func (cpu *Interpreter) opAndc(instr instruction) bool {
	core := cpu.Core
	result := core.Regs[instr.rS()] &^ core.Regs[instr.rB()]
	if instr.rc() {
		cpu.updateConditions(result)
	}
	core.Regs[instr.rA()] = result
	return true
}

func (cpu *Interpreter) opSlw(instr instruction) bool {
	core := cpu.Core
	amount := core.Regs[instr.rB()] & 0x3F
	var result uint32
	if amount&0x20 == 0 {
		result = core.Regs[instr.rS()] << amount
	}
	if instr.rc() {
		cpu.updateConditions(result)
	}
	core.Regs[instr.rA()] = result
	return true
}

func (cpu *Interpreter) opSrw(instr instruction) bool {
	core := cpu.Core
	amount := core.Regs[instr.rB()] & 0x3F
	var result uint32
	if amount&0x20 == 0 {
		result = core.Regs[instr.rS()] >> amount
	}
	if instr.rc() {
		cpu.updateConditions(result)
	}
	core.Regs[instr.rA()] = result
	return true
}

func (cpu *Interpreter) opSraw(instr instruction) bool {
	core := cpu.Core
	value := core.Regs[instr.rS()]
	amount := core.Regs[instr.rB()] & 0x3F

	var result uint32
	if amount&0x20 == 0 {
		result = uint32(int32(value) >> amount)
		if amount != 0 && value>>31 != 0 {
			core.XER.Set(FlagCA, value&genmask(32-int(amount), 31) != 0)
		} else {
			core.XER.Set(FlagCA, false)
		}
	} else {
		result = uint32(int32(value) >> 31)
		core.XER.Set(FlagCA, value>>31 != 0)
	}

	if instr.rc() {
		cpu.updateConditions(result)
	}
	core.Regs[instr.rA()] = result
	return true
}

func (cpu *Interpreter) opRlwinm(instr instruction) bool {
	core := cpu.Core
	result := rotl(core.Regs[instr.rS()], instr.sh()) & genmask(instr.mb(), instr.me())
	if instr.rc() {
		cpu.updateConditions(result)
	}
	core.Regs[instr.rA()] = result
	return true
}

func (cpu *Interpreter) opRlwimi(instr instruction) bool {
	core := cpu.Core
	mask := genmask(instr.mb(), instr.me())
	temp := rotl(core.Regs[instr.rS()], instr.sh()) & mask
	result := (core.Regs[instr.rA()] &^ mask) | temp
	if instr.rc() {
		cpu.updateConditions(result)
	}
	core.Regs[instr.rA()] = result
	return true
}

func (cpu *Interpreter) opNeg(instr instruction) bool {
	core := cpu.Core
	result := uint32(-int32(core.Regs[instr.rA()]))
	if instr.rc() {
		cpu.updateConditions(result)
	}
	core.Regs[instr.rD()] = result
	return true
}

func (cpu *Interpreter) opExtsb(instr instruction) bool {
	core := cpu.Core
	result := uint32(int32(int8(core.Regs[instr.rS()])))
	if instr.rc() {
		cpu.updateConditions(result)
	}
	core.Regs[instr.rA()] = result
	return true
}

func (cpu *Interpreter) opExtsh(instr instruction) bool {
	core := cpu.Core
	result := uint32(int32(int16(core.Regs[instr.rS()])))
	if instr.rc() {
		cpu.updateConditions(result)
	}
	core.Regs[instr.rA()] = result
	return true
}

func (cpu *Interpreter) opCntlzw(instr instruction) bool {
	core := cpu.Core
	result := uint32(mbits.LeadingZeros32(core.Regs[instr.rS()]))
	if instr.rc() {
		cpu.updateConditions(result)
	}
	core.Regs[instr.rA()] = result
	return true
}

/********** COMPARES **********/

func (cpu *Interpreter) compareSigned(crf int, left, right int32) {
	core := cpu.Core
	core.CR.Set(FlagLT>>(4*crf), left < right)
	core.CR.Set(FlagGT>>(4*crf), left > right)
	core.CR.Set(FlagEQ>>(4*crf), left == right)
}

func (cpu *Interpreter) compareUnsigned(crf int, left, right uint32) {
	core := cpu.Core
	core.CR.Set(FlagLT>>(4*crf), left < right)
	core.CR.Set(FlagGT>>(4*crf), left > right)
	core.CR.Set(FlagEQ>>(4*crf), left == right)
}

func (cpu *Interpreter) opCmpi(instr instruction) bool {
	cpu.compareSigned(instr.crfD(), int32(cpu.Core.Regs[instr.rA()]), int32(instr.simm()))
	return true
}

func (cpu *Interpreter) opCmpli(instr instruction) bool {
	cpu.compareUnsigned(instr.crfD(), cpu.Core.Regs[instr.rA()], instr.uimm())
	return true
}

func (cpu *Interpreter) opCmp(instr instruction) bool {
	cpu.compareSigned(instr.crfD(), int32(cpu.Core.Regs[instr.rA()]), int32(cpu.Core.Regs[instr.rB()]))
	return true
}

func (cpu *Interpreter) opCmpl(instr instruction) bool {
	cpu.compareUnsigned(instr.crfD(), cpu.Core.Regs[instr.rA()], cpu.Core.Regs[instr.rB()])
	return true
}

/********** BRANCHES **********/

func (cpu *Interpreter) opB(instr instruction) bool {
	core := cpu.Core
	target := instr.li()
	if !instr.aa() {
		target += core.PC - 4
	}
	if instr.lk() {
		core.LR = core.PC
	}
	core.PC = target
	return true
}

func (cpu *Interpreter) opBc(instr instruction) bool {
	core := cpu.Core
	if cpu.checkCondition(instr) {
		if instr.lk() {
			core.LR = core.PC
		}
		target := instr.bd()
		if !instr.aa() {
			target += core.PC - 4
		}
		core.PC = target
	}
	return true
}

func (cpu *Interpreter) opBclr(instr instruction) bool {
	core := cpu.Core
	if cpu.checkCondition(instr) {
		target := core.LR
		if instr.lk() {
			core.LR = core.PC
		}
		core.PC = target
	}
	return true
}

func (cpu *Interpreter) opBcctr(instr instruction) bool {
	core := cpu.Core
	if cpu.checkCondition(instr) {
		if instr.lk() {
			core.LR = core.PC
		}
		core.PC = core.CTR
	}
	return true
}

/********** LOADS AND STORES **********/

func (i instruction) dAddr(core *Core) uint32 {
	var base uint32
	if i.rA() != 0 {
		base = core.Regs[i.rA()]
	}
	return base + i.d()
}

func (i instruction) xAddr(core *Core) uint32 {
	var base uint32
	if i.rA() != 0 {
		base = core.Regs[i.rA()]
	}
	return base + core.Regs[i.rB()]
}

func (cpu *Interpreter) opLbz(instr instruction) bool {
	value, ok := cpu.Read8(instr.dAddr(cpu.Core))
	if !ok {
		return false
	}
	cpu.Core.Regs[instr.rD()] = uint32(value)
	return true
}

func (cpu *Interpreter) opLhz(instr instruction) bool {
	value, ok := cpu.Read16(instr.dAddr(cpu.Core))
	if !ok {
		return false
	}
	cpu.Core.Regs[instr.rD()] = uint32(value)
	return true
}

func (cpu *Interpreter) opLha(instr instruction) bool {
	value, ok := cpu.Read16(instr.dAddr(cpu.Core))
	if !ok {
		return false
	}
	cpu.Core.Regs[instr.rD()] = uint32(int32(int16(value)))
	return true
}

func (cpu *Interpreter) opLwz(instr instruction) bool {
	value, ok := cpu.Read32(instr.dAddr(cpu.Core))
	if !ok {
		return false
	}
	cpu.Core.Regs[instr.rD()] = value
	return true
}

func (cpu *Interpreter) opLfs(instr instruction) bool {
	value, ok := cpu.Read32(instr.dAddr(cpu.Core))
	if !ok {
		return false
	}
	cpu.Core.FPRs[instr.rD()].PS0 = math.Float32frombits(value)
	return true
}

func (cpu *Interpreter) opLfd(instr instruction) bool {
	value, ok := cpu.Read64(instr.dAddr(cpu.Core))
	if !ok {
		return false
	}
	cpu.Core.FPRs[instr.rD()].Dbl = math.Float64frombits(value)
	return true
}

func (cpu *Interpreter) opStb(instr instruction) bool {
	return cpu.store8(instr.dAddr(cpu.Core), uint8(cpu.Core.Regs[instr.rS()]))
}

func (cpu *Interpreter) opSth(instr instruction) bool {
	return cpu.store16(instr.dAddr(cpu.Core), uint16(cpu.Core.Regs[instr.rS()]))
}

func (cpu *Interpreter) opStw(instr instruction) bool {
	return cpu.store32(instr.dAddr(cpu.Core), cpu.Core.Regs[instr.rS()])
}

func (cpu *Interpreter) opStfs(instr instruction) bool {
	return cpu.store32(instr.dAddr(cpu.Core), math.Float32bits(cpu.Core.FPRs[instr.rS()].PS0))
}

func (cpu *Interpreter) opStfd(instr instruction) bool {
	return cpu.store64(instr.dAddr(cpu.Core), math.Float64bits(cpu.Core.FPRs[instr.rS()].Dbl))
}

func (cpu *Interpreter) opLbzu(instr instruction) bool {
	core := cpu.Core
	addr := core.Regs[instr.rA()] + instr.d()
	value, ok := cpu.Read8(addr)
	if !ok {
		return false
	}
	core.Regs[instr.rD()] = uint32(value)
	core.Regs[instr.rA()] = addr
	return true
}

func (cpu *Interpreter) opLhzu(instr instruction) bool {
	core := cpu.Core
	addr := core.Regs[instr.rA()] + instr.d()
	value, ok := cpu.Read16(addr)
	if !ok {
		return false
	}
	core.Regs[instr.rD()] = uint32(value)
	core.Regs[instr.rA()] = addr
	return true
}

func (cpu *Interpreter) opLwzu(instr instruction) bool {
	core := cpu.Core
	addr := core.Regs[instr.rA()] + instr.d()
	core.Regs[instr.rA()] = addr
	value, ok := cpu.Read32(addr)
	if !ok {
		return false
	}
	core.Regs[instr.rD()] = value
	return true
}

func (cpu *Interpreter) opStbu(instr instruction) bool {
	core := cpu.Core
	addr := core.Regs[instr.rA()] + instr.d()
	if !cpu.store8(addr, uint8(core.Regs[instr.rS()])) {
		return false
	}
	core.Regs[instr.rA()] = addr
	return true
}

func (cpu *Interpreter) opSthu(instr instruction) bool {
	core := cpu.Core
	addr := core.Regs[instr.rA()] + instr.d()
	if !cpu.store16(addr, uint16(core.Regs[instr.rS()])) {
		return false
	}
	core.Regs[instr.rA()] = addr
	return true
}

func (cpu *Interpreter) opStwu(instr instruction) bool {
	core := cpu.Core
	addr := core.Regs[instr.rA()] + instr.d()
	if !cpu.store32(addr, core.Regs[instr.rS()]) {
		return false
	}
	core.Regs[instr.rA()] = addr
	return true
}

func (cpu *Interpreter) opLbzx(instr instruction) bool {
	value, ok := cpu.Read8(instr.xAddr(cpu.Core))
	if !ok {
		return false
	}
	cpu.Core.Regs[instr.rD()] = uint32(value)
	return true
}

func (cpu *Interpreter) opLhzx(instr instruction) bool {
	value, ok := cpu.Read16(instr.xAddr(cpu.Core))
	if !ok {
		return false
	}
	cpu.Core.Regs[instr.rD()] = uint32(value)
	return true
}

func (cpu *Interpreter) opLwzx(instr instruction) bool {
	value, ok := cpu.Read32(instr.xAddr(cpu.Core))
	if !ok {
		return false
	}
	cpu.Core.Regs[instr.rD()] = value
	return true
}

func (cpu *Interpreter) opStbx(instr instruction) bool {
	return cpu.store8(instr.xAddr(cpu.Core), uint8(cpu.Core.Regs[instr.rS()]))
}

func (cpu *Interpreter) opSthx(instr instruction) bool {
	return cpu.store16(instr.xAddr(cpu.Core), uint16(cpu.Core.Regs[instr.rS()]))
}

func (cpu *Interpreter) opStwx(instr instruction) bool {
	return cpu.store32(instr.xAddr(cpu.Core), cpu.Core.Regs[instr.rS()])
}

func (cpu *Interpreter) opLbzux(instr instruction) bool {
	core := cpu.Core
	addr := core.Regs[instr.rA()] + core.Regs[instr.rB()]
	core.Regs[instr.rA()] = addr
	value, ok := cpu.Read8(addr)
	if !ok {
		return false
	}
	core.Regs[instr.rD()] = uint32(value)
	return true
}

func (cpu *Interpreter) opLwzux(instr instruction) bool {
	core := cpu.Core
	addr := core.Regs[instr.rA()] + core.Regs[instr.rB()]
	core.Regs[instr.rA()] = addr
	value, ok := cpu.Read32(addr)
	if !ok {
		return false
	}
	core.Regs[instr.rD()] = value
	return true
}

func (cpu *Interpreter) opStwux(instr instruction) bool {
	core := cpu.Core
	addr := core.Regs[instr.rA()] + core.Regs[instr.rB()]
	if !cpu.store32(addr, core.Regs[instr.rS()]) {
		return false
	}
	core.Regs[instr.rA()] = addr
	return true
}

func (cpu *Interpreter) opLmw(instr instruction) bool {
	core := cpu.Core
	addr := instr.dAddr(core)
	for reg := instr.rD(); reg < 32; reg++ {
		value, ok := cpu.Read32(addr)
		if !ok {
			return false
		}
		core.Regs[reg] = value
		addr += 4
	}
	return true
}

func (cpu *Interpreter) opStmw(instr instruction) bool {
	core := cpu.Core
	addr := instr.dAddr(core)
	for reg := instr.rS(); reg < 32; reg++ {
		if !cpu.store32(addr, core.Regs[reg]) {
			return false
		}
		addr += 4
	}
	return true
}

func (cpu *Interpreter) opLwarx(instr instruction) bool {
	core := cpu.Core
	addr := instr.xAddr(core)
	core.Lock.Reserve(core, addr)
	value, ok := cpu.Read32(addr)
	if !ok {
		return false
	}
	core.Regs[instr.rD()] = value
	return true
}

func (cpu *Interpreter) opStwcx(instr instruction) bool {
	core := cpu.Core
	addr := instr.xAddr(core)
	if core.Lock.IsReserved(core, addr) {
		if !cpu.Write32(addr, core.Regs[instr.rS()]) {
			return false
		}
		core.CR.Set(FlagEQ, true)
		core.Lock.Reset()
	} else {
		core.CR.Set(FlagEQ, false)
	}
	core.CR.Set(FlagLT|FlagGT, false)
	core.CR.Set(FlagCRSO, core.XER.Get(FlagSO))
	return true
}

/********** CR AND SPR OPERATIONS **********/

func (cpu *Interpreter) opCrxor(instr instruction) bool {
	core := cpu.Core
	a := core.CR.Get(uint32(0x80000000) >> instr.crbA())
	b := core.CR.Get(uint32(0x80000000) >> instr.crbB())
	core.CR.Set(uint32(0x80000000)>>instr.crbD(), a != b)
	return true
}

func (cpu *Interpreter) opMfcr(instr instruction) bool {
	cpu.Core.Regs[instr.rD()] = uint32(cpu.Core.CR)
	return true
}

func (cpu *Interpreter) opMtcrf(instr instruction) bool {
	core := cpu.Core
	var mask uint32
	for i := 7; i >= 0; i-- {
		mask <<= 4
		if instr.crm()&(1<<i) != 0 {
			mask |= 0xF
		}
	}
	core.CR = (core.CR &^ bits.Bits(mask)) | bits.Bits(core.Regs[instr.rS()]&mask)
	return true
}

func (cpu *Interpreter) opMfspr(instr instruction) bool {
	value, err := cpu.Core.GetSpr(instr.spr())
	if err != nil {
		return cpu.fail(err)
	}
	cpu.Core.Regs[instr.rD()] = value
	return true
}

func (cpu *Interpreter) opMtspr(instr instruction) bool {
	if err := cpu.Core.SetSpr(instr.spr(), cpu.Core.Regs[instr.rS()]); err != nil {
		return cpu.fail(err)
	}
	return true
}

func (cpu *Interpreter) opMftb(instr instruction) bool {
	value, err := cpu.Core.GetSpr(instr.spr())
	if err != nil {
		return cpu.fail(err)
	}
	cpu.Core.Regs[instr.rD()] = value
	return true
}

func (cpu *Interpreter) opSc(instr instruction) bool {
	if err := cpu.Core.TriggerException(SystemCall); err != nil {
		return cpu.fail(err)
	}
	return true
}

/********** SUPERVISOR **********/

func (cpu *Interpreter) opMfmsr(instr instruction) bool {
	cpu.Core.Regs[instr.rD()] = cpu.Core.MSR
	return true
}

func (cpu *Interpreter) opMtmsr(instr instruction) bool {
	if err := cpu.Core.SetMSR(cpu.Core.Regs[instr.rS()]); err != nil {
		return cpu.fail(err)
	}
	return true
}

func (cpu *Interpreter) opMfsr(instr instruction) bool {
	value, err := cpu.Core.GetSr(instr.sr())
	if err != nil {
		return cpu.fail(err)
	}
	cpu.Core.Regs[instr.rD()] = value
	return true
}

func (cpu *Interpreter) opMtsr(instr instruction) bool {
	if err := cpu.Core.SetSr(instr.sr(), cpu.Core.Regs[instr.rS()]); err != nil {
		return cpu.fail(err)
	}
	return true
}

func (cpu *Interpreter) opTlbie(instr instruction) bool {
	cpu.InvalidateMMUCache()
	return true
}

// opRfi restores PC and MSR from SRR0/SRR1 as one unit, undoing the state
// captured by TriggerException.
func (cpu *Interpreter) opRfi(instr instruction) bool {
	core := cpu.Core
	core.PC = core.SRR0
	if err := core.SetMSR(core.SRR1); err != nil {
		return cpu.fail(err)
	}
	return true
}

/********** CACHE AND SYNCHRONIZATION **********/

// The barriers are architectural no-ops here: within one CPU instruction
// order already defines the memory order, and cross-CPU ordering comes
// from the reservation cell and the mailbox mutexes.
func (cpu *Interpreter) opNop(instr instruction) bool { return true }

func (cpu *Interpreter) opDcbz(instr instruction) bool {
	core := cpu.Core
	var base uint32
	if instr.rA() != 0 {
		base = core.Regs[instr.rA()]
	}
	addr := (base + core.Regs[instr.rB()]) &^ 0x1F
	for i := 0; i < 4; i++ {
		if !cpu.store64(addr, 0) {
			return false
		}
		addr += 8
	}
	return true
}

func (cpu *Interpreter) opIcbi(instr instruction) bool {
	cpu.InvalidateMMUCache()
	return true
}

/********** FLOATING POINT **********/

func (cpu *Interpreter) opFrsp(instr instruction) bool {
	core := cpu.Core
	core.FPRs[instr.rD()].PS0 = float32(core.FPRs[instr.rB()].Dbl)
	return true
}

func (cpu *Interpreter) opFmuls(instr instruction) bool {
	core := cpu.Core
	core.FPRs[instr.rD()].PS0 = core.FPRs[instr.rA()].PS0 * core.FPRs[instr.rC()].PS0
	return true
}

/********** PAIRED SINGLE **********/

// opPsqL loads one or two quantized singles. Only the float pass-through
// format is implemented; the integer dequantize formats fail the step.
func (cpu *Interpreter) opPsqL(instr instruction) bool {
	core := cpu.Core
	var base uint32
	if instr.rA() != 0 {
		base = core.Regs[instr.rA()]
	}
	addr := base + instr.psD()

	config := core.GQRs[instr.psI()]
	ldType := config >> 16 & 7
	if ldType&4 != 0 { // Dequantize
		return cpu.notImplemented("psq_l dequantize type %d at 0x%08x", ldType, core.PC)
	}

	value, ok := cpu.Read32(addr)
	if !ok {
		return false
	}
	core.FPRs[instr.rD()].PS0 = math.Float32frombits(value)
	if instr.psW() {
		core.FPRs[instr.rD()].PS1 = 1.0
	} else {
		value, ok = cpu.Read32(addr + 4)
		if !ok {
			return false
		}
		core.FPRs[instr.rD()].PS1 = math.Float32frombits(value)
	}
	return true
}

/********** DECODE **********/

// execute dispatches on the primary opcode, then on the extended opcode
// for groups 19, 31, 59 and 63.
func (cpu *Interpreter) execute(instr instruction) bool {
	switch instr.opcd() {
	case 4:
		return cpu.opNop(instr) // dcbz_l
	case 7:
		return cpu.opMulli(instr)
	case 8:
		return cpu.opSubfic(instr)
	case 10:
		return cpu.opCmpli(instr)
	case 11:
		return cpu.opCmpi(instr)
	case 12:
		return cpu.opAddic(instr)
	case 13:
		return cpu.opAddicRc(instr)
	case 14:
		return cpu.opAddi(instr)
	case 15:
		return cpu.opAddis(instr)
	case 16:
		return cpu.opBc(instr)
	case 17:
		return cpu.opSc(instr)
	case 18:
		return cpu.opB(instr)
	case 19:
		switch instr.opcd2() {
		case 16:
			return cpu.opBclr(instr)
		case 50:
			return cpu.opRfi(instr)
		case 150:
			return cpu.opNop(instr) // isync
		case 193:
			return cpu.opCrxor(instr)
		case 528:
			return cpu.opBcctr(instr)
		default:
			return cpu.notImplemented("PPC opcode 19: %d at 0x%08x", instr.opcd2(), cpu.Core.PC)
		}
	case 20:
		return cpu.opRlwimi(instr)
	case 21:
		return cpu.opRlwinm(instr)
	case 24:
		return cpu.opOri(instr)
	case 25:
		return cpu.opOris(instr)
	case 26:
		return cpu.opXori(instr)
	case 27:
		return cpu.opXoris(instr)
	case 28:
		return cpu.opAndi(instr)
	case 29:
		return cpu.opAndis(instr)
	case 31:
		switch instr.opcd2() {
		case 0:
			return cpu.opCmp(instr)
		case 8:
			return cpu.opSubfc(instr)
		case 10:
			return cpu.opAddc(instr)
		case 11:
			return cpu.opMulhwu(instr)
		case 19:
			return cpu.opMfcr(instr)
		case 20:
			return cpu.opLwarx(instr)
		case 23:
			return cpu.opLwzx(instr)
		case 24:
			return cpu.opSlw(instr)
		case 26:
			return cpu.opCntlzw(instr)
		case 28:
			return cpu.opAnd(instr)
		case 32:
			return cpu.opCmpl(instr)
		case 40:
			return cpu.opSubf(instr)
		case 54:
			return cpu.opNop(instr) // dcbst
		case 55:
			return cpu.opLwzux(instr)
		case 60:
			return cpu.opAndc(instr)
		case 75:
			return cpu.opMulhw(instr)
		case 83:
			return cpu.opMfmsr(instr)
		case 86:
			return cpu.opNop(instr) // dcbf
		case 87:
			return cpu.opLbzx(instr)
		case 104:
			return cpu.opNeg(instr)
		case 119:
			return cpu.opLbzux(instr)
		case 124:
			return cpu.opNor(instr)
		case 136:
			return cpu.opSubfe(instr)
		case 138:
			return cpu.opAdde(instr)
		case 144:
			return cpu.opMtcrf(instr)
		case 146:
			return cpu.opMtmsr(instr)
		case 150:
			return cpu.opStwcx(instr)
		case 151:
			return cpu.opStwx(instr)
		case 183:
			return cpu.opStwux(instr)
		case 200:
			return cpu.opSubfze(instr)
		case 202:
			return cpu.opAddze(instr)
		case 210:
			return cpu.opMtsr(instr)
		case 215:
			return cpu.opStbx(instr)
		case 235:
			return cpu.opMullw(instr)
		case 266:
			return cpu.opAdd(instr)
		case 279:
			return cpu.opLhzx(instr)
		case 306:
			return cpu.opTlbie(instr)
		case 316:
			return cpu.opXor(instr)
		case 339:
			return cpu.opMfspr(instr)
		case 371:
			return cpu.opMftb(instr)
		case 407:
			return cpu.opSthx(instr)
		case 444:
			return cpu.opOr(instr)
		case 459:
			return cpu.opDivwu(instr)
		case 467:
			return cpu.opMtspr(instr)
		case 470:
			return cpu.opNop(instr) // dcbi
		case 491:
			return cpu.opDivw(instr)
		case 536:
			return cpu.opSrw(instr)
		case 595:
			return cpu.opMfsr(instr)
		case 598:
			return cpu.opNop(instr) // sync
		case 792:
			return cpu.opSraw(instr)
		case 824:
			return cpu.opSrawi(instr)
		case 854:
			return cpu.opNop(instr) // eieio
		case 922:
			return cpu.opExtsh(instr)
		case 954:
			return cpu.opExtsb(instr)
		case 982:
			return cpu.opIcbi(instr)
		case 1014:
			return cpu.opDcbz(instr)
		default:
			return cpu.notImplemented("PPC opcode 31: %d at 0x%08x", instr.opcd2(), cpu.Core.PC)
		}
	case 32:
		return cpu.opLwz(instr)
	case 33:
		return cpu.opLwzu(instr)
	case 34:
		return cpu.opLbz(instr)
	case 35:
		return cpu.opLbzu(instr)
	case 36:
		return cpu.opStw(instr)
	case 37:
		return cpu.opStwu(instr)
	case 38:
		return cpu.opStb(instr)
	case 39:
		return cpu.opStbu(instr)
	case 40:
		return cpu.opLhz(instr)
	case 41:
		return cpu.opLhzu(instr)
	case 42:
		return cpu.opLha(instr)
	case 44:
		return cpu.opSth(instr)
	case 45:
		return cpu.opSthu(instr)
	case 46:
		return cpu.opLmw(instr)
	case 47:
		return cpu.opStmw(instr)
	case 48:
		return cpu.opLfs(instr)
	case 50:
		return cpu.opLfd(instr)
	case 52:
		return cpu.opStfs(instr)
	case 54:
		return cpu.opStfd(instr)
	case 56:
		return cpu.opPsqL(instr)
	case 59:
		switch instr.opcd3() {
		case 25:
			return cpu.opFmuls(instr)
		default:
			return cpu.notImplemented("PPC opcode 59: %d at 0x%08x", instr.opcd3(), cpu.Core.PC)
		}
	case 63:
		switch instr.opcd2() {
		case 12:
			return cpu.opFrsp(instr)
		default:
			return cpu.notImplemented("PPC opcode 63: %d at 0x%08x", instr.opcd2(), cpu.Core.PC)
		}
	default:
		return cpu.notImplemented("PPC opcode %d at 0x%08x", instr.opcd(), cpu.Core.PC)
	}
}
