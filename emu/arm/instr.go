package arm

/*
 * Latte - ARM32 instruction execution
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

// instruction is a raw 32-bit ARM encoding. Field accessors follow the
// names in the architecture manual; decoding is a pure function of the
// bits.
type instruction uint32

func (i instruction) cond() int   { return int(i >> 28) }
func (i instruction) opcode() int { return int(i>>21) & 0xF }
func (i instruction) shift() int  { return int(i>>4) & 0xFF }
func (i instruction) rotate() int { return int(i>>8) & 0xF }
func (i instruction) cpopc() int  { return int(i>>21) & 7 }
func (i instruction) cp() int     { return int(i>>5) & 7 }

func (i instruction) offset() int32 {
	result := int32(i & 0xFFFFFF)
	if result > 0x800000 {
		result -= 0x1000000
	}
	return result * 4
}

func (i instruction) link() bool { return i>>24&1 != 0 }

func (i instruction) r0() int { return int(i>>16) & 0xF }
func (i instruction) r1() int { return int(i>>12) & 0xF }
func (i instruction) r2() int { return int(i>>8) & 0xF }
func (i instruction) r3() int { return int(i) & 0xF }

func (i instruction) imm() bool  { return i>>25&1 != 0 }
func (i instruction) pre() bool  { return i>>24&1 != 0 }
func (i instruction) up() bool   { return i>>23&1 != 0 }
func (i instruction) byte() bool { return i>>22&1 != 0 }
func (i instruction) spsr() bool { return i>>22&1 != 0 }
func (i instruction) wb() bool   { return i>>21&1 != 0 }
func (i instruction) acc() bool  { return i>>21&1 != 0 }
func (i instruction) load() bool { return i>>20&1 != 0 }
func (i instruction) flags() bool { return i>>20&1 != 0 }
func (i instruction) half() bool { return i>>5&1 != 0 }

// getShifted produces the shifted register operand. Register-specified
// amounts of zero leave value and carry untouched; immediate LSR/ASR/ROR
// of zero encode #32 and RRX. Amounts past 32 follow the saturation rules:
// LSL and LSR go to zero with C=0, ASR sign-fills with C=sign, ROR reduces
// modulo 32.
func getShifted(core *Core, shift, reg int, updateCond bool) uint32 {
	value := core.Regs[reg]
	if reg == PC {
		if shift&1 != 0 {
			value += 8
		} else {
			value += 4
		}
	}

	var amount int
	if shift&1 != 0 {
		amount = int(core.Regs[shift>>4] & 0xFF)
		if amount == 0 {
			return value
		}
	} else {
		amount = shift >> 3
	}

	switch (shift >> 1) & 3 {
	case 0: // Logical left
		if amount != 0 {
			if updateCond {
				if amount <= 32 {
					core.CPSR.Set(FlagC, value&(uint32(1)<<(32-amount)) != 0)
				} else {
					core.CPSR.Set(FlagC, false)
				}
			}
			if amount < 32 {
				value <<= amount
			} else {
				value = 0
			}
		}
	case 1: // Logical right
		if amount == 0 {
			amount = 32
		}
		if updateCond {
			if amount <= 32 {
				core.CPSR.Set(FlagC, value&(uint32(1)<<(amount-1)) != 0)
			} else {
				core.CPSR.Set(FlagC, false)
			}
		}
		if amount < 32 {
			value >>= amount
		} else {
			value = 0
		}
	case 2: // Arithmetic right
		if amount == 0 {
			amount = 32
		}
		if updateCond {
			if amount <= 32 {
				core.CPSR.Set(FlagC, value&(uint32(1)<<(amount-1)) != 0)
			} else {
				core.CPSR.Set(FlagC, value>>31 != 0)
			}
		}
		if amount < 32 {
			value = uint32(int32(value) >> amount)
		} else {
			value = uint32(int32(value) >> 31)
		}
	case 3: // Rotate right
		if amount == 0 { // RRX
			carry := core.CPSR.Get(FlagC)
			if updateCond {
				core.CPSR.Set(FlagC, value&1 != 0)
			}
			value >>= 1
			if carry {
				value |= 1 << 31
			}
		} else {
			amount = (amount-1)%32 + 1 // Reduce into range 1 - 32
			if amount != 32 {
				value = (value >> amount) | (value << (32 - amount))
			}
			if updateCond {
				core.CPSR.Set(FlagC, value>>31 != 0)
			}
		}
	}
	return value
}

func armSubtract(core *Core, v1, v2 uint32, flags bool) uint32 {
	result := v1 - v2
	if flags {
		core.CPSR.Set(FlagC, v1 >= v2)
		if int32(v1) >= int32(v2) {
			core.CPSR.Set(FlagV, result>>31 != 0)
		} else {
			core.CPSR.Set(FlagV, result>>31 == 0)
		}
	}
	return result
}

func armAdd(core *Core, v1, v2 uint32, flags bool) uint32 {
	result := v1 + v2
	if flags {
		core.CPSR.Set(FlagC, v1 > 0xFFFFFFFF-v2)
		if int32(v1) >= -int32(v2) {
			core.CPSR.Set(FlagV, result>>31 != 0)
		} else {
			core.CPSR.Set(FlagV, result>>31 == 0)
		}
	}
	return result
}

func armSubtractWithCarry(core *Core, v1, v2 uint32, flags bool) uint32 {
	carry := core.CPSR.Get(FlagC)
	result := armSubtract(core, v1, v2, flags)
	if !carry {
		if flags {
			if result == 0 {
				core.CPSR.Set(FlagC, true)
			} else if result == 0x80000000 {
				core.CPSR.Set(FlagV, true)
			}
		}
		result--
	}
	return result
}

func (cpu *Interpreter) armDataProcessing(instr instruction) bool {
	core := cpu.Core

	opnd1 := core.Regs[instr.r0()]
	if instr.r0() == PC {
		if instr.shift()&1 != 0 {
			opnd1 += 8
		} else {
			opnd1 += 4
		}
	}

	var opnd2 uint32
	if instr.imm() {
		rot := instr.rotate() * 2
		opnd2 = uint32(instr) & 0xFF
		if rot != 0 {
			opnd2 = (opnd2 >> rot) | (opnd2 << (32 - rot))
		}
	} else {
		opnd2 = getShifted(core, instr.shift(), instr.r3(), instr.flags())
	}

	var result uint32
	opcode := instr.opcode()
	switch opcode {
	case 0, 8: // AND, TST
		result = opnd1 & opnd2
	case 1, 9: // EOR, TEQ
		result = opnd1 ^ opnd2
	case 2, 10: // SUB, CMP
		result = armSubtract(core, opnd1, opnd2, instr.flags())
	case 3: // RSB
		result = armSubtract(core, opnd2, opnd1, instr.flags())
	case 4, 11: // ADD, CMN
		result = armAdd(core, opnd1, opnd2, instr.flags())
	case 5: // ADC
		carry := core.CPSR.Get(FlagC)
		result = armAdd(core, opnd1, opnd2, instr.flags())
		if carry {
			if instr.flags() {
				if result == 0xFFFFFFFF {
					core.CPSR.Set(FlagC, true)
				} else if result == 0x7FFFFFFF {
					core.CPSR.Set(FlagV, true)
				}
			}
			result++
		}
	case 6: // SBC
		result = armSubtractWithCarry(core, opnd1, opnd2, instr.flags())
	case 7: // RSC
		result = armSubtractWithCarry(core, opnd2, opnd1, instr.flags())
	case 12: // ORR
		result = opnd1 | opnd2
	case 13: // MOV
		result = opnd2
	case 14: // BIC
		result = opnd1 &^ opnd2
	default: // MVN
		result = ^opnd2
	}

	if opcode < 8 || opcode >= 12 {
		core.Regs[instr.r1()] = result
		if instr.r1() == PC && result&1 != 0 {
			core.SetThumb(true)
			core.Regs[PC] &^= 1
		}
	}

	if instr.flags() {
		if instr.r1() == PC {
			core.CPSR = core.SPSR
			core.SetMode(Mode(core.CPSR & 0x1F))
			core.SetThumb(core.CPSR.Get(FlagT))
		} else {
			core.CPSR.Set(FlagZ, result == 0)
			core.CPSR.Set(FlagN, result>>31 != 0)
		}
	}

	return true
}

func (cpu *Interpreter) armMultiplyAccumulate(instr instruction) bool {
	core := cpu.Core
	result := core.Regs[instr.r2()] * core.Regs[instr.r3()]
	if instr.acc() {
		result += core.Regs[instr.r1()]
	}

	if instr.flags() {
		core.CPSR.Set(FlagZ, result == 0)
		core.CPSR.Set(FlagN, result>>31 != 0)
	}
	core.Regs[instr.r0()] = result
	return true
}

func (cpu *Interpreter) armMultiplyAccumulateLong(instr instruction) bool {
	core := cpu.Core
	if instr.acc() {
		return cpu.notImplemented("ARM multiply long with accumulate at 0x%08x", core.Regs[PC])
	}

	var result uint64
	if instr>>22&1 != 0 {
		result = uint64(int64(int32(core.Regs[instr.r2()])) * int64(int32(core.Regs[instr.r3()])))
	} else {
		result = uint64(core.Regs[instr.r2()]) * uint64(core.Regs[instr.r3()])
	}

	if instr.flags() {
		core.CPSR.Set(FlagZ, result == 0)
		core.CPSR.Set(FlagN, result>>63 != 0)
	}
	core.Regs[instr.r0()] = uint32(result >> 32)
	core.Regs[instr.r1()] = uint32(result)
	return true
}

func (cpu *Interpreter) armSingleDataTransfer(instr instruction) bool {
	core := cpu.Core

	base := core.Regs[instr.r0()]
	if instr.r0() == PC {
		base += 4
	}

	var offset uint32
	if instr.imm() {
		offset = getShifted(core, instr.shift(), instr.r3(), false)
	} else {
		offset = uint32(instr) & 0xFFF
	}

	indexed := base - offset
	if instr.up() {
		indexed = base + offset
	}
	addr := base
	if instr.pre() {
		addr = indexed
	}

	if instr.load() {
		if instr.byte() {
			value, ok := cpu.Read8(addr)
			if !ok {
				return false
			}
			core.Regs[instr.r1()] = uint32(value)
		} else {
			value, ok := cpu.Read32(addr)
			if !ok {
				return false
			}
			core.Regs[instr.r1()] = value
			if instr.r1() == PC && core.Regs[PC]&1 != 0 {
				core.SetThumb(true)
				core.Regs[PC] &^= 1
			}
		}
	} else {
		value := core.Regs[instr.r1()]
		if instr.r1() == PC {
			value += 8
		}
		if instr.byte() {
			if !cpu.Write8(addr, uint8(value)) {
				return false
			}
		} else {
			if !cpu.Write32(addr, value) {
				return false
			}
		}
	}

	if instr.wb() || !instr.pre() {
		core.Regs[instr.r0()] = indexed
	}

	return true
}

func (cpu *Interpreter) armLoadStoreHalfSigned(instr instruction) bool {
	core := cpu.Core

	base := core.Regs[instr.r0()]
	if instr.r0() == PC {
		base += 4
	}

	var offset uint32
	if instr>>22&1 != 0 {
		offset = uint32(instr&0xF) | uint32(instr>>4)&0xF0
	} else {
		offset = core.Regs[instr.r3()]
	}

	indexed := base - offset
	if instr.up() {
		indexed = base + offset
	}
	addr := base
	if instr.pre() {
		addr = indexed
	}

	if instr.load() {
		if instr.half() {
			value, ok := cpu.Read16(addr)
			if !ok {
				return false
			}
			if instr>>6&1 != 0 { // Signed
				core.Regs[instr.r1()] = uint32(int32(int16(value)))
			} else {
				core.Regs[instr.r1()] = uint32(value)
			}
		} else {
			value, ok := cpu.Read8(addr)
			if !ok {
				return false
			}
			core.Regs[instr.r1()] = uint32(int32(int8(value)))
		}
	} else {
		value := core.Regs[instr.r1()]
		if instr.r1() == PC {
			value += 8
		}
		if instr.half() {
			if !cpu.Write16(addr, uint16(value)) {
				return false
			}
		} else {
			if !cpu.Write8(addr, uint8(value)) {
				return false
			}
		}
	}

	if instr.wb() || !instr.pre() {
		core.Regs[instr.r0()] = indexed
	}

	return true
}

// armLoadStoreMultiple transfers a register list. With the S bit the user
// bank is used instead of the current bank. When the base register is in
// the list with writeback, the writeback value wins; firmware depends on
// that ordering.
func (cpu *Interpreter) armLoadStoreMultiple(instr instruction) bool {
	core := cpu.Core

	if instr>>22&1 != 0 && instr.load() && instr>>15&1 != 0 {
		return cpu.notImplemented("Load/store multiple with S bit and PC at 0x%08x", core.Regs[PC])
	}

	addr := core.Regs[instr.r0()]
	adder := uint32(4)
	reg := 0
	inc := 1
	if !instr.up() {
		adder = ^uint32(3) // -4
		reg = 15
		inc = -1
	}

	regs := &core.Regs
	if instr>>22&1 != 0 {
		core.WriteModeRegs() // Update user bank
		regs = &core.RegsUser
	}

	for i := 0; i < 16; i++ {
		if instr>>reg&1 != 0 {
			if instr.pre() {
				addr += adder
			}
			if instr.load() {
				value, ok := cpu.Read32(addr)
				if !ok {
					return false
				}
				regs[reg] = value
			} else {
				if !cpu.Write32(addr, regs[reg]) {
					return false
				}
			}
			if !instr.pre() {
				addr += adder
			}
		}
		reg += inc
	}

	if core.Regs[PC]&1 != 0 {
		core.SetThumb(true)
		core.Regs[PC] &^= 1
	}

	if instr>>22&1 != 0 {
		core.ReadModeRegs()
	}

	if instr.wb() {
		core.Regs[instr.r0()] = addr
	}
	return true
}

func (cpu *Interpreter) armSwap(instr instruction) bool {
	core := cpu.Core
	addr := core.Regs[instr.r0()]
	if instr.byte() {
		memvalue, ok := cpu.Read8(addr)
		if !ok {
			return false
		}
		if !cpu.Write8(addr, uint8(core.Regs[instr.r3()])) {
			return false
		}
		core.Regs[instr.r1()] = uint32(memvalue)
		return true
	}
	memvalue, ok := cpu.Read32(addr)
	if !ok {
		return false
	}
	if !cpu.Write32(addr, core.Regs[instr.r3()]) {
		return false
	}
	core.Regs[instr.r1()] = memvalue
	return true
}

func (cpu *Interpreter) armBranch(instr instruction) bool {
	core := cpu.Core
	if instr.link() {
		core.Regs[LR] = core.Regs[PC]
	}
	core.Regs[PC] += uint32(instr.offset()) + 4
	return true
}

func (cpu *Interpreter) armBranchAndExchange(instr instruction) bool {
	core := cpu.Core
	if instr&0x20 != 0 { // BLX
		core.Regs[LR] = core.Regs[PC]
	}

	dest := core.Regs[instr.r3()]
	if dest&1 != 0 {
		core.SetThumb(true)
		dest &^= 1
	}
	core.Regs[PC] = dest
	return true
}

func (cpu *Interpreter) armPSRTransfer(instr instruction) bool {
	core := cpu.Core

	if instr&0x200000 == 0 { // MRS
		if instr.spsr() {
			core.Regs[instr.r1()] = uint32(core.SPSR)
		} else {
			core.Regs[instr.r1()] = uint32(core.CPSR)
		}
		return true
	}

	// MSR
	var value uint32
	if instr.imm() {
		rot := instr.rotate() * 2
		value = uint32(instr) & 0xFF
		if rot != 0 {
			value = (value >> rot) | (value << (32 - rot))
		}
	} else {
		value = core.Regs[instr.r3()]
	}

	var mask uint32
	if instr>>19&1 != 0 {
		mask |= 0xFF000000
	}
	if instr>>18&1 != 0 {
		mask |= 0x00FF0000
	}
	if instr>>17&1 != 0 {
		mask |= 0x0000FF00
	}
	if instr>>16&1 != 0 {
		mask |= 0x000000FF
	}

	if instr.spsr() {
		core.SPSR = (core.SPSR &^ bits.Bits(mask)) | bits.Bits(value&mask)
	} else {
		core.CPSR = (core.CPSR &^ bits.Bits(mask)) | bits.Bits(value&mask)
		if mask&0xFF != 0 {
			core.SetMode(Mode(core.CPSR & 0x1F))
		}
	}
	return true
}

func (cpu *Interpreter) armCoprocessorRegisterTransfer(instr instruction) bool {
	core := cpu.Core
	if instr.load() {
		value, ok := cpu.handleCoprocessorRead(instr.r2(), instr.cpopc(), instr.r0(), instr.r3(), instr.cp())
		if !ok {
			return false
		}
		if instr.r1() == PC {
			core.CPSR = (core.CPSR &^ 0xF0000000) | bits.Bits(value&0xF0000000)
		} else {
			core.Regs[instr.r1()] = value
		}
		return true
	}
	value := core.Regs[instr.r1()]
	if instr.r1() == PC {
		value += 8
	}
	return cpu.handleCoprocessorWrite(instr.r2(), instr.cpopc(), value, instr.r0(), instr.r3(), instr.cp())
}

// executeARM dispatches on the encoding groups of the ARMv5 map.
func (cpu *Interpreter) executeARM(instr instruction) bool {
	value := uint32(instr)

	if value>>28 == 0xF {
		if value&0xE000000 == 0xA000000 {
			return cpu.notImplemented("Branch and change to thumb at 0x%08x", cpu.Core.Regs[PC])
		}
		return cpu.handleUndefined()
	}

	if value&0x01900000 != 0x01000000 &&
		(value&0x0E000000 == 0x02000000 ||
			value&0x0E000090 == 0x00000010 ||
			value&0x0E000010 == 0) {
		return cpu.armDataProcessing(instr)
	}

	if value&0x0E000000 == 0 {
		if value&0x90 != 0x90 {
			// Miscellaneous instructions
			if value&0xF0 == 0 {
				return cpu.armPSRTransfer(instr)
			}
			if value&0xF0 == 0x10 {
				if value&0x400000 != 0 {
					return cpu.notImplemented("Count leading zeros at 0x%08x", cpu.Core.Regs[PC])
				}
				return cpu.armBranchAndExchange(instr)
			}
			if value&0xF0 == 0x30 {
				return cpu.armBranchAndExchange(instr)
			}
			if value&0x80 != 0 {
				return cpu.notImplemented("Enhanced DSP multiplies at 0x%08x", cpu.Core.Regs[PC])
			}
			if value&0x60 == 0x60 {
				return cpu.notImplemented("Software breakpoint at 0x%08x", cpu.Core.Regs[PC])
			}
			return cpu.notImplemented("Enhanced DSP add/subtracts at 0x%08x", cpu.Core.Regs[PC])
		}
		// Multiplies, extra load/stores
		if value&0xD0 == 0xD0 {
			if value&0x100000 != 0 {
				return cpu.armLoadStoreHalfSigned(instr)
			}
			return cpu.notImplemented("Load/store two words at 0x%08x", cpu.Core.Regs[PC])
		}
		if value&0x20 != 0 {
			return cpu.armLoadStoreHalfSigned(instr)
		}
		if value>>24&1 != 0 {
			return cpu.armSwap(instr)
		}
		if value>>23&1 != 0 {
			return cpu.armMultiplyAccumulateLong(instr)
		}
		return cpu.armMultiplyAccumulate(instr)
	}

	if value&0x0E000010 == 0x06000010 || value&0x0FB00000 == 0x03000000 {
		return cpu.handleUndefined()
	}
	if value&0x0F000000 == 0x0F000000 {
		return cpu.handleSoftwareInterrupt(value & 0xFFFFFF)
	}
	if value&0x0F000000 == 0x0E000000 {
		if value&0x10 != 0 {
			return cpu.armCoprocessorRegisterTransfer(instr)
		}
		return cpu.notImplemented("Coprocessor data processing at 0x%08x", cpu.Core.Regs[PC])
	}
	if value&0x0E000000 == 0x0C000000 {
		return cpu.notImplemented("Coprocessor load/store at 0x%08x", cpu.Core.Regs[PC])
	}
	if value&0x0E000000 == 0x0A000000 {
		return cpu.armBranch(instr)
	}
	if value&0x0E000000 == 0x08000000 {
		return cpu.armLoadStoreMultiple(instr)
	}
	if value&0x0C000000 == 0x04000000 {
		return cpu.armSingleDataTransfer(instr)
	}
	return cpu.armPSRTransfer(instr)
}
