package arm

/*
 * Latte - Thumb instruction execution
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

// thumbInstr is a raw 16-bit Thumb encoding.
type thumbInstr uint16

func (i thumbInstr) imm() bool  { return i>>10&1 != 0 }
func (i thumbInstr) load() bool { return i>>11&1 != 0 }
func (i thumbInstr) byte() bool { return i>>12&1 != 0 }
func (i thumbInstr) r() bool    { return i>>8&1 != 0 }
func (i thumbInstr) h() bool    { return i>>11&1 != 0 }

// addWithFlags sets NZCV for v1+v2. Carry goes to CPSR like the other
// flags.
func addWithFlags(core *Core, v1, v2 uint32) uint32 {
	result := v1 + v2

	core.CPSR.Set(FlagZ, result == 0)
	core.CPSR.Set(FlagN, result>>31 != 0)
	core.CPSR.Set(FlagC, result < v1)
	if int32(v1) >= -int32(v2) {
		core.CPSR.Set(FlagV, result>>31 != 0)
	} else {
		core.CPSR.Set(FlagV, result>>31 == 0)
	}

	return result
}

func subWithFlags(core *Core, v1, v2 uint32) uint32 {
	result := v1 - v2

	core.CPSR.Set(FlagZ, result == 0)
	core.CPSR.Set(FlagN, result>>31 != 0)
	core.CPSR.Set(FlagC, v1 >= v2)
	if int32(v1) >= int32(v2) {
		core.CPSR.Set(FlagV, result>>31 != 0)
	} else {
		core.CPSR.Set(FlagV, result>>31 == 0)
	}

	return result
}

func addWithCarry(core *Core, v1, v2 uint32) uint32 {
	carry := core.CPSR.Get(FlagC)
	result := addWithFlags(core, v1, v2)
	if carry {
		if result == 0xFFFFFFFF {
			core.CPSR.Set(FlagC, true)
		} else if result == 0x7FFFFFFF {
			core.CPSR.Set(FlagV, true)
		}
		result++
	}
	return result
}

func subWithCarry(core *Core, v1, v2 uint32) uint32 {
	carry := core.CPSR.Get(FlagC)
	result := subWithFlags(core, v1, v2)
	if !carry {
		if result == 0 {
			core.CPSR.Set(FlagC, true)
		} else if result == 0x80000000 {
			core.CPSR.Set(FlagV, true)
		}
		result--
	}
	return result
}

func (cpu *Interpreter) thumbAddSubtract(instr thumbInstr) bool {
	core := cpu.Core
	regin := int(instr>>3) & 7
	regout := int(instr) & 7

	value := core.Regs[regin]

	imm := uint32(instr>>6) & 7
	if !instr.imm() {
		imm = core.Regs[imm]
	}

	if instr&0x200 != 0 { // SUB
		core.Regs[regout] = subWithFlags(core, value, imm)
	} else { // ADD
		core.Regs[regout] = addWithFlags(core, value, imm)
	}
	return true
}

func (cpu *Interpreter) thumbAddSubCmpMovImm(instr thumbInstr) bool {
	core := cpu.Core
	reg := int(instr>>8) & 7
	imm := uint32(instr) & 0xFF

	switch int(instr>>11) & 3 {
	case 0: // MOV
		core.Regs[reg] = imm
		core.CPSR.Set(FlagZ, imm == 0)
		core.CPSR.Set(FlagN, false)
	case 1: // CMP
		subWithFlags(core, core.Regs[reg], imm)
	case 2: // ADD
		core.Regs[reg] = addWithFlags(core, core.Regs[reg], imm)
	default: // SUB
		core.Regs[reg] = subWithFlags(core, core.Regs[reg], imm)
	}
	return true
}

func (cpu *Interpreter) thumbMoveShifted(instr thumbInstr) bool {
	core := cpu.Core
	imm := int(instr>>6) & 0x1F

	value := core.Regs[int(instr>>3)&7]
	switch int(instr>>11) & 3 {
	case 0: // LSL
		value <<= imm
	case 1: // LSR
		value >>= imm
	case 2: // ASR
		value = uint32(int32(value) >> imm)
	}

	core.Regs[int(instr)&7] = value
	core.CPSR.Set(FlagZ, value == 0)
	core.CPSR.Set(FlagN, value>>31 != 0)
	return true
}

func (cpu *Interpreter) thumbDataProcessing(instr thumbInstr) bool {
	core := cpu.Core
	destreg := int(instr) & 7
	destval := core.Regs[destreg]
	sourceval := core.Regs[int(instr>>3)&7]

	var result uint32
	opcode := int(instr>>6) & 0xF
	switch opcode {
	case 0, 8: // AND, TST
		result = destval & sourceval
	case 1: // EOR
		result = destval ^ sourceval
	case 2: // LSL
		result = 0
		if sourceval < 32 {
			result = destval << sourceval
		}
	case 3: // LSR
		result = 0
		if sourceval < 32 {
			result = destval >> sourceval
		}
	case 4: // ASR
		if sourceval >= 32 {
			sourceval = 31
		}
		result = uint32(int32(destval) >> sourceval)
	case 5: // ADC
		result = addWithCarry(core, destval, sourceval)
	case 6: // SBC
		result = subWithCarry(core, destval, sourceval)
	case 7: // ROR
		amount := sourceval % 32
		result = (destval >> amount) | (destval << (32 - amount))
	case 9: // NEG
		result = uint32(-int32(sourceval))
	case 10: // CMP
		result = subWithFlags(core, destval, sourceval)
	case 12: // ORR
		result = destval | sourceval
	case 13: // MUL
		result = destval * sourceval
	case 14: // BIC
		result = destval &^ sourceval
	case 15: // MVN
		result = ^sourceval
	default:
		return cpu.notImplemented("Thumb data processing opcode %d at 0x%08x", opcode, core.Regs[PC])
	}

	if opcode != 8 && opcode != 10 && opcode != 11 {
		core.Regs[destreg] = result
	}

	core.CPSR.Set(FlagZ, result == 0)
	core.CPSR.Set(FlagN, result>>31 != 0)
	return true
}

func (cpu *Interpreter) thumbSpecialDataProcessing(instr thumbInstr) bool {
	core := cpu.Core
	reg1 := int(instr)&7 + int(instr>>4)&8
	reg2 := int(instr>>3) & 0xF

	switch int(instr>>8) & 3 {
	case 0: // ADD
		core.Regs[reg1] += core.Regs[reg2]
	case 1: // CMP
		subWithFlags(core, core.Regs[reg1], core.Regs[reg2])
	case 2: // MOV
		core.Regs[reg1] = core.Regs[reg2]
	}
	return true
}

func (cpu *Interpreter) thumbAddToSPOrPC(instr thumbInstr) bool {
	core := cpu.Core
	value := core.Regs[PC] + 2
	if instr&(1<<11) != 0 {
		value = core.Regs[SP]
	}
	core.Regs[int(instr>>8)&7] = value + uint32(instr&0xFF)*4
	return true
}

func (cpu *Interpreter) thumbAdjustStackPointer(instr thumbInstr) bool {
	core := cpu.Core
	offset := uint32(instr) & 0x7F
	if instr&0x80 != 0 {
		core.Regs[SP] -= offset * 4
	} else {
		core.Regs[SP] += offset * 4
	}
	return true
}

func (cpu *Interpreter) thumbPushPopRegisterList(instr thumbInstr) bool {
	core := cpu.Core
	addr := core.Regs[SP]

	if instr.load() {
		for i := 0; i < 8; i++ {
			if instr&(1<<i) != 0 {
				value, ok := cpu.Read32(addr)
				if !ok {
					return false
				}
				core.Regs[i] = value
				addr += 4
			}
		}
		if instr.r() {
			value, ok := cpu.Read32(addr)
			if !ok {
				return false
			}
			core.Regs[PC] = value
			if core.Regs[PC]&1 == 0 {
				core.SetThumb(false)
			} else {
				core.Regs[PC] &^= 1
			}
			addr += 4
		}
	} else {
		if instr.r() {
			addr -= 4
			if !cpu.Write32(addr, core.Regs[LR]) {
				return false
			}
		}
		for i := 7; i >= 0; i-- {
			if instr&(1<<i) != 0 {
				addr -= 4
				if !cpu.Write32(addr, core.Regs[i]) {
					return false
				}
			}
		}
	}

	core.Regs[SP] = addr
	return true
}

func (cpu *Interpreter) thumbLoadStoreStack(instr thumbInstr) bool {
	core := cpu.Core
	reg := int(instr>>8) & 7
	addr := core.Regs[SP] + uint32(instr&0xFF)*4
	if instr.load() {
		value, ok := cpu.Read32(addr)
		if !ok {
			return false
		}
		core.Regs[reg] = value
		return true
	}
	return cpu.Write32(addr, core.Regs[reg])
}

func (cpu *Interpreter) thumbLoadPCRelative(instr thumbInstr) bool {
	core := cpu.Core
	addr := (core.Regs[PC]+2)&^3 + uint32(instr&0xFF)*4
	value, ok := cpu.Read32(addr)
	if !ok {
		return false
	}
	core.Regs[int(instr>>8)&7] = value
	return true
}

func (cpu *Interpreter) thumbLoadStoreImmOffs(instr thumbInstr) bool {
	core := cpu.Core
	reg := int(instr) & 7
	addr := core.Regs[int(instr>>3)&7]
	offset := uint32(instr>>6) & 0x1F

	if instr.byte() {
		addr += offset
		if instr.load() {
			value, ok := cpu.Read8(addr)
			if !ok {
				return false
			}
			core.Regs[reg] = uint32(value)
			return true
		}
		return cpu.Write8(addr, uint8(core.Regs[reg]))
	}

	addr += offset * 4
	if instr.load() {
		value, ok := cpu.Read32(addr)
		if !ok {
			return false
		}
		core.Regs[reg] = value
		return true
	}
	return cpu.Write32(addr, core.Regs[reg])
}

func (cpu *Interpreter) thumbLoadStoreRegOffs(instr thumbInstr) bool {
	core := cpu.Core
	reg := int(instr) & 7
	regval := core.Regs[reg]
	addr := core.Regs[int(instr>>3)&7] + core.Regs[int(instr>>6)&7]

	switch int(instr>>9) & 7 {
	case 0: // STR
		return cpu.Write32(addr, regval)
	case 1: // STRH
		return cpu.Write16(addr, uint16(regval))
	case 2: // STRB
		return cpu.Write8(addr, uint8(regval))
	case 3: // LDRSB
		value, ok := cpu.Read8(addr)
		if !ok {
			return false
		}
		core.Regs[reg] = uint32(int32(int8(value)))
	case 4: // LDR
		value, ok := cpu.Read32(addr)
		if !ok {
			return false
		}
		core.Regs[reg] = value
	case 5: // LDRH
		value, ok := cpu.Read16(addr)
		if !ok {
			return false
		}
		core.Regs[reg] = uint32(value)
	case 6: // LDRB
		value, ok := cpu.Read8(addr)
		if !ok {
			return false
		}
		core.Regs[reg] = uint32(value)
	default: // LDRSH
		value, ok := cpu.Read16(addr)
		if !ok {
			return false
		}
		core.Regs[reg] = uint32(int32(int16(value)))
	}
	return true
}

func (cpu *Interpreter) thumbLoadStoreHalf(instr thumbInstr) bool {
	core := cpu.Core
	addr := core.Regs[int(instr>>3)&7] + uint32(instr>>5)&0x3E

	if instr.load() {
		value, ok := cpu.Read16(addr)
		if !ok {
			return false
		}
		core.Regs[int(instr)&7] = uint32(value)
		return true
	}
	return cpu.Write16(addr, uint16(core.Regs[int(instr)&7]))
}

func (cpu *Interpreter) thumbLoadStoreMultiple(instr thumbInstr) bool {
	core := cpu.Core
	reg := int(instr>>8) & 7
	addr := core.Regs[reg]
	for i := 0; i < 8; i++ {
		if instr&(1<<i) != 0 {
			if instr.load() {
				value, ok := cpu.Read32(addr)
				if !ok {
					return false
				}
				core.Regs[i] = value
			} else {
				if !cpu.Write32(addr, core.Regs[i]) {
					return false
				}
			}
			addr += 4
		}
	}
	core.Regs[reg] = addr
	return true
}

func (cpu *Interpreter) thumbBranchExchange(instr thumbInstr) bool {
	core := cpu.Core
	reg := int(instr>>3) & 0xF
	dest := core.Regs[reg]
	if reg == PC {
		dest += 2
	}

	if instr>>7&1 != 0 { // BLX
		core.Regs[LR] = core.Regs[PC] | 1
	}

	if dest&1 == 0 {
		core.SetThumb(false)
	} else {
		dest &^= 1
	}
	core.Regs[PC] = dest
	return true
}

func (cpu *Interpreter) thumbUnconditionalBranch(instr thumbInstr) bool {
	core := cpu.Core
	offset := int32(instr & 0x7FF)
	if offset&0x400 != 0 {
		offset -= 0x800
	}
	core.Regs[PC] += uint32(offset*2 + 2)
	return true
}

func (cpu *Interpreter) thumbConditionalBranch(instr thumbInstr) bool {
	core := cpu.Core
	if cpu.checkCondition(int(instr>>8) & 0xF) {
		offset := int32(instr & 0xFF)
		if offset&0x80 != 0 {
			offset -= 0x100
		}
		core.Regs[PC] += uint32(offset*2 + 2)
	}
	return true
}

// thumbLongBranchWithLink handles both halves of the BL pair. The first
// half parks the high offset bits in LR; the second half forms the target
// and leaves the return address, with bit 0 set, in LR.
func (cpu *Interpreter) thumbLongBranchWithLink(instr thumbInstr) bool {
	core := cpu.Core
	offset := uint32(instr & 0x7FF)
	if instr.h() { // Instruction 2
		target := core.Regs[LR] + (offset << 1)
		core.Regs[LR] = core.Regs[PC] | 1
		core.Regs[PC] = target
	} else { // Instruction 1
		if offset&0x400 != 0 {
			offset -= 0x800
		}
		core.Regs[LR] = core.Regs[PC] + 2 + (offset << 12)
	}
	return true
}

func (cpu *Interpreter) thumbSoftwareInterrupt(instr thumbInstr) bool {
	return cpu.handleSoftwareInterrupt(uint32(instr) & 0xFF)
}

// executeThumb dispatches on the leading bits of the 16-bit encoding.
func (cpu *Interpreter) executeThumb(instr thumbInstr) bool {
	value := uint16(instr)

	if value>>13 == 0 {
		if value>>11&3 == 3 {
			return cpu.thumbAddSubtract(instr)
		}
		return cpu.thumbMoveShifted(instr)
	}
	if value>>13 == 1 {
		return cpu.thumbAddSubCmpMovImm(instr)
	}
	if value>>10 == 0x10 {
		return cpu.thumbDataProcessing(instr)
	}
	if value>>8 == 0x47 {
		return cpu.thumbBranchExchange(instr)
	}
	if value>>10 == 0x11 {
		return cpu.thumbSpecialDataProcessing(instr)
	}
	if value>>11 == 9 {
		return cpu.thumbLoadPCRelative(instr)
	}
	if value>>12 == 5 {
		return cpu.thumbLoadStoreRegOffs(instr)
	}
	if value>>13 == 3 {
		return cpu.thumbLoadStoreImmOffs(instr)
	}
	if value>>12 == 8 {
		return cpu.thumbLoadStoreHalf(instr)
	}
	if value>>12 == 9 {
		return cpu.thumbLoadStoreStack(instr)
	}
	if value>>12 == 10 {
		return cpu.thumbAddToSPOrPC(instr)
	}
	if value>>12 == 11 {
		switch value >> 8 & 0xF {
		case 0:
			return cpu.thumbAdjustStackPointer(instr)
		case 0xE:
			return cpu.notImplemented("Thumb software breakpoint at 0x%08x", cpu.Core.Regs[PC])
		default:
			return cpu.thumbPushPopRegisterList(instr)
		}
	}
	if value>>12 == 12 {
		return cpu.thumbLoadStoreMultiple(instr)
	}
	if value>>12 == 13 {
		switch value >> 8 & 0xF {
		case 14:
			return cpu.notImplemented("Thumb undefined instruction at 0x%08x", cpu.Core.Regs[PC])
		case 15:
			return cpu.thumbSoftwareInterrupt(instr)
		default:
			return cpu.thumbConditionalBranch(instr)
		}
	}
	if value>>11 == 0x1C {
		return cpu.thumbUnconditionalBranch(instr)
	}
	if value>>11 == 0x1D {
		if value&1 != 0 {
			return cpu.notImplemented("Thumb undefined instruction at 0x%08x", cpu.Core.Regs[PC])
		}
		return cpu.notImplemented("Thumb BLX suffix at 0x%08x", cpu.Core.Regs[PC])
	}
	return cpu.thumbLongBranchWithLink(instr)
}
