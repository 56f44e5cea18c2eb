package ppc

/*
 * Latte - PowerPC memory management unit
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
	"log/slog"

	"github.com/rcornwell/latte/emu/physmem"
	"github.com/rcornwell/latte/emu/virtmem"
	"github.com/rcornwell/latte/util/endian"
)

// MMU translates effective addresses through the BAT arrays and the
// hashed page table. The page size is configurable so the same walker
// serves normal 4K pages and the large-RPN mode the boot firmware uses.
type MMU struct {
	physmem *physmem.Memory
	swap    bool

	IBATU [8]uint32
	IBATL [8]uint32
	DBATU [8]uint32
	DBATL [8]uint32

	sdr1 uint32
	sr   [16]uint32

	supervisor bool
	dataOn     bool
	instrOn    bool
	cached     bool
	cache      virtmem.Cache

	pageIndexShift int
	pageIndexMask  uint32
	byteOffsetMask uint32
	apiShift       int
}

// NewMMU builds an MMU with translation disabled and 4K pages.
func NewMMU(mem *physmem.Memory) *MMU {
	m := &MMU{
		physmem:    mem,
		swap:       !endian.HostBig,
		supervisor: true,
	}
	m.SetRPNSize(20)
	return m
}

// SetRPNSize recomputes the page geometry for an RPN of the given width.
func (m *MMU) SetRPNSize(bits int) {
	m.pageIndexShift = 32 - bits
	m.pageIndexMask = (1 << (28 - m.pageIndexShift)) - 1
	m.byteOffsetMask = (1 << m.pageIndexShift) - 1
	m.apiShift = 22 - m.pageIndexShift
	m.cache.Invalidate()
}

// SetSupervisor selects the protection key set.
func (m *MMU) SetSupervisor(supervisor bool) {
	m.supervisor = supervisor
	m.cache.Invalidate()
}

// SetDataTranslation turns data address translation on or off (MSR.DR).
func (m *MMU) SetDataTranslation(on bool) {
	m.dataOn = on
	m.cache.Invalidate()
}

// SetInstrTranslation turns instruction address translation on or off
// (MSR.IR).
func (m *MMU) SetInstrTranslation(on bool) {
	m.instrOn = on
	m.cache.Invalidate()
}

// SetCacheEnabled turns the translation cache on or off.
func (m *MMU) SetCacheEnabled(enabled bool) { m.cached = enabled }

// InvalidateCache drops all cached translations.
func (m *MMU) InvalidateCache() { m.cache.Invalidate() }

// SetSDR1 points the walker at a new page table.
func (m *MMU) SetSDR1(value uint32) {
	m.sdr1 = value
	m.cache.Invalidate()
}

// SDR1 returns the page table base and mask register.
func (m *MMU) SDR1() uint32 { return m.sdr1 }

// SetSR writes a segment register.
func (m *MMU) SetSR(index int, value uint32) {
	m.sr[index&0xF] = value
	m.cache.Invalidate()
}

// SR reads a segment register.
func (m *MMU) SR(index int) uint32 { return m.sr[index&0xF] }

// SetBAT writes one half of a BAT pair. Index 0..7 selects the pair.
func (m *MMU) SetBAT(instr, upper bool, index int, value uint32) {
	index &= 7
	switch {
	case instr && upper:
		m.IBATU[index] = value
	case instr:
		m.IBATL[index] = value
	case upper:
		m.DBATU[index] = value
	default:
		m.DBATL[index] = value
	}
	m.cache.Invalidate()
}

func (m *MMU) read32(addr uint32) (uint32, bool) {
	value, result := m.physmem.Read32(addr)
	if result != physmem.OK {
		return 0, false
	}
	if m.swap {
		value = endian.Swap32(value)
	}
	return value, true
}

// Translate resolves addr in place: BAT arrays first, then the segment
// registers and the hashed page table.
func (m *MMU) Translate(addr *uint32, length uint32, access virtmem.Access) bool {
	if access == virtmem.Instruction {
		if !m.instrOn {
			return true
		}
		if m.cached && m.cache.Translate(addr, access) {
			return true
		}
		if m.translateBAT(addr, &m.IBATU, &m.IBATL, access) {
			return true
		}
	} else {
		if !m.dataOn {
			return true
		}
		if m.cached && m.cache.Translate(addr, access) {
			return true
		}
		if m.translateBAT(addr, &m.DBATU, &m.DBATL, access) {
			return true
		}
	}

	segment := m.sr[*addr>>28]
	if segment>>31 != 0 {
		slog.Warn(fmt.Sprintf("Direct-store segment: addr=0x%08x length=0x%x", *addr, length))
		return false
	}

	// Bit 28 of the segment register is the no-execute bit.
	if segment&0x10000000 == 0 || access != virtmem.Instruction {
		pageIndex := (*addr >> m.pageIndexShift) & m.pageIndexMask
		vsid := segment & 0xFFFFFF

		var key bool
		if m.supervisor {
			key = segment>>30&1 != 0 // Ks
		} else {
			key = segment>>29&1 != 0 // Kp
		}

		primaryHash := (vsid & 0x7FFFF) ^ pageIndex
		if m.searchPageTable(addr, vsid, pageIndex, primaryHash, false, key, access) {
			return true
		}
		if m.searchPageTable(addr, vsid, pageIndex, ^primaryHash, true, key, access) {
			return true
		}
	}

	slog.Warn(fmt.Sprintf("Illegal memory access: addr=0x%08x length=0x%x", *addr, length))
	return false
}

func (m *MMU) translateBAT(addr *uint32, batu, batl *[8]uint32, access virtmem.Access) bool {
	write := access == virtmem.DataWrite
	for i := 0; i < 8; i++ {
		// Check read/write protection
		pp := batl[i] & 3
		if pp == 0 || (pp&1 != 0 && write) {
			continue
		}

		// Check user/supervisor validity
		vp := batu[i]&1 != 0
		vs := batu[i]&2 != 0
		if !((vp && !m.supervisor) || (vs && m.supervisor)) {
			continue
		}

		// Check block index and size
		addrMask := ^((batu[i] >> 2) & 0x7FF)
		effectiveBlock := batu[i] >> 17
		addrBlock := *addr >> 17
		if effectiveBlock&addrMask != addrBlock&addrMask {
			continue
		}

		// Translate address
		brpn := batl[i] >> 17
		addrBlock = (addrBlock &^ addrMask) | (brpn & addrMask)
		m.cache.Update(access, *addr, addrBlock<<17, 0x1FFFF)
		*addr = (*addr & 0x1FFFF) | (addrBlock << 17)
		return true
	}
	return false
}

func (m *MMU) searchPageTable(addr *uint32, vsid, pageIndex, hash uint32, secondary bool, key bool, access virtmem.Access) bool {
	write := access == virtmem.DataWrite
	pageTable := m.sdr1 & 0xFFFF0000
	pageMask := m.sdr1 & 0x1FF
	maskedHash := hash & ((pageMask << 10) | 0x3FF)
	api := pageIndex >> m.apiShift

	pteAddr := pageTable | (maskedHash << 6)
	for i := 0; i < 8; i, pteAddr = i+1, pteAddr+8 {
		pteHi, ok := m.read32(pteAddr)
		if !ok {
			return false
		}
		pteLo, ok := m.read32(pteAddr + 4)
		if !ok {
			return false
		}

		// Check validity
		if pteHi>>31 == 0 {
			continue
		}
		if (pteHi>>6&1 != 0) != secondary {
			continue
		}
		if pteHi>>7&0xFFFFFF != vsid {
			continue
		}
		if pteHi&0x3F != api {
			continue
		}

		// Check protection
		pp := pteLo & 3
		if key && pp == 0 {
			continue
		}
		if write && (pp == 3 || (key && pp == 1)) {
			continue
		}

		// Translate address
		m.cache.Update(access, *addr, pteLo&0xFFFFF000, m.byteOffsetMask)
		*addr = (pteLo & 0xFFFFF000) | (*addr & m.byteOffsetMask)
		return true
	}
	return false
}
