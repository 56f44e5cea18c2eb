package arm

/*
 * Latte - ARM memory management unit
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

// MMU walks the two-level ARM translation tables. Only sections and small
// pages are supported; the security processor's firmware uses nothing
// else. Translation is identity while disabled.
type MMU struct {
	physmem *physmem.Memory
	swap    bool

	base    uint32
	enabled bool
	cached  bool
	cache   virtmem.Cache
}

// NewMMU builds a disabled MMU whose table walks read memory in the byte
// order of a bigEndian CPU.
func NewMMU(mem *physmem.Memory, bigEndian bool) *MMU {
	return &MMU{
		physmem: mem,
		swap:    bigEndian != endian.HostBig,
	}
}

// SetTranslationTableBase points the walker at a new first-level table.
func (m *MMU) SetTranslationTableBase(base uint32) {
	m.base = base
	m.cache.Invalidate()
}

// SetEnabled turns translation on or off.
func (m *MMU) SetEnabled(enabled bool) {
	m.enabled = enabled
	m.cache.Invalidate()
}

// SetCacheEnabled turns the translation cache on or off.
func (m *MMU) SetCacheEnabled(enabled bool) { m.cached = enabled }

// InvalidateCache drops all cached translations.
func (m *MMU) InvalidateCache() { m.cache.Invalidate() }

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

// Translate resolves addr in place. Descriptor type 0 and the reserved
// type fault; a coarse table is followed one more level for a small page.
func (m *MMU) Translate(addr *uint32, length uint32, access virtmem.Access) bool {
	if !m.enabled {
		return true
	}
	if m.cached && m.cache.Translate(addr, access) {
		return true
	}

	firstDesc, ok := m.read32(m.base + (*addr>>20)*4)
	if !ok {
		return false
	}

	switch firstDesc & 3 {
	case 1: // Coarse page table
		coarseBase := firstDesc &^ 0x3FF
		secondDesc, ok := m.read32(coarseBase + ((*addr>>12)&0xFF)*4)
		if !ok {
			return false
		}
		switch secondDesc & 3 {
		case 2: // Small page
			pageBase := secondDesc &^ 0xFFF
			m.cache.Update(access, *addr, pageBase, 0xFFF)
			*addr = pageBase | (*addr & 0xFFF)
			return true
		case 0:
			return false
		default:
			slog.Warn(fmt.Sprintf("Unsupported second-level descriptor type: %d", secondDesc&3))
			return false
		}
	case 2: // Section
		sectionBase := firstDesc &^ 0xFFFFF
		m.cache.Update(access, *addr, sectionBase, 0xFFFFF)
		*addr = sectionBase | (*addr & 0xFFFFF)
		return true
	case 0:
		return false
	default:
		slog.Warn(fmt.Sprintf("Unsupported first-level descriptor type: %d", firstDesc&3))
		return false
	}
}
