package virtmem

/*
 * Latte - Address translation common types
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
)

// Access classifies a memory operation for translation and protection.
type Access int

const (
	Instruction Access = iota
	DataRead
	DataWrite
	numAccess
)

// Translator resolves a virtual address in place. A false return means the
// walk found no valid mapping or protection denied the access; the CPU
// turns that into its abort exception.
type Translator interface {
	Translate(addr *uint32, length uint32, access Access) bool
	InvalidateCache()
}

const cacheEntries = 8

type cacheEntry struct {
	valid bool
	virt  uint32
	phys  uint32
	mask  uint32
}

// Cache is a small software TLB kept by each MMU, one entry set per access
// type. A hit must produce the same mapping a full walk would under the
// current MMU state, so the owner invalidates it whenever translation
// state changes.
type Cache struct {
	entries [numAccess][cacheEntries]cacheEntry
	next    [numAccess]int
}

// Translate substitutes the cached physical base on a hit.
func (c *Cache) Translate(addr *uint32, access Access) bool {
	for i := range c.entries[access] {
		e := &c.entries[access][i]
		if e.valid && *addr&^e.mask == e.virt {
			*addr = e.phys | (*addr & e.mask)
			return true
		}
	}
	return false
}

// Update records a completed walk.
func (c *Cache) Update(access Access, virt, phys, mask uint32) {
	slot := c.next[access]
	c.entries[access][slot] = cacheEntry{valid: true, virt: virt &^ mask, phys: phys, mask: mask}
	c.next[access] = (slot + 1) % cacheEntries
}

// Invalidate drops every entry.
func (c *Cache) Invalidate() {
	for a := range c.entries {
		for i := range c.entries[a] {
			c.entries[a][i].valid = false
		}
	}
}

type memoryRange struct {
	virt   uint32
	phys   uint32
	length uint32
}

// VirtualMemory is a fixed range-based translator. It backs tooling and
// tests that want a flat mapping without a page-table walker.
type VirtualMemory struct {
	ranges []memoryRange
}

// AddRange maps [virt, virt+length) onto [phys, phys+length).
func (v *VirtualMemory) AddRange(virt, phys, length uint32) error {
	for i := range v.ranges {
		r := &v.ranges[i]
		if r.virt < virt+length && virt < r.virt+r.length {
			return fmt.Errorf("memory range (0x%08x, 0x%08x) overlaps existing range (0x%08x, 0x%08x)",
				virt, length, r.virt, r.length)
		}
	}
	v.ranges = append(v.ranges, memoryRange{virt: virt, phys: phys, length: length})
	return nil
}

func (v *VirtualMemory) Translate(addr *uint32, length uint32, access Access) bool {
	for i := range v.ranges {
		r := &v.ranges[i]
		if r.virt <= *addr && *addr+length <= r.virt+r.length {
			*addr = r.phys + *addr - r.virt
			return true
		}
	}
	slog.Warn(fmt.Sprintf("Illegal memory access: addr=0x%08x length=0x%x", *addr, length))
	return false
}

func (v *VirtualMemory) InvalidateCache() {}
