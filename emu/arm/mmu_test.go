package arm

/*
 * Latte - ARM MMU tests
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
	"encoding/binary"
	"testing"

	"github.com/rcornwell/latte/emu/physmem"
	"github.com/rcornwell/latte/emu/virtmem"
)

// putDesc stores one page table descriptor in ARM (little endian) order.
func putDesc(t *testing.T, mem *physmem.Memory, addr, value uint32) {
	t.Helper()
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], value)
	if mem.Write(addr, buf[:]) != physmem.OK {
		t.Fatalf("descriptor write failed at 0x%08x", addr)
	}
}

func newTestMMU(t *testing.T) (*MMU, *physmem.Memory) {
	t.Helper()
	mem := physmem.New()
	if err := mem.AddRAM(0x0, 0x20000); err != nil {
		t.Fatalf("AddRAM failed: %v", err)
	}
	return NewMMU(mem, false), mem
}

// Translation is identity while disabled.
func TestMMUDisabled(t *testing.T) {
	mmu, _ := newTestMMU(t)
	addr := uint32(0x12345678)
	if !mmu.Translate(&addr, 4, virtmem.DataRead) {
		t.Errorf("disabled MMU failed to translate")
	}
	if addr != 0x12345678 {
		t.Errorf("disabled MMU changed address: %08x", addr)
	}
}

// A section descriptor maps a 1 MB block.
func TestMMUSection(t *testing.T) {
	mmu, mem := newTestMMU(t)
	mmu.SetTranslationTableBase(0x4000)
	mmu.SetEnabled(true)

	putDesc(t, mem, 0x4000, 0x10000C02) // Section at 0x10000000

	addr := uint32(0x00001234)
	if !mmu.Translate(&addr, 4, virtmem.DataRead) {
		t.Fatalf("section translate failed")
	}
	if addr != 0x10001234 {
		t.Errorf("section translate got: %08x expected: %08x", addr, 0x10001234)
	}

	// High section offset keeps the low 20 bits.
	addr = 0x000FFFFC
	if !mmu.Translate(&addr, 4, virtmem.DataRead) {
		t.Fatalf("section translate failed")
	}
	if addr != 0x100FFFFC {
		t.Errorf("section translate got: %08x expected: %08x", addr, 0x100FFFFC)
	}
}

// A coarse descriptor is followed to a small page entry.
func TestMMUSmallPage(t *testing.T) {
	mmu, mem := newTestMMU(t)
	mmu.SetTranslationTableBase(0x4000)
	mmu.SetEnabled(true)

	putDesc(t, mem, 0x4000, 0x00008001)          // Coarse table at 0x8000
	putDesc(t, mem, 0x8000+4*4, 0x20000002)      // Small page for V page 4
	putDesc(t, mem, 0x8000+5*4, 0x00000000)      // Fault for V page 5

	addr := uint32(0x00004ABC)
	if !mmu.Translate(&addr, 4, virtmem.DataRead) {
		t.Fatalf("small page translate failed")
	}
	if addr != 0x20000ABC {
		t.Errorf("small page translate got: %08x expected: %08x", addr, 0x20000ABC)
	}

	addr = 0x00005000
	if mmu.Translate(&addr, 4, virtmem.DataRead) {
		t.Errorf("fault descriptor translated")
	}
}

// A first-level fault descriptor denies the access.
func TestMMUFault(t *testing.T) {
	mmu, mem := newTestMMU(t)
	mmu.SetTranslationTableBase(0x4000)
	mmu.SetEnabled(true)

	putDesc(t, mem, 0x4000+4, 0x00000000)

	addr := uint32(0x00100000)
	if mmu.Translate(&addr, 4, virtmem.DataRead) {
		t.Errorf("fault descriptor translated")
	}
}

// Changing the table must take effect once the cache is invalidated.
func TestMMUCacheInvalidate(t *testing.T) {
	mmu, mem := newTestMMU(t)
	mmu.SetTranslationTableBase(0x4000)
	mmu.SetEnabled(true)
	mmu.SetCacheEnabled(true)

	putDesc(t, mem, 0x4000, 0x10000C02)

	addr := uint32(0x00001234)
	if !mmu.Translate(&addr, 4, virtmem.DataRead) {
		t.Fatalf("translate failed")
	}
	if addr != 0x10001234 {
		t.Errorf("translate got: %08x expected: %08x", addr, 0x10001234)
	}

	// Rewrite the descriptor. The stale mapping stays until the cache
	// is dropped.
	putDesc(t, mem, 0x4000, 0x30000C02)
	addr = 0x00001234
	if !mmu.Translate(&addr, 4, virtmem.DataRead) {
		t.Fatalf("translate failed")
	}
	if addr != 0x10001234 {
		t.Errorf("cached translate got: %08x expected: %08x", addr, 0x10001234)
	}

	mmu.InvalidateCache()
	addr = 0x00001234
	if !mmu.Translate(&addr, 4, virtmem.DataRead) {
		t.Fatalf("translate failed")
	}
	if addr != 0x30001234 {
		t.Errorf("translate after invalidate got: %08x expected: %08x", addr, 0x30001234)
	}

	// A new table base invalidates on its own.
	putDesc(t, mem, 0x5000, 0x40000C02)
	mmu.SetTranslationTableBase(0x5000)
	addr = 0x00001234
	if !mmu.Translate(&addr, 4, virtmem.DataRead) {
		t.Fatalf("translate failed")
	}
	if addr != 0x40001234 {
		t.Errorf("translate after new base got: %08x expected: %08x", addr, 0x40001234)
	}
}
