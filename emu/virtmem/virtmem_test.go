package virtmem

/*
 * Latte - Translation cache tests
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

func TestCache(t *testing.T) {
	var cache Cache

	addr := uint32(0x00001234)
	if cache.Translate(&addr, DataRead) {
		t.Errorf("empty cache reported a hit")
	}

	cache.Update(DataRead, 0x00001234, 0x10000000, 0xFFF)

	addr = 0x00001456
	if !cache.Translate(&addr, DataRead) {
		t.Errorf("cache missed inside the cached page")
	}
	if addr != 0x10000456 {
		t.Errorf("cache translate got: %08x expected: %08x", addr, 0x10000456)
	}

	// Same page, different access type, must miss.
	addr = 0x00001456
	if cache.Translate(&addr, DataWrite) {
		t.Errorf("cache hit across access types")
	}

	// Another page must miss.
	addr = 0x00002456
	if cache.Translate(&addr, DataRead) {
		t.Errorf("cache hit outside the cached page")
	}

	cache.Invalidate()
	addr = 0x00001456
	if cache.Translate(&addr, DataRead) {
		t.Errorf("cache hit after invalidate")
	}
}

// The low bits of virtual and physical addresses match within the page.
func TestCacheMaskLaw(t *testing.T) {
	var cache Cache
	cache.Update(Instruction, 0x12345678, 0x40000000, 0xFFFFF)

	for _, offs := range []uint32{0, 1, 0x555, 0xFFFFF} {
		addr := 0x12300000 | offs
		if !cache.Translate(&addr, Instruction) {
			t.Fatalf("cache missed at offset %05x", offs)
		}
		if addr&0xFFFFF != offs {
			t.Errorf("low bits got: %05x expected: %05x", addr&0xFFFFF, offs)
		}
	}
}

func TestVirtualMemory(t *testing.T) {
	var vm VirtualMemory
	if err := vm.AddRange(0x80000000, 0x0, 0x10000); err != nil {
		t.Fatalf("AddRange failed: %v", err)
	}
	if err := vm.AddRange(0x80008000, 0x20000, 0x1000); err == nil {
		t.Errorf("AddRange did not report overlap")
	}

	addr := uint32(0x80001234)
	if !vm.Translate(&addr, 4, DataRead) {
		t.Errorf("Translate failed")
	}
	if addr != 0x1234 {
		t.Errorf("Translate got: %08x expected: %08x", addr, 0x1234)
	}

	addr = 0x90000000
	if vm.Translate(&addr, 4, DataRead) {
		t.Errorf("Translate succeeded outside every range")
	}
}
