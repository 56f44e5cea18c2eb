package endian

/*
 * Latte - Byte order tests
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

func TestSwap(t *testing.T) {
	if r := Swap16(0x1234); r != 0x3412 {
		t.Errorf("Swap16 got: %04x expected: %04x", r, 0x3412)
	}
	if r := Swap32(0x12345678); r != 0x78563412 {
		t.Errorf("Swap32 got: %08x expected: %08x", r, 0x78563412)
	}
	if r := Swap64(0x0123456789ABCDEF); r != 0xEFCDAB8967452301 {
		t.Errorf("Swap64 got: %016x expected: %016x", r, uint64(0xEFCDAB8967452301))
	}

	// A double swap is the identity.
	for _, v := range []uint32{0, 1, 0xFFFFFFFF, 0x80000001, 0xDEADBEEF} {
		if r := Swap32(Swap32(v)); r != v {
			t.Errorf("double Swap32 got: %08x expected: %08x", r, v)
		}
	}
}
