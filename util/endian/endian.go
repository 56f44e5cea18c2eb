package endian

/*
 * Latte - Byte order primitives
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

import "encoding/binary"

// HostBig is true when the host stores multi-byte values big-endian.
// Each interpreter compares this against its CPU byte order once and
// applies a swap only at the typed access boundary.
var HostBig = func() bool {
	buf := [2]byte{}
	binary.NativeEndian.PutUint16(buf[:], 0xFEFF)
	return buf[0] == 0xFE
}()

// Swap a halfword.
func Swap16(value uint16) uint16 {
	return (value << 8) | (value >> 8)
}

// Swap a word.
func Swap32(value uint32) uint32 {
	return (uint32(Swap16(uint16(value))) << 16) | uint32(Swap16(uint16(value>>16)))
}

// Swap a doubleword.
func Swap64(value uint64) uint64 {
	return (uint64(Swap32(uint32(value))) << 32) | uint64(Swap32(uint32(value>>32)))
}
