package elf

/*
 * Latte - ELF loader tests
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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcornwell/latte/emu/physmem"
)

// buildELF makes a one-segment ELF32 image in the given byte order.
func buildELF(order binary.ByteOrder, entry uint32, payload []byte, memSize uint32) []byte {
	image := make([]byte, 0x100+len(payload))

	image[0] = 0x7F
	image[1] = 'E'
	image[2] = 'L'
	image[3] = 'F'
	image[4] = classELF32
	if order == binary.BigEndian {
		image[5] = bigEndian
	} else {
		image[5] = littleEndian
	}
	image[6] = 1

	order.PutUint16(image[16:], 2) // Executable
	order.PutUint16(image[18:], 0x14)
	order.PutUint32(image[20:], 1)
	order.PutUint32(image[24:], entry)
	order.PutUint32(image[28:], headerSize) // Program headers after the header
	order.PutUint16(image[40:], headerSize)
	order.PutUint16(image[42:], programSize)
	order.PutUint16(image[44:], 1)

	ph := image[headerSize:]
	order.PutUint32(ph[0:], PTLoad)
	order.PutUint32(ph[4:], 0x100)
	order.PutUint32(ph[8:], 0x2000)
	order.PutUint32(ph[12:], 0x2000)
	order.PutUint32(ph[16:], uint32(len(payload)))
	order.PutUint32(ph[20:], memSize)

	copy(image[0x100:], payload)
	return image
}

func TestParse(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		image := buildELF(order, 0x2000, []byte{1, 2, 3, 4}, 4)
		f, err := Parse(image)
		require.NoError(t, err)

		assert.Equal(t, uint32(0x2000), f.Entry())
		require.Len(t, f.Programs, 1)
		assert.Equal(t, uint32(PTLoad), f.Programs[0].Type)
		assert.Equal(t, uint32(0x2000), f.Programs[0].Vaddr)
		assert.Equal(t, uint32(4), f.Programs[0].FileSize)
	}
}

func TestParseErrors(t *testing.T) {
	image := buildELF(binary.LittleEndian, 0, nil, 0)

	bad := make([]byte, len(image))
	copy(bad, image)
	bad[0] = 0
	_, err := Parse(bad)
	assert.Error(t, err, "bad magic accepted")

	copy(bad, image)
	bad[4] = 2 // 64-bit
	_, err = Parse(bad)
	assert.Error(t, err, "64-bit image accepted")

	copy(bad, image)
	bad[6] = 9
	_, err = Parse(bad)
	assert.Error(t, err, "bad version accepted")

	_, err = Parse(image[:20])
	assert.Error(t, err, "truncated image accepted")
}

func TestLoad(t *testing.T) {
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	image := buildELF(binary.BigEndian, 0x2000, payload, 16)
	f, err := Parse(image)
	require.NoError(t, err)

	mem := physmem.New()
	require.NoError(t, mem.AddRAM(0x0, 0x10000))
	// Dirty the bss area to prove the loader clears it.
	mem.Write32(0x2008, 0xFFFFFFFF)

	require.NoError(t, f.Load(mem))

	out := make([]byte, 4)
	require.Equal(t, physmem.OK, mem.Read(0x2000, out))
	assert.Equal(t, payload, out)

	for addr := uint32(0x2004); addr < 0x2010; addr += 4 {
		v, _ := mem.Read32(addr)
		assert.Zero(t, v, "bss not cleared at %08x", addr)
	}
}

// A segment outside every RAM range fails the load.
func TestLoadOutOfRange(t *testing.T) {
	image := buildELF(binary.LittleEndian, 0, []byte{1}, 1)
	f, err := Parse(image)
	require.NoError(t, err)

	mem := physmem.New()
	require.NoError(t, mem.AddRAM(0x8000, 0x1000))
	assert.Error(t, f.Load(mem))
}
