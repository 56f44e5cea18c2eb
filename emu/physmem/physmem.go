package physmem

/*
 * Latte - Physical memory dispatcher
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
	"fmt"
	"log/slog"
)

// Access results. A miss on every registered range is a bus error and is
// turned into a data or fetch abort by the CPU; a fatal error stops the
// whole machine.
const (
	OK         = 0
	FatalError = -1
	BusError   = -2
)

// ReadFunc fills data from a device register block at addr. The address is
// physical and the slice length is the width the CPU issued. Returning
// false aborts execution.
type ReadFunc func(addr uint32, data []byte) bool

// WriteFunc is the store side of ReadFunc.
type WriteFunc func(addr uint32, data []byte) bool

type memRange struct {
	start  uint32
	length uint32
	buffer []byte
}

type specialRange struct {
	start  uint32
	length uint32
	read   ReadFunc
	write  WriteFunc
}

// Memory owns the RAM buffers and the MMIO callback ranges of the machine.
// Ranges are registered at setup and never removed. The range lists are
// short, bounded by the physical map, so lookup is a linear scan.
type Memory struct {
	ranges  []memRange
	special []specialRange
}

func New() *Memory {
	return &Memory{}
}

func contains(start, length, addr, size uint32) bool {
	return start <= addr && addr+size <= start+length
}

func collides(start, length, addr, size uint32) bool {
	return start < addr+size && addr < start+length
}

func (m *Memory) checkOverlap(start, length uint32) error {
	for i := range m.ranges {
		r := &m.ranges[i]
		if collides(r.start, r.length, start, length) {
			return fmt.Errorf("memory range (0x%08x, 0x%08x) overlaps existing range (0x%08x, 0x%08x)",
				start, length, r.start, r.length)
		}
	}
	for i := range m.special {
		r := &m.special[i]
		if collides(r.start, r.length, start, length) {
			return fmt.Errorf("memory range (0x%08x, 0x%08x) overlaps special range (0x%08x, 0x%08x)",
				start, length, r.start, r.length)
		}
	}
	return nil
}

// AddRAM registers a backing RAM buffer at start.
func (m *Memory) AddRAM(start, length uint32) error {
	if err := m.checkOverlap(start, length); err != nil {
		return err
	}
	m.ranges = append(m.ranges, memRange{start: start, length: length, buffer: make([]byte, length)})
	return nil
}

// AddSpecial registers a device callback range at start.
func (m *Memory) AddSpecial(start, length uint32, read ReadFunc, write WriteFunc) error {
	if err := m.checkOverlap(start, length); err != nil {
		return err
	}
	m.special = append(m.special, specialRange{start: start, length: length, read: read, write: write})
	return nil
}

// Read copies len(data) bytes at addr. The RAM path is raw bytes in host
// order; the caller applies any CPU byte swap.
func (m *Memory) Read(addr uint32, data []byte) int {
	size := uint32(len(data))
	for i := range m.ranges {
		r := &m.ranges[i]
		if contains(r.start, r.length, addr, size) {
			copy(data, r.buffer[addr-r.start:])
			return OK
		}
	}
	for i := range m.special {
		r := &m.special[i]
		if contains(r.start, r.length, addr, size) {
			if r.read(addr, data) {
				return OK
			}
			return FatalError
		}
	}
	slog.Warn(fmt.Sprintf("Illegal memory read: addr=0x%08x length=0x%x", addr, size))
	return BusError
}

// Write copies len(data) bytes to addr.
func (m *Memory) Write(addr uint32, data []byte) int {
	size := uint32(len(data))
	for i := range m.ranges {
		r := &m.ranges[i]
		if contains(r.start, r.length, addr, size) {
			copy(r.buffer[addr-r.start:], data)
			return OK
		}
	}
	for i := range m.special {
		r := &m.special[i]
		if contains(r.start, r.length, addr, size) {
			if r.write(addr, data) {
				return OK
			}
			return FatalError
		}
	}
	slog.Warn(fmt.Sprintf("Illegal memory write: addr=0x%08x length=0x%x", addr, size))
	return BusError
}

// Typed accessors. Values move through memory in host byte order so that a
// RAM store followed by a load round-trips without the dispatcher knowing
// which CPU issued it.

func (m *Memory) Read8(addr uint32) (uint8, int) {
	var buf [1]byte
	result := m.Read(addr, buf[:])
	return buf[0], result
}

func (m *Memory) Read16(addr uint32) (uint16, int) {
	var buf [2]byte
	result := m.Read(addr, buf[:])
	return binary.NativeEndian.Uint16(buf[:]), result
}

func (m *Memory) Read32(addr uint32) (uint32, int) {
	var buf [4]byte
	result := m.Read(addr, buf[:])
	return binary.NativeEndian.Uint32(buf[:]), result
}

func (m *Memory) Read64(addr uint32) (uint64, int) {
	var buf [8]byte
	result := m.Read(addr, buf[:])
	return binary.NativeEndian.Uint64(buf[:]), result
}

func (m *Memory) Write8(addr uint32, value uint8) int {
	buf := [1]byte{value}
	return m.Write(addr, buf[:])
}

func (m *Memory) Write16(addr uint32, value uint16) int {
	var buf [2]byte
	binary.NativeEndian.PutUint16(buf[:], value)
	return m.Write(addr, buf[:])
}

func (m *Memory) Write32(addr uint32, value uint32) int {
	var buf [4]byte
	binary.NativeEndian.PutUint32(buf[:], value)
	return m.Write(addr, buf[:])
}

func (m *Memory) Write64(addr uint32, value uint64) int {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], value)
	return m.Write(addr, buf[:])
}
