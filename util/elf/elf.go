package elf

/*
 * Latte - ELF32 boot image loader
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
	"os"

	"github.com/rcornwell/latte/emu/physmem"
)

// Segment and section types the loader cares about.
const (
	PTLoad = 1

	classELF32   = 1
	littleEndian = 1
	bigEndian    = 2

	headerSize  = 52
	programSize = 32
	sectionSize = 40
)

// Header is the fixed ELF32 file header.
type Header struct {
	Type     uint16
	Machine  uint16
	Version  uint32
	Entry    uint32
	PhOff    uint32
	ShOff    uint32
	Flags    uint32
	EhSize   uint16
	PhSize   uint16
	PhNum    uint16
	ShSize   uint16
	ShNum    uint16
	StrIndex uint16
}

// Program is one program header entry.
type Program struct {
	Type     uint32
	Offset   uint32
	Vaddr    uint32
	Paddr    uint32
	FileSize uint32
	MemSize  uint32
	Flags    uint32
	Align    uint32
}

// Section is one section header entry.
type Section struct {
	NameOffs uint32
	Type     uint32
	Flags    uint32
	Addr     uint32
	Offset   uint32
	Size     uint32
	Link     uint32
	Info     uint32
	Align    uint32
	EntSize  uint32
}

// File is a parsed 32-bit ELF image. The raw bytes stay available for
// segment loading.
type File struct {
	Header   Header
	Programs []Program
	Sections []Section

	data  []byte
	order binary.ByteOrder
}

// Parse validates and decodes a 32-bit ELF image of either endianness.
func Parse(data []byte) (*File, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("file too short for ELF header")
	}
	if data[0] != 0x7F || data[1] != 'E' || data[2] != 'L' || data[3] != 'F' {
		return nil, fmt.Errorf("invalid file identifier")
	}
	if data[4] != classELF32 {
		return nil, fmt.Errorf("only 32-bit ELF files are supported")
	}

	var order binary.ByteOrder
	switch data[5] {
	case littleEndian:
		order = binary.LittleEndian
	case bigEndian:
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("invalid ELF byte order %d", data[5])
	}

	if data[6] != 1 {
		return nil, fmt.Errorf("invalid ELF version")
	}

	f := &File{data: data, order: order}
	h := &f.Header
	h.Type = order.Uint16(data[16:])
	h.Machine = order.Uint16(data[18:])
	h.Version = order.Uint32(data[20:])
	h.Entry = order.Uint32(data[24:])
	h.PhOff = order.Uint32(data[28:])
	h.ShOff = order.Uint32(data[32:])
	h.Flags = order.Uint32(data[36:])
	h.EhSize = order.Uint16(data[40:])
	h.PhSize = order.Uint16(data[42:])
	h.PhNum = order.Uint16(data[44:])
	h.ShSize = order.Uint16(data[46:])
	h.ShNum = order.Uint16(data[48:])
	h.StrIndex = order.Uint16(data[50:])

	if h.Version != 1 {
		return nil, fmt.Errorf("invalid ELF version")
	}
	if h.EhSize != headerSize {
		return nil, fmt.Errorf("header size %d doesn't match ELF32 header", h.EhSize)
	}
	if h.PhNum != 0 && h.PhSize != programSize {
		return nil, fmt.Errorf("program header size %d doesn't match ELF32", h.PhSize)
	}
	if h.ShNum != 0 && h.ShSize != sectionSize {
		return nil, fmt.Errorf("section header size %d doesn't match ELF32", h.ShSize)
	}

	for i := 0; i < int(h.PhNum); i++ {
		offs := int(h.PhOff) + programSize*i
		if offs+programSize > len(data) {
			return nil, fmt.Errorf("program header %d out of bounds", i)
		}
		p := data[offs:]
		f.Programs = append(f.Programs, Program{
			Type:     order.Uint32(p[0:]),
			Offset:   order.Uint32(p[4:]),
			Vaddr:    order.Uint32(p[8:]),
			Paddr:    order.Uint32(p[12:]),
			FileSize: order.Uint32(p[16:]),
			MemSize:  order.Uint32(p[20:]),
			Flags:    order.Uint32(p[24:]),
			Align:    order.Uint32(p[28:]),
		})
	}

	for i := 0; i < int(h.ShNum); i++ {
		offs := int(h.ShOff) + sectionSize*i
		if offs+sectionSize > len(data) {
			return nil, fmt.Errorf("section header %d out of bounds", i)
		}
		s := data[offs:]
		f.Sections = append(f.Sections, Section{
			NameOffs: order.Uint32(s[0:]),
			Type:     order.Uint32(s[4:]),
			Flags:    order.Uint32(s[8:]),
			Addr:     order.Uint32(s[12:]),
			Offset:   order.Uint32(s[16:]),
			Size:     order.Uint32(s[20:]),
			Link:     order.Uint32(s[24:]),
			Info:     order.Uint32(s[28:]),
			Align:    order.Uint32(s[32:]),
			EntSize:  order.Uint32(s[36:]),
		})
	}

	return f, nil
}

// ParseFile reads and parses one ELF image from disk.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Load copies every PT_LOAD segment into physical memory, zero filling
// the gap between the file size and the memory size.
func (f *File) Load(mem *physmem.Memory) error {
	for i, p := range f.Programs {
		if p.Type != PTLoad || p.MemSize == 0 {
			continue
		}
		if int(p.Offset)+int(p.FileSize) > len(f.data) {
			return fmt.Errorf("segment %d data out of bounds", i)
		}

		addr := p.Paddr
		if addr == 0 {
			addr = p.Vaddr
		}

		if p.FileSize != 0 {
			if mem.Write(addr, f.data[p.Offset:p.Offset+p.FileSize]) != physmem.OK {
				return fmt.Errorf("segment %d does not fit at 0x%08x", i, addr)
			}
		}
		if p.MemSize > p.FileSize {
			if mem.Write(addr+p.FileSize, make([]byte, p.MemSize-p.FileSize)) != physmem.OK {
				return fmt.Errorf("segment %d bss does not fit at 0x%08x", i, addr+p.FileSize)
			}
		}
	}
	return nil
}

// Entry is the image entry point.
func (f *File) Entry() uint32 {
	return f.Header.Entry
}
