package interp

/*
 * Latte - Interpreter base
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
	"errors"
	"fmt"

	"github.com/rcornwell/latte/emu/physmem"
	"github.com/rcornwell/latte/emu/virtmem"
	"github.com/rcornwell/latte/util/endian"
)

// Hook signatures. A handler returns false when it could not recover; the
// step fails and the scheduler stops unless the error was cleared.
type (
	DataErrorFunc  func(addr uint32, write bool) bool
	FetchErrorFunc func(addr uint32) bool
	BreakpointFunc func(addr uint32) bool
	WatchpointFunc func(addr uint32, write bool) bool
	AlarmFunc      func() bool
)

// Base composes address translation, the physical memory dispatcher, byte
// swapping and the debug hooks into the typed access path shared by every
// CPU interpreter. The concrete interpreter attaches its step and PC
// functions after construction.
type Base struct {
	physmem *physmem.Memory
	virtmem virtmem.Translator
	swap    bool

	step func() bool
	pc   func() uint32

	err error

	dataError  DataErrorFunc
	fetchError FetchErrorFunc
	breakCB    BreakpointFunc
	watchRead  WatchpointFunc
	watchWrite WatchpointFunc

	debug       bool
	breakpoints []uint32
	watchAddrRd []uint32
	watchAddrWr []uint32

	watchHit   bool
	watchIsWr  bool
	watchFault uint32

	alarm         AlarmFunc
	alarmInterval uint32
	alarmTimer    uint32
}

// New builds the access path for a CPU whose byte order is bigEndian.
func New(mem *physmem.Memory, mmu virtmem.Translator, bigEndian bool) *Base {
	return &Base{
		physmem: mem,
		virtmem: mmu,
		swap:    bigEndian != endian.HostBig,
	}
}

// Attach binds the concrete interpreter's step and PC accessors.
func (b *Base) Attach(step func() bool, pc func() uint32) {
	b.step = step
	b.pc = pc
}

// Err reports the sticky fault from the last failing step, nil if the
// error callback recovered it.
func (b *Base) Err() error { return b.err }

// ClearError acknowledges a recovered fault.
func (b *Base) ClearError() { b.err = nil }

// SetError records a fault that must stop the scheduler.
func (b *Base) SetError(err error) { b.err = err }

func (b *Base) SetDataErrorFunc(fn DataErrorFunc)   { b.dataError = fn }
func (b *Base) SetFetchErrorFunc(fn FetchErrorFunc) { b.fetchError = fn }
func (b *Base) SetBreakpointFunc(fn BreakpointFunc) { b.breakCB = fn }

func (b *Base) SetWatchpointFunc(write bool, fn WatchpointFunc) {
	if write {
		b.watchWrite = fn
	} else {
		b.watchRead = fn
	}
}

// SetAlarm installs a callback fired every interval steps.
func (b *Base) SetAlarm(interval uint32, fn AlarmFunc) {
	b.alarmInterval = interval
	b.alarmTimer = interval
	b.alarm = fn
}

// SetDebug turns the breakpoint and watchpoint scans on. They are off the
// hot path entirely when disabled.
func (b *Base) SetDebug(enable bool) { b.debug = enable }

func addToList(list []uint32, addr uint32) []uint32 {
	for _, a := range list {
		if a == addr {
			return list
		}
	}
	return append(list, addr)
}

func removeFromList(list []uint32, addr uint32) []uint32 {
	for i, a := range list {
		if a == addr {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func (b *Base) AddBreakpoint(addr uint32)    { b.breakpoints = addToList(b.breakpoints, addr) }
func (b *Base) RemoveBreakpoint(addr uint32) { b.breakpoints = removeFromList(b.breakpoints, addr) }

func (b *Base) AddWatchpoint(write bool, addr uint32) {
	if write {
		b.watchAddrWr = addToList(b.watchAddrWr, addr)
	} else {
		b.watchAddrRd = addToList(b.watchAddrRd, addr)
	}
}

func (b *Base) RemoveWatchpoint(write bool, addr uint32) {
	if write {
		b.watchAddrWr = removeFromList(b.watchAddrWr, addr)
	} else {
		b.watchAddrRd = removeFromList(b.watchAddrRd, addr)
	}
}

// Breakpoints returns the current breakpoint list for display.
func (b *Base) Breakpoints() []uint32 { return b.breakpoints }

// A watchpoint hit is latched here and delivered at the step boundary so
// the faulting instruction completes first.
func (b *Base) checkWatchpoints(write bool, addr, length uint32) {
	list := b.watchAddrRd
	if write {
		list = b.watchAddrWr
	}
	for _, wp := range list {
		if addr <= wp && wp < addr+length {
			b.watchHit = true
			b.watchFault = wp
			b.watchIsWr = write
		}
	}
}

// memoryError routes a failed access to the data or fetch error callback.
// The callback recovers by raising the CPU exception and returning true;
// the step still fails but Run continues at the exception vector.
func (b *Base) memoryError(addr uint32, write, code bool) {
	if code {
		if b.fetchError == nil {
			b.err = errors.New("no fetch error callback installed")
			return
		}
		if !b.fetchError(addr) && b.err == nil {
			b.err = fmt.Errorf("fetch error at 0x%08x not recovered", addr)
		}
		return
	}
	if b.dataError == nil {
		b.err = errors.New("no data error callback installed")
		return
	}
	if !b.dataError(addr, write) && b.err == nil {
		b.err = fmt.Errorf("data error at 0x%08x not recovered", addr)
	}
}

func (b *Base) fatal(addr uint32, write bool) {
	op := "read"
	if write {
		op = "write"
	}
	b.err = fmt.Errorf("fatal %s error at 0x%08x", op, addr)
}

func (b *Base) readAccess(addr *uint32, length uint32, code bool) bool {
	if b.debug && !code {
		b.checkWatchpoints(false, *addr, length)
	}
	access := virtmem.DataRead
	if code {
		access = virtmem.Instruction
	}
	if !b.virtmem.Translate(addr, length, access) {
		b.memoryError(*addr, false, code)
		return false
	}
	return true
}

func (b *Base) readDone(addr uint32, result int, code bool) bool {
	switch result {
	case physmem.FatalError:
		b.fatal(addr, false)
		return false
	case physmem.BusError:
		b.memoryError(addr, false, code)
		return false
	}
	return true
}

func (b *Base) writeAccess(addr *uint32, length uint32) bool {
	if b.debug {
		b.checkWatchpoints(true, *addr, length)
	}
	if !b.virtmem.Translate(addr, length, virtmem.DataWrite) {
		b.memoryError(*addr, true, false)
		return false
	}
	return true
}

func (b *Base) writeDone(addr uint32, result int) bool {
	switch result {
	case physmem.FatalError:
		b.fatal(addr, true)
		return false
	case physmem.BusError:
		b.memoryError(addr, true, false)
		return false
	}
	return true
}

// Read8 loads one byte at the virtual address.
func (b *Base) Read8(addr uint32) (uint8, bool) {
	if !b.readAccess(&addr, 1, false) {
		return 0, false
	}
	value, result := b.physmem.Read8(addr)
	if !b.readDone(addr, result, false) {
		return 0, false
	}
	return value, true
}

// Read16 loads a halfword, swapped to CPU order.
func (b *Base) Read16(addr uint32) (uint16, bool) {
	return b.read16(addr, false)
}

// ReadCode16 is Read16 on the instruction path: watchpoints do not apply
// and translation failures raise the fetch error.
func (b *Base) ReadCode16(addr uint32) (uint16, bool) {
	return b.read16(addr, true)
}

func (b *Base) read16(addr uint32, code bool) (uint16, bool) {
	if !b.readAccess(&addr, 2, code) {
		return 0, false
	}
	value, result := b.physmem.Read16(addr)
	if !b.readDone(addr, result, code) {
		return 0, false
	}
	if b.swap {
		value = endian.Swap16(value)
	}
	return value, true
}

// Read32 loads a word, swapped to CPU order.
func (b *Base) Read32(addr uint32) (uint32, bool) {
	return b.read32(addr, false)
}

// ReadCode32 is Read32 on the instruction path.
func (b *Base) ReadCode32(addr uint32) (uint32, bool) {
	return b.read32(addr, true)
}

func (b *Base) read32(addr uint32, code bool) (uint32, bool) {
	if !b.readAccess(&addr, 4, code) {
		return 0, false
	}
	value, result := b.physmem.Read32(addr)
	if !b.readDone(addr, result, code) {
		return 0, false
	}
	if b.swap {
		value = endian.Swap32(value)
	}
	return value, true
}

// Read64 loads a doubleword, swapped to CPU order.
func (b *Base) Read64(addr uint32) (uint64, bool) {
	if !b.readAccess(&addr, 8, false) {
		return 0, false
	}
	value, result := b.physmem.Read64(addr)
	if !b.readDone(addr, result, false) {
		return 0, false
	}
	if b.swap {
		value = endian.Swap64(value)
	}
	return value, true
}

// Write8 stores one byte at the virtual address.
func (b *Base) Write8(addr uint32, value uint8) bool {
	if !b.writeAccess(&addr, 1) {
		return false
	}
	return b.writeDone(addr, b.physmem.Write8(addr, value))
}

// Write16 stores a halfword in CPU order.
func (b *Base) Write16(addr uint32, value uint16) bool {
	if b.swap {
		value = endian.Swap16(value)
	}
	if !b.writeAccess(&addr, 2) {
		return false
	}
	return b.writeDone(addr, b.physmem.Write16(addr, value))
}

// Write32 stores a word in CPU order.
func (b *Base) Write32(addr uint32, value uint32) bool {
	if b.swap {
		value = endian.Swap32(value)
	}
	if !b.writeAccess(&addr, 4) {
		return false
	}
	return b.writeDone(addr, b.physmem.Write32(addr, value))
}

// Write64 stores a doubleword in CPU order.
func (b *Base) Write64(addr uint32, value uint64) bool {
	if b.swap {
		value = endian.Swap64(value)
	}
	if !b.writeAccess(&addr, 8) {
		return false
	}
	return b.writeDone(addr, b.physmem.Write64(addr, value))
}

// InvalidateMMUCache drops the MMU's translation cache. Issued by cache
// and TLB maintenance instructions.
func (b *Base) InvalidateMMUCache() {
	b.virtmem.InvalidateCache()
}

// PC returns the attached core's program counter.
func (b *Base) PC() uint32 { return b.pc() }

// Run executes steps instructions, unbounded when steps is 0. A failing
// step stops the run only if the error callbacks did not recover it.
// Alarms, latched watchpoints and breakpoints are serviced between steps.
func (b *Base) Run(steps int) bool {
	for {
		if !b.step() {
			if b.err != nil {
				return false
			}
		}

		if b.alarm != nil {
			b.alarmTimer--
			if b.alarmTimer == 0 {
				b.alarmTimer = b.alarmInterval
				if !b.alarm() {
					return false
				}
			}
		}

		if steps > 0 {
			steps--
			if steps == 0 {
				return true
			}
		}

		if !b.debug {
			continue
		}

		if b.watchHit {
			b.watchHit = false
			cb := b.watchRead
			if b.watchIsWr {
				cb = b.watchWrite
			}
			if cb == nil {
				b.err = errors.New("no watchpoint callback installed")
				return false
			}
			if !cb(b.watchFault, b.watchIsWr) {
				return false
			}
		}

		for _, bp := range b.breakpoints {
			if bp == b.pc() {
				if b.breakCB == nil {
					b.err = errors.New("no breakpoint callback installed")
					return false
				}
				if !b.breakCB(bp) {
					return false
				}
				break
			}
		}
	}
}
