package interp

/*
 * Latte - Interpreter base tests
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
	"testing"

	"github.com/rcornwell/latte/emu/physmem"
	"github.com/rcornwell/latte/emu/virtmem"
)

// identity translator with no cache.
type flatMMU struct{}

func (flatMMU) Translate(addr *uint32, length uint32, access virtmem.Access) bool { return true }
func (flatMMU) InvalidateCache()                                                  {}

func newTestBase(t *testing.T) (*Base, *physmem.Memory) {
	t.Helper()
	mem := physmem.New()
	if err := mem.AddRAM(0x0, 0x10000); err != nil {
		t.Fatalf("AddRAM failed: %v", err)
	}
	return New(mem, flatMMU{}, false), mem
}

// Typed round trips through the full access path.
func TestTypedAccess(t *testing.T) {
	b, _ := newTestBase(t)

	if !b.Write32(0x100, 0xCAFEBABE) {
		t.Fatalf("Write32 failed")
	}
	v, ok := b.Read32(0x100)
	if !ok || v != 0xCAFEBABE {
		t.Errorf("Read32 got: %08x expected: %08x", v, 0xCAFEBABE)
	}

	if !b.Write16(0x200, 0xBEEF) {
		t.Fatalf("Write16 failed")
	}
	v16, ok := b.Read16(0x200)
	if !ok || v16 != 0xBEEF {
		t.Errorf("Read16 got: %04x expected: %04x", v16, 0xBEEF)
	}

	if !b.Write64(0x300, 0x1122334455667788) {
		t.Fatalf("Write64 failed")
	}
	v64, ok := b.Read64(0x300)
	if !ok || v64 != 0x1122334455667788 {
		t.Errorf("Read64 got: %016x expected: %016x", v64, uint64(0x1122334455667788))
	}
}

// A bus error goes to the data error callback; a recovered fault leaves
// the run loop running.
func TestDataErrorRecovery(t *testing.T) {
	b, _ := newTestBase(t)

	var faultAddr uint32
	var faultWrite bool
	b.SetDataErrorFunc(func(addr uint32, write bool) bool {
		faultAddr = addr
		faultWrite = write
		return true
	})

	if _, ok := b.Read32(0xF0000000); ok {
		t.Errorf("Read32 of unmapped memory succeeded")
	}
	if faultAddr != 0xF0000000 || faultWrite {
		t.Errorf("data error callback got addr=%08x write=%v", faultAddr, faultWrite)
	}
	if b.Err() != nil {
		t.Errorf("recovered fault left sticky error: %v", b.Err())
	}

	if b.Write32(0xF0000000, 1) {
		t.Errorf("Write32 of unmapped memory succeeded")
	}
	if !faultWrite {
		t.Errorf("data error callback did not see the write")
	}
}

// Without a data error callback the fault is sticky and stops Run.
func TestDataErrorFatal(t *testing.T) {
	b, _ := newTestBase(t)

	steps := 0
	b.Attach(func() bool {
		steps++
		_, ok := b.Read32(0xF0000000)
		return ok
	}, func() uint32 { return 0 })

	if b.Run(5) {
		t.Errorf("Run succeeded with missing data error callback")
	}
	if steps != 1 {
		t.Errorf("Run steps got: %d expected: 1", steps)
	}
	if b.Err() == nil {
		t.Errorf("missing callback did not set the error")
	}
}

// Run executes exactly the requested number of steps and fires the
// alarm on its interval.
func TestRunAlarm(t *testing.T) {
	b, _ := newTestBase(t)

	steps := 0
	b.Attach(func() bool { steps++; return true }, func() uint32 { return 0 })

	alarms := 0
	b.SetAlarm(10, func() bool { alarms++; return true })

	if !b.Run(35) {
		t.Fatalf("Run failed")
	}
	if steps != 35 {
		t.Errorf("steps got: %d expected: 35", steps)
	}
	if alarms != 3 {
		t.Errorf("alarms got: %d expected: 3", alarms)
	}
}

// Breakpoints fire at the step boundary when debug is on.
func TestBreakpoint(t *testing.T) {
	b, _ := newTestBase(t)

	pc := uint32(0)
	b.Attach(func() bool { pc += 4; return true }, func() uint32 { return pc })
	b.SetDebug(true)
	b.AddBreakpoint(0x10)

	hits := 0
	b.SetBreakpointFunc(func(addr uint32) bool {
		if addr != 0x10 {
			t.Errorf("breakpoint addr got: %08x expected: %08x", addr, 0x10)
		}
		hits++
		return true
	})

	if !b.Run(8) {
		t.Fatalf("Run failed")
	}
	if hits != 1 {
		t.Errorf("breakpoint hits got: %d expected: 1", hits)
	}
}

// A watchpoint is latched during the access and delivered after the
// instruction completes.
func TestWatchpoint(t *testing.T) {
	b, _ := newTestBase(t)

	step := 0
	b.Attach(func() bool {
		step++
		if step == 2 {
			b.Write32(0x1000, 1)
		}
		return true
	}, func() uint32 { return 0 })
	b.SetDebug(true)
	b.AddWatchpoint(true, 0x1002)

	var hitAddr uint32
	hits := 0
	b.SetWatchpointFunc(true, func(addr uint32, write bool) bool {
		hitAddr = addr
		hits++
		if !write {
			t.Errorf("watchpoint direction got read expected write")
		}
		return true
	})

	if !b.Run(4) {
		t.Fatalf("Run failed")
	}
	if hits != 1 || hitAddr != 0x1002 {
		t.Errorf("watchpoint hits=%d addr=%08x expected 1 at 0x1002", hits, hitAddr)
	}

	// Read watchpoints are not triggered by writes.
	b.RemoveWatchpoint(true, 0x1002)
	b.AddWatchpoint(false, 0x1002)
	step = 1
	if !b.Run(2) {
		t.Fatalf("Run failed")
	}
	if hits != 1 {
		t.Errorf("read watchpoint fired on a write")
	}
}
