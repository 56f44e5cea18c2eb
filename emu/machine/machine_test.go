package machine

/*
 * Latte - Machine wiring tests
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

	"github.com/rcornwell/latte/config"
	"github.com/rcornwell/latte/emu/arm"
	"github.com/rcornwell/latte/emu/physmem"
	"github.com/rcornwell/latte/emu/ppc"
)

func newTestMachine(t *testing.T) *Machine {
	t.Helper()
	cfg := &config.Config{
		Memory: []config.Memory{
			{Name: "mem1", Start: 0x0, Size: 0x100000},
		},
		Starbuck: config.CPU{Steps: 100},
		Espresso: config.CPU{Steps: 100},
		Cores:    3,
		IPC:      config.IPC{Base: 0x0D800000},
	}
	m, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return m
}

// BAT and SDR1 SPR writes land in the MMU; reads come back.
func TestSprRouting(t *testing.T) {
	m := newTestMachine(t)
	core := m.PPCCore[0]

	if err := core.SetSpr(sprIBAT0U, 0x80000002); err != nil {
		t.Fatalf("SetSpr failed: %v", err)
	}
	if err := core.SetSpr(sprIBAT0U+1, 0x00000002); err != nil {
		t.Fatalf("SetSpr failed: %v", err)
	}
	if err := core.SetSpr(sprDBAT0U, 0x40000002); err != nil {
		t.Fatalf("SetSpr failed: %v", err)
	}
	if err := core.SetSpr(sprDBAT4U, 0x20000002); err != nil {
		t.Fatalf("SetSpr failed: %v", err)
	}

	mmu := m.PPCMMU[0]
	if mmu.IBATU[0] != 0x80000002 || mmu.IBATL[0] != 0x00000002 {
		t.Errorf("IBAT0 got: %08x/%08x", mmu.IBATU[0], mmu.IBATL[0])
	}
	if mmu.DBATU[0] != 0x40000002 {
		t.Errorf("DBAT0U got: %08x", mmu.DBATU[0])
	}
	if mmu.DBATU[4] != 0x20000002 {
		t.Errorf("DBAT4U got: %08x", mmu.DBATU[4])
	}

	if v, err := core.GetSpr(sprIBAT0U); err != nil || v != 0x80000002 {
		t.Errorf("IBAT0U read got: %08x, %v", v, err)
	}

	if err := core.SetSpr(ppc.SprSDR1, 0x00030000); err != nil {
		t.Fatalf("SetSpr failed: %v", err)
	}
	if mmu.SDR1() != 0x00030000 {
		t.Errorf("SDR1 got: %08x", mmu.SDR1())
	}

	if v, err := core.GetSpr(sprPVR); err != nil || v != pvrEspresso {
		t.Errorf("PVR got: %08x, %v", v, err)
	}
}

// MSR writes track the MMU translation and privilege state, observable
// through a translated load.
func TestMsrRouting(t *testing.T) {
	m := newTestMachine(t)
	core := m.PPCCore[0]
	mmu := m.PPCMMU[0]

	// DBAT0: EA 0x80000000 -> phys 0, supervisor, RW.
	mmu.SetBAT(false, true, 0, 0x80000002)
	mmu.SetBAT(false, false, 0, 0x00000002)

	// With DR off the EA passes through untouched.
	if err := core.SetMSR(0x0); err != nil {
		t.Fatalf("SetMSR failed: %v", err)
	}
	addr := uint32(0x80001000)
	if !mmu.Translate(&addr, 4, 1) || addr != 0x80001000 {
		t.Errorf("identity translation got: %08x", addr)
	}

	if err := core.SetMSR(0x10); err != nil { // DR
		t.Fatalf("SetMSR failed: %v", err)
	}
	addr = 0x80001000
	if !mmu.Translate(&addr, 4, 1) {
		t.Fatalf("translation failed with DR set")
	}
	if addr != 0x1000 {
		t.Errorf("translate got: %08x expected: %08x", addr, 0x1000)
	}
}

// A data fault on a PPC core lands at the DSI vector with DAR set.
func TestDSIRecovery(t *testing.T) {
	m := newTestMachine(t)
	cpu := m.PPC[0]
	core := m.PPCCore[0]

	// lwz r3, 0(r4) with r4 pointing into unmapped space.
	core.PC = 0x1000
	core.Regs[4] = 0xF0000000
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(32)<<26|3<<21|4<<16)
	if m.Mem.Write(0x1000, buf[:]) != physmem.OK {
		t.Fatalf("instruction write failed")
	}

	if !cpu.Run(1) {
		t.Fatalf("Run did not recover: %v", cpu.Err())
	}
	if core.PC != 0xFFF00300 {
		t.Errorf("PC got: %08x expected: %08x", core.PC, 0xFFF00300)
	}
	if core.SRR0 != 0x1000 {
		t.Errorf("SRR0 got: %08x expected: %08x", core.SRR0, 0x1000)
	}
	if core.DAR != 0xF0000000 {
		t.Errorf("DAR got: %08x expected: %08x", core.DAR, 0xF0000000)
	}
}

// An undefined ARM instruction vectors through the undefined handler.
func TestARMUndefined(t *testing.T) {
	m := newTestMachine(t)
	core := m.ARMCore
	core.Regs[arm.PC] = 0x1000

	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], 0xE7F000F0)
	if m.Mem.Write(0x1000, buf[:]) != physmem.OK {
		t.Fatalf("instruction write failed")
	}

	if !m.ARM.Run(1) {
		t.Fatalf("Run did not recover: %v", m.ARM.Err())
	}
	if core.Regs[arm.PC] != 0xFFFF0004 {
		t.Errorf("PC got: %08x expected: %08x", core.Regs[arm.PC], 0xFFFF0004)
	}
}

// The CP15 callback drives the ARM MMU enable and table base.
func TestCP15Routing(t *testing.T) {
	m := newTestMachine(t)
	core := m.ARMCore
	core.Regs[arm.PC] = 0x1000
	core.Regs[arm.R0] = 0x4000

	instrs := []uint32{
		0xEE020F10, // MCR p15, 0, R0, c2, c0, 0 (TTBR)
		0xEE011F10, // MCR p15, 0, R1, c1, c0, 0 (control: R1=1 enables)
		0xEE103F10, // MRC p15, 0, R3, c0, c0, 0 (main ID)
	}
	core.Regs[arm.R1] = 1
	for i, v := range instrs {
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], v)
		if m.Mem.Write(0x1000+uint32(i)*4, buf[:]) != physmem.OK {
			t.Fatalf("instruction write failed")
		}
	}

	// Map a section so the now-enabled MMU can keep fetching: the table
	// at 0x4000 must cover the PC.
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], 0x00000C02) // Section 0 -> 0
	if m.Mem.Write(0x4000, buf[:]) != physmem.OK {
		t.Fatalf("descriptor write failed")
	}

	if !m.ARM.Run(len(instrs)) {
		t.Fatalf("Run failed: %v", m.ARM.Err())
	}
	if m.armTTBR != 0x4000 {
		t.Errorf("TTBR got: %08x expected: %08x", m.armTTBR, 0x4000)
	}
	if core.Regs[arm.R3] != armMainID {
		t.Errorf("main ID got: %08x expected: %08x", core.Regs[arm.R3], armMainID)
	}
}

// A pending mailbox request interrupts the ARM core on the next sweep.
func TestMailboxInterrupt(t *testing.T) {
	m := newTestMachine(t)
	core := m.ARMCore
	core.Regs[arm.PC] = 0x2000
	core.CPSR = 0x1F // System mode, IRQ enabled

	// PPC side: enable the ARM interrupt and raise X1.
	if m.Mem.Write32(0x0D800000+0xC, 0x10) != physmem.OK {
		t.Fatalf("mailbox write failed")
	}
	if m.Mem.Write32(0x0D800000+0x4, 0x01) != physmem.OK {
		t.Fatalf("mailbox write failed")
	}

	if !m.deliverMailboxInterrupts() {
		t.Fatalf("interrupt delivery failed")
	}
	if core.Regs[arm.PC] != 0xFFFF0018 {
		t.Errorf("PC got: %08x expected: %08x", core.Regs[arm.PC], 0xFFFF0018)
	}
	if core.Mode != arm.IRQ {
		t.Errorf("mode got: %d expected: %d", core.Mode, arm.IRQ)
	}
}

// The decrementer alarm raises the exception when it crosses zero.
func TestDecrementerAlarm(t *testing.T) {
	m := newTestMachine(t)
	cpu := m.PPC[0]
	core := m.PPCCore[0]
	core.PC = 0x3000
	core.MSR = 0x8000 // EE

	// An endless loop: b .
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(18)<<26)
	if m.Mem.Write(0x3000, buf[:]) != physmem.OK {
		t.Fatalf("instruction write failed")
	}

	m.dec[0] = timerInterval / 2
	if !cpu.Run(timerInterval) {
		t.Fatalf("Run failed: %v", cpu.Err())
	}
	if core.PC != 0xFFF00900 {
		t.Errorf("PC got: %08x expected: %08x", core.PC, 0xFFF00900)
	}
	if core.TB != timerInterval {
		t.Errorf("TB got: %d expected: %d", core.TB, timerInterval)
	}
}
