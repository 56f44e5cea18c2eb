package machine

/*
 * Latte - Machine wiring
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
	"fmt"
	"log/slog"
	"os"

	"github.com/rcornwell/latte/config"
	"github.com/rcornwell/latte/emu/arm"
	"github.com/rcornwell/latte/emu/hardware"
	"github.com/rcornwell/latte/emu/physmem"
	"github.com/rcornwell/latte/emu/ppc"
	"github.com/rcornwell/latte/emu/scheduler"
	"github.com/rcornwell/latte/util/elf"
)

// SPR numbers handled by the machine glue rather than the core itself.
const (
	sprPVR    = 287
	sprIBAT0U = 528
	sprIBAT3L = 535
	sprDBAT0U = 536
	sprDBAT3L = 543
	sprIBAT4U = 560
	sprIBAT7L = 567
	sprDBAT4U = 568
	sprDBAT7L = 575

	// Espresso processor version.
	pvrEspresso = 0x70010201

	// ARM926 main ID register.
	armMainID = 0x41069265

	// Steps between time base updates.
	timerInterval = 256
)

// Machine owns the whole emulated system: the physical memory map, the
// security processor, the application cores and the scheduler driving
// them. Everything is built once at boot; nothing is reallocated while
// the machine runs.
type Machine struct {
	Mem   *physmem.Memory
	Lock  *ppc.LockMgr
	Sched *scheduler.Scheduler

	ARM     *arm.Interpreter
	ARMCore *arm.Core
	ARMMMU  *arm.MMU

	PPC     []*ppc.Interpreter
	PPCCore []*ppc.Core
	PPCMMU  []*ppc.MMU

	IPC []*hardware.IPC

	cfg *config.Config

	armCtrl uint32
	armTTBR uint32

	dec     []uint32
	sprMisc []map[int]uint32
}

// New builds a machine from its configuration.
func New(cfg *config.Config) (*Machine, error) {
	m := &Machine{
		Mem:   physmem.New(),
		Lock:  ppc.NewLockMgr(),
		Sched: scheduler.New(),
		cfg:   cfg,
	}

	for _, mem := range cfg.Memory {
		if err := m.Mem.AddRAM(mem.Start, mem.Size); err != nil {
			return nil, err
		}
	}

	for i := 0; i < cfg.Cores; i++ {
		ipc := &hardware.IPC{}
		if err := ipc.Register(m.Mem, cfg.IPC.Base+uint32(i)*0x10); err != nil {
			return nil, err
		}
		ipc.Reset()
		m.IPC = append(m.IPC, ipc)
	}

	m.buildARM()
	for i := 0; i < cfg.Cores; i++ {
		m.buildPPC(i)
	}

	m.Sched.Add(m.ARM, cfg.Starbuck.Steps)
	for _, cpu := range m.PPC {
		m.Sched.Add(cpu, cfg.Espresso.Steps)
	}

	// Mailbox interrupts are polled once per sweep.
	m.Sched.AddAlarm(1, m.deliverMailboxInterrupts)

	return m, nil
}

// buildARM creates the security processor with its system coprocessor
// glue: control register, translation table base and the invalidation
// operations.
func (m *Machine) buildARM() {
	m.ARMCore = arm.NewCore()
	m.ARMMMU = arm.NewMMU(m.Mem, false)
	m.ARM = arm.NewInterpreter(m.ARMCore, m.Mem, m.ARMMMU, false)

	m.ARM.SetDataErrorFunc(func(addr uint32, write bool) bool {
		slog.Debug(fmt.Sprintf("ARM data abort: addr=0x%08x write=%v", addr, write))
		m.ARMCore.TriggerException(arm.DataAbort)
		return true
	})
	m.ARM.SetFetchErrorFunc(func(addr uint32) bool {
		slog.Debug(fmt.Sprintf("ARM prefetch abort: addr=0x%08x", addr))
		m.ARMCore.TriggerException(arm.DataAbort)
		return true
	})
	m.ARM.SetUndefinedFunc(func() bool {
		m.ARMCore.TriggerException(arm.UndefinedInstruction)
		return true
	})
	m.ARM.SetSoftwareInterruptFunc(func(value uint32) bool {
		slog.Debug(fmt.Sprintf("ARM swi 0x%x", value))
		return true
	})

	m.ARM.SetCoprocReadFunc(func(coproc, opc, rn, rm, typ int) (uint32, bool) {
		if coproc != 15 {
			slog.Warn(fmt.Sprintf("Unknown coprocessor read: p%d c%d", coproc, rn))
			return 0, true
		}
		switch rn {
		case 0:
			return armMainID, true
		case 1:
			return m.armCtrl, true
		case 2:
			return m.armTTBR, true
		default:
			slog.Debug(fmt.Sprintf("Unhandled cp15 read: c%d,c%d,%d", rn, rm, typ))
			return 0, true
		}
	})
	m.ARM.SetCoprocWriteFunc(func(coproc, opc int, value uint32, rn, rm, typ int) bool {
		if coproc != 15 {
			slog.Warn(fmt.Sprintf("Unknown coprocessor write: p%d c%d", coproc, rn))
			return true
		}
		switch rn {
		case 1:
			m.armCtrl = value
			m.ARMMMU.SetEnabled(value&1 != 0)
			m.ARMMMU.SetCacheEnabled(value&4 != 0)
		case 2:
			m.armTTBR = value
			m.ARMMMU.SetTranslationTableBase(value)
		case 7, 8:
			// Cache and TLB maintenance
			m.ARMMMU.InvalidateCache()
		default:
			slog.Debug(fmt.Sprintf("Unhandled cp15 write: c%d,c%d,%d = 0x%08x", rn, rm, typ, value))
		}
		return true
	})
}

// buildPPC creates one application core. The segment registers and BATs
// live in the MMU; the SPR and SR traffic is routed there, and MSR writes
// track the translation and privilege bits.
func (m *Machine) buildPPC(index int) {
	core := ppc.NewCore(m.Lock)
	mmu := ppc.NewMMU(m.Mem)
	cpu := ppc.NewInterpreter(core, m.Mem, mmu)

	core.UPIR = uint32(index)
	m.dec = append(m.dec, 0)
	m.sprMisc = append(m.sprMisc, map[int]uint32{})

	core.SetMSRWriteFunc(func(value uint32) bool {
		mmu.SetInstrTranslation(value&0x20 != 0)
		mmu.SetDataTranslation(value&0x10 != 0)
		mmu.SetSupervisor(value&0x4000 == 0)
		return true
	})

	core.SetSrReadFunc(func(idx int) (uint32, bool) {
		return mmu.SR(idx), true
	})
	core.SetSrWriteFunc(func(idx int, value uint32) bool {
		mmu.SetSR(idx, value)
		return true
	})

	core.SetSprReadFunc(func(spr int) (uint32, bool) {
		switch {
		case spr == ppc.SprDEC:
			return m.dec[index], true
		case spr == ppc.SprSDR1:
			return mmu.SDR1(), true
		case spr == sprPVR:
			return pvrEspresso, true
		case spr >= sprIBAT0U && spr <= sprDBAT3L:
			slot := spr - sprIBAT0U
			return m.readBAT(mmu, slot), true
		case spr >= sprIBAT4U && spr <= sprDBAT7L:
			slot := spr - sprIBAT4U + 16
			return m.readBAT(mmu, slot), true
		default:
			value := m.sprMisc[index][spr]
			slog.Debug(fmt.Sprintf("Unhandled SPR read: %d", spr))
			return value, true
		}
	})
	core.SetSprWriteFunc(func(spr int, value uint32) bool {
		switch {
		case spr == ppc.SprDEC:
			m.dec[index] = value
		case spr == ppc.SprSDR1:
			mmu.SetSDR1(value)
		case spr >= sprIBAT0U && spr <= sprDBAT3L:
			m.writeBAT(mmu, spr-sprIBAT0U, value)
		case spr >= sprIBAT4U && spr <= sprDBAT7L:
			m.writeBAT(mmu, spr-sprIBAT4U+16, value)
		default:
			slog.Debug(fmt.Sprintf("Unhandled SPR write: %d = 0x%08x", spr, value))
			m.sprMisc[index][spr] = value
		}
		return true
	})

	cpu.SetDataErrorFunc(func(addr uint32, write bool) bool {
		core.DAR = addr
		if write {
			core.DSISR = 0x42000000
		} else {
			core.DSISR = 0x40000000
		}
		if err := core.TriggerException(ppc.DSI); err != nil {
			return false
		}
		return true
	})
	cpu.SetFetchErrorFunc(func(addr uint32) bool {
		if err := core.TriggerException(ppc.ISI); err != nil {
			return false
		}
		return true
	})

	// Time base and decrementer advance by timerInterval every
	// timerInterval steps of this core.
	cpu.SetAlarm(timerInterval, func() bool {
		core.TB += timerInterval
		old := m.dec[index]
		m.dec[index] -= timerInterval
		if old < timerInterval && old != 0 {
			if err := core.TriggerException(ppc.Decrementer); err != nil {
				return false
			}
		}
		return true
	})

	m.PPCCore = append(m.PPCCore, core)
	m.PPCMMU = append(m.PPCMMU, mmu)
	m.PPC = append(m.PPC, cpu)
}

// BAT slots alternate upper/lower: slot 0 is IBAT0U, slot 1 IBAT0L, ...
// Slots 16 and up are the second group (BAT4-7).
func (m *Machine) writeBAT(mmu *ppc.MMU, slot int, value uint32) {
	instr := slot < 8 || (slot >= 16 && slot < 24)
	pair := slot / 2 % 4
	if slot >= 16 {
		pair += 4
	}
	mmu.SetBAT(instr, slot%2 == 0, pair, value)
}

func (m *Machine) readBAT(mmu *ppc.MMU, slot int) uint32 {
	instr := slot < 8 || (slot >= 16 && slot < 24)
	pair := slot / 2 % 4
	if slot >= 16 {
		pair += 4
	}
	upper := slot%2 == 0
	switch {
	case instr && upper:
		return mmu.IBATU[pair]
	case instr:
		return mmu.IBATL[pair]
	case upper:
		return mmu.DBATU[pair]
	default:
		return mmu.DBATL[pair]
	}
}

// deliverMailboxInterrupts raises the interrupt lines for any mailbox
// with an enabled request or reply pending.
func (m *Machine) deliverMailboxInterrupts() bool {
	for i, ipc := range m.IPC {
		if ipc.PendingARM() {
			m.ARMCore.TriggerException(arm.InterruptRequest)
		}
		if ipc.PendingPPC() {
			if err := m.PPCCore[i].TriggerException(ppc.ExternalInterrupt); err != nil {
				return false
			}
		}
	}
	return true
}

// LoadImages loads the configured boot images and applies reset entry
// points.
func (m *Machine) LoadImages() error {
	if m.cfg.Starbuck.Entry != 0 {
		m.ARMCore.Regs[arm.PC] = m.cfg.Starbuck.Entry
	}
	if m.cfg.Espresso.Entry != 0 {
		for _, core := range m.PPCCore {
			core.PC = m.cfg.Espresso.Entry
		}
	}

	for _, img := range m.cfg.Images {
		entry := img.Addr
		switch img.Kind {
		case "elf", "":
			file, err := elf.ParseFile(img.File)
			if err != nil {
				return err
			}
			if err := file.Load(m.Mem); err != nil {
				return fmt.Errorf("image %s: %w", img.File, err)
			}
			entry = file.Entry()
		case "raw":
			data, err := os.ReadFile(img.File)
			if err != nil {
				return err
			}
			if m.Mem.Write(img.Addr, data) != physmem.OK {
				return fmt.Errorf("image %s does not fit at 0x%08x", img.File, img.Addr)
			}
		}

		switch img.CPU {
		case "arm":
			m.ARMCore.Regs[arm.PC] = entry
		case "ppc0", "ppc1", "ppc2":
			index := int(img.CPU[3] - '0')
			if index >= len(m.PPCCore) {
				return fmt.Errorf("image %s targets missing core %s", img.File, img.CPU)
			}
			m.PPCCore[index].PC = entry
		}
		slog.Info(fmt.Sprintf("Loaded %s (entry 0x%08x)", img.File, entry))
	}
	return nil
}

// Start releases the configured CPUs from reset.
func (m *Machine) Start() {
	if m.cfg.Starbuck.Start {
		_ = m.Sched.Resume(0)
	}
	if m.cfg.Espresso.Start {
		for i := range m.PPC {
			_ = m.Sched.Resume(1 + i)
		}
	}
}

// Names of the scheduler participants, for the monitor console.
func (m *Machine) Names() []string {
	names := []string{"arm"}
	for i := range m.PPC {
		names = append(names, fmt.Sprintf("ppc%d", i))
	}
	return names
}

// Index maps a CPU name to its scheduler index, -1 when unknown.
func (m *Machine) Index(name string) int {
	for i, n := range m.Names() {
		if n == name {
			return i
		}
	}
	return -1
}
