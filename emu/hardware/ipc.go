package hardware

/*
 * Latte - Inter-processor mailbox
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
	"sync"

	"github.com/rcornwell/latte/emu/physmem"
)

// Mailbox register offsets within one IPC block.
const (
	regPPCMsg  = 0x0
	regPPCCtrl = 0x4
	regARMMsg  = 0x8
	regARMCtrl = 0xC

	blockSize = 0x10
)

// IPC is one mailbox channel between the security processor and an
// application core. The X flags signal application-core requests, the Y
// flags signal security-processor replies; each side acknowledges the
// other's flags by writing them back. Both CPUs touch the block, so every
// register access takes the mutex.
type IPC struct {
	mu   sync.Mutex
	base uint32

	ppcmsg uint32
	armmsg uint32

	x1, x2, y1, y2     bool
	ix1, ix2, iy1, iy2 bool
}

// Register attaches the mailbox block to the dispatcher at base.
func (ipc *IPC) Register(mem *physmem.Memory, base uint32) error {
	ipc.base = base
	return mem.AddSpecial(base, blockSize, ipc.read, ipc.write)
}

// Reset clears the messages and every handshake flag.
func (ipc *IPC) Reset() {
	ipc.mu.Lock()
	defer ipc.mu.Unlock()
	ipc.ppcmsg = 0
	ipc.armmsg = 0
	ipc.x1 = false
	ipc.x2 = false
	ipc.y1 = false
	ipc.y2 = false
	ipc.ix1 = false
	ipc.ix2 = false
	ipc.iy1 = false
	ipc.iy2 = false
}

func flag(state bool, bit int) uint32 {
	if state {
		return 1 << bit
	}
	return 0
}

// The mailbox registers are 32 bits wide; other widths are rejected.
func (ipc *IPC) read(addr uint32, data []byte) bool {
	if len(data) != 4 {
		slog.Warn(fmt.Sprintf("Bad ipc read width: addr=0x%08x length=0x%x", addr, len(data)))
		return false
	}

	ipc.mu.Lock()
	defer ipc.mu.Unlock()

	var value uint32
	switch addr - ipc.base {
	case regPPCMsg:
		value = ipc.ppcmsg
	case regPPCCtrl:
		value = flag(ipc.x1, 0) | flag(ipc.y2, 1) | flag(ipc.y1, 2) | flag(ipc.x2, 3) |
			flag(ipc.iy1, 4) | flag(ipc.iy2, 5)
	case regARMMsg:
		value = ipc.armmsg
	case regARMCtrl:
		value = flag(ipc.y1, 0) | flag(ipc.x2, 1) | flag(ipc.x1, 2) | flag(ipc.y2, 3) |
			flag(ipc.ix1, 4) | flag(ipc.ix2, 5)
	default:
		slog.Warn(fmt.Sprintf("Unknown ipc read: 0x%08x", addr))
	}

	binary.NativeEndian.PutUint32(data, value)
	return true
}

func (ipc *IPC) write(addr uint32, data []byte) bool {
	if len(data) != 4 {
		slog.Warn(fmt.Sprintf("Bad ipc write width: addr=0x%08x length=0x%x", addr, len(data)))
		return false
	}
	value := binary.NativeEndian.Uint32(data)

	ipc.mu.Lock()
	defer ipc.mu.Unlock()

	switch addr - ipc.base {
	case regPPCMsg:
		ipc.ppcmsg = value
	case regPPCCtrl:
		if value&1 != 0 {
			ipc.x1 = true
		}
		if value&2 != 0 {
			ipc.y2 = false
		}
		if value&4 != 0 {
			ipc.y1 = false
		}
		if value&8 != 0 {
			ipc.x2 = true
		}
		ipc.iy1 = value&0x10 != 0
		ipc.iy2 = value&0x20 != 0
	case regARMMsg:
		ipc.armmsg = value
	case regARMCtrl:
		if value&1 != 0 {
			ipc.y1 = true
		}
		if value&2 != 0 {
			ipc.x2 = false
		}
		if value&4 != 0 {
			ipc.x1 = false
		}
		if value&8 != 0 {
			ipc.y2 = true
		}
		ipc.ix1 = value&0x10 != 0
		ipc.ix2 = value&0x20 != 0
	default:
		slog.Warn(fmt.Sprintf("Unknown ipc write: 0x%08x (0x%08x)", addr, value))
	}
	return true
}

// PendingARM reports whether the security processor has an enabled
// request pending.
func (ipc *IPC) PendingARM() bool {
	ipc.mu.Lock()
	defer ipc.mu.Unlock()
	return (ipc.x1 && ipc.ix1) || (ipc.x2 && ipc.ix2)
}

// PendingPPC reports whether the application core has an enabled reply
// pending.
func (ipc *IPC) PendingPPC() bool {
	ipc.mu.Lock()
	defer ipc.mu.Unlock()
	return (ipc.y1 && ipc.iy1) || (ipc.y2 && ipc.iy2)
}
