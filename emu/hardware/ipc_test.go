package hardware

/*
 * Latte - Mailbox tests
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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcornwell/latte/emu/physmem"
)

const base = 0x0D800000

func newTestIPC(t *testing.T) (*IPC, *physmem.Memory) {
	t.Helper()
	mem := physmem.New()
	ipc := &IPC{}
	require.NoError(t, ipc.Register(mem, base))
	ipc.Reset()
	return ipc, mem
}

func TestMailboxMessages(t *testing.T) {
	ipc, mem := newTestIPC(t)

	require.Equal(t, physmem.OK, mem.Write32(base+regPPCMsg, 0x12345678))
	v, result := mem.Read32(base + regPPCMsg)
	require.Equal(t, physmem.OK, result)
	assert.Equal(t, uint32(0x12345678), v)

	require.Equal(t, physmem.OK, mem.Write32(base+regARMMsg, 0xCAFED00D))
	v, result = mem.Read32(base + regARMMsg)
	require.Equal(t, physmem.OK, result)
	assert.Equal(t, uint32(0xCAFED00D), v)

	ipc.Reset()
	v, _ = mem.Read32(base + regPPCMsg)
	assert.Zero(t, v)
}

// The X1 handshake: PPC raises the flag, ARM sees it, acknowledges, PPC
// sees the clear.
func TestMailboxHandshake(t *testing.T) {
	ipc, mem := newTestIPC(t)

	// PPC sends a request with the interrupt enabled on the ARM side.
	require.Equal(t, physmem.OK, mem.Write32(base+regARMCtrl, 0x10)) // IX1
	require.Equal(t, physmem.OK, mem.Write32(base+regPPCCtrl, 0x01)) // X1

	assert.True(t, ipc.PendingARM())
	assert.False(t, ipc.PendingPPC())

	// ARM sees X1 in its control register (bit 2).
	v, _ := mem.Read32(base + regARMCtrl)
	assert.NotZero(t, v&0x04, "ARM did not see X1")

	// ARM acknowledges X1.
	require.Equal(t, physmem.OK, mem.Write32(base+regARMCtrl, 0x04|0x10))
	assert.False(t, ipc.PendingARM())

	// ARM replies with Y2; PPC enabled its interrupt.
	require.Equal(t, physmem.OK, mem.Write32(base+regPPCCtrl, 0x20)) // IY2
	require.Equal(t, physmem.OK, mem.Write32(base+regARMCtrl, 0x08|0x10)) // Y2
	assert.True(t, ipc.PendingPPC())

	// PPC acknowledges Y2.
	require.Equal(t, physmem.OK, mem.Write32(base+regPPCCtrl, 0x02|0x20))
	assert.False(t, ipc.PendingPPC())
}

// Only 32-bit accesses are accepted.
func TestMailboxWidth(t *testing.T) {
	_, mem := newTestIPC(t)

	assert.Equal(t, physmem.FatalError, mem.Write16(base+regPPCMsg, 1))
	_, result := mem.Read8(base + regPPCMsg)
	assert.Equal(t, physmem.FatalError, result)
}
