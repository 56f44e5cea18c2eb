package ppc

/*
 * Latte - lwarx/stwcx reservation manager
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

import "sync"

// LockMgr holds the single reservation cell shared by the application
// cores. lwarx sets it, a matching stwcx consumes it, and an ordinary
// store by a different core to the reserved address clears it, which is
// the approximation the architecture permits.
type LockMgr struct {
	mu    sync.Mutex
	owner *Core
	addr  uint32
}

func NewLockMgr() *LockMgr {
	return &LockMgr{}
}

// Reset drops the reservation.
func (l *LockMgr) Reset() {
	l.mu.Lock()
	l.owner = nil
	l.addr = 0
	l.mu.Unlock()
}

// Reserve records a reservation for owner at addr.
func (l *LockMgr) Reserve(owner *Core, addr uint32) {
	l.mu.Lock()
	l.owner = owner
	l.addr = addr
	l.mu.Unlock()
}

// IsReserved reports whether owner still holds the reservation at addr.
func (l *LockMgr) IsReserved(owner *Core, addr uint32) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.owner == owner && l.addr == addr
}

// StoreNotify clears the reservation when another core stores over the
// reserved address.
func (l *LockMgr) StoreNotify(owner *Core, addr uint32) {
	l.mu.Lock()
	if l.owner != nil && l.owner != owner && l.addr == addr {
		l.owner = nil
		l.addr = 0
	}
	l.mu.Unlock()
}
