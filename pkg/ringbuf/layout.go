/*
 * Copyright 2025 the ringbus authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package ringbuf

import (
	"fmt"
	"sync/atomic"
	"unsafe"
)

// Memory layout constants
const (
	// Magic bytes identifying a formatted region
	RegionMagic = "RINGBUS\x00"

	// Current layout version
	LayoutVersion = uint32(1)

	// Queue bookkeeping block size (aligned to 64 bytes)
	BookSize = 64

	// Lock block size (one cache line holding the write-lock word)
	LockBlockSize = 64

	// Default header-queue capacity in bytes
	DefaultQueueCapacity = uint32(512)

	// Minimum header-queue capacity: at least one header must fit
	MinQueueCapacity = uint32(16)
)

// queueBook is the bookkeeping block at the start of a formatted
// region. Layout is fixed and shared across address spaces:
//
//	0x00  magic    [8]byte  "RINGBUS\0"
//	0x08  version  uint32
//	0x0C  capacity uint32   header buffer size (power of two)
//	0x10  in       uint32   free-running enqueue cursor
//	0x14  out      uint32   free-running dequeue cursor
//	0x18  reserved to 64 bytes
//
// The circular header buffer follows at offset 0x40, then a 64-byte
// aligned lock block, then the payload arena to the end of the region.
type queueBook struct {
	magic    [8]byte
	version  uint32
	capacity uint32
	in       uint32
	out      uint32
	reserved [40]byte
}

// queueBook atomic access methods. The in-cursor store is the
// publication point of the protocol: a consumer that observes the new
// value also observes the header bytes (and the payload bytes written
// before them) that the store publishes.

// Version returns the layout version
func (b *queueBook) Version() uint32 {
	return atomic.LoadUint32(&b.version)
}

// SetVersion sets the layout version
func (b *queueBook) SetVersion(v uint32) {
	atomic.StoreUint32(&b.version, v)
}

// Capacity returns the header buffer capacity in bytes
func (b *queueBook) Capacity() uint32 {
	return atomic.LoadUint32(&b.capacity)
}

// SetCapacity sets the header buffer capacity in bytes
func (b *queueBook) SetCapacity(c uint32) {
	atomic.StoreUint32(&b.capacity, c)
}

// In returns the free-running enqueue cursor
func (b *queueBook) In() uint32 {
	return atomic.LoadUint32(&b.in)
}

// SetIn publishes a new enqueue cursor
func (b *queueBook) SetIn(v uint32) {
	atomic.StoreUint32(&b.in, v)
}

// Out returns the free-running dequeue cursor
func (b *queueBook) Out() uint32 {
	return atomic.LoadUint32(&b.out)
}

// SetOut publishes a new dequeue cursor
func (b *queueBook) SetOut(v uint32) {
	atomic.StoreUint32(&b.out, v)
}

// Used returns the number of queued bytes
func (b *queueBook) Used() uint32 {
	// Free-running cursors; uint32 arithmetic handles wrap-around.
	return b.In() - b.Out()
}

// IsPowerOfTwo returns true if n is a power of two
func IsPowerOfTwo(n uint32) bool {
	return n > 0 && (n&(n-1)) == 0
}

// alignTo64 aligns a size to a 64-byte boundary
func alignTo64(n int) int {
	return (n + 63) &^ 63
}

// Layout computes the region offsets for a queue of the given capacity.
// Returned offsets are: start of the header buffer, start of the lock
// block and start of the payload arena.
func Layout(capacity uint32, total int) (bufOff, lockOff, arenaOff int, err error) {
	if !IsPowerOfTwo(capacity) {
		return 0, 0, 0, fmt.Errorf("queue capacity %d is not a power of two", capacity)
	}
	if capacity < MinQueueCapacity {
		return 0, 0, 0, fmt.Errorf("queue capacity %d is below minimum %d", capacity, MinQueueCapacity)
	}
	bufOff = BookSize
	lockOff = alignTo64(bufOff + int(capacity))
	arenaOff = lockOff + LockBlockSize
	if arenaOff >= total {
		return 0, 0, 0, fmt.Errorf("region of %d bytes leaves no payload arena (need > %d)", total, arenaOff)
	}
	return bufOff, lockOff, arenaOff, nil
}

// Region is a formatted view over one mapped byte span. All offsets are
// computed once at format/attach time; accessors hand out bounds-checked
// sub-slices instead of raw pointer arithmetic.
type Region struct {
	mem      []byte
	capacity uint32
	bufOff   int
	lockOff  int
	arenaOff int
}

// book returns the bookkeeping block at the start of the region
func (r *Region) book() *queueBook {
	return (*queueBook)(unsafe.Pointer(&r.mem[0]))
}

// lockWord returns the shared write-lock word
func (r *Region) lockWord() *uint32 {
	return (*uint32)(unsafe.Pointer(&r.mem[r.lockOff]))
}

// buffer returns the circular header buffer
func (r *Region) buffer() []byte {
	return r.mem[r.bufOff : r.bufOff+int(r.capacity)]
}

// arenaBytes returns the payload arena span
func (r *Region) arenaBytes() []byte {
	return r.mem[r.arenaOff:]
}

// QueueCapacity returns the header buffer capacity in bytes
func (r *Region) QueueCapacity() uint32 {
	return r.capacity
}

// ArenaCapacity returns the payload arena size in bytes
func (r *Region) ArenaCapacity() int {
	return len(r.mem) - r.arenaOff
}

// Size returns the total mapped size in bytes
func (r *Region) Size() int {
	return len(r.mem)
}

// Formatted reports whether the underlying bytes carry a live queue.
func (r *Region) Formatted() bool {
	b := r.book()
	return string(b.magic[:]) == RegionMagic && b.Version() == LayoutVersion
}

// Format initializes a queue of the given capacity inside mem and
// returns a Region over it. Formatting is idempotent: if mem already
// holds a live queue of the expected capacity, the queue is re-attached
// without zeroing its cursors, so an active mapping survives a restart
// of either side.
func Format(mem []byte, capacity uint32) (*Region, error) {
	bufOff, lockOff, arenaOff, err := Layout(capacity, len(mem))
	if err != nil {
		return nil, err
	}

	r := &Region{
		mem:      mem,
		capacity: capacity,
		bufOff:   bufOff,
		lockOff:  lockOff,
		arenaOff: arenaOff,
	}

	b := r.book()
	if r.Formatted() && b.Capacity() == capacity {
		// Live queue of the expected shape; leave cursors and lock alone.
		return r, nil
	}

	b.SetVersion(LayoutVersion)
	b.SetCapacity(capacity)
	b.SetIn(0)
	b.SetOut(0)
	atomic.StoreUint32(r.lockWord(), 0)
	// Magic written last so a concurrent attach never sees a
	// half-initialized book with valid magic.
	copy(b.magic[:], RegionMagic)

	return r, nil
}

// Attach builds a Region over bytes already formatted by the remote
// side. It fails if no live queue is present or the layout is invalid.
func Attach(mem []byte) (*Region, error) {
	if len(mem) < BookSize {
		return nil, fmt.Errorf("region of %d bytes too small for bookkeeping block", len(mem))
	}
	probe := &Region{mem: mem}
	b := probe.book()
	if string(b.magic[:]) != RegionMagic {
		return nil, ErrUnformatted
	}
	if v := b.Version(); v != LayoutVersion {
		return nil, fmt.Errorf("unsupported layout version %d, expected %d", v, LayoutVersion)
	}

	capacity := b.Capacity()
	bufOff, lockOff, arenaOff, err := Layout(capacity, len(mem))
	if err != nil {
		return nil, fmt.Errorf("invalid formatted region: %w", err)
	}

	return &Region{
		mem:      mem,
		capacity: capacity,
		bufOff:   bufOff,
		lockOff:  lockOff,
		arenaOff: arenaOff,
	}, nil
}
