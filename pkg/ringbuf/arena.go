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

import "sync/atomic"

// PayloadArena carves payload byte ranges out of the tail of a shared
// Region. The write cursor is a monotonic bump pointer owned by the
// producing side of the mapping, reset only at format time. Space is
// never reclaimed: once the cursor reaches the end of the arena every
// further allocation fails with ErrArenaExhausted.
type PayloadArena struct {
	mem    []byte
	cursor atomic.Uint32
}

// Arena returns a payload arena over the region's tail with the write
// cursor at zero.
func (r *Region) Arena() *PayloadArena {
	return &PayloadArena{mem: r.arenaBytes()}
}

// Capacity returns the arena size in bytes.
func (a *PayloadArena) Capacity() int {
	return len(a.mem)
}

// Cursor returns the current write cursor.
func (a *PayloadArena) Cursor() uint32 {
	return a.cursor.Load()
}

// Allocate reserves n bytes at the current cursor and advances it.
// Returns ErrArenaExhausted, with the cursor unchanged, when the
// reservation would run past the end of the arena.
func (a *PayloadArena) Allocate(n int) (uint32, error) {
	if n < 0 {
		return 0, ErrCorruptHeader
	}
	for {
		cur := a.cursor.Load()
		if uint64(cur)+uint64(n) > uint64(len(a.mem)) {
			return 0, ErrArenaExhausted
		}
		if a.cursor.CompareAndSwap(cur, cur+uint32(n)) {
			return cur, nil
		}
	}
}

// Resolve returns a view of n bytes of arena at off. The range is
// checked against the arena capacity regardless of what any header
// claims; an out-of-range request fails with ErrCorruptHeader.
func (a *PayloadArena) Resolve(off uint32, n int) ([]byte, error) {
	if n < 0 || uint64(off)+uint64(n) > uint64(len(a.mem)) {
		return nil, ErrCorruptHeader
	}
	return a.mem[off : int(off)+n], nil
}
