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
	"runtime"
	"sync/atomic"
)

// Spin iterations between scheduler yields while contending for the
// write lock. Header enqueue is a handful of word copies, so holders
// leave quickly and long spins are wasted work.
const guardSpinYield = 64

// WriteGuard is the mutual-exclusion primitive serializing header
// enqueues from concurrent producers that share one mapping. It is a
// spinlock over a word inside the shared region, so it excludes
// producers in other address spaces as well as other goroutines.
//
// The guarded critical section is only the header enqueue; payload
// bytes are copied before acquisition, keeping hold time independent
// of payload size.
type WriteGuard struct {
	word *uint32
}

// Guard returns the write guard of a formatted region.
func (r *Region) Guard() WriteGuard {
	return WriteGuard{word: r.lockWord()}
}

// Acquire spins until the lock word is won.
func (g WriteGuard) Acquire() {
	for i := 0; !atomic.CompareAndSwapUint32(g.word, 0, 1); i++ {
		if i&(guardSpinYield-1) == 0 {
			runtime.Gosched()
		}
	}
}

// TryAcquire attempts to win the lock word without spinning.
func (g WriteGuard) TryAcquire() bool {
	return atomic.CompareAndSwapUint32(g.word, 0, 1)
}

// Release gives up the lock word. Must be called exactly once per
// successful Acquire/TryAcquire, on every exit path.
func (g WriteGuard) Release() {
	atomic.StoreUint32(g.word, 0)
}
