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

package notify

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"
)

// Bell page layout (little-endian):
//
//	0x00  seq   uint32  ring counter, bumped on every Ring
//	0x04  value uint32  raw value of the most recent ring
//
// Both sides map the same page; the ringer bumps seq and futex-wakes,
// the watcher futex-waits on seq.
const (
	// BellSize is the number of bell-page bytes a FutexDoorbell uses.
	BellSize = 8

	// Watcher wait slice. Bounds Close latency and doubles as the poll
	// period on platforms without futex support (the original driver
	// polled at 10ms).
	bellWaitSlice = 100 * time.Millisecond
	bellPollSlice = 10 * time.Millisecond
)

// FutexDoorbell is a cross-process doorbell over a small shared memory
// page. Ring publishes a value and bumps a sequence word; a watcher
// goroutine on the subscribing side waits on the word and dispatches
// callbacks. One FutexDoorbell instance per side of the page.
type FutexDoorbell struct {
	seq *uint32
	val *uint32

	cbs     callbackSet
	watch   sync.Once
	closing sync.Once
	done    chan struct{}
}

// NewFutexDoorbell creates a doorbell over the first BellSize bytes of
// mem, which must be shared with the remote side.
func NewFutexDoorbell(mem []byte) (*FutexDoorbell, error) {
	if len(mem) < BellSize {
		return nil, fmt.Errorf("bell page of %d bytes too small, need %d", len(mem), BellSize)
	}
	return &FutexDoorbell{
		seq:  (*uint32)(unsafe.Pointer(&mem[0])),
		val:  (*uint32)(unsafe.Pointer(&mem[4])),
		done: make(chan struct{}),
	}, nil
}

// Ring publishes value and wakes remote waiters. Wake delivery is
// best-effort: a side that is polling instead of waiting still observes
// the bumped sequence word.
func (d *FutexDoorbell) Ring(value uint32) error {
	select {
	case <-d.done:
		return ErrClosed
	default:
	}
	atomic.StoreUint32(d.val, value)
	atomic.AddUint32(d.seq, 1)
	futexWake(d.seq, 1)
	return nil
}

// Subscribe registers fn for dispatch after incoming rings. The first
// subscription starts the watcher goroutine.
func (d *FutexDoorbell) Subscribe(fn func()) (cancel func(), err error) {
	select {
	case <-d.done:
		return nil, ErrClosed
	default:
	}
	cancel = d.cbs.add(fn)
	d.watch.Do(func() { go d.watchLoop() })
	return cancel, nil
}

func (d *FutexDoorbell) watchLoop() {
	last := atomic.LoadUint32(d.seq)
	for {
		select {
		case <-d.done:
			return
		default:
		}

		cur := atomic.LoadUint32(d.seq)
		if cur != last {
			last = cur
			d.cbs.dispatch()
			continue
		}

		switch err := futexWaitTimeout(d.seq, cur, bellWaitSlice.Nanoseconds()); err {
		case nil, ErrFutexTimeout:
		default:
			// No futex on this platform (or a transient failure):
			// degrade to the driver's polling cadence.
			time.Sleep(bellPollSlice)
		}
	}
}

// LastValue returns the raw value of the most recent ring on the page.
func (d *FutexDoorbell) LastValue() uint32 {
	return atomic.LoadUint32(d.val)
}

// Close stops the watcher. The shared page itself is left untouched so
// the remote side keeps working.
func (d *FutexDoorbell) Close() error {
	d.closing.Do(func() {
		close(d.done)
		// Nudge a watcher that is inside a wait slice.
		futexWake(d.seq, 1<<30)
	})
	return nil
}
