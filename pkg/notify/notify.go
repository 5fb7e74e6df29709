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

// Package notify abstracts the out-of-band doorbell used to wake the
// remote side of a shared-memory mapping after new data is published.
//
// A doorbell is edge-triggered and carries no payload beyond one raw
// 32-bit value (the last value written wins). Subscribers get their
// callbacks dispatched from a dedicated goroutine, never from the
// signaling path itself, so a callback may do real work without
// stalling the ringer.
package notify

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Ring and Subscribe after Close.
var ErrClosed = errors.New("notify: doorbell closed")

// Doorbell is the notification channel between the two sides of a
// mapping.
type Doorbell interface {
	// Ring signals the remote side that new data exists. The raw value
	// is delivered best-effort; coalescing of back-to-back rings is
	// expected and correct for an edge-triggered wake-up.
	Ring(value uint32) error

	// Subscribe registers fn to run after each incoming ring. The
	// returned cancel removes the registration.
	Subscribe(fn func()) (cancel func(), err error)
}

// callbackSet is a registry of subscriber callbacks shared by the
// doorbell implementations.
type callbackSet struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func()
}

func (c *callbackSet) add(fn func()) (cancel func()) {
	c.mu.Lock()
	if c.subs == nil {
		c.subs = make(map[int]func())
	}
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *callbackSet) dispatch() {
	c.mu.Lock()
	fns := make([]func(), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// ChanDoorbell is an in-process doorbell for tests and single-process
// loopback setups. Rings collapse into a one-slot pending channel; a
// single dispatch goroutine runs the subscribers.
type ChanDoorbell struct {
	cbs     callbackSet
	last    atomic.Uint32
	pending chan struct{}
	done    chan struct{}
	closing sync.Once
}

// NewChanDoorbell creates a started in-process doorbell.
func NewChanDoorbell() *ChanDoorbell {
	d := &ChanDoorbell{
		pending: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *ChanDoorbell) loop() {
	for {
		select {
		case <-d.done:
			return
		case <-d.pending:
			d.cbs.dispatch()
		}
	}
}

// Ring wakes the subscribers. A ring arriving while one is already
// pending is absorbed.
func (d *ChanDoorbell) Ring(value uint32) error {
	select {
	case <-d.done:
		return ErrClosed
	default:
	}
	d.last.Store(value)
	select {
	case d.pending <- struct{}{}:
	default:
	}
	return nil
}

// Subscribe registers fn for dispatch after incoming rings.
func (d *ChanDoorbell) Subscribe(fn func()) (cancel func(), err error) {
	select {
	case <-d.done:
		return nil, ErrClosed
	default:
	}
	return d.cbs.add(fn), nil
}

// LastValue returns the raw value of the most recent ring.
func (d *ChanDoorbell) LastValue() uint32 {
	return d.last.Load()
}

// Close stops the dispatch goroutine. Pending callbacks may still run.
func (d *ChanDoorbell) Close() error {
	d.closing.Do(func() { close(d.done) })
	return nil
}
