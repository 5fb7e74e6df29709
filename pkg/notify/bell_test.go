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
	"errors"
	"testing"
	"time"
)

func TestFutexDoorbellRejectsSmallPage(t *testing.T) {
	if _, err := NewFutexDoorbell(make([]byte, BellSize-1)); err == nil {
		t.Fatal("expected error for undersized bell page")
	}
}

func TestFutexDoorbellRingAndWatch(t *testing.T) {
	// Two doorbells over the same page stand in for the two sides of a
	// shared mapping.
	page := make([]byte, BellSize)
	ringer, err := NewFutexDoorbell(page)
	if err != nil {
		t.Fatalf("NewFutexDoorbell failed: %v", err)
	}
	defer ringer.Close()
	watcher, err := NewFutexDoorbell(page)
	if err != nil {
		t.Fatalf("NewFutexDoorbell failed: %v", err)
	}
	defer watcher.Close()

	fired := make(chan struct{}, 8)
	cancel, err := watcher.Subscribe(func() { fired <- struct{}{} })
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer cancel()

	if err := ringer.Ring(0x00070001); err != nil {
		t.Fatalf("Ring failed: %v", err)
	}

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for cross-bell dispatch")
	}
	if got := watcher.LastValue(); got != 0x00070001 {
		t.Fatalf("LastValue on the watching side: got %#x, want %#x", got, 0x00070001)
	}
}

func TestFutexDoorbellRepeatedRings(t *testing.T) {
	page := make([]byte, BellSize)
	ringer, err := NewFutexDoorbell(page)
	if err != nil {
		t.Fatalf("NewFutexDoorbell failed: %v", err)
	}
	defer ringer.Close()
	watcher, err := NewFutexDoorbell(page)
	if err != nil {
		t.Fatalf("NewFutexDoorbell failed: %v", err)
	}
	defer watcher.Close()

	fired := make(chan struct{}, 64)
	cancel, err := watcher.Subscribe(func() { fired <- struct{}{} })
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer cancel()

	// Each ring bumps the sequence word; rings spaced wider than the
	// watcher's wake-up cadence must each produce a dispatch.
	const rings = 3
	for i := 0; i < rings; i++ {
		if err := ringer.Ring(uint32(i)); err != nil {
			t.Fatalf("Ring %d failed: %v", i, err)
		}
		select {
		case <-fired:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for dispatch %d", i)
		}
	}
	if got := watcher.LastValue(); got != rings-1 {
		t.Fatalf("LastValue: got %d, want %d", got, rings-1)
	}
}

func TestFutexDoorbellClose(t *testing.T) {
	page := make([]byte, BellSize)
	d, err := NewFutexDoorbell(page)
	if err != nil {
		t.Fatalf("NewFutexDoorbell failed: %v", err)
	}

	cancel, err := d.Subscribe(func() {})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	defer cancel()

	if err := d.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if err := d.Ring(1); !errors.Is(err, ErrClosed) {
		t.Fatalf("Ring after Close: expected ErrClosed, got %v", err)
	}
	if _, err := d.Subscribe(func() {}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Subscribe after Close: expected ErrClosed, got %v", err)
	}
}
