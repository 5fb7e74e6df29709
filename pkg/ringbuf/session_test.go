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
	"bytes"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"ringbus/pkg/notify"
)

func newTestPair(t *testing.T, regionSize int) (*Session, *Session) {
	t.Helper()
	region, err := Format(make([]byte, regionSize), 512)
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	prod, err := NewProducer(region, Config{LocalID: 1})
	if err != nil {
		t.Fatalf("NewProducer failed: %v", err)
	}
	cons, err := NewConsumer(region, Config{LocalID: 2, PeerID: 1})
	if err != nil {
		t.Fatalf("NewConsumer failed: %v", err)
	}
	// Both sessions view the same region; the arena cursor is
	// producer-owned, so hand the consumer the producer's arena view.
	cons.arena = prod.arena
	return prod, cons
}

func TestSessionRoundTrip(t *testing.T) {
	prod, cons := newTestPair(t, 64*1024)

	if err := prod.Send([]byte("hello")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if depth := prod.QueueDepth(); depth != 1 {
		t.Fatalf("queue depth after send: got %d, want 1", depth)
	}
	if cur := prod.ArenaCursor(); cur != 5 {
		t.Fatalf("arena cursor after send: got %d, want 5", cur)
	}

	buf := make([]byte, 16)
	n, err := cons.Receive(buf)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if n != 5 {
		t.Fatalf("received length: got %d, want 5", n)
	}
	if !bytes.Equal(buf[:n], []byte("hello")) {
		t.Fatalf("payload mismatch: got %q", buf[:n])
	}
	if depth := prod.QueueDepth(); depth != 0 {
		t.Fatalf("queue depth after receive: got %d, want 0", depth)
	}
}

func TestSessionTruncation(t *testing.T) {
	prod, cons := newTestPair(t, 64*1024)

	if err := prod.Send([]byte("a long payload")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	buf := make([]byte, 4)
	n, err := cons.Receive(buf)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if n != 4 || !bytes.Equal(buf, []byte("a lo")) {
		t.Fatalf("truncated read: got %d %q", n, buf[:n])
	}
}

func TestSessionWrongRole(t *testing.T) {
	prod, cons := newTestPair(t, 64*1024)

	if _, err := prod.Receive(make([]byte, 8)); !errors.Is(err, ErrWrongRole) {
		t.Fatalf("producer Receive: expected ErrWrongRole, got %v", err)
	}
	if err := cons.Send([]byte("x")); !errors.Is(err, ErrWrongRole) {
		t.Fatalf("consumer Send: expected ErrWrongRole, got %v", err)
	}
	if _, err := prod.OnMessage(func([]byte) {}); !errors.Is(err, ErrWrongRole) {
		t.Fatalf("producer OnMessage: expected ErrWrongRole, got %v", err)
	}
}

func TestSessionEmptyQueue(t *testing.T) {
	prod, cons := newTestPair(t, 64*1024)

	depth := prod.QueueDepth()
	if _, err := cons.Receive(make([]byte, 8)); !errors.Is(err, ErrQueueEmpty) {
		t.Fatalf("expected ErrQueueEmpty, got %v", err)
	}
	if prod.QueueDepth() != depth {
		t.Fatal("failed receive must not change the queue")
	}
}

func TestSessionHeaderMismatchConsumed(t *testing.T) {
	prod, cons := newTestPair(t, 64*1024)

	// The consumer expects tag 1; this producer stamps tag 9.
	cons.peerID = 9
	if err := prod.Send([]byte("misaddressed")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if _, err := cons.Receive(make([]byte, 16)); !errors.Is(err, ErrHeaderMismatch) {
		t.Fatalf("expected ErrHeaderMismatch, got %v", err)
	}
	// The offending header is gone; the queue does not stall on it.
	if _, err := cons.Receive(make([]byte, 16)); !errors.Is(err, ErrQueueEmpty) {
		t.Fatalf("expected ErrQueueEmpty after rejected header, got %v", err)
	}
}

func TestSessionQueueFull(t *testing.T) {
	prod, cons := newTestPair(t, 64*1024)

	maxHeaders := 512 / HeaderSize
	for i := 0; i < maxHeaders; i++ {
		if err := prod.Send([]byte{byte(i)}); err != nil {
			t.Fatalf("Send %d failed: %v", i, err)
		}
	}

	cursorBefore := prod.ArenaCursor()
	if err := prod.Send([]byte("overflow")); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	// The full-queue check runs before the arena reservation, so a
	// rejected send leaks no payload space.
	if prod.ArenaCursor() != cursorBefore {
		t.Fatalf("rejected send advanced arena cursor: %d -> %d", cursorBefore, prod.ArenaCursor())
	}

	buf := make([]byte, 4)
	for i := 0; i < maxHeaders; i++ {
		n, err := cons.Receive(buf)
		if err != nil {
			t.Fatalf("Receive %d failed: %v", i, err)
		}
		if n != 1 || buf[0] != byte(i) {
			t.Fatalf("message %d: got %d bytes %v", i, n, buf[:n])
		}
	}
}

func TestSessionArenaExhaustion(t *testing.T) {
	prod, cons := newTestPair(t, 4096)
	arenaCap := prod.arena.Capacity()

	payload := make([]byte, arenaCap)
	if err := prod.Send(payload); err != nil {
		t.Fatalf("send filling the arena failed: %v", err)
	}

	depth := prod.QueueDepth()
	if err := prod.Send([]byte("x")); !errors.Is(err, ErrArenaExhausted) {
		t.Fatalf("expected ErrArenaExhausted, got %v", err)
	}
	if prod.QueueDepth() != depth {
		t.Fatal("exhausted send must not enqueue a header")
	}

	// The message that did fit is still deliverable.
	n, err := cons.Receive(make([]byte, arenaCap))
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if n != arenaCap {
		t.Fatalf("received length: got %d, want %d", n, arenaCap)
	}
}

func TestSessionConcurrentSend(t *testing.T) {
	prod, cons := newTestPair(t, 1<<20)

	const workers = 4
	const perWorker = 10
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				msg := []byte(fmt.Sprintf("w%d-%d", w, i))
				if err := prod.Send(msg); err != nil {
					t.Errorf("Send failed: %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	if data := prod.queue.AvailableData(); data%HeaderSize != 0 {
		t.Fatalf("queue holds partial header: %d bytes", data)
	}

	got := make(map[string]bool)
	buf := make([]byte, 32)
	for i := 0; i < workers*perWorker; i++ {
		n, err := cons.Receive(buf)
		if err != nil {
			t.Fatalf("Receive %d failed: %v", i, err)
		}
		got[string(buf[:n])] = true
	}
	if len(got) != workers*perWorker {
		t.Fatalf("expected %d distinct messages, got %d", workers*perWorker, len(got))
	}
}

func TestSessionDoorbellOnSend(t *testing.T) {
	region, err := Format(make([]byte, 64*1024), 512)
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	bell := notify.NewChanDoorbell()
	defer bell.Close()

	ringValue := EncodeRingValue(3, 7)
	prod, err := NewProducer(region, Config{Doorbell: bell, LocalID: 1, RingValue: ringValue})
	if err != nil {
		t.Fatalf("NewProducer failed: %v", err)
	}

	if err := prod.Send([]byte("ding")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got := bell.LastValue(); got != ringValue {
		t.Fatalf("doorbell value: got %#x, want %#x", got, ringValue)
	}

	if err := prod.RingDoorbell(5, 2); err != nil {
		t.Fatalf("RingDoorbell failed: %v", err)
	}
	if got := bell.LastValue(); got != EncodeRingValue(5, 2) {
		t.Fatalf("explicit ring value: got %#x, want %#x", got, EncodeRingValue(5, 2))
	}
}

func TestSessionOnMessage(t *testing.T) {
	region, err := Format(make([]byte, 64*1024), 512)
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	bell := notify.NewChanDoorbell()
	defer bell.Close()

	prod, err := NewProducer(region, Config{Doorbell: bell, LocalID: 1})
	if err != nil {
		t.Fatalf("NewProducer failed: %v", err)
	}
	cons, err := NewConsumer(region, Config{Doorbell: bell, LocalID: 2, PeerID: 1})
	if err != nil {
		t.Fatalf("NewConsumer failed: %v", err)
	}
	cons.arena = prod.arena

	const total = 5
	got := make(chan string, total)
	cancel, err := cons.OnMessage(func(msg []byte) {
		got <- string(msg)
	})
	if err != nil {
		t.Fatalf("OnMessage failed: %v", err)
	}
	defer cancel()

	for i := 0; i < total; i++ {
		if err := prod.Send([]byte(fmt.Sprintf("msg-%d", i))); err != nil {
			t.Fatalf("Send %d failed: %v", i, err)
		}
	}

	for i := 0; i < total; i++ {
		select {
		case msg := <-got:
			if msg != fmt.Sprintf("msg-%d", i) {
				t.Fatalf("message %d: got %q", i, msg)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for message %d", i)
		}
	}
}

func TestSessionNilRegion(t *testing.T) {
	if _, err := NewProducer(nil, Config{}); err == nil {
		t.Fatal("expected error for nil region")
	}
	if _, err := NewConsumer(nil, Config{}); err == nil {
		t.Fatal("expected error for nil region")
	}
}

func TestRoleString(t *testing.T) {
	if Producer.String() != "producer" || Consumer.String() != "consumer" {
		t.Fatalf("role strings: %q %q", Producer, Consumer)
	}
}
