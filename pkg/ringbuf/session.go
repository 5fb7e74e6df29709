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
	"errors"
	"fmt"
	"math"

	"ringbus/pkg/notify"
)

// Role fixes which end of the transport a session is. It is assigned
// at construction and enforced on every operation for the lifetime of
// the session.
type Role int

const (
	Consumer Role = iota
	Producer
)

func (r Role) String() string {
	switch r {
	case Consumer:
		return "consumer"
	case Producer:
		return "producer"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// EncodeRingValue packs an interrupt vector and a target peer into the
// raw 32-bit doorbell value: target in the high half, vector in the low.
func EncodeRingValue(vector, target uint16) uint32 {
	return uint32(target)<<16 | uint32(vector)
}

// defaultRingValue is vector 1, target 0.
const defaultRingValue = uint32(1)

// Config carries the per-session identity and wiring.
type Config struct {
	// Doorbell, when set, is rung after every successful Send and
	// drives OnMessage dispatch on the consumer side. Optional: a nil
	// doorbell leaves the transport in polled mode.
	Doorbell notify.Doorbell

	// LocalID is the session's own addressing tag, stamped into the
	// source field of every header a producer publishes. Typically the
	// peer identity register read at mapping time.
	LocalID uint32

	// PeerID is the source tag a consumer expects on incoming headers.
	// Headers carrying any other tag are consumed and rejected.
	PeerID uint32

	// RingValue is the raw doorbell value sent after publishing.
	// Zero means EncodeRingValue(1, 0).
	RingValue uint32
}

// Session ties a formatted region, its queue, arena and write guard
// together under a fixed role.
type Session struct {
	role      Role
	region    *Region
	queue     *RingQueue
	arena     *PayloadArena
	guard     WriteGuard
	bell      notify.Doorbell
	localID   uint32
	peerID    uint32
	ringValue uint32
}

func newSession(r *Region, role Role, cfg Config) (*Session, error) {
	if r == nil {
		return nil, errors.New("ringbuf: nil region")
	}
	if !r.Formatted() {
		return nil, ErrUnformatted
	}
	ringValue := cfg.RingValue
	if ringValue == 0 {
		ringValue = defaultRingValue
	}
	return &Session{
		role:      role,
		region:    r,
		queue:     r.Queue(),
		arena:     r.Arena(),
		guard:     r.Guard(),
		bell:      cfg.Doorbell,
		localID:   cfg.LocalID,
		peerID:    cfg.PeerID,
		ringValue: ringValue,
	}, nil
}

// NewProducer opens the sending end of a formatted region.
func NewProducer(r *Region, cfg Config) (*Session, error) {
	return newSession(r, Producer, cfg)
}

// NewConsumer opens the receiving end of a formatted region.
//
// Receive is single-threaded by contract: the queue carries no
// consumer-side lock, so at most one goroutine may call Receive (or
// run OnMessage dispatch) at a time.
func NewConsumer(r *Region, cfg Config) (*Session, error) {
	return newSession(r, Consumer, cfg)
}

// Role returns the session's fixed role.
func (s *Session) Role() Role { return s.role }

// LocalID returns the session's own addressing tag.
func (s *Session) LocalID() uint32 { return s.localID }

// PeerID returns the source tag the session expects on incoming
// headers.
func (s *Session) PeerID() uint32 { return s.peerID }

// QueueDepth returns the number of complete headers currently queued.
func (s *Session) QueueDepth() int {
	return s.queue.AvailableData() / HeaderSize
}

// ArenaCursor returns the payload arena write cursor.
func (s *Session) ArenaCursor() uint32 {
	return s.arena.Cursor()
}

// Send publishes one message: payload bytes into the arena, then one
// header into the queue, then a doorbell ring. Safe for concurrent use
// by multiple producer goroutines; enqueues serialize through the
// region's write guard.
//
// Any error means nothing was transferred. There is no partial-message
// or retry-with-offset semantics, and a full queue is a same-call
// failure, not a wait for the consumer.
func (s *Session) Send(p []byte) error {
	if s.role != Producer {
		return ErrWrongRole
	}
	if !s.region.Formatted() {
		return ErrUnformatted
	}
	if len(p) > math.MaxInt32 {
		return ErrArenaExhausted
	}
	if s.queue.AvailableSpace() < HeaderSize {
		return ErrQueueFull
	}

	off, err := s.arena.Allocate(len(p))
	if err != nil {
		return err
	}
	dst, err := s.arena.Resolve(off, len(p))
	if err != nil {
		return err
	}
	copy(dst, p)

	hdr := MessageHeader{
		SourceID:      s.localID,
		PayloadOffset: off,
		PayloadLength: int32(len(p)),
	}

	// Payload bytes are durably copied above; the guard wraps only the
	// header publication, so hold time does not depend on payload size.
	// The enqueue's cursor store orders the payload writes before the
	// header becomes observable.
	s.guard.Acquire()
	err = s.queue.Enqueue(hdr)
	s.guard.Release()
	if err != nil {
		// The arena reservation is lost; the arena never reclaims.
		return err
	}

	if s.bell != nil {
		if err := s.bell.Ring(s.ringValue); err != nil {
			return fmt.Errorf("ringbuf: message published but doorbell failed: %w", err)
		}
	}
	return nil
}

// Receive pops one message and copies its payload into buf, truncated
// to min(len(buf), payload length). Returns the number of bytes copied.
//
// ErrQueueEmpty leaves all state untouched. ErrHeaderMismatch and
// ErrCorruptHeader mean the offending header was consumed and dropped,
// so one bad message never stalls the queue.
func (s *Session) Receive(buf []byte) (int, error) {
	if s.role != Consumer {
		return 0, ErrWrongRole
	}
	if !s.region.Formatted() {
		return 0, ErrUnformatted
	}

	hdr, err := s.queue.Dequeue()
	if err != nil {
		return 0, err
	}
	// The dequeue's acquire of the enqueue cursor ordered the payload
	// writes before this point; the bytes behind the header are stable.
	if hdr.SourceID != s.peerID {
		return 0, ErrHeaderMismatch
	}
	if hdr.PayloadLength < 0 {
		return 0, ErrCorruptHeader
	}
	view, err := s.arena.Resolve(hdr.PayloadOffset, int(hdr.PayloadLength))
	if err != nil {
		return 0, err
	}
	return copy(buf, view), nil
}

// receiveAlloc pops one message into a fresh slice sized to its
// payload. Used by the notification-driven drain path.
func (s *Session) receiveAlloc() ([]byte, error) {
	if !s.region.Formatted() {
		return nil, ErrUnformatted
	}
	hdr, err := s.queue.Dequeue()
	if err != nil {
		return nil, err
	}
	if hdr.SourceID != s.peerID {
		return nil, ErrHeaderMismatch
	}
	if hdr.PayloadLength < 0 {
		return nil, ErrCorruptHeader
	}
	view, err := s.arena.Resolve(hdr.PayloadOffset, int(hdr.PayloadLength))
	if err != nil {
		return nil, err
	}
	msg := make([]byte, len(view))
	copy(msg, view)
	return msg, nil
}

// OnMessage arranges for handler to run with each incoming message
// after the remote side rings. Dispatch happens on the doorbell's
// worker goroutine, never in the signaling path itself; each ring
// drains the queue until empty. Rejected headers (mismatched tag,
// corrupt range) are dropped and draining continues.
func (s *Session) OnMessage(handler func(msg []byte)) (cancel func(), err error) {
	if s.role != Consumer {
		return nil, ErrWrongRole
	}
	if s.bell == nil {
		return nil, errors.New("ringbuf: session has no doorbell")
	}
	return s.bell.Subscribe(func() { s.drain(handler) })
}

func (s *Session) drain(handler func([]byte)) {
	for {
		msg, err := s.receiveAlloc()
		if err == nil {
			handler(msg)
			continue
		}
		if errors.Is(err, ErrHeaderMismatch) || errors.Is(err, ErrCorruptHeader) {
			continue
		}
		return
	}
}

// RingDoorbell rings the doorbell with an explicit vector/target pair,
// independent of any message publication.
func (s *Session) RingDoorbell(vector, target uint16) error {
	if s.bell == nil {
		return errors.New("ringbuf: session has no doorbell")
	}
	return s.bell.Ring(EncodeRingValue(vector, target))
}

// WaitRing returns immediately. A blocking wait for an incoming ring
// is not implemented; use OnMessage for notification-driven
// consumption or poll Receive.
func (s *Session) WaitRing() {}
