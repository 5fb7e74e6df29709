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

// RingQueue is a bounded circular buffer of serialized message headers
// living inside a shared Region. It stores complete HeaderSize-byte
// records only; enqueue and dequeue are all-or-nothing.
//
// The queue has no internal locking. Concurrent producers must
// serialize Enqueue through the region's WriteGuard, and a single
// consumer is assumed on the dequeue side.
type RingQueue struct {
	book *queueBook
	buf  []byte
	mask uint32
}

// Queue returns the header queue of a formatted region.
func (r *Region) Queue() *RingQueue {
	return &RingQueue{
		book: r.book(),
		buf:  r.buffer(),
		mask: r.capacity - 1,
	}
}

// Capacity returns the queue capacity in bytes.
func (q *RingQueue) Capacity() uint32 {
	return q.mask + 1
}

// AvailableData returns the number of queued bytes.
func (q *RingQueue) AvailableData() int {
	return int(q.book.Used())
}

// AvailableSpace returns the number of free bytes.
func (q *RingQueue) AvailableSpace() int {
	return int(q.Capacity() - q.book.Used())
}

// Enqueue appends one header to the queue. The caller must hold the
// region's WriteGuard. Returns ErrQueueFull, with the queue unchanged,
// when less than one header of space remains.
func (q *RingQueue) Enqueue(h MessageHeader) error {
	in := q.book.In()
	out := q.book.Out()
	if q.Capacity()-(in-out) < HeaderSize {
		return ErrQueueFull
	}

	var rec [HeaderSize]byte
	encodeHeaderTo(&rec, h)

	pos := in & q.mask
	if int(pos)+HeaderSize <= len(q.buf) {
		copy(q.buf[pos:], rec[:])
	} else {
		// Record wraps the end of the buffer; split the copy.
		first := len(q.buf) - int(pos)
		copy(q.buf[pos:], rec[:first])
		copy(q.buf, rec[first:])
	}

	// Publish. Everything written above, header bytes and the payload
	// bytes the header points at, becomes visible to a consumer that
	// loads the new cursor.
	q.book.SetIn(in + HeaderSize)
	return nil
}

// Dequeue pops exactly one header. Returns ErrQueueEmpty, with the
// queue unchanged, when less than one complete header is available.
func (q *RingQueue) Dequeue() (MessageHeader, error) {
	in := q.book.In()
	out := q.book.Out()
	if in-out < HeaderSize {
		return MessageHeader{}, ErrQueueEmpty
	}

	var rec [HeaderSize]byte
	pos := out & q.mask
	if int(pos)+HeaderSize <= len(q.buf) {
		copy(rec[:], q.buf[pos:])
	} else {
		first := len(q.buf) - int(pos)
		copy(rec[:first], q.buf[pos:])
		copy(rec[first:], q.buf)
	}

	h, err := decodeHeader(rec[:])
	if err != nil {
		return MessageHeader{}, err
	}

	q.book.SetOut(out + HeaderSize)
	return h, nil
}
