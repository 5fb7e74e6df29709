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

// Package ringbuf implements a byte-oriented message transport over a
// memory region shared between two address spaces.
//
// The region is formatted into three parts: a bounded circular queue of
// fixed-size message headers, a spinlock word serializing concurrent
// producers, and a payload arena holding variable-length message bodies
// addressed by offset/length pairs stored in the headers. One side of a
// mapping is a fixed Producer and the other a fixed Consumer; the roles
// never change for the lifetime of a Session.
//
// The producer path copies payload bytes into the arena first and only
// then publishes the header that references them, so a consumer that
// observes a header always observes consistent payload bytes. Delivery
// of the "new data" wake-up is out of band, see package ringbus/notify.
//
// The payload arena is append-only: space is never reclaimed, and a
// sustained stream of messages eventually exhausts a fixed-size region.
// Exhaustion is reported as ErrArenaExhausted rather than corrupting
// memory past the arena.
package ringbuf
