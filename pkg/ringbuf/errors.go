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

import "errors"

// All protocol failures are recoverable, local and synchronous. None of
// them is fatal to the process; callers must treat any of these as a
// definite non-transfer, never as a short transfer to be resumed.
var (
	// ErrWrongRole is returned when a consumer session calls Send or a
	// producer session calls Receive.
	ErrWrongRole = errors.New("ringbuf: operation not allowed for session role")

	// ErrQueueFull is returned by Send when the header queue has less
	// than one header of free space. Nothing is written.
	ErrQueueFull = errors.New("ringbuf: header queue full")

	// ErrQueueEmpty is returned by Receive when the header queue holds
	// less than one complete header. Nothing is consumed.
	ErrQueueEmpty = errors.New("ringbuf: header queue empty")

	// ErrHeaderMismatch is returned by Receive when a dequeued header
	// carries an unexpected source tag. The queue slot is consumed.
	ErrHeaderMismatch = errors.New("ringbuf: header source tag mismatch")

	// ErrCorruptHeader is returned by Receive when a dequeued header
	// names a payload range that lies outside the arena. The queue slot
	// is consumed.
	ErrCorruptHeader = errors.New("ringbuf: header names payload outside arena")

	// ErrArenaExhausted is returned by Send when the payload arena has
	// no room left for the message body. The arena never reclaims
	// space, so this is terminal for the mapping until it is reformatted.
	ErrArenaExhausted = errors.New("ringbuf: payload arena exhausted")

	// ErrUnformatted is returned when send/receive is attempted on a
	// region whose queue has not been initialized.
	ErrUnformatted = errors.New("ringbuf: region not formatted")
)
