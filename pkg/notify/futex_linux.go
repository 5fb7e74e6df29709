//go:build linux && (amd64 || arm64)

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
	"sync/atomic"
	"syscall"
	"unsafe"
)

// Futex ops without FUTEX_PRIVATE_FLAG: the bell word lives in a
// MAP_SHARED page and waiters may sit in another process.
const (
	futexOpWait = 0
	futexOpWake = 1
)

// futexWait blocks until the value at addr changes from val or the
// calling thread is woken. Spurious returns are possible; callers must
// re-check their condition.
func futexWait(addr *uint32, val uint32) error {
	// Re-check atomically before entering the syscall. This closes the
	// lost-wake window between the caller's snapshot and the kernel
	// queuing us on the futex.
	if atomic.LoadUint32(addr) != val {
		return nil
	}

	_, _, errno := syscall.Syscall6(
		syscall.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		futexOpWait,
		uintptr(val),
		0, // timeout: infinite
		0,
		0,
	)

	if errno != 0 {
		// EAGAIN: value changed under us. EINTR: signal. Both mean
		// "go re-check", not failure.
		if errno == syscall.EAGAIN || errno == syscall.EINTR {
			return nil
		}
		return fmt.Errorf("futex wait failed: %w", errno)
	}
	return nil
}

// futexWaitTimeout is futexWait with an upper bound of timeoutNs
// nanoseconds. Returns ErrFutexTimeout when the bound elapses.
func futexWaitTimeout(addr *uint32, val uint32, timeoutNs int64) error {
	if timeoutNs <= 0 {
		return futexWait(addr, val)
	}
	if atomic.LoadUint32(addr) != val {
		return nil
	}

	var ts syscall.Timespec
	ts.Sec = timeoutNs / 1e9
	ts.Nsec = timeoutNs % 1e9

	_, _, errno := syscall.Syscall6(
		syscall.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		futexOpWait,
		uintptr(val),
		uintptr(unsafe.Pointer(&ts)),
		0,
		0,
	)

	if errno != 0 {
		if errno == syscall.EAGAIN || errno == syscall.EINTR {
			return nil
		}
		if errno == syscall.ETIMEDOUT {
			return ErrFutexTimeout
		}
		return fmt.Errorf("futex wait failed: %w", errno)
	}
	return nil
}

// futexWake wakes up to n waiters queued on addr.
func futexWake(addr *uint32, n int) (int, error) {
	r1, _, errno := syscall.Syscall6(
		syscall.SYS_FUTEX,
		uintptr(unsafe.Pointer(addr)),
		futexOpWake,
		uintptr(n),
		0,
		0,
		0,
	)
	if errno != 0 {
		return 0, fmt.Errorf("futex wake failed: %w", errno)
	}
	return int(r1), nil
}
