//go:build linux

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

package shm

import (
	"fmt"

	"github.com/TypicalAM/ivshmem"
)

// IvshmemRegion maps the shared-memory window of an inter-VM shared
// memory device from the host side. The window behaves exactly like a
// file-backed Mapping as far as the transport is concerned.
type IvshmemRegion struct {
	host *ivshmem.Host
}

// OpenIvshmem attaches to and maps the ivshmem backing file at path.
func OpenIvshmem(path string) (*IvshmemRegion, error) {
	h, err := ivshmem.NewHost(path)
	if err != nil {
		return nil, fmt.Errorf("attach ivshmem %s: %w", path, err)
	}
	r := &IvshmemRegion{host: h}
	if err := r.host.Map(); err != nil {
		return nil, fmt.Errorf("map ivshmem %s: %w", path, err)
	}
	return r, nil
}

// Bytes returns the mapped shared-memory window.
func (r *IvshmemRegion) Bytes() []byte {
	return r.host.SharedMem()
}

// Size returns the window size in bytes.
func (r *IvshmemRegion) Size() int {
	return int(r.host.Size())
}

// DevPath returns the underlying device path.
func (r *IvshmemRegion) DevPath() string {
	return r.host.DevPath()
}

// Peer returns the window's identity tag, derived from its device path.
func (r *IvshmemRegion) Peer() PeerInfo {
	return PeerInfo{ID: PeerTag(r.host.DevPath())}
}

// Sync flushes the window.
func (r *IvshmemRegion) Sync() error {
	return r.host.Sync()
}

// Close unmaps the window.
func (r *IvshmemRegion) Close() error {
	r.host.Unmap()
	return nil
}
