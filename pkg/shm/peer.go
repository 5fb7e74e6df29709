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

import "github.com/spaolacci/murmur3"

// PeerInfo identifies one side of a shared mapping. Inter-VM devices
// carry a position register for this; file-backed segments have no such
// register, so the tag is derived from the backing name instead.
type PeerInfo struct {
	ID uint32
}

// PeerTag derives a stable addressing tag from a segment or device
// name. Both sides of a mapping derive the same tag from the same name,
// so distinct names (one per direction) give distinct tags.
func PeerTag(name string) uint32 {
	return murmur3.Sum32([]byte(name))
}

// Peer returns the mapping's identity tag.
func (m *Mapping) Peer() PeerInfo {
	return PeerInfo{ID: PeerTag(m.name)}
}
