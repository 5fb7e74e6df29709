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
	"encoding/binary"
	"errors"
)

// Message header layout (12 bytes, little-endian):
// uint32 sourceID      // opaque sender tag
// uint32 payloadOffset // byte offset into the payload arena
// int32  payloadLength // payload length in bytes, signed
//
// The header is the only thing stored in the queue; payload bytes live
// in the arena. Sender and receiver must agree on this layout exactly.
const HeaderSize = 12

// MessageHeader is the fixed-size record published through the queue
// for every message.
type MessageHeader struct {
	SourceID      uint32
	PayloadOffset uint32
	PayloadLength int32
}

func encodeHeaderTo(dst *[HeaderSize]byte, h MessageHeader) {
	b := dst[:]
	binary.LittleEndian.PutUint32(b[0:4], h.SourceID)
	binary.LittleEndian.PutUint32(b[4:8], h.PayloadOffset)
	binary.LittleEndian.PutUint32(b[8:12], uint32(h.PayloadLength))
}

func decodeHeader(b []byte) (MessageHeader, error) {
	if len(b) < HeaderSize {
		return MessageHeader{}, errors.New("message header too short")
	}
	var h MessageHeader
	h.SourceID = binary.LittleEndian.Uint32(b[0:4])
	h.PayloadOffset = binary.LittleEndian.Uint32(b[4:8])
	h.PayloadLength = int32(binary.LittleEndian.Uint32(b[8:12]))
	return h, nil
}
