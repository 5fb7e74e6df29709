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
	"testing"
)

func TestHeaderCodecRoundTrip(t *testing.T) {
	h := MessageHeader{
		SourceID:      0xdeadbeef,
		PayloadOffset: 4096,
		PayloadLength: 1234,
	}

	var rec [HeaderSize]byte
	encodeHeaderTo(&rec, h)

	got, err := decodeHeader(rec[:])
	if err != nil {
		t.Fatalf("decodeHeader failed: %v", err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: sent %+v, got %+v", h, got)
	}
}

func TestHeaderCodecWireLayout(t *testing.T) {
	// The wire layout is shared across address spaces: source tag,
	// payload offset, then signed payload length, all little-endian.
	var rec [HeaderSize]byte
	encodeHeaderTo(&rec, MessageHeader{
		SourceID:      0x04030201,
		PayloadOffset: 0x08070605,
		PayloadLength: -1,
	})

	want := []byte{
		0x01, 0x02, 0x03, 0x04,
		0x05, 0x06, 0x07, 0x08,
		0xff, 0xff, 0xff, 0xff,
	}
	if !bytes.Equal(rec[:], want) {
		t.Fatalf("wire layout mismatch:\n got %x\nwant %x", rec[:], want)
	}

	got, err := decodeHeader(rec[:])
	if err != nil {
		t.Fatalf("decodeHeader failed: %v", err)
	}
	if got.PayloadLength != -1 {
		t.Fatalf("expected signed length -1, got %d", got.PayloadLength)
	}
}

func TestHeaderCodecShortBuffer(t *testing.T) {
	if _, err := decodeHeader(make([]byte, HeaderSize-1)); err == nil {
		t.Fatal("expected error for short header buffer")
	}
}
