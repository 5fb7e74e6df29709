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
	"os"

	"github.com/edsrzf/mmap-go"
)

// Mapping is a shared read-write mapping of a segment's backing file.
type Mapping struct {
	file *os.File
	mem  mmap.MMap
	name string
}

// CreateMapping creates and maps a new named segment of the given size.
func CreateMapping(name string, size int) (*Mapping, error) {
	f, err := Create(name, size)
	if err != nil {
		return nil, err
	}
	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		Unlink(name)
		return nil, fmt.Errorf("mmap segment %s: %w", name, err)
	}
	return &Mapping{file: f, mem: m, name: name}, nil
}

// OpenMapping maps an existing named segment.
func OpenMapping(name string) (*Mapping, error) {
	f, err := Open(name)
	if err != nil {
		return nil, err
	}
	m, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap segment %s: %w", name, err)
	}
	return &Mapping{file: f, mem: m, name: name}, nil
}

// Bytes returns the mapped span.
func (m *Mapping) Bytes() []byte {
	return m.mem
}

// Name returns the segment name the mapping was opened under.
func (m *Mapping) Name() string {
	return m.name
}

// Sync flushes the mapping to its backing file.
func (m *Mapping) Sync() error {
	return m.mem.Flush()
}

// Close unmaps the span and closes the backing file. The file itself
// stays on disk until Unlink.
func (m *Mapping) Close() error {
	var firstErr error
	if m.mem != nil {
		if err := m.mem.Unmap(); err != nil && firstErr == nil {
			firstErr = err
		}
		m.mem = nil
	}
	if m.file != nil {
		if err := m.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		m.file = nil
	}
	return firstErr
}
