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

// Package shm provides the mapped byte spans the transport runs over:
// file-backed shared memory segments and, on Linux, ivshmem device
// windows. The core protocol only ever sees a []byte.
package shm

import (
	"fmt"
	"os"
	"path/filepath"
)

const segmentPrefix = "ringbus_"

// Path returns the backing file path for a named segment: /dev/shm
// when available, the temp directory otherwise.
func Path(name string) string {
	if info, err := os.Stat("/dev/shm"); err == nil && info.IsDir() {
		return filepath.Join("/dev/shm", segmentPrefix+name)
	}
	return filepath.Join(os.TempDir(), segmentPrefix+name)
}

// Create creates the backing file for a named segment with exclusive
// access and sizes it.
func Create(name string, size int) (*os.File, error) {
	path := Path(name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("create segment file %s: %w", path, err)
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("resize segment file %s: %w", path, err)
	}
	return f, nil
}

// Open opens an existing named segment's backing file.
func Open(name string) (*os.File, error) {
	path := Path(name)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open segment file %s: %w", path, err)
	}
	return f, nil
}

// Unlink removes a named segment's backing file.
func Unlink(name string) error {
	if err := os.Remove(Path(name)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Exists reports whether a named segment's backing file is present.
func Exists(name string) bool {
	_, err := os.Stat(Path(name))
	return err == nil
}
