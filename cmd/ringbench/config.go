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

package main

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"ringbus/pkg/ringbuf"
)

// Config drives one loopback benchmark run. All fields have working
// defaults; a TOML file overrides them:
//
//	SegmentSize   = 4194304
//	QueueCapacity = 512
//	Messages      = 10000
//	PayloadSize   = 64
//	Producers     = 1
type Config struct {
	SegmentSize   int
	QueueCapacity uint32
	Messages      int
	PayloadSize   int
	Producers     int
}

func defaultConfig() Config {
	return Config{
		SegmentSize:   4 << 20,
		QueueCapacity: ringbuf.DefaultQueueCapacity,
		Messages:      10000,
		PayloadSize:   64,
		Producers:     1,
	}
}

func loadConfig(path string) (Config, error) {
	c := defaultConfig()
	if path != "" {
		if _, err := toml.DecodeFile(path, &c); err != nil {
			return c, fmt.Errorf("load config %s: %w", path, err)
		}
	}
	if err := c.validate(); err != nil {
		return c, err
	}
	return c, nil
}

func (c Config) validate() error {
	if !ringbuf.IsPowerOfTwo(c.QueueCapacity) {
		return fmt.Errorf("QueueCapacity %d is not a power of two", c.QueueCapacity)
	}
	if c.PayloadSize < benchHeaderBytes {
		return fmt.Errorf("PayloadSize %d below minimum %d", c.PayloadSize, benchHeaderBytes)
	}
	if c.Messages <= 0 {
		return fmt.Errorf("Messages must be positive, got %d", c.Messages)
	}
	if c.Producers <= 0 {
		return fmt.Errorf("Producers must be positive, got %d", c.Producers)
	}
	return nil
}
