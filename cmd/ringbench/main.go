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

// ringbench runs a single-process loopback benchmark over a freshly
// created shared-memory ring segment: producer goroutines publish
// timestamped payloads, a notification-driven consumer drains them, and
// the send-to-receive latency distribution is reported along with a
// payload integrity check.
package main

import (
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	uuid "github.com/satori/go.uuid"
	"github.com/spaolacci/murmur3"

	"ringbus/pkg/notify"
	"ringbus/pkg/ringbuf"
	"ringbus/pkg/shm"
)

// Bench payload layout: send timestamp, message index, then a
// deterministic pattern checked with murmur3 on the consumer side.
const benchHeaderBytes = 12

const benchSourceTag = uint32(1)

func main() {
	configPath := flag.String("config", "", "TOML config file")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Error("config", "err", err)
		os.Exit(1)
	}

	name := "bench-" + uuid.NewV4().String()
	seg, err := shm.CreateMapping(name, cfg.SegmentSize)
	if err != nil {
		log.Error("create segment", "name", name, "err", err)
		os.Exit(1)
	}
	defer func() {
		seg.Close()
		shm.Unlink(name)
	}()

	region, err := ringbuf.Format(seg.Bytes(), cfg.QueueCapacity)
	if err != nil {
		log.Error("format region", "err", err)
		os.Exit(1)
	}

	// The arena never reclaims space, so the whole run has to fit.
	if max := region.ArenaCapacity() / cfg.PayloadSize; cfg.Messages > max {
		log.Warn("clamping message count to arena capacity",
			"requested", cfg.Messages, "max", max)
		cfg.Messages = max
	}

	bell := notify.NewChanDoorbell()
	defer bell.Close()

	producer, err := ringbuf.NewProducer(region, ringbuf.Config{
		Doorbell: bell,
		LocalID:  benchSourceTag,
	})
	if err != nil {
		log.Error("open producer", "err", err)
		os.Exit(1)
	}
	consumer, err := ringbuf.NewConsumer(region, ringbuf.Config{
		Doorbell: bell,
		PeerID:   benchSourceTag,
	})
	if err != nil {
		log.Error("open consumer", "err", err)
		os.Exit(1)
	}

	// Deterministic per-message pattern and its checksum, precomputed
	// so the consumer can verify without racing the producers.
	patternSums := make([]uint32, cfg.Messages)
	for i := range patternSums {
		patternSums[i] = murmur3.Sum32(pattern(i, cfg.PayloadSize))
	}

	var (
		received  atomic.Int64
		corrupted atomic.Int64
		stats     = newLatencyStat()
	)
	cancel, err := consumer.OnMessage(func(msg []byte) {
		now := time.Now()
		if len(msg) < benchHeaderBytes {
			corrupted.Add(1)
			received.Add(1)
			return
		}
		sentNs := binary.LittleEndian.Uint64(msg[0:8])
		idx := binary.LittleEndian.Uint32(msg[8:12])
		stats.record(now.Sub(time.Unix(0, int64(sentNs))))
		if int(idx) >= len(patternSums) || murmur3.Sum32(msg[benchHeaderBytes:]) != patternSums[idx] {
			corrupted.Add(1)
		}
		received.Add(1)
	})
	if err != nil {
		log.Error("subscribe consumer", "err", err)
		os.Exit(1)
	}
	defer cancel()

	log.Info("benchmark starting",
		"segment", name,
		"messages", cfg.Messages,
		"payload_bytes", cfg.PayloadSize,
		"producers", cfg.Producers,
		"queue_capacity", cfg.QueueCapacity,
		"arena_bytes", region.ArenaCapacity())

	sent := runProducers(producer, cfg, log)

	// Drain tail: the consumer lags the last doorbell by one dispatch.
	deadline := time.Now().Add(10 * time.Second)
	for received.Load() < sent && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	snap := stats.snapshot()
	fmt.Println(snap)
	if lost := sent - received.Load(); lost != 0 {
		log.Error("messages lost", "sent", sent, "received", received.Load())
	}
	if n := corrupted.Load(); n != 0 {
		log.Error("payload corruption detected", "messages", n)
		os.Exit(1)
	}
	log.Info("benchmark done",
		"sent", sent,
		"queued_left", consumer.QueueDepth(),
		"arena_cursor", producer.ArenaCursor())
}

// runProducers publishes cfg.Messages messages across cfg.Producers
// goroutines sharing one producer session and returns the number
// actually sent.
func runProducers(producer *ringbuf.Session, cfg Config, log *slog.Logger) int64 {
	var (
		next atomic.Int64
		sent atomic.Int64
		wg   sync.WaitGroup
	)
	for w := 0; w < cfg.Producers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			payload := make([]byte, cfg.PayloadSize)
			for {
				i := next.Add(1) - 1
				if i >= int64(cfg.Messages) {
					return
				}
				copy(payload[benchHeaderBytes:], pattern(int(i), cfg.PayloadSize))
				binary.LittleEndian.PutUint32(payload[8:12], uint32(i))
				for {
					binary.LittleEndian.PutUint64(payload[0:8], uint64(time.Now().UnixNano()))
					err := producer.Send(payload)
					if err == nil {
						sent.Add(1)
						break
					}
					if errors.Is(err, ringbuf.ErrQueueFull) {
						runtime.Gosched()
						continue
					}
					log.Error("send failed", "index", i, "err", err)
					return
				}
			}
		}()
	}
	wg.Wait()
	return sent.Load()
}

// pattern returns the deterministic body bytes of message i.
func pattern(i, payloadSize int) []byte {
	body := make([]byte, payloadSize-benchHeaderBytes)
	for j := range body {
		body[j] = byte(i + j)
	}
	return body
}
