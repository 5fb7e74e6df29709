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

// ringsend publishes one message into a shared-memory ring segment and
// rings the consumer's doorbell. The message is taken from the command
// line, or from a file with -file.
//
//	ringsend -name demo -create hello world
//	ringsend -name demo -file ./payload.bin
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"ringbus/pkg/notify"
	"ringbus/pkg/ringbuf"
	"ringbus/pkg/shm"
)

func main() {
	var (
		name     = flag.String("name", "ringbus", "segment name")
		create   = flag.Bool("create", false, "create and format the segment instead of attaching")
		size     = flag.Int("size", 1<<20, "segment size in bytes when creating")
		queueCap = flag.Uint("cap", uint(ringbuf.DefaultQueueCapacity), "header queue capacity in bytes (power of two)")
		localID  = flag.Uint("id", 1, "source tag stamped into published headers")
		file     = flag.String("file", "", "send the contents of this file instead of the argument message")
		vector   = flag.Uint("vector", 1, "doorbell interrupt vector")
		target   = flag.Uint("target", 0, "doorbell target peer")
	)
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var payload []byte
	if *file != "" {
		data, err := os.ReadFile(*file)
		if err != nil {
			log.Error("read payload file", "err", err)
			os.Exit(1)
		}
		payload = data
	} else {
		if flag.NArg() == 0 {
			fmt.Fprintln(os.Stderr, "usage: ringsend [flags] message ...")
			flag.PrintDefaults()
			os.Exit(2)
		}
		payload = []byte(strings.Join(flag.Args(), " "))
	}

	seg, bellSeg, err := openSegments(*name, *create, *size)
	if err != nil {
		log.Error("open segments", "name", *name, "err", err)
		os.Exit(1)
	}
	defer seg.Close()
	defer bellSeg.Close()

	region, err := ringbuf.Format(seg.Bytes(), uint32(*queueCap))
	if err != nil {
		log.Error("format region", "err", err)
		os.Exit(1)
	}

	bell, err := notify.NewFutexDoorbell(bellSeg.Bytes())
	if err != nil {
		log.Error("open doorbell", "err", err)
		os.Exit(1)
	}
	defer bell.Close()

	producer, err := ringbuf.NewProducer(region, ringbuf.Config{
		Doorbell:  bell,
		LocalID:   uint32(*localID),
		RingValue: ringbuf.EncodeRingValue(uint16(*vector), uint16(*target)),
	})
	if err != nil {
		log.Error("open producer session", "err", err)
		os.Exit(1)
	}

	if err := producer.Send(payload); err != nil {
		log.Error("send", "bytes", len(payload), "err", err)
		os.Exit(1)
	}
	log.Info("message published",
		"bytes", len(payload),
		"queued", producer.QueueDepth(),
		"arena_cursor", producer.ArenaCursor())
}

// openSegments opens (or creates) the ring segment and its bell page.
func openSegments(name string, create bool, size int) (*shm.Mapping, *shm.Mapping, error) {
	if create {
		seg, err := shm.CreateMapping(name, size)
		if err != nil {
			return nil, nil, err
		}
		bell, err := shm.CreateMapping(name+".bell", os.Getpagesize())
		if err != nil {
			seg.Close()
			return nil, nil, err
		}
		return seg, bell, nil
	}
	seg, err := shm.OpenMapping(name)
	if err != nil {
		return nil, nil, err
	}
	bell, err := shm.OpenMapping(name + ".bell")
	if err != nil {
		seg.Close()
		return nil, nil, err
	}
	return seg, bell, nil
}
