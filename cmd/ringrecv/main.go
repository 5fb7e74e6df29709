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

// ringrecv attaches to a shared-memory ring segment as the consumer and
// writes incoming messages to stdout, one per line, until interrupted.
// By default it is woken by the producer's doorbell; -poll switches to
// a 10ms polling loop.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ringbus/pkg/notify"
	"ringbus/pkg/ringbuf"
	"ringbus/pkg/shm"
)

const pollPeriod = 10 * time.Millisecond

func main() {
	var (
		name     = flag.String("name", "ringbus", "segment name")
		create   = flag.Bool("create", false, "create and format the segment instead of attaching")
		size     = flag.Int("size", 1<<20, "segment size in bytes when creating")
		queueCap = flag.Uint("cap", uint(ringbuf.DefaultQueueCapacity), "header queue capacity in bytes (power of two)")
		peerID   = flag.Uint("peer", 1, "source tag expected on incoming headers")
		poll     = flag.Bool("poll", false, "poll the queue instead of waiting on the doorbell")
	)
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	seg, bellSeg, err := openSegments(*name, *create, *size)
	if err != nil {
		log.Error("open segments", "name", *name, "err", err)
		os.Exit(1)
	}
	defer seg.Close()
	defer bellSeg.Close()

	var region *ringbuf.Region
	if *create {
		region, err = ringbuf.Format(seg.Bytes(), uint32(*queueCap))
	} else {
		region, err = ringbuf.Attach(seg.Bytes())
	}
	if err != nil {
		log.Error("open region", "err", err)
		os.Exit(1)
	}

	bell, err := notify.NewFutexDoorbell(bellSeg.Bytes())
	if err != nil {
		log.Error("open doorbell", "err", err)
		os.Exit(1)
	}
	defer bell.Close()

	consumer, err := ringbuf.NewConsumer(region, ringbuf.Config{
		Doorbell: bell,
		PeerID:   uint32(*peerID),
	})
	if err != nil {
		log.Error("open consumer session", "err", err)
		os.Exit(1)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	if *poll {
		log.Info("polling for messages", "period", pollPeriod)
		runPolled(consumer, stop, log)
		return
	}

	cancel, err := consumer.OnMessage(func(msg []byte) {
		fmt.Printf("%s\n", msg)
	})
	if err != nil {
		log.Error("subscribe", "err", err)
		os.Exit(1)
	}
	defer cancel()

	log.Info("waiting for doorbell", "segment", *name)
	<-stop
	log.Info("interrupted, draining", "queued", consumer.QueueDepth())
}

func runPolled(consumer *ringbuf.Session, stop <-chan os.Signal, log *slog.Logger) {
	buf := make([]byte, 64*1024)
	for {
		select {
		case <-stop:
			return
		default:
		}

		n, err := consumer.Receive(buf)
		switch {
		case err == nil:
			fmt.Printf("%s\n", buf[:n])
		case errors.Is(err, ringbuf.ErrQueueEmpty):
			time.Sleep(pollPeriod)
		case errors.Is(err, ringbuf.ErrHeaderMismatch), errors.Is(err, ringbuf.ErrCorruptHeader):
			log.Warn("dropped message", "err", err)
		default:
			log.Error("receive", "err", err)
			return
		}
	}
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
