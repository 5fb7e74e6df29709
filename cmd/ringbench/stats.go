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
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// latencyStat accumulates send-to-receive latencies.
type latencyStat struct {
	mtx   sync.Mutex
	hist  *hdrhistogram.Histogram
	total time.Duration
}

func newLatencyStat() *latencyStat {
	return &latencyStat{
		hist: hdrhistogram.New(1, int64(time.Minute), 3),
	}
}

func (s *latencyStat) record(d time.Duration) {
	s.mtx.Lock()
	s.hist.RecordValues(int64(d), 1)
	s.total += d
	s.mtx.Unlock()
}

type statsData struct {
	count      int64
	avg        time.Duration
	min        time.Duration
	max        time.Duration
	p50        time.Duration
	p95        time.Duration
	p99        time.Duration
	throughput float64
}

func (s *latencyStat) snapshot() (stat statsData) {
	s.mtx.Lock()
	stat.count = s.hist.TotalCount()
	stat.min = time.Duration(s.hist.Min())
	stat.max = time.Duration(s.hist.Max())
	stat.p50 = time.Duration(s.hist.ValueAtQuantile(50.))
	stat.p95 = time.Duration(s.hist.ValueAtQuantile(95.))
	stat.p99 = time.Duration(s.hist.ValueAtQuantile(99.))
	total := s.total
	s.mtx.Unlock()

	if stat.count != 0 {
		v := float64(total) / float64(stat.count)
		stat.avg = time.Duration(v)
		stat.throughput = 1.0e9 / v
	}
	return stat
}

func (s statsData) String() string {
	return fmt.Sprintf(
		"messages=%d throughput=%.0f/s avg=%v min=%v p50=%v p95=%v p99=%v max=%v",
		s.count, s.throughput, s.avg, s.min, s.p50, s.p95, s.p99, s.max)
}
