// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package kernels

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// PerfRecord is the result of tuning a kernel.
type PerfRecord struct {
	// Time of one execution. Zero if the kernel wasn't measured.
	Time time.Duration
}

// IsEmpty returns whether the record holds no measurement.
func (r PerfRecord) IsEmpty() bool { return r.Time == 0 }

// String implements fmt.Stringer.
func (r PerfRecord) String() string {
	if r.IsEmpty() {
		return "PerfRecord(empty)"
	}
	return fmt.Sprintf("PerfRecord(%s)", r.Time)
}

// Timeit runs fn warmup times, then measures repeat runs and returns the average time of one run.
// It stops at the first error.
func Timeit(fn func() error, warmup, repeat int) (time.Duration, error) {
	if repeat <= 0 {
		return 0, errors.Errorf("Timeit: repeat must be > 0, got %d", repeat)
	}
	for range warmup {
		if err := fn(); err != nil {
			return 0, err
		}
	}
	start := time.Now()
	for range repeat {
		if err := fn(); err != nil {
			return 0, err
		}
	}
	elapsed := time.Since(start) / time.Duration(repeat)
	if elapsed <= 0 {
		// Clock granularity: make sure measured records are not empty.
		elapsed = 1
	}
	return elapsed, nil
}

// PerfCache stores the tuning results per kernel and workload. It is safe for concurrent use.
type PerfCache struct {
	mu      sync.Mutex
	records map[string]PerfRecord
}

// NewPerfCache returns an empty cache.
func NewPerfCache() *PerfCache {
	return &PerfCache{records: make(map[string]PerfRecord)}
}

func perfKey(kernelName string, workload []int) string {
	var sb strings.Builder
	sb.WriteString(kernelName)
	for _, value := range workload {
		fmt.Fprintf(&sb, ",%d", value)
	}
	return sb.String()
}

// Get returns the record of the kernel for the workload, if present.
func (c *PerfCache) Get(kernelName string, workload []int) (PerfRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	record, found := c.records[perfKey(kernelName, workload)]
	return record, found
}

// Put stores the record, if there is none yet for the kernel and workload, or if it is faster than the
// current one. Empty records never replace measured ones.
func (c *PerfCache) Put(kernelName string, workload []int, record PerfRecord) {
	key := perfKey(kernelName, workload)
	c.mu.Lock()
	defer c.mu.Unlock()
	current, found := c.records[key]
	if !found || (!record.IsEmpty() && (current.IsEmpty() || record.Time < current.Time)) {
		c.records[key] = record
	}
}

// Len returns the number of records.
func (c *PerfCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}
