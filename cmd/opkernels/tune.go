// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opkernels/device"
	"github.com/gomlx/opkernels/graph"
	"github.com/gomlx/opkernels/kernels"
	"github.com/muesli/termenv"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

// runResult is the outcome of one workload on one dtype.
type runResult struct {
	workload, dtype string
	op, kernel      string
	record          kernels.PerfRecord
	err             error
}

// newProgressBar returns a bar for numSteps, invisible if stdout is not a terminal.
func newProgressBar(numSteps int, description string) *progressbar.ProgressBar {
	visible := termenv.NewOutput(os.Stdout).Profile != termenv.Ascii
	return progressbar.NewOptions(numSteps,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionShowCount(),
		progressbar.OptionSetVisibility(visible),
		progressbar.OptionClearOnFinish(),
	)
}

// tuneWorkload builds the workload in its own graph, runs it once and tunes its kernel.
func tuneWorkload(dev device.Context, cache *kernels.PerfCache, w workload, dtype dtypes.DType) (result runResult) {
	result = runResult{workload: w.name, dtype: dtype.String()}
	g := graph.New(dev)
	defer g.Finalize()
	op, err := w.build(g, dtype)
	if err != nil {
		result.err = err
		return
	}
	result.op = op.String()
	if err = g.AddOp(op); err != nil {
		result.err = err
		return
	}
	g.DataMalloc()
	if err = g.Run(); err != nil {
		result.err = err
		return
	}
	if err = g.Tune(cache); err != nil {
		result.err = err
		return
	}
	entry, err := kernels.LookupFor(op, dev)
	if err != nil {
		result.err = err
		return
	}
	result.kernel = entry.Name
	result.record, _ = cache.Get(entry.Name, op.WorkloadVector())
	return
}

func tune(dev *device.Host) error {
	dtypeList, err := parseDTypes(*flagDTypes)
	if err != nil {
		return err
	}
	cache := kernels.NewPerfCache()
	bar := newProgressBar(len(workloads)*len(dtypeList), fmt.Sprintf("Tuning on %s", dev))
	var results []runResult
	for _, dtype := range dtypeList {
		for _, w := range workloads {
			results = append(results, tuneWorkload(dev, cache, w, dtype))
			_ = bar.Add(1)
		}
	}
	_ = bar.Finish()

	fmt.Println(titleStyle.Render(fmt.Sprintf("Kernel timings on %s", dev)))
	table := newTable("workload", "dtype", "kernel", "time")
	var numFailed int
	for _, r := range results {
		switch {
		case errors.Is(r.err, kernels.ErrUnsupported):
			klog.V(1).Infof("skipping %s/%s: %v", r.workload, r.dtype, r.err)
			table.Row(false, r.workload, r.dtype, "-", "unsupported")
		case r.err != nil:
			numFailed++
			klog.Warningf("%s/%s failed: %+v", r.workload, r.dtype, r.err)
			table.Row(true, r.workload, r.dtype, r.kernel, "failed")
		default:
			table.Row(false, r.workload, r.dtype, r.kernel, r.record.String())
		}
	}
	fmt.Println(table.Table.Render())
	fmt.Printf("%d kernels tuned\n", cache.Len())
	if numFailed > 0 {
		return errors.Errorf("%d workloads failed on %s", numFailed, dev)
	}
	return nil
}
