// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/opkernels/backends"
	"github.com/gomlx/opkernels/device"
	"github.com/gomlx/opkernels/graph"
	"github.com/gomlx/opkernels/kernels"
	"github.com/gomlx/opkernels/types/tensors"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// runWorkload builds the workload in a new graph on dev and runs it repeat times.
// It returns a copy of the output of each run.
func runWorkload(dev device.Context, w workload, dtype dtypes.DType, repeat int) ([]*tensors.Tensor, error) {
	g := graph.New(dev)
	defer g.Finalize()
	op, err := w.build(g, dtype)
	if err != nil {
		return nil, err
	}
	if err = g.AddOp(op); err != nil {
		return nil, err
	}
	g.DataMalloc()
	outputs := make([]*tensors.Tensor, 0, repeat)
	for range repeat {
		if err = g.Run(); err != nil {
			return nil, err
		}
		out := op.Output().(*tensors.Tensor)
		result := tensors.FromShape(0, out.Shape())
		copy(result.Bytes(), out.Bytes())
		outputs = append(outputs, result)
	}
	return outputs, nil
}

// checkResult is the comparison of a workload between a device and the Go reference.
type checkResult struct {
	workload, dtype string
	status          string
	failed          bool
}

func checkWorkload(dev, reference device.Context, w workload, dtype dtypes.DType, repeat int) checkResult {
	result := checkResult{workload: w.name, dtype: dtype.String()}
	outputs, err := runWorkload(dev, w, dtype, repeat)
	if err == nil {
		var want []*tensors.Tensor
		want, err = runWorkload(reference, w, dtype, 1)
		if err == nil {
			for ii, out := range outputs {
				if !out.Equal(want[0]) {
					result.failed = true
					result.status = fmt.Sprintf("run #%d differs from reference", ii)
					klog.Warningf("%s/%s: run #%d\n\tgot=%v\n\twant=%v", w.name, dtype, ii,
						tensors.Values(out), tensors.Values(want[0]))
					return result
				}
			}
			result.status = "ok"
			return result
		}
	}
	if errors.Is(err, kernels.ErrUnsupported) {
		result.status = "unsupported"
		return result
	}
	result.failed = true
	result.status = "failed"
	klog.Warningf("%s/%s failed: %+v", w.name, dtype, err)
	return result
}

func check(dev *device.Host) error {
	dtypeList, err := parseDTypes(*flagDTypes)
	if err != nil {
		return err
	}
	if *flagRepeat <= 0 {
		return errors.Errorf("invalid -repeat=%d, it must be > 0", *flagRepeat)
	}
	reference, err := device.New(backends.DeviceGo, device.WithWorkspaceCapacity(dev.WorkspaceCapacity()))
	if err != nil {
		return err
	}
	defer reference.Finalize()

	bar := newProgressBar(len(workloads)*len(dtypeList), fmt.Sprintf("Checking %s", dev))
	var results []checkResult
	for _, dtype := range dtypeList {
		for _, w := range workloads {
			results = append(results, checkWorkload(dev, reference, w, dtype, *flagRepeat))
			_ = bar.Add(1)
		}
	}
	_ = bar.Finish()

	fmt.Println(titleStyle.Render(fmt.Sprintf("%s against %s", dev, reference)))
	table := newTable("workload", "dtype", "status")
	var numFailed int
	for _, r := range results {
		if r.failed {
			numFailed++
		}
		table.Row(r.failed, r.workload, r.dtype, r.status)
	}
	fmt.Println(table.Table.Render())
	if numFailed > 0 {
		return errors.Errorf("%d workloads on %s differ from the reference or failed", numFailed, dev)
	}
	return nil
}
