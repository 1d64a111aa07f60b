// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// opkernels is a tool to inspect the registered kernels, tune them on a set of workloads, and check that the
// kernels of a device produce the same results as the reference kernels of the Go device.
//
// Usage:
//
//	opkernels [flags] list|tune|check
//
// The device is configured by -device (default from $OPKERNELS_DEVICE), and its workspace by -workspace.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/opkernels/backends"
	"github.com/gomlx/opkernels/device"
	_ "github.com/gomlx/opkernels/kernels/default"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	flagDevice = flag.String("device", backends.ConfigFromEnv(),
		"Device to use, formatted as <kind>[:<id>], with kind one of \"go\", \"cpu\" or \"cuda\".")
	flagWorkspace = flag.String("workspace", humanize.IBytes(device.DefaultWorkspaceCapacity),
		"Workspace capacity of the device, e.g. \"64MiB\".")
	flagDTypes = flag.String("dtypes", "Float32,Float16,Int32",
		"Comma-separated list of dtypes of the workloads used by tune and check.")
	flagRepeat = flag.Int("repeat", 1, "Number of times check runs each workload, to verify determinism.")
)

var titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)

func main() {
	klog.InitFlags(nil)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] list|tune|check\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	args := flag.Args()
	if len(args) != 1 {
		klog.Errorf("Expected exactly one command, see '%s -help'", os.Args[0])
		os.Exit(1)
	}
	var err error
	switch args[0] {
	case "list":
		listKernels()
	case "tune":
		err = withDevice(tune)
	case "check":
		err = withDevice(check)
	default:
		err = errors.Errorf("unknown command %q, see '%s -help'", args[0], os.Args[0])
	}
	if err != nil {
		klog.Errorf("%+v", err)
		os.Exit(1)
	}
}

// withDevice creates the device configured by the flags, calls fn and finalizes the device.
func withDevice(fn func(dev *device.Host) error) error {
	kind, id, err := backends.ParseConfig(*flagDevice)
	if err != nil {
		return err
	}
	capacity, err := humanize.ParseBytes(*flagWorkspace)
	if err != nil {
		return errors.Wrapf(err, "invalid -workspace=%q", *flagWorkspace)
	}
	dev, err := device.New(kind, device.WithDeviceID(id), device.WithWorkspaceCapacity(capacity))
	if err != nil {
		return err
	}
	defer dev.Finalize()
	return fn(dev)
}
