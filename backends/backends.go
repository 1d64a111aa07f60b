// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package backends defines the enumerations shared by operators, devices and kernels: the kinds of operators
// (OpType) and the kinds of devices kernels are registered for (DeviceKind).
//
// It also defines how a device is configured: see ParseConfig and the OPKERNELS_DEVICE environment variable.
package backends

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// DeviceKind identifies a family of devices. Kernels are registered per DeviceKind.
type DeviceKind int

const (
	DeviceInvalid DeviceKind = iota

	// DeviceGo is the portable pure-Go device: only direct (loop) kernels are registered for it, and it
	// is used as a reference for correctness.
	DeviceGo

	// DeviceCPU is the host device, with a native kernel provider.
	DeviceCPU

	// DeviceCUDA is an accelerator device, with a native kernel provider.
	DeviceCUDA
)

var deviceKindNames = map[DeviceKind]string{
	DeviceInvalid: "invalid",
	DeviceGo:      "go",
	DeviceCPU:     "cpu",
	DeviceCUDA:    "cuda",
}

// String implements fmt.Stringer.
func (k DeviceKind) String() string {
	if name, found := deviceKindNames[k]; found {
		return name
	}
	return "DeviceKind(" + strconv.Itoa(int(k)) + ")"
}

// HasNativeProvider returns whether devices of this kind delegate computation to a native kernel provider.
func (k DeviceKind) HasNativeProvider() bool {
	return k == DeviceCPU || k == DeviceCUDA
}

// DeviceKinds returns the list of valid device kinds.
func DeviceKinds() []DeviceKind {
	return []DeviceKind{DeviceGo, DeviceCPU, DeviceCUDA}
}

// ParseDeviceKind converts the name of a device kind ("go", "cpu" or "cuda", case-insensitive) to a DeviceKind.
func ParseDeviceKind(name string) (DeviceKind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, kind := range DeviceKinds() {
		if deviceKindNames[kind] == name {
			return kind, nil
		}
	}
	return DeviceInvalid, errors.Errorf("unknown device kind %q, valid values are \"go\", \"cpu\" or \"cuda\"", name)
}

// OPKERNELS_DEVICE is the environment variable with the default device configuration to use.
//
// The format of the config is "<device_kind>[:<device_id>]", e.g.: "cpu", "cuda:1".
const OPKERNELS_DEVICE = "OPKERNELS_DEVICE"

// DefaultConfig is the device configuration used if OPKERNELS_DEVICE is not set.
var DefaultConfig = "cpu"

// ConfigFromEnv returns the device configuration to use by default:
//
// 1. The environment OPKERNELS_DEVICE is used as a configuration if defined.
// 2. Otherwise DefaultConfig.
func ConfigFromEnv() string {
	if config, found := os.LookupEnv(OPKERNELS_DEVICE); found && config != "" {
		return config
	}
	return DefaultConfig
}

// ParseConfig parses a device configuration formatted as "<device_kind>[:<device_id>]".
// The device id defaults to 0.
func ParseConfig(config string) (kind DeviceKind, id int, err error) {
	kindName, idStr, hasID := strings.Cut(config, ":")
	kind, err = ParseDeviceKind(kindName)
	if err != nil {
		return DeviceInvalid, 0, errors.WithMessagef(err, "invalid device configuration %q", config)
	}
	if hasID {
		id, err = strconv.Atoi(idStr)
		if err != nil || id < 0 {
			return DeviceInvalid, 0, errors.Errorf("invalid device id %q in device configuration %q", idStr, config)
		}
	}
	return kind, id, nil
}
