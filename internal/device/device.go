// Package device selects the compute device a trial runs on.
//
// A Device is a plain value handed to model construction and to the epoch step functions.
// Nothing here is process-global, so two trials may hold different devices at once.
package device

import (
	"fmt"
	"runtime"
)

// Kind names a class of compute device.
type Kind string

const (
	KindAccelerator Kind = "accelerator"
	KindCPU         Kind = "cpu"
)

// Device is the handle threaded through a trial.
type Device struct {
	Kind    Kind
	Workers int
}

// String implements fmt.Stringer.
func (d Device) String() string {
	return fmt.Sprintf("%s(workers=%d)", d.Kind, d.Workers)
}

// Probe reports whether an accelerator is available and how many parallel workers it offers.
type Probe interface {
	Accelerator() (workers int, ok bool)
}

// CPU is the general-purpose fallback device.
func CPU() Device {
	return Device{Kind: KindCPU, Workers: 1}
}

// Select prefers the accelerator reported by probe and falls back to CPU.
func Select(probe Probe) Device {
	if probe != nil {
		if workers, ok := probe.Accelerator(); ok && workers > 0 {
			return Device{Kind: KindAccelerator, Workers: workers}
		}
	}
	return CPU()
}

// PoolProbe exposes the machine's logical CPUs as a data-parallel accelerator.
// It is available when more than one CPU can be used.
type PoolProbe struct {
	// MaxWorkers caps the pool width. Zero means no cap.
	MaxWorkers int
}

// Accelerator implements Probe.
func (p PoolProbe) Accelerator() (int, bool) {
	n := runtime.GOMAXPROCS(0)
	if p.MaxWorkers > 0 && n > p.MaxWorkers {
		n = p.MaxWorkers
	}
	return n, n > 1
}

// NoAccelerator always reports that no accelerator is present.
type NoAccelerator struct{}

// Accelerator implements Probe.
func (NoAccelerator) Accelerator() (int, bool) { return 0, false }

// ProbeFor maps a configuration value to a probe: "cpu" forces the CPU, anything else
// (including "" and "auto") detects the worker pool.
func ProbeFor(mode string) Probe {
	if mode == string(KindCPU) {
		return NoAccelerator{}
	}
	return PoolProbe{}
}
