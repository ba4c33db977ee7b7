// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package uncore

// Counter is one programmed hardware counter.
type Counter interface {
	Enable() error
	Disable() error
	Read() (uint64, error)
	Close() error
}

// CounterOpener programs a counter for config on the PMU of the given type, bound to cpu.
// Counters are returned disabled.
type CounterOpener interface {
	Open(pmuType uint32, config [3]uint64, cpu int) (Counter, error)
}
