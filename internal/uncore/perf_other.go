//go:build !linux

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package uncore

import "errors"

// PerfOpener is unavailable outside Linux.
type PerfOpener struct{}

func (PerfOpener) Open(uint32, [3]uint64, int) (Counter, error) {
	return nil, errors.New("uncore counters require Linux perf_event_open")
}
