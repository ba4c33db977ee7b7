//go:build linux

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package uncore

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// PerfOpener opens counters with perf_event_open. Uncore events are system wide, so
// counters are bound to a cpu and never to a process.
type PerfOpener struct{}

func (PerfOpener) Open(pmuType uint32, config [3]uint64, cpu int) (Counter, error) {
	attr := unix.PerfEventAttr{
		Type:   pmuType,
		Config: config[0],
		Ext1:   config[1],
		Ext2:   config[2],
		Bits:   unix.PerfBitDisabled,
	}
	attr.Size = uint32(unsafe.Sizeof(attr))
	fd, err := unix.PerfEventOpen(&attr, -1, cpu, -1, unix.PERF_FLAG_FD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("perf_event_open type %d config %#x,%#x,%#x on cpu %d: %w", pmuType, config[0], config[1], config[2], cpu, err)
	}
	return &perfCounter{fd: fd}, nil
}

type perfCounter struct {
	fd int
}

func (c *perfCounter) Enable() error {
	if err := unix.IoctlSetInt(c.fd, unix.PERF_EVENT_IOC_RESET, 0); err != nil {
		return err
	}
	return unix.IoctlSetInt(c.fd, unix.PERF_EVENT_IOC_ENABLE, 0)
}

func (c *perfCounter) Disable() error {
	return unix.IoctlSetInt(c.fd, unix.PERF_EVENT_IOC_DISABLE, 0)
}

func (c *perfCounter) Read() (uint64, error) {
	var buf [8]byte
	n, err := unix.Read(c.fd, buf[:])
	if err != nil {
		return 0, err
	}
	if n != len(buf) {
		return 0, fmt.Errorf("short counter read: %d bytes", n)
	}
	return binary.NativeEndian.Uint64(buf[:]), nil
}

func (c *perfCounter) Close() error {
	return unix.Close(c.fd)
}
