// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// Package msr reads model specific registers through the msr driver and checks whether
// another agent is already using the core PMU counters.
package msr

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const DefaultPathFormat = "/dev/cpu/%d/msr"

// Register is a core PMU register and the counter it backs.
type Register struct {
	Address int64
	Usage   string
}

func (r Register) String() string {
	return fmt.Sprintf("0x%x", r.Address)
}

// Registers are the fixed and general purpose counters checked for activity.
var Registers = []Register{
	{0x309, "instructions"},
	{0x30a, "cpu_cycles"},
	{0x30b, "ref_cycles"},
	{0xc1, "General_purpose_programmable_PMU"},
	{0xc2, "General_purpose_programmable_PMU"},
	{0xc3, "General_purpose_programmable_PMU"},
	{0xc4, "General_purpose_programmable_PMU"},
}

// Reader reads registers from per-cpu msr device files.
type Reader struct {
	PathFormat string
	// sleep waits between check iterations
	sleep func(ctx context.Context, d time.Duration) error
}

func NewReader(pathFormat string) *Reader {
	if pathFormat == "" {
		pathFormat = DefaultPathFormat
	}
	return &Reader{PathFormat: pathFormat, sleep: sleepContext}
}

func (r *Reader) Path(cpu int) string {
	return fmt.Sprintf(r.PathFormat, cpu)
}

// Read returns the value of reg on cpu.
func (r *Reader) Read(cpu int, reg int64) (uint64, error) {
	fd, err := unix.Open(r.Path(cpu), unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return 0, errors.Wrap(err, "couldn't open the msr interface")
	}
	defer unix.Close(fd)
	buf := make([]byte, 8)
	rc, err := unix.Pread(fd, buf, reg)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to read msr 0x%x on cpu %d", reg, cpu)
	}
	if rc != 8 {
		return 0, errors.Errorf("wrong byte count %d", rc)
	}
	// msr values are little endian on x86
	return binary.LittleEndian.Uint64(buf), nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// CheckActive reads every register of Registers on cpu for up to iterations passes,
// interval apart. A register whose nonzero value changes between passes is counting
// for someone else. The check stops early once every register is known active.
func (r *Reader) CheckActive(ctx context.Context, cpu int, iterations int, interval time.Duration) (Result, error) {
	if err := r.Validate(cpu); err != nil {
		return Result{}, err
	}
	previous := make(map[Register]uint64, len(Registers))
	active := make(map[Register]bool, len(Registers))
	for i := 1; i <= iterations && len(active) < len(Registers); i++ {
		if i > 1 {
			if err := r.sleep(ctx, interval); err != nil {
				return Result{}, err
			}
		}
		values, err := r.readAll(cpu, active)
		if err != nil {
			return Result{}, err
		}
		for reg, value := range values {
			if old, seen := previous[reg]; seen && old != 0 && old != value {
				slog.Debug("pmu register changed", slog.String("register", reg.String()), slog.Uint64("old", old), slog.Uint64("new", value))
				active[reg] = true
			}
			previous[reg] = value
		}
		slog.Debug("pmu check iteration completed", slog.Int("iteration", i))
	}
	res := Result{PMUActive: len(active), PMUDetails: make(map[string]string)}
	for reg := range active {
		res.PMUDetails[reg.String()] = reg.Usage
	}
	return res, nil
}

// readAll reads the registers not yet known to be active, concurrently.
func (r *Reader) readAll(cpu int, skip map[Register]bool) (map[Register]uint64, error) {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	values := make(map[Register]uint64, len(Registers))
	for _, reg := range Registers {
		if skip[reg] {
			continue
		}
		wg.Add(1)
		go func(reg Register) {
			defer wg.Done()
			value, err := r.Read(cpu, reg.Address)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			values[reg] = value
		}(reg)
	}
	wg.Wait()
	return values, firstErr
}
