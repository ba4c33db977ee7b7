// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package uncore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/bits"
	"time"

	"pciebw/internal/platform"
)

// program is one counter to open for a group: where it runs and which raw slot it feeds.
type program struct {
	box    string
	pmu    uint32
	config [3]uint64
	cpu    int
	socket int
	slot   int
}

// Sampler fills platform rounds from uncore counters. Groups are time multiplexed: each
// group is counted alone for the platform's exposure time, once per round.
type Sampler struct {
	platform *platform.Platform
	opener   CounterOpener
	rounds   int
	groups   [][]program
	// wait blocks for one exposure; replaced in tests
	wait func(ctx context.Context, d time.Duration) error
}

// NewSampler encodes every group of p for every box. socketOf maps each cpu in a box's
// cpumask to its dense socket index.
func NewSampler(p *platform.Platform, boxes []Box, socketOf map[int]int, opener CounterOpener, rounds int) (*Sampler, error) {
	if len(boxes) == 0 {
		return nil, errors.New("no uncore boxes to sample")
	}
	desc := p.Descriptor()
	s := &Sampler{
		platform: p,
		opener:   opener,
		rounds:   max(rounds, 1),
		wait:     sleepContext,
	}
	slot := 0
	for _, group := range desc.Groups {
		var programs []program
		for _, box := range boxes {
			for _, cpu := range box.CPUs {
				socket, ok := socketOf[cpu]
				if !ok {
					return nil, fmt.Errorf("cpu %d of %s has no socket", cpu, box.Name)
				}
				if socket >= p.SocketCount() {
					return nil, fmt.Errorf("cpu %d of %s is on socket %d, platform has %d", cpu, box.Name, socket, p.SocketCount())
				}
				for i, opcode := range group {
					config, err := Encode(desc, box, opcode)
					if err != nil {
						return nil, err
					}
					programs = append(programs, program{
						box:    box.Name,
						pmu:    box.Type,
						config: config,
						cpu:    cpu,
						socket: socket,
						slot:   slot + i,
					})
				}
			}
		}
		s.groups = append(s.groups, programs)
		slot += len(group)
	}
	return s, nil
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

// Collect runs all rounds of all groups, scales the accumulated counts to events per
// second, and commits the result. Nothing is committed when ctx is cancelled or a
// counter fails.
func (s *Sampler) Collect(ctx context.Context) error {
	round := s.platform.NewRound()
	exposure := s.platform.ExposureTime()
	for r := 0; r < s.rounds; r++ {
		for g, programs := range s.groups {
			if err := s.sampleGroup(ctx, programs, exposure, round); err != nil {
				return fmt.Errorf("round %d group %d: %w", r, g, err)
			}
		}
	}
	scaleToRate(round, exposure*time.Duration(s.rounds))
	slog.Debug("round collected", slog.String("generation", s.platform.Name()), slog.Int("rounds", s.rounds))
	return s.platform.Commit(round)
}

func (s *Sampler) sampleGroup(ctx context.Context, programs []program, exposure time.Duration, round *platform.Samples) error {
	counters := make([]Counter, 0, len(programs))
	defer func() {
		for _, c := range counters {
			if cerr := c.Close(); cerr != nil {
				slog.Warn("failed to close counter", slog.String("error", cerr.Error()))
			}
		}
	}()
	for _, prog := range programs {
		c, err := s.opener.Open(prog.pmu, prog.config, prog.cpu)
		if err != nil {
			return fmt.Errorf("failed to open counter on %s: %w", prog.box, err)
		}
		counters = append(counters, c)
	}
	for _, c := range counters {
		if err := c.Enable(); err != nil {
			return fmt.Errorf("failed to enable counter: %w", err)
		}
	}
	if err := s.wait(ctx, exposure); err != nil {
		return err
	}
	for _, c := range counters {
		if err := c.Disable(); err != nil {
			return fmt.Errorf("failed to disable counter: %w", err)
		}
	}
	for i, c := range counters {
		value, err := c.Read()
		if err != nil {
			return fmt.Errorf("failed to read counter on %s: %w", programs[i].box, err)
		}
		round.Add(programs[i].socket, programs[i].slot, value)
	}
	return nil
}

// scaleToRate converts counts accumulated over counted into events per second. A zero
// counted time leaves the raw counts, and a rate beyond uint64 saturates.
func scaleToRate(round *platform.Samples, counted time.Duration) {
	if counted <= 0 {
		return
	}
	for socket := 0; socket < round.Sockets(); socket++ {
		for slot := 0; slot < round.Slots(); slot++ {
			round.Set(socket, slot, perSecond(round.Get(socket, slot), counted))
		}
	}
}

func perSecond(count uint64, counted time.Duration) uint64 {
	hi, lo := bits.Mul64(count, uint64(time.Second))
	if hi >= uint64(counted) {
		return math.MaxUint64
	}
	quo, _ := bits.Div64(hi, lo, uint64(counted))
	return quo
}
