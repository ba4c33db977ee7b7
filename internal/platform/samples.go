package platform

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import "slices"

// Samples is a socket by raw slot table of accumulated event counts for one round.
type Samples struct {
	sockets int
	slots   int
	counts  []uint64
}

func newSamples(sockets, slots int) *Samples {
	return &Samples{
		sockets: sockets,
		slots:   slots,
		counts:  make([]uint64, sockets*slots),
	}
}

func (s *Samples) Sockets() int {
	return s.sockets
}

func (s *Samples) Slots() int {
	return s.slots
}

func (s *Samples) Get(socket, slot int) uint64 {
	return s.counts[s.index(socket, slot)]
}

func (s *Samples) Set(socket, slot int, value uint64) {
	s.counts[s.index(socket, slot)] = value
}

func (s *Samples) Add(socket, slot int, value uint64) {
	s.counts[s.index(socket, slot)] += value
}

func (s *Samples) clone() *Samples {
	return &Samples{
		sockets: s.sockets,
		slots:   s.slots,
		counts:  slices.Clone(s.counts),
	}
}

func (s *Samples) index(socket, slot int) int {
	if socket < 0 || socket >= s.sockets || slot < 0 || slot >= s.slots {
		panic("platform: sample index out of range")
	}
	return socket*s.slots + slot
}
