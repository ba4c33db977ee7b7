package platform

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// slotRef locates the raw slots of one logical event. hit is -1 for single component events.
type slotRef struct {
	miss int
	hit  int
}

// Platform evaluates a generation descriptor against the sample table of the most
// recently committed round. One goroutine writes rounds; any number may query.
type Platform struct {
	Base
	desc     *Descriptor
	layout   []slotRef
	read     []int
	write    []int
	exposure time.Duration
	current  atomic.Pointer[Samples]
}

// New builds the platform for a known generation.
func New(topo Topology, gen Generation, delay time.Duration, rounds int) (*Platform, error) {
	desc := gen.Descriptor()
	if desc == nil {
		return nil, fmt.Errorf("%w: generation %d", ErrUnknownModel, int(gen))
	}
	return NewFromDescriptor(topo, desc, delay, rounds)
}

// NewFromDescriptor validates desc against the host topology and allocates an empty
// sample table. delay is the total sampling time of one round set, shared by all groups.
func NewFromDescriptor(topo Topology, desc *Descriptor, delay time.Duration, rounds int) (*Platform, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	base, err := NewBase(topo)
	if err != nil {
		return nil, err
	}
	p := &Platform{
		Base:     base,
		desc:     desc,
		exposure: exposureTime(delay, len(desc.Groups), rounds),
	}
	slot := 0
	for _, event := range desc.Events {
		ref := slotRef{miss: slot, hit: -1}
		if event.Components == 2 {
			ref.hit = slot + 1
		}
		p.layout = append(p.layout, ref)
		slot += event.Components
	}
	for _, name := range desc.Read {
		idx, _ := desc.EventIndex(name)
		p.read = append(p.read, idx)
	}
	for _, name := range desc.Write {
		idx, _ := desc.EventIndex(name)
		p.write = append(p.write, idx)
	}
	p.current.Store(p.NewRound())
	slog.Debug("platform configured",
		slog.String("generation", desc.Name),
		slog.Int("sockets", base.SocketCount()),
		slog.Int("groups", len(desc.Groups)),
		slog.Int("raw_events", desc.RawEventCount()),
		slog.Duration("exposure", p.exposure))
	return p, nil
}

// exposureTime divides the delay across groups and rounds, each treated as at least one.
func exposureTime(delay time.Duration, groups, rounds int) time.Duration {
	groups = max(groups, 1)
	rounds = max(rounds, 1)
	return delay / time.Duration(groups) / time.Duration(rounds)
}

func (p *Platform) Descriptor() *Descriptor {
	return p.desc
}

func (p *Platform) Name() string {
	return p.desc.Name
}

// ExposureTime is how long each group is counted per round.
func (p *Platform) ExposureTime() time.Duration {
	return p.exposure
}

func (p *Platform) RawEventCount() int {
	return p.desc.RawEventCount()
}

// NewRound returns an empty table with the platform's fixed dimensions.
func (p *Platform) NewRound() *Samples {
	return newSamples(p.SocketCount(), p.RawEventCount())
}

// Commit publishes a copy of a completed round. Queries see either the previous round or
// this one in full, never a partially written table, and later writes to round are not
// visible to them.
func (p *Platform) Commit(round *Samples) error {
	if round == nil {
		return fmt.Errorf("cannot commit a nil round")
	}
	if round.Sockets() != p.SocketCount() || round.Slots() != p.RawEventCount() {
		return fmt.Errorf("round is %dx%d, platform expects %dx%d", round.Sockets(), round.Slots(), p.SocketCount(), p.RawEventCount())
	}
	p.current.Store(round.clone())
	return nil
}

// Snapshot pins the most recently committed round.
func (p *Platform) Snapshot() Snapshot {
	return Snapshot{platform: p, samples: p.current.Load()}
}

func (p *Platform) Lookup(socket int, filter Filter, idx int) (uint64, bool) {
	return p.Snapshot().Lookup(socket, filter, idx)
}

func (p *Platform) Event(socket int, filter Filter, idx int) uint64 {
	return p.Snapshot().Event(socket, filter, idx)
}

func (p *Platform) ReadBandwidthFor(socket int, filter Filter) uint64 {
	return p.Snapshot().ReadBandwidthFor(socket, filter)
}

func (p *Platform) WriteBandwidthFor(socket int, filter Filter) uint64 {
	return p.Snapshot().WriteBandwidthFor(socket, filter)
}

func (p *Platform) ReadBandwidth() uint64 {
	return p.Snapshot().ReadBandwidth()
}

func (p *Platform) WriteBandwidth() uint64 {
	return p.Snapshot().WriteBandwidth()
}

// Snapshot answers every query from a single committed round.
type Snapshot struct {
	platform *Platform
	samples  *Samples
}

// Sockets is the socket count of the pinned round.
func (s Snapshot) Sockets() int {
	return s.samples.Sockets()
}

// Lookup returns the value of logical event idx on socket under filter. ok is false when
// the combination has no raw mapping: an unknown socket, index or filter, or the hit
// component of a single component event. The value is 0 in that case.
func (s Snapshot) Lookup(socket int, filter Filter, idx int) (value uint64, ok bool) {
	if socket < 0 || socket >= s.samples.Sockets() || idx < 0 || idx >= len(s.platform.layout) {
		return 0, false
	}
	ref := s.platform.layout[idx]
	miss := s.samples.Get(socket, ref.miss)
	if ref.hit < 0 {
		switch filter {
		case Total, Miss:
			return miss, true
		}
		return 0, false
	}
	hit := s.samples.Get(socket, ref.hit)
	switch filter {
	case Total:
		return miss + hit, true
	case Miss:
		return miss, true
	case Hit:
		return hit, true
	}
	return 0, false
}

// Event is Lookup without the mapping flag.
func (s Snapshot) Event(socket int, filter Filter, idx int) uint64 {
	value, _ := s.Lookup(socket, filter, idx)
	return value
}

func (s Snapshot) ReadBandwidthFor(socket int, filter Filter) uint64 {
	return s.bandwidthFor(s.platform.read, socket, filter)
}

func (s Snapshot) WriteBandwidthFor(socket int, filter Filter) uint64 {
	return s.bandwidthFor(s.platform.write, socket, filter)
}

// BandwidthFor returns the bytes moved in one direction on one socket.
func (s Snapshot) BandwidthFor(dir Direction, socket int, filter Filter) uint64 {
	switch dir {
	case Read:
		return s.ReadBandwidthFor(socket, filter)
	case Write:
		return s.WriteBandwidthFor(socket, filter)
	}
	return 0
}

// ReadBandwidth is the total read bandwidth in bytes over all sockets.
func (s Snapshot) ReadBandwidth() uint64 {
	return s.sum(s.platform.read)
}

// WriteBandwidth is the total write bandwidth in bytes over all sockets.
func (s Snapshot) WriteBandwidth() uint64 {
	return s.sum(s.platform.write)
}

func (s Snapshot) bandwidthFor(events []int, socket int, filter Filter) uint64 {
	var count uint64
	for _, idx := range events {
		count += s.Event(socket, filter, idx)
	}
	return count * CacheLineBytes
}

func (s Snapshot) sum(events []int) uint64 {
	var count uint64
	for socket := 0; socket < s.samples.Sockets(); socket++ {
		for _, idx := range events {
			count += s.Event(socket, Total, idx)
		}
	}
	return count * CacheLineBytes
}
