// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// Package platform converts uncore CHA/CBo event counts into per-socket PCIe read and
// write bandwidth. Each supported Xeon server generation is described by a Descriptor
// (events, multiplexing groups, read/write selection) and evaluated by one shared engine.
package platform

import (
	"errors"
	"fmt"
)

// CacheLineBytes is the size of one PCIe transaction as counted by the TOR insert events.
const CacheLineBytes = 64

var (
	// ErrCoreOffline is returned when some CPU core has been administratively disabled.
	ErrCoreOffline = errors.New("core offlining is not supported")
	// ErrUnknownModel is returned when no generation descriptor exists for the CPU.
	ErrUnknownModel = errors.New("unsupported CPU model")
	// ErrInvalidDescriptor is returned when a descriptor's events and groups disagree.
	ErrInvalidDescriptor = errors.New("invalid event descriptor")
)

// Filter selects which component of a logical event is reported.
type Filter int

const (
	Total Filter = iota
	Miss
	Hit
)

// Filters lists every filter in display order.
var Filters = []Filter{Total, Miss, Hit}

func (f Filter) String() string {
	switch f {
	case Total:
		return "(Total)"
	case Miss:
		return "(Miss)"
	case Hit:
		return "(Hit)"
	}
	return fmt.Sprintf("Filter(%d)", int(f))
}

// Label returns the filter name in the lower case form used for metric labels.
func (f Filter) Label() string {
	switch f {
	case Total:
		return "total"
	case Miss:
		return "miss"
	case Hit:
		return "hit"
	}
	return "unknown"
}

// Direction is the PCIe transfer direction of a bandwidth figure.
type Direction int

const (
	Read Direction = iota
	Write
)

// Directions lists both directions in display order.
var Directions = []Direction{Read, Write}

func (d Direction) String() string {
	switch d {
	case Read:
		return "PCIe Rd (B)"
	case Write:
		return "PCIe Wr (B)"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// Topology reports the socket layout of the host being sampled.
type Topology interface {
	Sockets() (int, error)
	SomeCoreOffline() (bool, error)
}

// Base holds what all generations share: the socket count of a fully online host.
type Base struct {
	sockets int
}

// NewBase checks that every core is online and records the socket count. Per-socket
// uncore programming assumes a fully populated topology, so an offline core is an error.
func NewBase(topo Topology) (Base, error) {
	offline, err := topo.SomeCoreOffline()
	if err != nil {
		return Base{}, fmt.Errorf("failed to check for offline cores: %w", err)
	}
	if offline {
		return Base{}, ErrCoreOffline
	}
	sockets, err := topo.Sockets()
	if err != nil {
		return Base{}, fmt.Errorf("failed to get socket count: %w", err)
	}
	if sockets < 0 {
		return Base{}, fmt.Errorf("invalid socket count: %d", sockets)
	}
	return Base{sockets: sockets}, nil
}

// SocketCount returns the number of CPU packages.
func (b Base) SocketCount() int {
	return b.sockets
}
