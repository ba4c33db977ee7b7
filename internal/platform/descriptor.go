package platform

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
)

// Opcode is a generation specific uncore event encoding.
type Opcode uint64

func (o Opcode) String() string {
	return fmt.Sprintf("0x%X", uint64(o))
}

// MarshalYAML renders opcodes in hex, the form used by the uncore documentation.
func (o Opcode) MarshalYAML() (any, error) {
	return o.String(), nil
}

// Group is a set of opcodes programmed together into one multiplexing slot.
type Group []Opcode

// Encoding describes how an Opcode is turned into uncore counter configuration.
type Encoding int

const (
	// EncodingDirect opcodes are complete CHA control values, extended umask included.
	EncodingDirect Encoding = iota
	// EncodingOpcodeFilter opcodes are request opcodes written to the box filter
	// register, counted by a fixed TOR insert event select and umask.
	EncodingOpcodeFilter
)

func (e Encoding) String() string {
	switch e {
	case EncodingDirect:
		return "direct"
	case EncodingOpcodeFilter:
		return "opcode-filter"
	}
	return fmt.Sprintf("Encoding(%d)", int(e))
}

func (e Encoding) MarshalYAML() (any, error) {
	return e.String(), nil
}

// Event is a named logical event. A dual component event owns a miss slot followed by
// a hit slot; a single component event owns one slot that reads as both total and miss.
type Event struct {
	Name       string `yaml:"name"`
	Components int    `yaml:"components"`
}

// Descriptor is the immutable description of one CPU generation. Raw slots are
// numbered in group order and assigned to events in event order.
type Descriptor struct {
	Name         string   `yaml:"name"`
	Boxes        []string `yaml:"boxes"`
	Encoding     Encoding `yaml:"encoding"`
	EventSelect  uint64   `yaml:"event_select,omitempty"`
	UmaskSelect  uint64   `yaml:"umask_select,omitempty"`
	FilterFields []string `yaml:"filter_fields,omitempty"`
	Events       []Event  `yaml:"events"`
	Groups       []Group  `yaml:"groups"`
	Read         []string `yaml:"read"`
	Write        []string `yaml:"write"`
}

// RawEventCount returns the number of raw counter slots, the sum of all group sizes.
func (d *Descriptor) RawEventCount() int {
	count := 0
	for _, group := range d.Groups {
		count += len(group)
	}
	return count
}

// EventIndex returns the logical index of the named event.
func (d *Descriptor) EventIndex(name string) (int, bool) {
	idx := slices.IndexFunc(d.Events, func(e Event) bool { return e.Name == name })
	return idx, idx >= 0
}

// EventNames returns the logical event names in index order.
func (d *Descriptor) EventNames() []string {
	names := make([]string, len(d.Events))
	for i, event := range d.Events {
		names[i] = event.Name
	}
	return names
}

// Validate confirms that the events exactly cover the raw slots declared by the groups,
// that no opcode appears in two groups, and that the read/write selections exist.
func (d *Descriptor) Validate() error {
	if len(d.Groups) == 0 {
		return fmt.Errorf("%w: %s declares no event groups", ErrInvalidDescriptor, d.Name)
	}
	names := mapset.NewThreadUnsafeSet[string]()
	components := 0
	for _, event := range d.Events {
		if event.Components != 1 && event.Components != 2 {
			return fmt.Errorf("%w: %s event %s has %d components, expected 1 or 2", ErrInvalidDescriptor, d.Name, event.Name, event.Components)
		}
		if !names.Add(event.Name) {
			return fmt.Errorf("%w: %s event %s is declared twice", ErrInvalidDescriptor, d.Name, event.Name)
		}
		components += event.Components
	}
	opcodes := mapset.NewThreadUnsafeSet[Opcode]()
	for i, group := range d.Groups {
		if len(group) == 0 {
			return fmt.Errorf("%w: %s group %d is empty", ErrInvalidDescriptor, d.Name, i)
		}
		for _, opcode := range group {
			if !opcodes.Add(opcode) {
				return fmt.Errorf("%w: %s opcode %s appears in more than one slot", ErrInvalidDescriptor, d.Name, opcode)
			}
		}
	}
	if raw := d.RawEventCount(); components != raw {
		return fmt.Errorf("%w: %s events occupy %d raw slots but groups declare %d", ErrInvalidDescriptor, d.Name, components, raw)
	}
	if len(d.Read) == 0 || len(d.Write) == 0 {
		return fmt.Errorf("%w: %s must select at least one read and one write event", ErrInvalidDescriptor, d.Name)
	}
	for _, selection := range [][]string{d.Read, d.Write} {
		selected := mapset.NewThreadUnsafeSet[string]()
		for _, name := range selection {
			if !names.Contains(name) {
				return fmt.Errorf("%w: %s bandwidth event %s is not declared", ErrInvalidDescriptor, d.Name, name)
			}
			if !selected.Add(name) {
				return fmt.Errorf("%w: %s bandwidth event %s is selected twice", ErrInvalidDescriptor, d.Name, name)
			}
		}
	}
	if d.Encoding == EncodingOpcodeFilter && len(d.FilterFields) == 0 {
		return fmt.Errorf("%w: %s uses opcode filtering without a filter field", ErrInvalidDescriptor, d.Name)
	}
	return nil
}
