// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package uncore

import (
	"fmt"
	"strings"

	"pciebw/internal/util"
)

// Field is one entry of a PMU's sysfs format directory, e.g. "config1:52-60", naming
// the attribute config word and the bit positions a value is scattered into.
type Field struct {
	Config int
	Bits   []int
}

// ParseField parses a sysfs format specification such as "config:0-7,21" or
// "config1:52-60". A bare "config" selects word 0.
func ParseField(def string) (Field, error) {
	word, bits, found := strings.Cut(strings.TrimSpace(def), ":")
	if !found {
		return Field{}, fmt.Errorf("invalid format field: %q", def)
	}
	var field Field
	switch word {
	case "config":
		field.Config = 0
	case "config1":
		field.Config = 1
	case "config2":
		field.Config = 2
	default:
		return Field{}, fmt.Errorf("unsupported config word %q in format field %q", word, def)
	}
	positions, err := util.SelectiveIntRangeToIntList(bits)
	if err != nil {
		return Field{}, fmt.Errorf("invalid bit list in format field %q: %w", def, err)
	}
	if len(positions) == 0 {
		return Field{}, fmt.Errorf("format field %q has no bits", def)
	}
	for _, bit := range positions {
		if bit > 63 {
			return Field{}, fmt.Errorf("bit %d out of range in format field %q", bit, def)
		}
	}
	field.Bits = positions
	return field, nil
}

// Width is the number of bits the field holds.
func (f Field) Width() int {
	return len(f.Bits)
}

// Insert scatters value into the field's bits of config, lowest value bit first.
func (f Field) Insert(config *[3]uint64, value uint64) error {
	limit, err := util.Uint64FromNumLowerBits(f.Width())
	if err != nil {
		return err
	}
	if value&^limit != 0 {
		return fmt.Errorf("value %#x does not fit in %d bits", value, f.Width())
	}
	for i, bit := range f.Bits {
		set, err := util.IsUint64BitSet(value, i)
		if err != nil {
			return err
		}
		if set {
			config[f.Config] |= uint64(1) << bit
		}
	}
	return nil
}
