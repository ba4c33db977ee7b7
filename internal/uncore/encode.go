// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package uncore

import (
	"fmt"

	"pciebw/internal/platform"
)

// Encode builds the perf attribute config words that count opcode on box.
func Encode(desc *platform.Descriptor, box Box, opcode platform.Opcode) ([3]uint64, error) {
	var config [3]uint64
	switch desc.Encoding {
	case platform.EncodingDirect:
		config[0] = uint64(opcode)
		return config, nil
	case platform.EncodingOpcodeFilter:
		if err := insertOrRaw(&config, box, "event", desc.EventSelect, 0); err != nil {
			return config, err
		}
		if err := insertOrRaw(&config, box, "umask", desc.UmaskSelect, 8); err != nil {
			return config, err
		}
		for _, name := range desc.FilterFields {
			field, ok := box.Format[name]
			if !ok {
				continue
			}
			if err := field.Insert(&config, uint64(opcode)); err != nil {
				return config, fmt.Errorf("opcode %s in %s.%s: %w", opcode, box.Name, name, err)
			}
			return config, nil
		}
		return config, fmt.Errorf("%s exports none of the opcode filter fields %v", box.Name, desc.FilterFields)
	}
	return config, fmt.Errorf("unknown encoding %s", desc.Encoding)
}

// insertOrRaw places value in the named field, or at the architectural shift in config
// word 0 when the box does not export the field.
func insertOrRaw(config *[3]uint64, box Box, name string, value uint64, shift int) error {
	if field, ok := box.Format[name]; ok {
		if err := field.Insert(config, value); err != nil {
			return fmt.Errorf("%s in %s: %w", name, box.Name, err)
		}
		return nil
	}
	config[0] |= value << shift
	return nil
}
