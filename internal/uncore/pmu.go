// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// Package uncore discovers the CHA/CBo uncore PMUs exposed by the kernel and samples
// platform event groups on them with perf_event_open.
package uncore

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"

	"pciebw/internal/util"
)

// DefaultRoot is where the kernel registers PMUs.
const DefaultRoot = "/sys/bus/event_source/devices"

// Box is one uncore PMU instance, e.g. uncore_cha_12.
type Box struct {
	Name   string
	Type   uint32
	CPUs   []int
	Format map[string]Field
}

var reBoxName = regexp.MustCompile(`^uncore_([a-z]+)(?:_(\d+))?$`)

// DiscoverBoxes returns the uncore PMUs under root whose kind is one of kinds (e.g.
// "cha", "cbox"). The first kind with any instances wins. Boxes are sorted by instance.
func DiscoverBoxes(root string, kinds []string) ([]Box, error) {
	if root == "" {
		root = DefaultRoot
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to list PMUs: %w", err)
	}
	for _, kind := range kinds {
		type found struct {
			name     string
			instance int
		}
		var names []found
		for _, entry := range entries {
			match := reBoxName.FindStringSubmatch(entry.Name())
			if match == nil || match[1] != kind {
				continue
			}
			instance := 0
			if match[2] != "" {
				instance, _ = strconv.Atoi(match[2])
			}
			names = append(names, found{entry.Name(), instance})
		}
		if len(names) == 0 {
			continue
		}
		slices.SortFunc(names, func(a, b found) int { return a.instance - b.instance })
		boxes := make([]Box, 0, len(names))
		for _, n := range names {
			box, err := readBox(filepath.Join(root, n.name))
			if err != nil {
				return nil, err
			}
			boxes = append(boxes, box)
		}
		slog.Debug("discovered uncore boxes", slog.String("kind", kind), slog.Int("count", len(boxes)))
		return boxes, nil
	}
	return nil, fmt.Errorf("no uncore PMUs of kind %v found in %s", kinds, root)
}

func readBox(dir string) (Box, error) {
	box := Box{Name: filepath.Base(dir), Format: make(map[string]Field)}
	text, err := util.ReadTrimmed(filepath.Join(dir, "type"))
	if err != nil {
		return Box{}, fmt.Errorf("failed to read type of %s: %w", box.Name, err)
	}
	pmuType, err := strconv.ParseUint(text, 10, 32)
	if err != nil {
		return Box{}, fmt.Errorf("invalid type %q for %s", text, box.Name)
	}
	box.Type = uint32(pmuType)
	text, err = util.ReadTrimmed(filepath.Join(dir, "cpumask"))
	if err != nil {
		return Box{}, fmt.Errorf("failed to read cpumask of %s: %w", box.Name, err)
	}
	if box.CPUs, err = util.SelectiveIntRangeToIntList(text); err != nil {
		return Box{}, fmt.Errorf("invalid cpumask for %s: %w", box.Name, err)
	}
	formats, err := os.ReadDir(filepath.Join(dir, "format"))
	if err != nil {
		return Box{}, fmt.Errorf("failed to list format of %s: %w", box.Name, err)
	}
	for _, entry := range formats {
		def, err := util.ReadTrimmed(filepath.Join(dir, "format", entry.Name()))
		if err != nil {
			return Box{}, err
		}
		field, err := ParseField(def)
		if err != nil {
			// some boxes export fields this tool never programs; skip them
			slog.Debug("skipping format field", slog.String("box", box.Name), slog.String("field", entry.Name()), slog.String("error", err.Error()))
			continue
		}
		box.Format[entry.Name()] = field
	}
	return box, nil
}
