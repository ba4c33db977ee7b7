// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// Package topology reads the CPU and package layout of the local host from sysfs.
package topology

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"

	mapset "github.com/deckarep/golang-set/v2"

	"pciebw/internal/util"
)

// DefaultRoot is where the kernel publishes CPU topology.
const DefaultRoot = "/sys/devices/system/cpu"

// Sysfs implements platform.Topology over a sysfs cpu directory.
type Sysfs struct {
	Root string
}

func New(root string) *Sysfs {
	if root == "" {
		root = DefaultRoot
	}
	return &Sysfs{Root: root}
}

func (s *Sysfs) cpuList(name string) ([]int, error) {
	text, err := util.ReadTrimmed(filepath.Join(s.Root, name))
	if err != nil {
		return nil, err
	}
	cpus, err := util.SelectiveIntRangeToIntList(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return cpus, nil
}

// SomeCoreOffline reports whether any present CPU is not online.
func (s *Sysfs) SomeCoreOffline() (bool, error) {
	online, err := s.cpuList("online")
	if err != nil {
		return false, err
	}
	present, err := s.cpuList("present")
	if err != nil {
		return false, err
	}
	offline := mapset.NewThreadUnsafeSet(present...).Difference(mapset.NewThreadUnsafeSet(online...))
	if offline.Cardinality() > 0 {
		ids := offline.ToSlice()
		slices.Sort(ids)
		slog.Warn("offline cpus detected", slog.Any("cpus", ids))
		return true, nil
	}
	return false, nil
}

// SocketMap maps every online cpu to a dense socket index. Indices follow the order of
// the physical package ids, so they stay stable when package ids are sparse.
func (s *Sysfs) SocketMap() (map[int]int, error) {
	online, err := s.cpuList("online")
	if err != nil {
		return nil, err
	}
	packageIDs := make(map[int]int, len(online))
	packages := mapset.NewThreadUnsafeSet[int]()
	for _, cpu := range online {
		path := filepath.Join(s.Root, "cpu"+strconv.Itoa(cpu), "topology", "physical_package_id")
		text, err := util.ReadTrimmed(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read package id of cpu %d: %w", cpu, err)
		}
		id, err := strconv.Atoi(text)
		if err != nil {
			return nil, fmt.Errorf("invalid package id %q for cpu %d", text, cpu)
		}
		packageIDs[cpu] = id
		packages.Add(id)
	}
	ordered := packages.ToSlice()
	slices.Sort(ordered)
	dense := make(map[int]int, len(ordered))
	for i, id := range ordered {
		dense[id] = i
	}
	socketOf := make(map[int]int, len(packageIDs))
	for cpu, id := range packageIDs {
		socketOf[cpu] = dense[id]
	}
	return socketOf, nil
}

// Sockets returns the number of distinct CPU packages.
func (s *Sysfs) Sockets() (int, error) {
	socketOf, err := s.SocketMap()
	if err != nil {
		return 0, err
	}
	sockets := mapset.NewThreadUnsafeSet[int]()
	for _, socket := range socketOf {
		sockets.Add(socket)
	}
	return sockets.Cardinality(), nil
}
