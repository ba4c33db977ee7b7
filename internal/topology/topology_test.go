// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package topology

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTree creates a fake cpu directory. packages[i] is the package id of cpu i.
func writeTree(t *testing.T, online, present string, packages []int) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "online"), []byte(online+"\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "present"), []byte(present+"\n"), 0o600))
	for cpu, pkg := range packages {
		dir := filepath.Join(root, "cpu"+strconv.Itoa(cpu), "topology")
		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "physical_package_id"), []byte(strconv.Itoa(pkg)+"\n"), 0o600))
	}
	return root
}

func TestSockets(t *testing.T) {
	root := writeTree(t, "0-3", "0-3", []int{0, 0, 1, 1})
	topo := New(root)
	sockets, err := topo.Sockets()
	require.NoError(t, err)
	assert.Equal(t, 2, sockets)

	offline, err := topo.SomeCoreOffline()
	require.NoError(t, err)
	assert.False(t, offline)
}

func TestSocketMapSparsePackageIDs(t *testing.T) {
	root := writeTree(t, "0-2", "0-2", []int{3, 0, 3})
	socketOf, err := New(root).SocketMap()
	require.NoError(t, err)
	assert.Equal(t, map[int]int{0: 1, 1: 0, 2: 1}, socketOf)
}

func TestSomeCoreOffline(t *testing.T) {
	root := writeTree(t, "0,2-3", "0-3", []int{0, 0, 0, 0})
	offline, err := New(root).SomeCoreOffline()
	require.NoError(t, err)
	assert.True(t, offline)
}

func TestMissingFiles(t *testing.T) {
	topo := New(t.TempDir())
	_, err := topo.SomeCoreOffline()
	require.Error(t, err)
	_, err = topo.Sockets()
	require.Error(t, err)
}

func TestInvalidPackageID(t *testing.T) {
	root := writeTree(t, "0", "0", []int{0})
	path := filepath.Join(root, "cpu0", "topology", "physical_package_id")
	require.NoError(t, os.WriteFile(path, []byte("x\n"), 0o600))
	_, err := New(root).Sockets()
	require.Error(t, err)
}

func TestDefaultRoot(t *testing.T) {
	assert.Equal(t, DefaultRoot, New("").Root)
}
