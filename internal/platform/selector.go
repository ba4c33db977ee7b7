package platform

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"log/slog"
	"time"

	"pciebw/internal/cpus"
)

var generationsByUarch = map[string]Generation{
	cpus.UarchSRF:    BirchStream,
	cpus.UarchSPR:    EagleStream,
	cpus.UarchEMR:    EagleStream,
	cpus.UarchICX:    Whitley,
	cpus.UarchSNR:    Whitley,
	cpus.UarchSKX:    Purley,
	cpus.UarchCLX:    Purley,
	cpus.UarchCPX:    Purley,
	cpus.UarchBDX_DE: Grantley,
	cpus.UarchBDX:    Grantley,
	cpus.UarchKNL:    Grantley,
	cpus.UarchHSX:    Grantley,
	cpus.UarchIVT:    Bromolow,
	cpus.UarchJKT:    Bromolow,
}

// Select returns the generation for a microarchitecture. There is no fallback: opcode
// tables are not portable between generations.
func Select(uarch string) (Generation, bool) {
	gen, ok := generationsByUarch[uarch]
	return gen, ok
}

// NewForMicroArchitecture selects the generation for uarch and builds its platform.
func NewForMicroArchitecture(topo Topology, uarch string, delay time.Duration, rounds int) (*Platform, error) {
	gen, ok := Select(uarch)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, uarch)
	}
	slog.Info("selected platform", slog.String("microarchitecture", uarch), slog.String("generation", gen.String()))
	return New(topo, gen, delay, rounds)
}
