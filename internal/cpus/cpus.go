// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// Package cpus identifies Intel Xeon microarchitectures from the family, model, and
// stepping reported in /proc/cpuinfo.
package cpus

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
)

const IntelVendor = "GenuineIntel"

// Microarchitecture constants
const (
	UarchJKT    = "JKT"
	UarchIVT    = "IVT"
	UarchHSX    = "HSX"
	UarchBDX    = "BDX"
	UarchBDX_DE = "BDX_DE" //lint:ignore ST1003 microarchitecture names use underscores to match Intel specifications
	UarchKNL    = "KNL"
	UarchSKX    = "SKX"
	UarchCLX    = "CLX"
	UarchCPX    = "CPX"
	UarchICX    = "ICX"
	UarchSNR    = "SNR"
	UarchSPR    = "SPR"
	UarchEMR    = "EMR"
	UarchSRF    = "SRF"
	UarchGNR    = "GNR"
	UarchGNR_D  = "GNR-D" //lint:ignore ST1003 microarchitecture names use underscores to match Intel specifications
	UarchCWF    = "CWF"
)

// CPU describes an identified processor.
type CPU struct {
	MicroArchitecture string
	Name              string
}

// Identifier holds the /proc/cpuinfo fields used for identification.
type Identifier struct {
	Vendor   string
	Family   string
	Model    string
	Stepping string
}

var cpuNames = map[string]string{
	UarchJKT:    "Sandy Bridge EP",
	UarchIVT:    "Ivy Bridge EP",
	UarchHSX:    "Haswell",
	UarchBDX:    "Broadwell",
	UarchBDX_DE: "Broadwell DE",
	UarchKNL:    "Knights Landing",
	UarchSKX:    "Skylake",
	UarchCLX:    "Cascadelake",
	UarchCPX:    "Cooperlake",
	UarchICX:    "Icelake",
	UarchSNR:    "Snow Ridge",
	UarchSPR:    "Sapphire Rapids",
	UarchEMR:    "Emerald Rapids",
	UarchSRF:    "Sierra Forest",
	UarchGNR:    "Granite Rapids",
	UarchGNR_D:  "Granite Rapids - D",
	UarchCWF:    "Clearwater Forest",
}

// cpuIdentifiers maps x86 CPU identification to microarchitecture names. Model and
// stepping are regular expressions; an empty stepping matches any.
var cpuIdentifiers = []struct {
	Family            string
	Model             string
	Stepping          string
	MicroArchitecture string
}{
	{"6", "45", "", UarchJKT},            // Sandy Bridge EP
	{"6", "62", "", UarchIVT},            // Ivy Bridge EP
	{"6", "63", "", UarchHSX},            // Haswell
	{"6", "79", "", UarchBDX},            // Broadwell
	{"6", "86", "", UarchBDX_DE},         // Broadwell DE
	{"6", "87", "", UarchKNL},            // Knights Landing
	{"6", "85", "(0|1|2|3|4)", UarchSKX}, // Skylake
	{"6", "85", "(5|6|7)", UarchCLX},     // Cascadelake
	{"6", "85", "11", UarchCPX},          // Cooperlake
	{"6", "(106|108)", "", UarchICX},     // Icelake
	{"6", "134", "", UarchSNR},           // Snow Ridge
	{"6", "143", "", UarchSPR},           // Sapphire Rapids
	{"6", "207", "", UarchEMR},           // Emerald Rapids
	{"6", "175", "", UarchSRF},           // Sierra Forest
	{"6", "173", "", UarchGNR},           // Granite Rapids
	{"6", "174", "", UarchGNR_D},         // Granite Rapids - D
	{"6", "221", "", UarchCWF},           // Clearwater Forest
}

// GetCPU returns the microarchitecture matching the identifier.
func GetCPU(id Identifier) (cpu CPU, err error) {
	if id.Vendor != "" && id.Vendor != IntelVendor {
		err = fmt.Errorf("unsupported CPU vendor %s", id.Vendor)
		return
	}
	for _, entry := range cpuIdentifiers {
		if entry.Family != id.Family {
			continue
		}
		var reModel *regexp.Regexp
		reModel, err = regexp.Compile("^" + entry.Model + "$")
		if err != nil {
			return
		}
		if !reModel.MatchString(id.Model) {
			continue
		}
		if entry.Stepping != "" {
			var reStepping *regexp.Regexp
			reStepping, err = regexp.Compile("^" + entry.Stepping + "$")
			if err != nil {
				return
			}
			if !reStepping.MatchString(id.Stepping) {
				continue
			}
		}
		cpu = CPU{MicroArchitecture: entry.MicroArchitecture, Name: cpuNames[entry.MicroArchitecture]}
		return
	}
	err = fmt.Errorf("CPU match not found for family %s, model %s, stepping %s", id.Family, id.Model, id.Stepping)
	return
}

// ReadIdentifier parses the first processor block of a cpuinfo file.
func ReadIdentifier(path string) (id Identifier, err error) {
	file, err := os.Open(path) // #nosec G304
	if err != nil {
		return
	}
	defer file.Close()
	scanner := bufio.NewScanner(file)
	seen := false
	for scanner.Scan() {
		key, value, found := strings.Cut(scanner.Text(), ":")
		if !found {
			if seen {
				break
			}
			continue
		}
		seen = true
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "vendor_id":
			id.Vendor = value
		case "cpu family":
			id.Family = value
		case "model":
			id.Model = value
		case "stepping":
			id.Stepping = value
		}
	}
	if err = scanner.Err(); err != nil {
		return
	}
	if id.Family == "" || id.Model == "" {
		err = fmt.Errorf("cpu family and model not found in %s", path)
	}
	return
}
