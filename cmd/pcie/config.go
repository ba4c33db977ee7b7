package pcie

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"pciebw/internal/msr"
	"pciebw/internal/topology"
	"pciebw/internal/uncore"
	"pciebw/internal/util"
)

// paths locates the host interfaces the command reads. They are only overridden in
// config files, e.g. to point at a captured sysfs tree.
type paths struct {
	CPUInfo string `yaml:"cpuinfo"`
	CPU     string `yaml:"cpu"`
	PMU     string `yaml:"pmu"`
	MSR     string `yaml:"msr"`
}

func defaultPaths() paths {
	return paths{
		CPUInfo: "/proc/cpuinfo",
		CPU:     topology.DefaultRoot,
		PMU:     uncore.DefaultRoot,
		MSR:     msr.DefaultPathFormat,
	}
}

// configFile is the format of the --config file. Absent keys keep the flag defaults.
type configFile struct {
	Delay    *float64 `yaml:"delay"`
	Rounds   *int     `yaml:"rounds"`
	Count    *int     `yaml:"count"`
	Verbose  *bool    `yaml:"verbose"`
	PMUCheck *bool    `yaml:"pmu_check"`
	Textfile *string  `yaml:"textfile"`
	Paths    paths    `yaml:"paths"`
}

func loadConfig(path string) (configFile, error) {
	var cfg configFile
	path, err := util.AbsPath(path)
	if err != nil {
		return cfg, err
	}
	exists, err := util.FileExists(path)
	if err != nil {
		return cfg, err
	}
	if !exists {
		return cfg, fmt.Errorf("config file %s does not exist", path)
	}
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return cfg, err
	}
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// apply copies config values into the flag variables for flags not set on the command
// line, and fills in any non-default paths.
func (cfg configFile) apply(cmd *cobra.Command) {
	changed := func(name string) bool {
		flag := cmd.Flags().Lookup(name)
		return flag != nil && flag.Changed
	}
	if cfg.Delay != nil && !changed(flagDelayName) {
		flagDelay = *cfg.Delay
	}
	if cfg.Rounds != nil && !changed(flagRoundsName) {
		flagRounds = *cfg.Rounds
	}
	if cfg.Count != nil && !changed(flagCountName) {
		flagCount = *cfg.Count
	}
	if cfg.Verbose != nil && !changed(flagVerboseName) {
		flagVerbose = *cfg.Verbose
	}
	if cfg.PMUCheck != nil && !changed(flagPMUCheckName) {
		flagPMUCheck = *cfg.PMUCheck
	}
	if cfg.Textfile != nil && !changed(flagTextfileName) {
		flagTextfile = *cfg.Textfile
	}
	if cfg.Paths.CPUInfo != "" {
		gPaths.CPUInfo = cfg.Paths.CPUInfo
	}
	if cfg.Paths.CPU != "" {
		gPaths.CPU = cfg.Paths.CPU
	}
	if cfg.Paths.PMU != "" {
		gPaths.PMU = cfg.Paths.PMU
	}
	if cfg.Paths.MSR != "" {
		gPaths.MSR = cfg.Paths.MSR
	}
}
