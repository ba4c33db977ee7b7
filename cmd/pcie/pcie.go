// Package pcie is a subcommand of the root command. It reports PCIe read and write
// bandwidth measured with uncore CHA/CBo TOR insert counters.
package pcie

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"pciebw/internal/common"
	"pciebw/internal/cpus"
	"pciebw/internal/msr"
	"pciebw/internal/platform"
	"pciebw/internal/topology"
	"pciebw/internal/uncore"
	"pciebw/internal/util"
)

const cmdName = "pcie"

var examples = []string{
	fmt.Sprintf("  Bandwidth over one second:              $ %s %s", common.AppName, cmdName),
	fmt.Sprintf("  Bandwidth every 5 seconds, forever:     $ %s %s --delay 5 --count 0", common.AppName, cmdName),
	fmt.Sprintf("  Per-socket event detail:                $ %s %s --verbose", common.AppName, cmdName),
	fmt.Sprintf("  Export for node_exporter:               $ %s %s --count 0 --textfile /var/lib/node_exporter/pcie.prom", common.AppName, cmdName),
	fmt.Sprintf("  Show the event tables:                  $ %s %s --list", common.AppName, cmdName),
}

var Cmd = &cobra.Command{
	Use:           cmdName,
	Short:         "Report PCIe read and write bandwidth",
	Long:          "",
	Example:       strings.Join(examples, "\n"),
	RunE:          runCmd,
	PreRunE:       validateFlags,
	GroupID:       "primary",
	Args:          cobra.NoArgs,
	SilenceErrors: true,
}

var (
	flagDelay    float64
	flagRounds   int
	flagCount    int
	flagVerbose  bool
	flagList     bool
	flagConfig   string
	flagPMUCheck bool
	flagTextfile string
)

const (
	flagDelayName    = "delay"
	flagRoundsName   = "rounds"
	flagCountName    = "count"
	flagVerboseName  = "verbose"
	flagListName     = "list"
	flagConfigName   = "config"
	flagPMUCheckName = "pmu-check"
	flagTextfileName = "textfile"
)

// pmu check settings, matching the standalone checker
const (
	pmuCheckIterations = 6
	pmuCheckInterval   = time.Second
)

var gPaths = defaultPaths()

func init() {
	Cmd.Flags().Float64Var(&flagDelay, flagDelayName, 1.0, "")
	Cmd.Flags().IntVar(&flagRounds, flagRoundsName, 1, "")
	Cmd.Flags().IntVar(&flagCount, flagCountName, 1, "")
	Cmd.Flags().BoolVar(&flagVerbose, flagVerboseName, false, "")
	Cmd.Flags().BoolVar(&flagList, flagListName, false, "")
	Cmd.Flags().StringVar(&flagConfig, flagConfigName, "", "")
	Cmd.Flags().BoolVar(&flagPMUCheck, flagPMUCheckName, false, "")
	Cmd.Flags().StringVar(&flagTextfile, flagTextfileName, "", "")

	Cmd.SetUsageFunc(usageFunc)
}

func usageFunc(cmd *cobra.Command) error {
	cmd.Printf("Usage: %s [flags]\n\n", cmd.CommandPath())
	cmd.Printf("Examples:\n%s\n\n", cmd.Example)
	cmd.Println("Flags:")
	for _, group := range getFlagGroups() {
		cmd.Printf("  %s:\n", group.GroupName)
		for _, flag := range group.Flags {
			flagDefault := ""
			if cmd.Flags().Lookup(flag.Name).DefValue != "" {
				flagDefault = fmt.Sprintf(" (default: %s)", cmd.Flags().Lookup(flag.Name).DefValue)
			}
			cmd.Printf("    --%-20s %s%s\n", flag.Name, flag.Help, flagDefault)
		}
	}
	cmd.Println("\nGlobal Flags:")
	cmd.Parent().PersistentFlags().VisitAll(func(pf *pflag.Flag) {
		flagDefault := ""
		if cmd.Parent().PersistentFlags().Lookup(pf.Name).DefValue != "" {
			flagDefault = fmt.Sprintf(" (default: %s)", cmd.Parent().PersistentFlags().Lookup(pf.Name).DefValue)
		}
		cmd.Printf("  --%-20s %s%s\n", pf.Name, pf.Usage, flagDefault)
	})
	return nil
}

func getFlagGroups() []common.FlagGroup {
	var groups []common.FlagGroup
	flags := []common.Flag{
		{
			Name: flagDelayName,
			Help: "seconds to sample per report, shared by all event groups",
		},
		{
			Name: flagRoundsName,
			Help: "number of passes over the event groups per report",
		},
		{
			Name: flagCountName,
			Help: "number of reports. If 0, reports until interrupted.",
		},
		{
			Name: flagPMUCheckName,
			Help: "check whether the core PMU counters are already in use before sampling",
		},
		{
			Name: flagConfigName,
			Help: "YAML file with default option values and host paths",
		},
	}
	groups = append(groups, common.FlagGroup{
		GroupName: "Collection Options",
		Flags:     flags,
	})
	flags = []common.Flag{
		{
			Name: flagVerboseName,
			Help: "print per-socket event counts and bandwidth",
		},
		{
			Name: flagTextfileName,
			Help: "write each report as Prometheus metrics to this file",
		},
		{
			Name: flagListName,
			Help: "show the event tables of the supported platforms and exit",
		},
	}
	groups = append(groups, common.FlagGroup{
		GroupName: "Output Options",
		Flags:     flags,
	})
	return groups
}

func validateFlags(cmd *cobra.Command, args []string) error {
	if flagConfig != "" {
		cfg, err := loadConfig(flagConfig)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return err
		}
		cfg.apply(cmd)
	}
	if flagDelay <= 0 {
		err := fmt.Errorf("delay must be a positive number of seconds")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	if flagRounds < 1 {
		err := fmt.Errorf("rounds must be at least 1")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	if flagCount < 0 {
		err := fmt.Errorf("count must be 0 or a positive integer")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	if flagTextfile != "" {
		path, err := util.AbsPath(flagTextfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return err
		}
		flagTextfile = path
	}
	return nil
}

func runCmd(cmd *cobra.Command, args []string) error {
	if flagList {
		return listDescriptors(os.Stdout)
	}
	appContext := common.GetAppContext(cmd)
	slog.Debug("pcie command", slog.String("version", appContext.Version), slog.String("log", appContext.LogFilePath))
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	delay := time.Duration(flagDelay * float64(time.Second))

	if flagPMUCheck {
		if err := checkPMU(ctx, os.Stdout, msr.NewReader(gPaths.MSR), pmuCheckIterations, pmuCheckInterval); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			slog.Error(err.Error())
			cmd.SilenceUsage = true
			return err
		}
	}
	p, sampler, err := setup(gPaths, delay, flagRounds, uncore.PerfOpener{})
	if err != nil {
		err = explain(err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		slog.Error(err.Error())
		cmd.SilenceUsage = true
		return err
	}
	fmt.Printf("Detected platform: %s\n", p.Name())
	human := term.IsTerminal(int(os.Stdout.Fd())) // #nosec G115
	err = monitor(ctx, os.Stdout, newPrinter(human), p, sampler, flagCount, flagVerbose, flagTextfile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		slog.Error(err.Error())
		cmd.SilenceUsage = true
		return err
	}
	return nil
}

// explain rewords fatal platform errors for the terminal.
func explain(err error) error {
	switch {
	case errors.Is(err, platform.ErrCoreOffline):
		return fmt.Errorf("program aborted: %w", err)
	case errors.Is(err, platform.ErrUnknownModel):
		return fmt.Errorf("this processor has no PCIe bandwidth event table: %w", err)
	}
	return err
}

// setup identifies the processor, builds its platform and programs a sampler for the
// platform's uncore boxes.
func setup(hostPaths paths, delay time.Duration, rounds int, opener uncore.CounterOpener) (*platform.Platform, *uncore.Sampler, error) {
	id, err := cpus.ReadIdentifier(hostPaths.CPUInfo)
	if err != nil {
		return nil, nil, err
	}
	cpu, err := cpus.GetCPU(id)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", platform.ErrUnknownModel, err)
	}
	slog.Info("detected CPU", slog.String("name", cpu.Name), slog.String("microarchitecture", cpu.MicroArchitecture))
	topo := topology.New(hostPaths.CPU)
	p, err := platform.NewForMicroArchitecture(topo, cpu.MicroArchitecture, delay, rounds)
	if err != nil {
		return nil, nil, err
	}
	boxes, err := uncore.DiscoverBoxes(hostPaths.PMU, p.Descriptor().Boxes)
	if err != nil {
		return nil, nil, err
	}
	socketOf, err := topo.SocketMap()
	if err != nil {
		return nil, nil, err
	}
	sampler, err := uncore.NewSampler(p, boxes, socketOf, opener, rounds)
	if err != nil {
		return nil, nil, err
	}
	return p, sampler, nil
}

// checkPMU reports core PMU counters already in use on cpu 0. Busy counters are a
// warning, not an error: uncore sampling does not depend on them.
func checkPMU(ctx context.Context, w io.Writer, reader *msr.Reader, iterations int, interval time.Duration) error {
	res, err := reader.CheckActive(ctx, 0, iterations, interval)
	if err != nil {
		return err
	}
	if res.PMUActive > 0 {
		slog.Warn("core PMU counters in use", slog.Int("active", res.PMUActive))
		fmt.Fprintf(w, "Warning: %d PMU(s) are actively being used:\n%s\n", res.PMUActive, res)
	} else {
		slog.Info("none of the PMU(s) are actively being used")
	}
	return nil
}

type roundCollector interface {
	Collect(ctx context.Context) error
}

// monitor collects and prints count reports, or reports until ctx is done when count
// is 0. An interrupted collection ends the loop without error.
func monitor(ctx context.Context, w io.Writer, pr printer, p *platform.Platform, sampler roundCollector, count int, verbose bool, textfile string) error {
	var registry *prometheus.Registry
	if textfile != "" {
		registry = prometheus.NewRegistry()
		if err := registry.Register(platform.NewCollector(p)); err != nil {
			return err
		}
	}
	for i := 0; count == 0 || i < count; i++ {
		if err := sampler.Collect(ctx); err != nil {
			if ctx.Err() != nil {
				slog.Info("collection interrupted", slog.Int("reports", i))
				return nil
			}
			return err
		}
		snap := p.Snapshot()
		if verbose {
			if err := printDetails(w, pr, p.Descriptor(), snap); err != nil {
				return err
			}
		}
		if err := printBandwidth(w, pr, snap); err != nil {
			return err
		}
		if registry != nil {
			if err := prometheus.WriteToTextfile(textfile, registry); err != nil {
				return fmt.Errorf("failed to write %s: %w", textfile, err)
			}
		}
	}
	return nil
}
