// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package pcie

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pciebw/internal/msr"
	"pciebw/internal/platform"
	"pciebw/internal/uncore"
)

const sprCPUInfo = `processor	: 0
vendor_id	: GenuineIntel
cpu family	: 6
model		: 143
stepping	: 8
`

type counter struct {
	value uint64
}

func (c *counter) Enable() error         { return nil }
func (c *counter) Disable() error        { return nil }
func (c *counter) Read() (uint64, error) { return c.value, nil }
func (c *counter) Close() error          { return nil }

type opener struct {
	value uint64
}

func (o opener) Open(uint32, [3]uint64, int) (uncore.Counter, error) {
	return &counter{value: o.value}, nil
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

// fakeHost builds cpuinfo, cpu topology and PMU trees for a two socket host with one
// cpu per socket and a single CHA.
func fakeHost(t *testing.T, cpuinfo, online string) paths {
	t.Helper()
	root := t.TempDir()
	host := paths{
		CPUInfo: filepath.Join(root, "cpuinfo"),
		CPU:     filepath.Join(root, "cpu"),
		PMU:     filepath.Join(root, "devices"),
		MSR:     filepath.Join(root, "msr", "%d"),
	}
	writeFile(t, host.CPUInfo, cpuinfo)
	writeFile(t, filepath.Join(host.CPU, "online"), online+"\n")
	writeFile(t, filepath.Join(host.CPU, "present"), "0-1\n")
	for cpu := range 2 {
		writeFile(t, filepath.Join(host.CPU, "cpu"+strconv.Itoa(cpu), "topology", "physical_package_id"), strconv.Itoa(cpu)+"\n")
	}
	writeFile(t, filepath.Join(host.PMU, "uncore_cha_0", "type"), "30\n")
	writeFile(t, filepath.Join(host.PMU, "uncore_cha_0", "cpumask"), "0-1\n")
	writeFile(t, filepath.Join(host.PMU, "uncore_cha_0", "format", "event"), "config:0-7\n")
	return host
}

func TestSetupAndMonitor(t *testing.T) {
	host := fakeHost(t, sprCPUInfo, "0-1")
	// three groups share 3ms, so each is counted for exactly 1ms
	p, sampler, err := setup(host, 3*time.Millisecond, 1, opener{value: 64})
	require.NoError(t, err)
	assert.Equal(t, "EagleStream", p.Name())
	assert.Equal(t, time.Millisecond, p.ExposureTime())

	textfile := filepath.Join(t.TempDir(), "pcie.prom")
	var out bytes.Buffer
	err = monitor(context.Background(), &out, newPrinter(false), p, sampler, 2, false, textfile)
	require.NoError(t, err)

	// 64 counts per ms is 64000 per second in each slot; PCIRdCur has two slots and
	// the write events four, on each of two sockets
	line := "PCIe Read Bandwidth: 16384000 B/s, PCIe Write Bandwidth: 32768000 B/s\n"
	assert.Equal(t, line+line, out.String())

	prom, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), `pciebw_read_bytes{generation="EagleStream",socket="1"} 8.192e+06`)
}

func TestSetupUnknownModel(t *testing.T) {
	host := fakeHost(t, strings.Replace(sprCPUInfo, "143", "173", 1), "0-1")
	_, _, err := setup(host, time.Second, 1, opener{})
	require.ErrorIs(t, err, platform.ErrUnknownModel)
	assert.Contains(t, explain(err).Error(), "no PCIe bandwidth event table")

	host = fakeHost(t, strings.Replace(sprCPUInfo, "143", "1", 1), "0-1")
	_, _, err = setup(host, time.Second, 1, opener{})
	require.ErrorIs(t, err, platform.ErrUnknownModel)
}

func TestSetupOfflineCore(t *testing.T) {
	host := fakeHost(t, sprCPUInfo, "0")
	_, _, err := setup(host, time.Second, 1, opener{})
	require.ErrorIs(t, err, platform.ErrCoreOffline)
	assert.Equal(t, "program aborted: core offlining is not supported", explain(err).Error())
}

func TestSetupMissingPMU(t *testing.T) {
	host := fakeHost(t, sprCPUInfo, "0-1")
	require.NoError(t, os.RemoveAll(filepath.Join(host.PMU, "uncore_cha_0")))
	_, _, err := setup(host, time.Second, 1, opener{})
	require.Error(t, err)
}

type fakeCollector struct {
	calls int
	err   error
}

func (f *fakeCollector) Collect(ctx context.Context) error {
	f.calls++
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.err
}

func testPlatform(t *testing.T) *platform.Platform {
	t.Helper()
	host := fakeHost(t, sprCPUInfo, "0-1")
	p, _, err := setup(host, time.Second, 1, opener{})
	require.NoError(t, err)
	return p
}

func TestMonitorInterrupted(t *testing.T) {
	p := testPlatform(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	collector := &fakeCollector{}
	var out bytes.Buffer
	require.NoError(t, monitor(ctx, &out, newPrinter(false), p, collector, 0, false, ""))
	assert.Equal(t, 1, collector.calls)
	assert.Empty(t, out.String())
}

func TestMonitorError(t *testing.T) {
	p := testPlatform(t)
	collector := &fakeCollector{err: errors.New("counter busy")}
	err := monitor(context.Background(), &bytes.Buffer{}, newPrinter(false), p, collector, 3, false, "")
	require.EqualError(t, err, "counter busy")
	assert.Equal(t, 1, collector.calls)
}

func TestPrintBandwidth(t *testing.T) {
	p := testPlatform(t)
	round := p.NewRound()
	round.Set(0, 0, 20000)
	round.Set(1, 2, 1)
	require.NoError(t, p.Commit(round))

	var out bytes.Buffer
	require.NoError(t, printBandwidth(&out, newPrinter(false), p.Snapshot()))
	assert.Equal(t, "PCIe Read Bandwidth: 1280000 B/s, PCIe Write Bandwidth: 64 B/s\n", out.String())

	out.Reset()
	require.NoError(t, printBandwidth(&out, newPrinter(true), p.Snapshot()))
	assert.Equal(t, "PCIe Read Bandwidth: 1,280,000 B/s, PCIe Write Bandwidth: 64 B/s\n", out.String())
}

func TestPrintDetails(t *testing.T) {
	p := testPlatform(t)
	round := p.NewRound()
	round.Set(1, 0, 3)
	round.Set(1, 1, 4)
	require.NoError(t, p.Commit(round))

	var out bytes.Buffer
	require.NoError(t, printDetails(&out, newPrinter(false), p.Descriptor(), p.Snapshot()))
	text := out.String()
	assert.Contains(t, text, "Socket 0\n")
	assert.Contains(t, text, "Socket 1\n")
	assert.Contains(t, text, "PCIRdCur (Total)         7\n")
	assert.Contains(t, text, "PCIRdCur (Hit)           4\n")
	assert.Contains(t, text, "PCIe Rd (B)              448\n")
	// single component events have no hit line
	assert.NotContains(t, text, "WiL (Hit)")
	assert.Contains(t, text, "WiL (Miss)")
}

func TestListDescriptors(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, listDescriptors(&out))
	for _, gen := range platform.Generations {
		assert.Contains(t, out.String(), "name: "+gen.String())
	}
}

func TestCheckPMU(t *testing.T) {
	host := fakeHost(t, sprCPUInfo, "0-1")
	writeFile(t, filepath.Join(filepath.Dir(host.MSR), "0"), string(make([]byte, 0x400)))
	var out bytes.Buffer
	require.NoError(t, checkPMU(context.Background(), &out, msr.NewReader(host.MSR), 1, time.Second))
	assert.Empty(t, out.String())

	require.Error(t, checkPMU(context.Background(), &out, msr.NewReader(filepath.Join(t.TempDir(), "%d")), 1, time.Second))
}

func TestCheckPMUBusy(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "0")
	regs := make([]byte, 0x400)
	binary.LittleEndian.PutUint64(regs[0x30a:], 1)
	writeFile(t, path, string(regs))
	reader := msr.NewReader(filepath.Join(dir, "%d"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		// the counter moves while the check waits between passes
		time.Sleep(20 * time.Millisecond)
		binary.LittleEndian.PutUint64(regs[0x30a:], 2)
		_ = os.WriteFile(path, regs, 0o600)
	}()
	var out bytes.Buffer
	require.NoError(t, checkPMU(ctx, &out, reader, 2, 200*time.Millisecond))
	assert.Contains(t, out.String(), "1 PMU(s) are actively being used")
	assert.Contains(t, out.String(), "cpu_cycles")
}

// newFlagCommand registers the command's option flags on a fresh command.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{Use: cmdName}
	cmd.Flags().Float64Var(&flagDelay, flagDelayName, 1.0, "")
	cmd.Flags().IntVar(&flagRounds, flagRoundsName, 1, "")
	cmd.Flags().IntVar(&flagCount, flagCountName, 1, "")
	cmd.Flags().BoolVar(&flagVerbose, flagVerboseName, false, "")
	cmd.Flags().BoolVar(&flagPMUCheck, flagPMUCheckName, false, "")
	cmd.Flags().StringVar(&flagTextfile, flagTextfileName, "", "")
	cmd.Flags().StringVar(&flagConfig, flagConfigName, "", "")
	return cmd
}

func TestConfigFile(t *testing.T) {
	saved := gPaths
	t.Cleanup(func() { gPaths = saved })
	path := filepath.Join(t.TempDir(), "pciebw.yaml")
	writeFile(t, path, `delay: 2.5
rounds: 5
count: 0
verbose: true
paths:
  cpu: /tmp/cpu
`)
	cmd := newFlagCommand()
	require.NoError(t, cmd.Flags().Set(flagRoundsName, "3"))
	require.NoError(t, cmd.Flags().Set(flagConfigName, path))
	require.NoError(t, validateFlags(cmd, nil))

	assert.InDelta(t, 2.5, flagDelay, 0)
	assert.Equal(t, 3, flagRounds) // set on the command line
	assert.Equal(t, 0, flagCount)
	assert.True(t, flagVerbose)
	assert.Equal(t, "/tmp/cpu", gPaths.CPU)
	assert.Equal(t, saved.PMU, gPaths.PMU)
}

func TestConfigFileErrors(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	writeFile(t, path, "delay: 1\nunknown: true\n")
	_, err = loadConfig(path)
	require.Error(t, err)
}

func TestValidateFlags(t *testing.T) {
	tests := []struct {
		name string
		flag string
		val  string
	}{
		{"zero delay", flagDelayName, "0"},
		{"negative rounds", flagRoundsName, "-1"},
		{"negative count", flagCountName, "-2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newFlagCommand()
			require.NoError(t, cmd.Flags().Set(tt.flag, tt.val))
			require.Error(t, validateFlags(cmd, nil))
		})
	}
	cmd := newFlagCommand()
	require.NoError(t, cmd.Flags().Set(flagTextfileName, "out.prom"))
	require.NoError(t, validateFlags(cmd, nil))
	assert.True(t, filepath.IsAbs(flagTextfile))
}
