package pcie

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v2"

	"pciebw/internal/platform"
)

// printer formats numbers plainly for pipes and with thousands separators for terminals.
type printer interface {
	Fprintf(w io.Writer, format string, a ...any) (int, error)
}

type plainPrinter struct{}

func (plainPrinter) Fprintf(w io.Writer, format string, a ...any) (int, error) {
	return fmt.Fprintf(w, format, a...)
}

type humanPrinter struct {
	p *message.Printer
}

func (h humanPrinter) Fprintf(w io.Writer, format string, a ...any) (int, error) {
	return h.p.Fprintf(w, format, a...)
}

func newPrinter(human bool) printer {
	if human {
		return humanPrinter{p: message.NewPrinter(language.English)}
	}
	return plainPrinter{}
}

func printBandwidth(w io.Writer, p printer, snap platform.Snapshot) error {
	_, err := p.Fprintf(w, "PCIe Read Bandwidth: %d B/s, PCIe Write Bandwidth: %d B/s\n", snap.ReadBandwidth(), snap.WriteBandwidth())
	return err
}

// printDetails prints every mapped event value and the bandwidth of each socket.
func printDetails(w io.Writer, p printer, desc *platform.Descriptor, snap platform.Snapshot) error {
	for socket := 0; socket < snap.Sockets(); socket++ {
		if _, err := p.Fprintf(w, "Socket %d\n", socket); err != nil {
			return err
		}
		for idx, name := range desc.EventNames() {
			for _, filter := range platform.Filters {
				value, ok := snap.Lookup(socket, filter, idx)
				if !ok {
					continue
				}
				if _, err := p.Fprintf(w, "  %-24s %d\n", name+" "+filter.String(), value); err != nil {
					return err
				}
			}
		}
		for _, dir := range platform.Directions {
			if _, err := p.Fprintf(w, "  %-24s %d\n", dir.String(), snap.BandwidthFor(dir, socket, platform.Total)); err != nil {
				return err
			}
		}
	}
	return nil
}

// listDescriptors writes the event table of every supported generation as YAML.
func listDescriptors(w io.Writer) error {
	descriptors := make([]*platform.Descriptor, 0, len(platform.Generations))
	for _, gen := range platform.Generations {
		descriptors = append(descriptors, gen.Descriptor())
	}
	out, err := yaml.Marshal(descriptors)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}
