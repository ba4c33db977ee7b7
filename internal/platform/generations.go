package platform

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

// Generation is a Xeon server platform with a known PCIe event table.
type Generation int

const (
	EagleStream Generation = iota // Sapphire Rapids, Emerald Rapids
	BirchStream                   // Sierra Forest
	Whitley                       // Ice Lake, Snow Ridge
	Purley                        // Skylake, Cascade Lake, Cooper Lake
	Grantley                      // Haswell, Broadwell, Knights Landing
	Bromolow                      // Sandy Bridge EP, Ivy Bridge EP
)

// Generations lists every supported generation, newest first.
var Generations = []Generation{EagleStream, BirchStream, Whitley, Purley, Grantley, Bromolow}

func (g Generation) String() string {
	if d := g.Descriptor(); d != nil {
		return d.Name
	}
	return "Unknown"
}

// Descriptor returns the event table for the generation, or nil for an unknown value.
// The returned descriptor is shared and must not be modified.
func (g Generation) Descriptor() *Descriptor {
	switch g {
	case EagleStream:
		return &eagleStream
	case BirchStream:
		return &birchStream
	case Whitley:
		return &whitley
	case Purley:
		return &purley
	case Grantley:
		return &grantley
	case Bromolow:
		return &bromolow
	}
	return nil
}

// CHA TOR inserts from IIO, miss then hit for each dual component event.
var eagleStreamGroups = []Group{
	{0xC8F3FE00000435, 0xC8F3FD00000435, 0xCC43FE00000435, 0xCC43FD00000435},
	{0xCD43FE00000435, 0xCD43FD00000435, 0xC877DE00000135, 0xC87FDE00000135},
	{0xC86FFE00000135, 0xC867FE00000135},
}

var eagleStreamEvents = []Event{
	{Name: "PCIRdCur", Components: 2},
	{Name: "ItoM", Components: 2},
	{Name: "ItoMCacheNear", Components: 2},
	{Name: "UCRdF", Components: 1},
	{Name: "WiL", Components: 1},
	{Name: "WCiL", Components: 1},
	{Name: "WCiLF", Components: 1},
}

var eagleStream = Descriptor{
	Name:     "EagleStream",
	Boxes:    []string{"cha"},
	Encoding: EncodingDirect,
	Events:   eagleStreamEvents,
	Groups:   eagleStreamGroups,
	Read:     []string{"PCIRdCur"},
	Write:    []string{"ItoM", "ItoMCacheNear"},
}

// Sierra Forest keeps the Eagle Stream CHA encodings.
var birchStream = Descriptor{
	Name:     "BirchStream",
	Boxes:    []string{"cha"},
	Encoding: EncodingDirect,
	Events:   eagleStreamEvents,
	Groups:   eagleStreamGroups,
	Read:     []string{"PCIRdCur"},
	Write:    []string{"ItoM", "ItoMCacheNear"},
}

var whitley = Descriptor{
	Name:     "Whitley",
	Boxes:    []string{"cha"},
	Encoding: EncodingDirect,
	Events: []Event{
		{Name: "PCIRdCur", Components: 2},
		{Name: "ItoM", Components: 2},
		{Name: "ItoMCacheNear", Components: 2},
		{Name: "UCRdF", Components: 1},
		{Name: "WiL", Components: 1},
	},
	Groups: []Group{
		{0xC8F3FE00000435, 0xC8F3FD00000435, 0xCC43FE00000435, 0xCC43FD00000435},
		{0xCD43FE00000435, 0xCD43FD00000435, 0xC877DE00000135, 0xC87FDE00000135},
	},
	Read:  []string{"PCIRdCur"},
	Write: []string{"ItoM", "ItoMCacheNear"},
}

// The opcode filter generations count TOR_INSERTS (event 0x35) for one request
// opcode per counter. Hit and miss are not separated, so every event has one component.
var legacyEvents = []Event{
	{Name: "PCIRdCur", Components: 1},
	{Name: "RFO", Components: 1},
	{Name: "CRd", Components: 1},
	{Name: "DRd", Components: 1},
	{Name: "ItoM", Components: 1},
	{Name: "PRd", Components: 1},
	{Name: "WiL", Components: 1},
}

var purley = Descriptor{
	Name:         "Purley",
	Boxes:        []string{"cha"},
	Encoding:     EncodingOpcodeFilter,
	EventSelect:  0x35,
	UmaskSelect:  0x34, // IO requests, hit and miss
	FilterFields: []string{"filter_opc0", "filter_opc_0", "filter_opc"},
	Events:       legacyEvents,
	Groups: []Group{
		{0x21E, 0x200, 0x201, 0x202},
		{0x248, 0x207, 0x20F},
	},
	Read:  []string{"PCIRdCur"},
	Write: []string{"RFO", "ItoM"},
}

var grantley = Descriptor{
	Name:         "Grantley",
	Boxes:        []string{"cbox", "cha"},
	Encoding:     EncodingOpcodeFilter,
	EventSelect:  0x35,
	UmaskSelect:  0x01, // opcode match
	FilterFields: []string{"filter_opc", "filter_opc2"},
	Events:       legacyEvents,
	Groups: []Group{
		{0x19E, 0x180, 0x181, 0x182},
		{0x1C8, 0x187, 0x18F},
	},
	Read:  []string{"PCIRdCur"},
	Write: []string{"RFO", "ItoM"},
}

var bromolow = Descriptor{
	Name:         "Bromolow",
	Boxes:        []string{"cbox"},
	Encoding:     EncodingOpcodeFilter,
	EventSelect:  0x35,
	UmaskSelect:  0x01,
	FilterFields: []string{"filter_opc"},
	Events: []Event{
		{Name: "PCIeRdCur", Components: 1},
		{Name: "PCIeNSRd", Components: 1},
		{Name: "PCIeWiLF", Components: 1},
		{Name: "PCIeItoM", Components: 1},
		{Name: "PCIeNSWr", Components: 1},
		{Name: "PCIeNSWrF", Components: 1},
	},
	Groups: []Group{
		{0x19E, 0x1E4, 0x194, 0x19C},
		{0x1E5, 0x1E6},
	},
	// these parts split PCIe traffic over non-snoop opcodes as well, so each direction sums all of them
	Read:  []string{"PCIeRdCur", "PCIeNSRd"},
	Write: []string{"PCIeWiLF", "PCIeItoM", "PCIeNSWr", "PCIeNSWrF"},
}
