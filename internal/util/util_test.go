package util

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestIntRangeToIntList(t *testing.T) {
	tests := []struct {
		input    string
		expected []int
		err      bool
	}{
		{"1-5", []int{1, 2, 3, 4, 5}, false},            // Valid range
		{"10-15", []int{10, 11, 12, 13, 14, 15}, false}, // Valid range
		{"5-5", []int{5}, false},                        // Single value range
		{"", []int{}, true},                             // Empty input
		{"5-3", nil, true},                              // Invalid range (start > end)
		{"abc-def", nil, true},                          // Invalid input format
		{"1-", nil, true},                               // Missing end value
		{"-5", nil, true},                               // Missing start value
		{"1-5-10", nil, true},                           // Invalid format with extra dash
		{"1-abc", nil, true},                            // Invalid end value
		{"abc-5", nil, true},                            // Invalid start value
		{"3", []int{3}, false},                          // Single value without range
	}

	for _, test := range tests {
		result, err := IntRangeToIntList(test.input)
		if (err != nil) != test.err {
			t.Errorf("expected error: %v, got: %v for input %s, err: %v", test.err, err != nil, test.input, err)
		}
		if !test.err && !slices.Equal(result, test.expected) {
			t.Errorf("expected %v, got %v for input %s", test.expected, result, test.input)
		}
	}
}

func TestSelectiveIntRangeToIntList(t *testing.T) {
	tests := []struct {
		input    string
		expected []int
		err      bool
	}{
		{"1-3,5,7-9", []int{1, 2, 3, 5, 7, 8, 9}, false},             // Valid mixed ranges and single values
		{"10-12,15,20-22", []int{10, 11, 12, 15, 20, 21, 22}, false}, // Valid mixed ranges
		{"5", []int{5}, false},                                       // Single value
		{"1-3,5-5,7", []int{1, 2, 3, 5, 7}, false},                   // Mixed ranges with single value range
		{"", []int{}, false},       // Empty cpu list
		{"1-3,abc,7-9", nil, true}, // Invalid input with non-numeric value
		{"1-3,5-2,7-9", nil, true}, // Invalid range (start > end)
		{"1-3,,7-9", nil, true},    // Invalid format with empty segment
		{"1-3,7-9-", nil, true},    // Invalid format with trailing dash
		{"1-3,7-abc", nil, true},   // Invalid range with non-numeric end
	}

	for _, test := range tests {
		result, err := SelectiveIntRangeToIntList(test.input)
		if (err != nil) != test.err {
			t.Errorf("expected error: %v, got: %v for input %s, err: %v", test.err, err != nil, test.input, err)
		}
		if !test.err && !slices.Equal(result, test.expected) {
			t.Errorf("expected %v, got %v for input %s", test.expected, result, test.input)
		}
	}
}

func TestUint64FromNumLowerBits(t *testing.T) {
	tests := []struct {
		numBits  int
		expected uint64
		wantErr  bool
	}{
		{0, 0, false},
		{1, 1, false},
		{2, 3, false},
		{3, 7, false},
		{4, 15, false},
		{8, 255, false},
		{16, 65535, false},
		{32, 4294967295, false},
		{63, 0x7FFFFFFFFFFFFFFF, false},
		{64, 0xFFFFFFFFFFFFFFFF, false},
		{-1, 0, true},
		{65, 0, true},
		{100, 0, true},
	}
	for _, tt := range tests {
		got, err := Uint64FromNumLowerBits(tt.numBits)
		if (err != nil) != tt.wantErr {
			t.Errorf("Uint64FromNumLowerBits(%d) error = %v, wantErr %v", tt.numBits, err, tt.wantErr)
		}
		if !tt.wantErr && got != tt.expected {
			t.Errorf("Uint64FromNumLowerBits(%d) = %d, want %d", tt.numBits, got, tt.expected)
		}
	}
}

func TestIsUint64BitSet(t *testing.T) {
	tests := []struct {
		name    string
		x       uint64
		bit     int
		want    bool
		wantErr bool
	}{
		{"bit 0 set", 1, 0, true, false},
		{"bit 1 set", 2, 1, true, false},
		{"bit 2 not set", 2, 2, false, false},
		{"bit 63 set", 1 << 63, 63, true, false},
		{"bit 63 not set", 1, 63, false, false},
		{"all bits set", ^uint64(0), 0, true, false},
		{"all bits set, bit 63", ^uint64(0), 63, true, false},
		{"bit out of range negative", 1, -1, false, true},
		{"bit out of range high", 1, 64, false, true},
		{"zero value, bit 0", 0, 0, false, false},
		{"zero value, bit 63", 0, 63, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IsUint64BitSet(tt.x, tt.bit)
			if (err != nil) != tt.wantErr {
				t.Errorf("IsUint64BitSet(%d, %d) error = %v, wantErr %v", tt.x, tt.bit, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("IsUint64BitSet(%d, %d) = %v, want %v", tt.x, tt.bit, got, tt.want)
			}
		})
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "present")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if exists, err := FileExists(path); err != nil || !exists {
		t.Errorf("FileExists(%s) = %v, %v, want true, nil", path, exists, err)
	}
	if exists, err := FileExists(filepath.Join(dir, "absent")); err != nil || exists {
		t.Errorf("FileExists(absent) = %v, %v, want false, nil", exists, err)
	}
	if _, err := FileExists(dir); err == nil {
		t.Errorf("FileExists(%s) expected error for directory", dir)
	}
}

func TestReadTrimmed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "online")
	if err := os.WriteFile(path, []byte("0-63\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := ReadTrimmed(path)
	if err != nil || got != "0-63" {
		t.Errorf("ReadTrimmed() = %q, %v, want \"0-63\", nil", got, err)
	}
	if _, err := ReadTrimmed(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Errorf("ReadTrimmed(absent) expected error")
	}
}

func TestExpandUser(t *testing.T) {
	if got := ExpandUser("/tmp/x"); got != "/tmp/x" {
		t.Errorf("ExpandUser(/tmp/x) = %s", got)
	}
}
