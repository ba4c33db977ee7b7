/*
Package util includes utility/helper functions that may be useful to other modules.
*/
package util

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// ExpandUser expands '~' to user's home directory, if found, otherwise returns original path
func ExpandUser(path string) string {
	usr, err := user.Current()
	if err != nil {
		return path
	}
	if path == "~" {
		return usr.HomeDir
	} else if strings.HasPrefix(path, "~"+string(os.PathSeparator)) {
		return filepath.Join(usr.HomeDir, path[2:])
	}
	return path
}

// AbsPath returns absolute path after expanding '~' to user's home dir
func AbsPath(path string) (string, error) {
	return filepath.Abs(ExpandUser(path))
}

// FileExists checks if a file exists at the given path.
// It returns a boolean indicating whether the file exists, and an error if the
// path refers to a non-regular file, e.g., a directory.
func FileExists(path string) (exists bool, err error) {
	var fileInfo fs.FileInfo
	fileInfo, err = os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			exists = false
			err = nil
			return
		}
		return
	}
	if !fileInfo.Mode().IsRegular() {
		err = fmt.Errorf("%s not a file", path)
		return
	}
	exists = true
	return
}

// ReadTrimmed returns the contents of a small text file, e.g., a sysfs attribute,
// without surrounding whitespace.
func ReadTrimmed(path string) (string, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

var reIntRange = regexp.MustCompile(`^(\d+)(?:-(\d+))?$`)

// IntRangeToIntList expands a string representing a range of integers into a slice of integers.
// For example, "1-3" will be expanded to [1, 2, 3]. And, "5" will be expanded to [5].
func IntRangeToIntList(input string) ([]int, error) {
	matches := reIntRange.FindStringSubmatch(input)
	if len(matches) == 0 {
		return nil, fmt.Errorf("invalid input format: %s", input)
	}
	start, err := strconv.Atoi(matches[1])
	if err != nil {
		return nil, fmt.Errorf("invalid start value: %s", matches[1])
	}
	if matches[2] == "" {
		return []int{start}, nil
	}
	end, err := strconv.Atoi(matches[2])
	if err != nil {
		return nil, fmt.Errorf("invalid end value: %s", matches[2])
	}
	if start > end {
		return nil, fmt.Errorf("start value is greater than end value: %d > %d", start, end)
	}
	result := make([]int, end-start+1)
	for i := start; i <= end; i++ {
		result[i-start] = i
	}
	return result, nil
}

// SelectiveIntRangeToIntList expands a string representing a selective range of integers into a slice of integers.
// For example "1-3,7,9,11-13" will be expanded to [1, 2, 3, 7, 9, 11, 12, 13].
// An empty string expands to an empty slice, matching the kernel's format for empty cpu lists.
func SelectiveIntRangeToIntList(input string) ([]int, error) {
	var result []int
	input = strings.TrimSpace(input)
	if input == "" {
		return result, nil
	}
	for r := range strings.SplitSeq(input, ",") {
		ints, err := IntRangeToIntList(r)
		if err != nil {
			return nil, err
		}
		result = append(result, ints...)
	}
	return result, nil
}

// Uint64FromNumLowerBits returns a uint64 with the lowest numBits bits set.
func Uint64FromNumLowerBits(numBits int) (uint64, error) {
	if numBits < 0 || numBits > 64 {
		return 0, fmt.Errorf("number of bits must be between 0 and 64, got %d", numBits)
	}
	if numBits == 64 {
		return ^uint64(0), nil
	}
	return (uint64(1) << numBits) - 1, nil
}

// IsUint64BitSet checks if the bit at position bit is set in x.
func IsUint64BitSet(x uint64, bit int) (bool, error) {
	if bit < 0 || bit > 63 {
		return false, fmt.Errorf("bit position must be between 0 and 63, got %d", bit)
	}
	return x&(uint64(1)<<bit) != 0, nil
}
