// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package msr

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
)

func validate(path string) error {
	if _, err := os.Stat(path); err != nil {
		return errors.Wrap(err, fmt.Sprintf("MSR modules aren't loaded at %s, please load them using modprobe msr command", path))
	}
	return nil
}

// Validate checks that the msr device of cpu is present.
func (r *Reader) Validate(cpu int) error {
	return validate(r.Path(cpu))
}
