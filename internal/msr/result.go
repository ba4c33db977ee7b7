// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package msr

import (
	"encoding/json"
	"log/slog"

	"github.com/pkg/errors"
)

// Result lists the core PMU registers found counting during a check.
type Result struct {
	PMUActive  int               `json:"active_pmus"`
	PMUDetails map[string]string `json:"details"`
}

func (r Result) String() string {
	js, err := json.MarshalIndent(r, "", "\t")
	if err != nil {
		slog.Error("failed to format PMU check result", slog.String("error", errors.Wrap(err, "result could not be converted to json").Error()))
		return ""
	}
	return string(js)
}
