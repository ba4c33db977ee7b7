// Package common defines data structures and functions that are used by multiple
// application commands.
package common

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var AppName = filepath.Base(os.Args[0])

// AppContext represents the application context that can be accessed from all commands.
type AppContext struct {
	Timestamp   string // Timestamp is the application start time.
	LogFilePath string // LogFilePath is the log file, empty when logging to syslog or stdout.
	Version     string // Version is the version of the application.
	Debug       bool   // Debug is set when debug logging was requested.
}

// GetAppContext returns the application context stored on the command's parent by the
// root command, or the zero value when there is none.
func GetAppContext(cmd *cobra.Command) AppContext {
	parent := cmd.Parent()
	if parent == nil {
		parent = cmd
	}
	ctx := parent.Context()
	if ctx == nil {
		return AppContext{}
	}
	if appContext, ok := ctx.Value(AppContext{}).(AppContext); ok {
		return appContext
	}
	return AppContext{}
}

type Flag struct {
	Name string
	Help string
}
type FlagGroup struct {
	GroupName string
	Flags     []Flag
}
