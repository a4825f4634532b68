// Resonance - Content-Based Music Recommendation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/resonance

// Command resonancectl runs recommendation operations directly against the
// configured store, without a running server.
package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
)

// version is set via ldflags at build time.
var version = "dev"

func main() {
	if err := fang.Execute(context.Background(), NewRootCmd(version, &app{})); err != nil {
		os.Exit(1)
	}
}
