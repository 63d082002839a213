// Copyright (c) 2024 The sharenode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import "github.com/decred/slog"

var log = slog.Disabled

// UseLogger sets the package-wide logger used by LoadConfig.
func UseLogger(logger slog.Logger) {
	log = logger
}
