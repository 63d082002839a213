// Copyright (c) 2024 The sharenode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "github.com/decred/slog"

// log is a logger that is initialized as a no-op and set to a proper logger
// via UseLogger before any wire code is invoked in anger. It allows this
// package to be used independently of any logging infrastructure while
// still taking advantage of it when available.
var log = slog.Disabled

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger slog.Logger) {
	log = logger
}
