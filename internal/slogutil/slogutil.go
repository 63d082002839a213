// Copyright (c) 2024 The sharenode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package slogutil is the logging composition root for the share-chain
// node: one rotating backend feeding a set of per-subsystem loggers, with
// a textual "subsystem=level" spec for runtime configuration.
package slogutil

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

// Subsystem tags, one per package that logs. Each corresponding package
// exposes a UseLogger(slog.Logger) setter; Backend.Logger returns the logger
// for a tag, and passing it to that setter is left to the embedder.
const (
	SubsystemWire        = "WIRE"
	SubsystemPeer        = "PEER"
	SubsystemSharechain  = "CHST"
	SubsystemCoordinator = "COOR"
	SubsystemStatusrv    = "STAT"
	SubsystemConfig      = "CFG"
)

var subsystems = []string{
	SubsystemWire,
	SubsystemPeer,
	SubsystemSharechain,
	SubsystemCoordinator,
	SubsystemStatusrv,
	SubsystemConfig,
}

// Backend owns the rotating log file and the per-subsystem loggers created
// from it.
type Backend struct {
	backend *slog.Backend
	loggers map[string]slog.Logger
}

// NewBackend creates a logging backend that writes to both stdout and a
// rotating log file at logPath (rotated by github.com/jrick/logrotate),
// then builds one slog.Logger per known subsystem at the default Info
// level.
func NewBackend(logPath string) (*Backend, error) {
	r, err := rotator.New(logPath, 10*1024, false, 3)
	if err != nil {
		return nil, fmt.Errorf("failed to create log rotator: %w", err)
	}

	w := io.MultiWriter(os.Stdout, r)
	b := &Backend{
		backend: slog.NewBackend(w),
		loggers: make(map[string]slog.Logger, len(subsystems)),
	}
	for _, tag := range subsystems {
		l := b.backend.Logger(tag)
		l.SetLevel(slog.LevelInfo)
		b.loggers[tag] = l
	}
	return b, nil
}

// Logger returns the logger for the named subsystem, or a disabled logger
// if the subsystem tag is unrecognised.
func (b *Backend) Logger(subsystem string) slog.Logger {
	if l, ok := b.loggers[subsystem]; ok {
		return l
	}
	return slog.Disabled
}

// SetLogLevels parses a "subsystem=level,subsystem=level" spec (or a bare
// "level" applying to every subsystem) and applies it.
func (b *Backend) SetLogLevels(spec string) error {
	if spec == "" {
		return nil
	}

	if !strings.Contains(spec, ",") && !strings.Contains(spec, "=") {
		level, ok := slog.LevelFromString(spec)
		if !ok {
			return fmt.Errorf("invalid log level %q", spec)
		}
		for _, l := range b.loggers {
			l.SetLevel(level)
		}
		return nil
	}

	for _, pair := range strings.Split(spec, ",") {
		parts := strings.Split(pair, "=")
		if len(parts) != 2 {
			return fmt.Errorf("invalid subsystem/level pair %q", pair)
		}
		subsystem, levelStr := parts[0], parts[1]
		level, ok := slog.LevelFromString(levelStr)
		if !ok {
			return fmt.Errorf("invalid log level %q for subsystem %q", levelStr, subsystem)
		}
		l, ok := b.loggers[subsystem]
		if !ok {
			return fmt.Errorf("unknown subsystem %q", subsystem)
		}
		l.SetLevel(level)
	}
	return nil
}
