// Copyright (c) 2024 The sharenode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"path/filepath"
	"testing"
)

func TestLoadConfigAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	args := []string{
		"--datadir", filepath.Join(dir, "data"),
		"--logdir", filepath.Join(dir, "logs"),
	}

	cfg, _, err := LoadConfig(args)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ListenAddr != defaultListenAddr {
		t.Fatalf("ListenAddr = %q, want default %q", cfg.ListenAddr, defaultListenAddr)
	}
	if cfg.MaxConn != defaultMaxConn {
		t.Fatalf("MaxConn = %d, want default %d", cfg.MaxConn, defaultMaxConn)
	}
	if cfg.ChainMagic != defaultChainMagic {
		t.Fatalf("ChainMagic = %x, want default %x", cfg.ChainMagic, defaultChainMagic)
	}
}

func TestLoadConfigOverridesFromArgs(t *testing.T) {
	dir := t.TempDir()
	args := []string{
		"--listen", "0.0.0.0:1234",
		"--maxconn", "10",
		"--peer", "10.0.0.1:9334",
		"--peer", "10.0.0.2:9334",
		"--chainmagic", "0xdeadbeef",
		"--datadir", filepath.Join(dir, "data"),
		"--logdir", filepath.Join(dir, "logs"),
	}

	cfg, _, err := LoadConfig(args)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ListenAddr != "0.0.0.0:1234" {
		t.Fatalf("ListenAddr = %q, want 0.0.0.0:1234", cfg.ListenAddr)
	}
	if cfg.MaxConn != 10 {
		t.Fatalf("MaxConn = %d, want 10", cfg.MaxConn)
	}
	if len(cfg.Peers) != 2 {
		t.Fatalf("Peers = %v, want 2 entries", cfg.Peers)
	}
	if cfg.ChainMagic != 0xdeadbeef {
		t.Fatalf("ChainMagic = %x, want deadbeef", cfg.ChainMagic)
	}
}

func TestLoadConfigRejectsPeerWithoutPort(t *testing.T) {
	dir := t.TempDir()
	args := []string{
		"--peer", "10.0.0.1",
		"--datadir", filepath.Join(dir, "data"),
		"--logdir", filepath.Join(dir, "logs"),
	}
	if _, _, err := LoadConfig(args); err == nil {
		t.Fatalf("LoadConfig should reject a peer address without a port")
	}
}

func TestParseChainMagicAcceptsOptional0xPrefix(t *testing.T) {
	got, err := parseChainMagic("0xFF")
	if err != nil {
		t.Fatalf("parseChainMagic: %v", err)
	}
	if got != 0xff {
		t.Fatalf("parseChainMagic(0xFF) = %x, want ff", got)
	}

	got, err = parseChainMagic("ff")
	if err != nil {
		t.Fatalf("parseChainMagic: %v", err)
	}
	if got != 0xff {
		t.Fatalf("parseChainMagic(ff) = %x, want ff", got)
	}
}
