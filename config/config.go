// Copyright (c) 2024 The sharenode developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package config loads the node's static settings from the command line
// and an optional INI file using a two-phase parse: a pre-parse that only
// cares about the config-file path and help flags, followed by a full
// parse seeded from the INI file's values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/sharepool/sharenode/wire"
)

const (
	defaultConfigFilename = "sharenode.conf"
	defaultDataDirname    = "data"
	defaultLogDirname     = "logs"
	defaultListenAddr     = ":9334"
	defaultMaxConn        = uint32(125)
	defaultDebugLevel     = "info"
	defaultChainMagic     = wire.ProtocolMagic(0xf9beb4d9f9beb4d9)
)

// Config carries the coordinator's and node's static settings, populated
// by LoadConfig from the command line and an optional INI file.
type Config struct {
	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file"`

	ListenAddr string   `long:"listen" description:"Address to listen for incoming peer connections"`
	Port       uint16   `long:"port" description:"Port to advertise to peers as our own"`
	MaxConn    uint32   `long:"maxconn" description:"Maximum number of connected peers"`
	Peers      []string `long:"peer" description:"Seed peer address (host:port); may be given multiple times"`
	ChainMagicHex string `long:"chainmagic" description:"Protocol magic, as hex, identifying the share chain network"`
	DataDir    string   `short:"b" long:"datadir" description:"Directory to store share-chain data"`
	LogDir     string   `long:"logdir" description:"Directory to log output"`
	DebugLevel string   `short:"d" long:"debuglevel" description:"Logging level: trace, debug, info, warn, error, critical, or subsystem=level,..."`
	Proxy      string   `long:"proxy" description:"Connect via SOCKS proxy (host:port)"`

	// ChainMagic is derived from ChainMagicHex after parsing; it carries no
	// flag/ini tag of its own since go-flags only binds fields that declare
	// short/long names.
	ChainMagic wire.ProtocolMagic
}

func defaultConfig() Config {
	return Config{
		ConfigFile: defaultConfigPath(),
		ListenAddr: defaultListenAddr,
		MaxConn:    defaultMaxConn,
		DataDir:    defaultDataDirname,
		LogDir:     defaultLogDirname,
		DebugLevel: defaultDebugLevel,
		ChainMagic: defaultChainMagic,
	}
}

func defaultConfigPath() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return defaultConfigFilename
	}
	return filepath.Join(dir, ".sharenode", defaultConfigFilename)
}

func newConfigParser(cfg *Config, options flags.Options) *flags.Parser {
	return flags.NewParser(cfg, options)
}

// LoadConfig parses args (normally os.Args[1:]) against the default
// configuration, honoring a -C/--configfile INI file if one exists. It
// returns the assembled Config plus any non-flag positional arguments.
func LoadConfig(args []string) (*Config, []string, error) {
	preCfg := defaultConfig()
	preParser := newConfigParser(&preCfg, flags.HelpFlag|flags.PassDoubleDash)
	_, err := preParser.ParseArgs(args)
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return nil, nil, err
		}
	}

	cfg := defaultConfig()
	if preCfg.ConfigFile != "" {
		if _, statErr := os.Stat(preCfg.ConfigFile); statErr == nil {
			parser := newConfigParser(&cfg, flags.Default)
			if iniErr := flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile); iniErr != nil {
				return nil, nil, fmt.Errorf("config: parsing %s: %w", preCfg.ConfigFile, iniErr)
			}
		} else {
			log.Debugf("config file %s not found, using defaults", preCfg.ConfigFile)
		}
	}

	parser := newConfigParser(&cfg, flags.Default)
	remaining, err := parser.ParseArgs(args)
	if err != nil {
		return nil, nil, err
	}

	if cfg.ChainMagicHex != "" {
		magic, parseErr := parseChainMagic(cfg.ChainMagicHex)
		if parseErr != nil {
			return nil, nil, fmt.Errorf("config: %w", parseErr)
		}
		cfg.ChainMagic = magic
	}

	if err := cfg.validate(); err != nil {
		return nil, nil, err
	}

	for _, dir := range []string{cfg.DataDir, cfg.LogDir} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, nil, fmt.Errorf("config: creating %s: %w", dir, err)
		}
	}

	return &cfg, remaining, nil
}

func parseChainMagic(hexStr string) (wire.ProtocolMagic, error) {
	hexStr = strings.TrimPrefix(hexStr, "0x")
	v, err := strconv.ParseUint(hexStr, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chainmagic %q: %w", hexStr, err)
	}
	return wire.ProtocolMagic(v), nil
}

func (cfg *Config) validate() error {
	if cfg.ListenAddr == "" {
		return fmt.Errorf("config: listen address must not be empty")
	}
	for _, p := range cfg.Peers {
		if !strings.Contains(p, ":") {
			return fmt.Errorf("config: peer address %q must include a port", p)
		}
	}
	return nil
}
