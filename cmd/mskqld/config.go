package main

import (
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

const defaultPort = 5433

// fileConfig is the shape of the optional -config YAML file
// (SPEC_FULL.md A.1): non-wire-protocol tuning knobs layered under the
// flag/env/YAML/default precedence.
type fileConfig struct {
	Port                     int    `yaml:"port"`
	LogLevel                 string `yaml:"log_level"`
	BlockCapacity            int    `yaml:"block_capacity"`
	RecursiveCTEIterationCap int    `yaml:"recursive_cte_iteration_cap"`
	MetricsAddr              string `yaml:"metrics_addr"`
}

// config is the resolved, effective configuration after applying
// flag > env > YAML > compiled-default precedence (SPEC_FULL.md A.1).
// This never changes the wire protocol contract in spec §6 — only the
// listen port, which spec §6 itself makes configurable.
type config struct {
	Port                     int
	LogLevel                 logrus.Level
	BlockCapacity            int
	RecursiveCTEIterationCap int
	MetricsAddr              string
}

func loadConfig(flagPort int, flagConfigPath string) (config, error) {
	cfg := config{
		Port:                     defaultPort,
		LogLevel:                 logrus.InfoLevel,
		BlockCapacity:            0, // 0 means "use the compiled constant"
		RecursiveCTEIterationCap: 0,
	}

	if flagConfigPath != "" {
		data, err := os.ReadFile(flagConfigPath)
		if err != nil {
			return cfg, err
		}
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return cfg, err
		}
		if fc.Port != 0 {
			cfg.Port = fc.Port
		}
		if fc.LogLevel != "" {
			if lvl, err := logrus.ParseLevel(fc.LogLevel); err == nil {
				cfg.LogLevel = lvl
			}
		}
		cfg.BlockCapacity = fc.BlockCapacity
		cfg.RecursiveCTEIterationCap = fc.RecursiveCTEIterationCap
		cfg.MetricsAddr = fc.MetricsAddr
	}

	if v, ok := os.LookupEnv("MSKQL_PORT"); ok {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}

	if flagPort != 0 {
		cfg.Port = flagPort
	}

	return cfg, nil
}
