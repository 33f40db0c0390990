// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/config.go
// Summary: Process-wide configuration store for texelprobe.

package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
)

const configName = "texelprobe.json"

// Section names.
const (
	SectionHarness  = "harness"
	SectionScreen   = "screen"
	SectionDaemon   = "daemon"
	SectionEventlog = "eventlog"
	SectionOracle   = "oracle"
)

// Config stores configuration sections as JSON-compatible data.
type Config map[string]interface{}

// Section stores key/value pairs for a configuration section.
type Section map[string]interface{}

var (
	mu      sync.RWMutex
	once    sync.Once
	current Config
	path    string
	loadErr error
)

// Err returns the most recent load error.
func Err() error {
	once.Do(initStore)
	mu.RLock()
	defer mu.RUnlock()
	return loadErr
}

// Get returns the active configuration. The first call loads it from
// UseFile's path or the user config directory.
func Get() Config {
	once.Do(initStore)
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// UseFile points the store at an explicit file and reloads from it.
func UseFile(p string) error {
	mu.Lock()
	path = p
	mu.Unlock()
	once.Do(initStore)
	return Reload()
}

// Reload reads the configuration again from disk.
func Reload() error {
	once.Do(initStore)
	mu.Lock()
	defer mu.Unlock()
	loadErr = loadLocked()
	return loadErr
}

// Save writes the active configuration to disk.
func Save() error {
	once.Do(initStore)
	mu.Lock()
	defer mu.Unlock()
	p, err := configPathLocked()
	if err != nil {
		return err
	}
	return writeConfig(p, current)
}

// Set replaces the in-memory configuration. Missing defaults are filled in.
func Set(cfg Config) {
	once.Do(initStore)
	mu.Lock()
	defer mu.Unlock()
	current = Clone(cfg)
	applyDefaults(current)
}

// Clone copies cfg and each of its sections.
func Clone(cfg Config) Config {
	out := make(Config, len(cfg))
	for name, raw := range cfg {
		if section := cfg.Section(name); section != nil {
			copied := make(Section, len(section))
			for k, v := range section {
				copied[k] = v
			}
			out[name] = copied
			continue
		}
		out[name] = raw
	}
	return out
}

func initStore() {
	mu.Lock()
	defer mu.Unlock()
	loadErr = loadLocked()
}

func readConfig(p string) (Config, bool, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, true, err
	}
	return cfg, true, nil
}

func writeConfig(p string, cfg Config) error {
	if cfg == nil {
		cfg = make(Config)
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(p, data, 0644); err != nil {
		return err
	}
	log.Printf("Config: Wrote %s", p)
	return nil
}
