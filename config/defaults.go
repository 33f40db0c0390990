// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/defaults.go
// Summary: Default values for texelprobe.json.
// The embedded defaults/texelprobe.json is the single source of truth.

package config

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/framegrace/texelprobe/defaults"
)

var (
	embeddedOnce sync.Once
	embedded     Config
)

func embeddedDefaults() Config {
	embeddedOnce.Do(func() {
		if err := json.Unmarshal(defaults.Config(), &embedded); err != nil {
			log.Printf("Config: Embedded defaults are invalid: %v", err)
			embedded = make(Config)
		}
	})
	return embedded
}

func defaultConfig() Config {
	return Clone(embeddedDefaults())
}

// applyDefaults fills every missing key from the embedded defaults without
// touching values already present.
func applyDefaults(cfg Config) {
	if cfg == nil {
		return
	}
	for name := range embeddedDefaults() {
		cfg.RegisterDefaults(name, embeddedDefaults().Section(name))
	}
}
