// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/store.go
// Summary: Load logic for the config store.

package config

import "log"

func loadLocked() error {
	p, err := configPathLocked()
	if err != nil {
		log.Printf("Config: Failed to resolve config path: %v", err)
		current = defaultConfig()
		return err
	}

	cfg, exists, readErr := readConfig(p)
	if readErr != nil {
		log.Printf("Config: Failed to read config %s: %v", p, readErr)
		cfg = make(Config)
	}

	if !exists || len(cfg) == 0 {
		cfg = defaultConfig()
		if readErr == nil {
			if err := writeConfig(p, cfg); err != nil {
				log.Printf("Config: Failed to write default config: %v", err)
				readErr = err
			}
		}
	} else {
		applyDefaults(cfg)
		debugLog.Printf("Config: Loaded config from %s", p)
	}

	current = cfg
	return readErr
}
