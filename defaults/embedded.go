// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: defaults/embedded.go
// Summary: Embedded default configuration file.

package defaults

import _ "embed"

//go:embed texelprobe.json
var config []byte

// Config returns the embedded texelprobe.json.
func Config() []byte {
	return append([]byte(nil), config...)
}
