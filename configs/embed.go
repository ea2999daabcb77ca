package configs

import "embed"

// PresetDefaults contains the shipped session preset YAML files.
//
//go:embed presets/*.yaml
var PresetDefaults embed.FS
