package config

import (
	_ "embed"
)

// dashboard config
//
//go:embed default.config.yml
var DefaultConfigYml string

// built-in chain registry
//
//go:embed chains.yml
var ChainsYml string
