package rulepack

import (
	_ "embed"

	"github.com/sieve-urls/sieve/internal/registry"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Defaults returns the rule pack compiled into the binary. A fresh install
// starts from these rules; every call mints fresh keys.
func Defaults() (registry.Snapshot, error) {
	return Parse(defaultsYAML)
}
