// Package config holds the shared configuration plumbing for Ember
// commands: environment parsing into tagged structs and fatal CLI exits.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ParseEnv fills target from EMBER_* environment variables according to its
// struct tags. Flag registration happens afterwards so flags win over env.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
