package health

import (
	"context"
	"errors"
	"time"
)

const cipherProbe = "carevault-health-probe"

// Database pings the record store. Critical.
func Database(name string, ping func(context.Context) error) *Check {
	return &Check{
		Name:        name,
		Description: "record store reachable",
		Critical:    true,
		Timeout:     5 * time.Second,
		Probe: func(ctx context.Context) (Status, error) {
			if err := ping(ctx); err != nil {
				return StatusUnhealthy, err
			}
			return StatusHealthy, nil
		},
	}
}

// Cipher seals a fixed probe value and opens it again. Critical.
func Cipher(name string, seal, open func(string) (string, error)) *Check {
	return &Check{
		Name:        name,
		Description: "field cipher round trip",
		Critical:    true,
		Timeout:     time.Second,
		Probe: func(ctx context.Context) (Status, error) {
			token, err := seal(cipherProbe)
			if err != nil {
				return StatusUnhealthy, err
			}
			plaintext, err := open(token)
			if err != nil {
				return StatusUnhealthy, err
			}
			if plaintext != cipherProbe {
				return StatusUnhealthy, errors.New("cipher round trip returned a different value")
			}
			return StatusHealthy, nil
		},
	}
}

// SecretStore probes a managed secret store. The key is loaded once at
// startup, so an unreachable store degrades the service rather than failing it.
func SecretStore(name string, probe func(context.Context) error) *Check {
	return &Check{
		Name:        name,
		Description: "managed secret store reachable",
		Timeout:     10 * time.Second,
		Probe: func(ctx context.Context) (Status, error) {
			if err := probe(ctx); err != nil {
				return StatusDegraded, err
			}
			return StatusHealthy, nil
		},
	}
}
