package config

import (
	"context"
	"os"
)

// EnvVarProvider resolves secrets straight from process environment
// variables. It is the provider used in local development and CI, where the
// Stripe keys and database credentials arrive via .env (loaded by godotenv)
// rather than a parameter store.
type EnvVarProvider struct{}

// NewEnvVarProvider creates a new EnvVarProvider.
func NewEnvVarProvider() *EnvVarProvider {
	return &EnvVarProvider{}
}

// GetParametersBatch looks each key up with os.LookupEnv. Keys absent from
// the environment are left out of the result; the loader treats an absent
// secret the same as an empty one and fails validation if it was required.
func (p *EnvVarProvider) GetParametersBatch(_ context.Context, keys []string) (map[string]string, error) {
	resolved := make(map[string]string, len(keys))
	for _, key := range keys {
		value, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		resolved[key] = value
	}
	return resolved, nil
}
