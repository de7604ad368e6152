package config

import "context"

// SecretProvider abstracts the retrieval of secrets to support both SSM
// Parameter Store (production) and environment variables (local development).
type SecretProvider interface {
	// GetParametersBatch retrieves multiple secret values in one call to
	// avoid throttling. Returns a map of key -> plaintext value for all
	// successfully resolved parameters.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
