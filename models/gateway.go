package models

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Gateway is the narrow capability every generative backend exposes: one
// request in, one untyped text blob out. Callers must route the returned text
// through the response parser and never treat it as executable host code.
type Gateway interface {
	Complete(ctx context.Context, request GenerationRequest) (string, error)
}

// GatewayFunc adapts a plain function to Gateway.
type GatewayFunc func(ctx context.Context, request GenerationRequest) (string, error)

func (f GatewayFunc) Complete(ctx context.Context, request GenerationRequest) (string, error) {
	return f(ctx, request)
}

// ErrMissingAPIKey is returned at call time when the provider credential is
// absent from the environment.
var ErrMissingAPIKey = errors.New("missing API key")

// GatewayError is a non-success status returned by a provider.
type GatewayError struct {
	Provider string
	Status   int
	Body     string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s API error: status %d, body: %s", e.Provider, e.Status, e.Body)
}

// LookupAPIKey reads the named environment variable, failing with
// ErrMissingAPIKey when it is unset or empty.
func LookupAPIKey(envName string) (string, error) {
	key := os.Getenv(envName)
	if key == "" {
		return "", fmt.Errorf("%w: %s is not set", ErrMissingAPIKey, envName)
	}
	return key, nil
}
