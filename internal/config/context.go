package config

import (
	"context"
	"errors"
)

// contextKey is an unexported type for context keys to prevent collisions
type contextKey int

const (
	configKey contextKey = iota
)

// ErrNoConfig is returned when the configuration is not found in context
var ErrNoConfig = errors.New("configuration not found in context")

// WithConfig returns a new context with the configuration set
func WithConfig(parent context.Context, cfg *Config) context.Context {
	return context.WithValue(parent, configKey, cfg)
}

// FromContext returns the configuration from the context
func FromContext(ctx context.Context) (*Config, error) {
	v := ctx.Value(configKey)
	if v == nil {
		return nil, ErrNoConfig
	}
	cfg, ok := v.(*Config)
	if !ok || cfg == nil {
		return nil, ErrNoConfig
	}
	return cfg, nil
}

// MustFromContext returns the configuration or panics if not found
func MustFromContext(ctx context.Context) *Config {
	cfg, err := FromContext(ctx)
	if err != nil {
		panic(err)
	}
	return cfg
}
