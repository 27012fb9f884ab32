package foundry

import (
	"context"

	"interviewer/pkg/config"
)

// ConfigSource supplies the connection configuration on Init.
type ConfigSource interface {
	Load(ctx context.Context) (config.Connection, error)
}

// SourceFunc adapts a function to ConfigSource.
type SourceFunc func(ctx context.Context) (config.Connection, error)

// Load implements ConfigSource.
func (f SourceFunc) Load(ctx context.Context) (config.Connection, error) {
	return f(ctx)
}

// StaticSource always returns conn.
func StaticSource(conn config.Connection) ConfigSource {
	return SourceFunc(func(_ context.Context) (config.Connection, error) {
		return conn, nil
	})
}

// FileSource loads a JSON config file plus FOUNDRY_* overrides on every call.
// An empty path uses defaults and the environment only.
func FileSource(path string) ConfigSource {
	return SourceFunc(func(_ context.Context) (config.Connection, error) {
		return config.Load(path)
	})
}
