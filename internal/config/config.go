package config

import "context"

type contextKey struct{}

// WithContext returns a new context carrying the given Config.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, contextKey{}, cfg)
}

// FromContext retrieves the Config from the context.
func FromContext(ctx context.Context) *Config {
	cfg, _ := ctx.Value(contextKey{}).(*Config)
	return cfg
}

// Config holds all configuration for the chat service.
type Config struct {
	// Datastore backend type: "sqlite" or "postgres".
	DatastoreType string

	// SQLite database file path. ":memory:" opens an in-memory database.
	DBPath string

	// Postgres connection URL.
	DBURL string

	// Connection pool sizing (postgres).
	DBMaxOpenConns int
	DBMaxIdleConns int

	// Run datastore migrations on startup.
	DatastoreMigrateAtStart bool

	// Cache backend type: "ristretto" or "none".
	CacheType string

	// Maximum number of channels held by the channel cache.
	CacheMaxEntries int64

	// HTTP server port.
	Port int

	// Log HTTP requests for every path, including /health, /ready, /metrics.
	AccessLogAll bool

	// Constant labels added to every Prometheus metric, as "k=v,k2=v2".
	MetricsLabels string

	// Log file path. When set, logs are also written here and the /v1/logs
	// endpoint serves its tail.
	LogFilePath string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		DatastoreType:           "sqlite",
		DBPath:                  "./data/chat.db",
		DBMaxOpenConns:          10,
		DBMaxIdleConns:          5,
		DatastoreMigrateAtStart: true,
		CacheType:               "ristretto",
		CacheMaxEntries:         10_000,
		Port:                    8000,
	}
}
