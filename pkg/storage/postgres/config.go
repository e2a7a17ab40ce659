package postgres

import "time"

// Pool defaults applied by New to zero-valued Config fields.
const (
	DefaultMaxConns        int32 = 25
	DefaultMinConns        int32 = 2
	DefaultMaxConnLifetime       = 5 * time.Minute
)

// Config holds the connection settings of a Store.
type Config struct {
	// DSN, e.g. "postgres://feynmind:secret@db:5432/feynmind?sslmode=require".
	DSN string

	MaxConns        int32
	MinConns        int32 // capped at MaxConns
	MaxConnLifetime time.Duration

	// MigrateOnStart applies the embedded goose migrations in New.
	MigrateOnStart bool
}

func (c *Config) defaults() {
	if c.MaxConns <= 0 {
		c.MaxConns = DefaultMaxConns
	}
	if c.MinConns <= 0 {
		c.MinConns = DefaultMinConns
	}
	c.MinConns = min(c.MinConns, c.MaxConns)
	if c.MaxConnLifetime <= 0 {
		c.MaxConnLifetime = DefaultMaxConnLifetime
	}
}
