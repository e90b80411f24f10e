package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if err := c.Channel.validate("channel"); err != nil {
		return err
	}

	if c.Journal.Enabled {
		if err := c.Database.validate("database"); err != nil {
			return err
		}
		if c.Journal.BatchSize < 1 {
			return errors.New("journal.batch_size must be >= 1")
		}
		if c.Journal.BufferSize < 1 {
			return errors.New("journal.buffer_size must be >= 1")
		}
		if c.Journal.FlushInterval <= 0 {
			return errors.New("journal.flush_interval must be > 0")
		}
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

func (ch *ChannelConfig) validate(prefix string) error {
	if ch.Endpoint == "" && ch.PageURL == "" {
		return fmt.Errorf("%s.endpoint or %s.page_url is required", prefix, prefix)
	}
	if _, err := ch.ResolveEndpoint(); err != nil {
		return fmt.Errorf("%s: %w", prefix, err)
	}
	if ch.Port < 0 || ch.Port > 65535 {
		return fmt.Errorf("%s.port must be between 0 and 65535, got %d", prefix, ch.Port)
	}
	if ch.ConnectTimeout <= 0 {
		return fmt.Errorf("%s.connect_timeout must be > 0", prefix)
	}
	if ch.HeartbeatInterval < 0 {
		return fmt.Errorf("%s.heartbeat_interval must be >= 0", prefix)
	}

	r := ch.Reconnect
	if r.BaseDelay <= 0 {
		return fmt.Errorf("%s.reconnect.base_delay must be > 0", prefix)
	}
	if r.MaxDelay < r.BaseDelay {
		return fmt.Errorf("%s.reconnect.max_delay (%s) cannot be less than base_delay (%s)", prefix, r.MaxDelay, r.BaseDelay)
	}
	if r.Multiplier < 1 {
		return fmt.Errorf("%s.reconnect.multiplier must be >= 1, got %g", prefix, r.Multiplier)
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
