package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/rickgao/fleetwatch/internal/connection"
)

// ResolveEndpoint returns the channel URL without credentials.
func (ch *ChannelConfig) ResolveEndpoint() (string, error) {
	endpoint := ch.Endpoint
	if endpoint == "" {
		var err error
		endpoint, err = connection.EndpointForPage(ch.PageURL, ch.Path, ch.Port)
		if err != nil {
			return "", err
		}
	}
	// BuildURL rejects non-ws schemes.
	if _, err := connection.BuildURL(endpoint, ""); err != nil {
		return "", err
	}
	return endpoint, nil
}

// ManagerConfig converts the channel section for connection.NewManager.
func (c *Config) ManagerConfig() (connection.ManagerConfig, error) {
	endpoint, err := c.Channel.ResolveEndpoint()
	if err != nil {
		return connection.ManagerConfig{}, err
	}

	ch := c.Channel
	return connection.ManagerConfig{
		Endpoint:          endpoint,
		ConnectTimeout:    ch.ConnectTimeout,
		HeartbeatInterval: ch.HeartbeatInterval,
		PongTimeout:       max(ch.PongTimeout, 0),
		QueueLimit:        max(ch.QueueLimit, 0),
		Backoff: connection.BackoffConfig{
			BaseDelay:   ch.Reconnect.BaseDelay,
			MaxDelay:    ch.Reconnect.MaxDelay,
			Multiplier:  ch.Reconnect.Multiplier,
			MaxAttempts: max(ch.Reconnect.MaxAttempts, 0),
		},
	}, nil
}

// TransportConfig converts the channel section for the WebSocket transport.
func (c *Config) TransportConfig() connection.TransportConfig {
	return connection.TransportConfig{
		HandshakeTimeout: c.Channel.HandshakeTimeout,
		WriteTimeout:     c.Channel.WriteTimeout,
		ReadLimit:        max(c.Channel.ReadLimit, 0),
	}
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(l.Level))); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", l.Level, err)
	}
	return level, nil
}
