package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultInstanceID         = "fleetwatch"
	DefaultChannelPath        = "/ws/status"
	DefaultConnectTimeout     = 10 * time.Second
	DefaultHandshakeTimeout   = 10 * time.Second
	DefaultWriteTimeout       = 5 * time.Second
	DefaultHeartbeatInterval  = 30 * time.Second
	DefaultPongTimeout        = 10 * time.Second
	DefaultReadLimit          = 1 << 20
	DefaultQueueLimit         = 1000
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 30 * time.Second
	DefaultReconnectFactor    = 2.0
	DefaultMaxAttempts        = 5
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 4
	DefaultMinConns           = 1
	DefaultBatchSize          = 500
	DefaultFlushInterval      = 1 * time.Second
	DefaultBufferSize         = 10000
	DefaultMetricsPort        = 9090
	DefaultMetricsPath        = "/metrics"
	DefaultHealthPath         = "/health"
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "text"
)

func (c *Config) applyDefaults() {
	if c.Instance.ID == "" {
		c.Instance.ID = DefaultInstanceID
	}

	// Channel defaults
	ch := &c.Channel
	if ch.Path == "" {
		ch.Path = DefaultChannelPath
	}
	if ch.ConnectTimeout == 0 {
		ch.ConnectTimeout = DefaultConnectTimeout
	}
	if ch.HandshakeTimeout == 0 {
		ch.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if ch.WriteTimeout == 0 {
		ch.WriteTimeout = DefaultWriteTimeout
	}
	if ch.HeartbeatInterval == 0 {
		ch.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if ch.PongTimeout == 0 {
		ch.PongTimeout = DefaultPongTimeout
	}
	if ch.ReadLimit == 0 {
		ch.ReadLimit = DefaultReadLimit
	}
	if ch.QueueLimit == 0 {
		ch.QueueLimit = DefaultQueueLimit
	}
	if ch.Reconnect.BaseDelay == 0 {
		ch.Reconnect.BaseDelay = DefaultReconnectBaseDelay
	}
	if ch.Reconnect.MaxDelay == 0 {
		ch.Reconnect.MaxDelay = DefaultReconnectMaxDelay
	}
	if ch.Reconnect.Multiplier == 0 {
		ch.Reconnect.Multiplier = DefaultReconnectFactor
	}
	if ch.Reconnect.MaxAttempts == 0 {
		ch.Reconnect.MaxAttempts = DefaultMaxAttempts
	}

	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	// Journal defaults
	if c.Journal.BatchSize == 0 {
		c.Journal.BatchSize = DefaultBatchSize
	}
	if c.Journal.FlushInterval == 0 {
		c.Journal.FlushInterval = DefaultFlushInterval
	}
	if c.Journal.BufferSize == 0 {
		c.Journal.BufferSize = DefaultBufferSize
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if c.Metrics.HealthPath == "" {
		c.Metrics.HealthPath = DefaultHealthPath
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}
