package config

import "time"

// Config is the root configuration for a fleetwatch instance.
type Config struct {
	Instance InstanceConfig `yaml:"instance"`
	Channel  ChannelConfig  `yaml:"channel"`
	Database DBConfig       `yaml:"database"`
	Journal  JournalConfig  `yaml:"journal"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// InstanceConfig identifies this watcher.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// ChannelConfig holds status channel settings. Either Endpoint or PageURL
// must be set; PageURL derives the endpoint the way the dashboard does.
type ChannelConfig struct {
	Endpoint string `yaml:"endpoint"`
	PageURL  string `yaml:"page_url"`
	Path     string `yaml:"path"`
	Port     int    `yaml:"port"`
	Token    string `yaml:"token"`

	ConnectTimeout    time.Duration `yaml:"connect_timeout"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	PongTimeout       time.Duration `yaml:"pong_timeout"` // negative disables stall detection
	ReadLimit         int64         `yaml:"read_limit"`
	QueueLimit        int           `yaml:"queue_limit"` // negative means unbounded

	Reconnect ReconnectConfig `yaml:"reconnect"`
}

// ReconnectConfig holds the backoff policy.
type ReconnectConfig struct {
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
	Multiplier  float64       `yaml:"multiplier"`
	MaxAttempts int           `yaml:"max_attempts"` // negative means retry forever
}

// DBConfig holds the journal database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// JournalConfig holds event journal settings.
type JournalConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// MetricsConfig holds Prometheus metrics and health endpoint settings.
type MetricsConfig struct {
	Port       int    `yaml:"port"`
	Path       string `yaml:"path"`
	HealthPath string `yaml:"health_path"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}
