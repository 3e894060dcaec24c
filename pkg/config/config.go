package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var valid = validator.New()

// Instance is one opaque check-instance option map. Each check decodes
// the options it recognizes at construction time.
type Instance map[string]interface{}

// Config aggregates every subsystem's configuration. It is read-only
// after LoadConfigWithCli returns and may be shared across goroutines.
type Config struct {
	Agent     AgentConfig           `yaml:"agent" mapstructure:"agent"`
	Forwarder ForwarderConfig       `yaml:"forwarder" mapstructure:"forwarder"`
	API       APIConfig             `yaml:"api" mapstructure:"api"`
	Statsd    StatsdConfig          `yaml:"statsd" mapstructure:"statsd"`
	Checks    map[string][]Instance `yaml:"checks" mapstructure:"checks"`
	Log       ZapLogConfig          `yaml:"log" mapstructure:"log"`
}

// AgentConfig drives the collection runner.
type AgentConfig struct {
	Hostname              string        `yaml:"hostname" mapstructure:"hostname" env:"AGENT_HOSTNAME"`
	MinCollectionInterval time.Duration `yaml:"min_collection_interval" mapstructure:"min_collection_interval" env:"AGENT_MIN_COLLECTION_INTERVAL" validate:"required,gt=0"`
	HostMetadataInterval  time.Duration `yaml:"host_metadata_interval" mapstructure:"host_metadata_interval" env:"AGENT_HOST_METADATA_INTERVAL" validate:"required,gt=0"`
	Tags                  []string      `yaml:"tags" mapstructure:"tags"`
}

// ForwarderConfig configures the outbound transaction worker.
type ForwarderConfig struct {
	Endpoint     string        `yaml:"endpoint" mapstructure:"endpoint" env:"FORWARDER_ENDPOINT"`
	APIKey       string        `yaml:"api_key" mapstructure:"api_key" env:"FORWARDER_API_KEY"`
	Site         string        `yaml:"site" mapstructure:"site" env:"FORWARDER_SITE"`
	Proxy        string        `yaml:"proxy" mapstructure:"proxy" env:"FORWARDER_PROXY"`
	FlushTimeout time.Duration `yaml:"flush_timeout" mapstructure:"flush_timeout" validate:"required,gt=0"`
	QueueSize    int           `yaml:"queue_size" mapstructure:"queue_size" validate:"required,gt=0"`
	Retries      int           `yaml:"retries" mapstructure:"retries" validate:"gte=0"`
}

// APIConfig configures the local status/telemetry HTTP server.
type APIConfig struct {
	BindHost     string        `yaml:"bind_host" mapstructure:"bind_host" env:"API_BIND_HOST" validate:"required"`
	Port         int           `yaml:"port" mapstructure:"port" env:"API_PORT" validate:"required,gt=0,lte=65535"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" validate:"required,gt=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" validate:"required,gt=0"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout" validate:"required,gt=0"`
}

// StatsdConfig configures the secondary high-volume metrics listener.
type StatsdConfig struct {
	Enabled       bool          `yaml:"enabled" mapstructure:"enabled" env:"STATSD_ENABLED"`
	BindHost      string        `yaml:"bind_host" mapstructure:"bind_host" env:"STATSD_BIND_HOST" validate:"required"`
	Port          int           `yaml:"port" mapstructure:"port" env:"STATSD_PORT" validate:"required,gt=0,lte=65535"`
	FlushInterval time.Duration `yaml:"flush_interval" mapstructure:"flush_interval" validate:"required,gt=0"`
	PacketBuffer  int           `yaml:"packet_buffer" mapstructure:"packet_buffer" validate:"required,gt=0"`
}

// ZapLogConfig is the logging configuration consumed by pkg/logger.
type ZapLogConfig struct {
	Level     string `yaml:"level" mapstructure:"level" env:"LOG_LEVEL" validate:"required,oneof=debug info warn error"`
	Format    string `yaml:"format" mapstructure:"format" env:"LOG_FORMAT" validate:"required,oneof=json console"`
	Path      string `yaml:"path" mapstructure:"path" env:"LOG_PATH" validate:"required"`
	MaxSize   int    `yaml:"max_size" mapstructure:"max_size" env:"LOG_MAX_SIZE" validate:"required,gt=0"`
	MaxBackup int    `yaml:"max_backup" mapstructure:"max_backup" env:"LOG_MAX_BACKUP" validate:"gte=0"`
	MaxAge    int    `yaml:"max_age" mapstructure:"max_age" env:"LOG_MAX_AGE" validate:"gte=0"`
	Compress  bool   `yaml:"compress" mapstructure:"compress" env:"LOG_COMPRESS"`
}

// NewDefaultConfig returns a config with every field at its documented
// default so a missing file or flag never leaves a zero value behind.
func NewDefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			MinCollectionInterval: 15 * time.Second,
			HostMetadataInterval:  4 * time.Hour,
			Tags:                  []string{},
		},
		Forwarder: ForwarderConfig{
			FlushTimeout: 20 * time.Second,
			QueueSize:    100,
			Retries:      2,
		},
		API: APIConfig{
			BindHost:     "localhost",
			Port:         5001,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  15 * time.Second,
		},
		Statsd: StatsdConfig{
			Enabled:       false,
			BindHost:      "localhost",
			Port:          8125,
			FlushInterval: 10 * time.Second,
			PacketBuffer:  8192,
		},
		Checks: map[string][]Instance{},
		Log: ZapLogConfig{
			Level:     "info",
			Format:    "json",
			Path:      "./logs",
			MaxSize:   100,
			MaxBackup: 30,
			MaxAge:    7,
			Compress:  true,
		},
	}
}

// LoadConfigWithCli merges flags, the optional YAML file named by
// --config and environment variables into a validated Config.
// Precedence: flags > file > env > defaults.
func LoadConfigWithCli(cmd *cobra.Command) (*Config, error) {
	cfg := NewDefaultConfig()
	v := viper.New()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	configFile, _ := cmd.Flags().GetString("config")
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	decoderConfig := &mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	}
	decoder, err := mapstructure.NewDecoder(decoderConfig)
	if err != nil {
		return nil, fmt.Errorf("new decoder: %w", err)
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate runs tag validation plus each section's business rules.
func (c *Config) Validate() error {
	if err := valid.Struct(c); err != nil {
		return err
	}
	if err := c.Agent.Validate(); err != nil {
		return err
	}
	if err := c.Forwarder.Validate(); err != nil {
		return err
	}
	if err := c.API.Validate(); err != nil {
		return err
	}
	if err := c.Statsd.Validate(); err != nil {
		return err
	}
	return c.Log.Validate()
}
