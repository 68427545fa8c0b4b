package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the runtime configuration of the CLI and the worker.
// Provider credentials and model defaults live in Settings instead.
type Config struct {
	Completion ProviderChoice `mapstructure:"completion"`
	Embedding  ProviderChoice `mapstructure:"embedding"`
	Vector     VectorConfig   `mapstructure:"vector"`
	Temporal   TemporalConfig `mapstructure:"temporal"`
	Log        LogConfig      `mapstructure:"log"`
	Tracing    TracingConfig  `mapstructure:"tracing"`
	Server     ServerConfig   `mapstructure:"server"`
}

// ProviderChoice names the provider a command uses when no flag overrides it.
type ProviderChoice struct {
	Provider string `mapstructure:"provider"`
}

type VectorConfig struct {
	// Backend is "qdrant" or "timescale".
	Backend    string `mapstructure:"backend"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`

	TableName             string `mapstructure:"table_name"`
	EmbeddingDimensions   int    `mapstructure:"embedding_dimensions"`
	TimePartitionInterval string `mapstructure:"time_partition_interval"`
}

type TemporalConfig struct {
	Host      string `mapstructure:"host"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
	Insecure    bool   `mapstructure:"insecure"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

var vectorBackends = map[string]bool{"qdrant": true, "timescale": true, "memory": true}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	if c.Completion.Provider == "" {
		warnings = append(warnings, "completion.provider is empty")
	}
	if c.Embedding.Provider == "" {
		warnings = append(warnings, "embedding.provider is empty")
	}

	if c.Vector.Backend != "" && !vectorBackends[c.Vector.Backend] {
		warnings = append(warnings, fmt.Sprintf("vector backend %q is not one of qdrant, timescale, memory", c.Vector.Backend))
	}
	if c.Vector.EmbeddingDimensions < 0 {
		warnings = append(warnings, fmt.Sprintf("vector embedding_dimensions %d is negative", c.Vector.EmbeddingDimensions))
	}

	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		warnings = append(warnings, "tracing is enabled but tracing.endpoint is empty")
	}

	return warnings
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("completion.provider", "openai")
	v.SetDefault("embedding.provider", "openai")

	v.SetDefault("vector.backend", "qdrant")
	v.SetDefault("vector.host", "localhost")
	v.SetDefault("vector.port", 6334)
	v.SetDefault("vector.collection", "embeddings")
	v.SetDefault("vector.table_name", "embeddings")
	v.SetDefault("vector.embedding_dimensions", 1024)
	v.SetDefault("vector.time_partition_interval", "7 days")

	v.SetDefault("temporal.host", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "llmfactory-index")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("tracing.service_name", "llmfactory")
	v.SetDefault("server.addr", ":8080")
}

// Load reads configuration from an optional file and LLMFACTORY_* environment
// variables. An empty path means defaults plus environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("LLMFACTORY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	return &cfg, nil
}
