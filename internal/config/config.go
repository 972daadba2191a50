// Package config loads mplan settings from defaults, an optional
// mplan.yaml, and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/joss/mplan/internal/graph"
)

// EnvPrefix prefixes every environment override, e.g. MPLAN_SERVER_ADDR.
const EnvPrefix = "MPLAN"

// Config is the full mplan configuration.
type Config struct {
	Graph   GraphConfig   `mapstructure:"graph"`
	Plan    PlanConfig    `mapstructure:"plan"`
	Server  ServerConfig  `mapstructure:"server"`
	History HistoryConfig `mapstructure:"history"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// GraphConfig configures the graph database connection.
type GraphConfig struct {
	// URI is the bolt URI (NEO4J_URI is honoured for compatibility)
	URI      string `mapstructure:"uri"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	Retries  int    `mapstructure:"retries"`

	// CacheSize and CacheTTLSeconds size the server's query cache
	CacheSize       int `mapstructure:"cache_size"`
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds"`
}

// PlanConfig holds planning defaults.
type PlanConfig struct {
	MinClusterWeight float64 `mapstructure:"min_cluster_weight"`
	Format           string  `mapstructure:"format"`
}

// ServerConfig configures `mplan serve`.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// HistoryConfig configures the plan history database.
type HistoryConfig struct {
	Path  string `mapstructure:"path"`
	Limit int    `mapstructure:"limit"`
}

// LoggingConfig configures structured logs.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Driver returns the graph driver settings.
func (g GraphConfig) Driver() graph.Config {
	return graph.Config{URI: g.URI, Username: g.User, Password: g.Password, Database: g.Database}
}

// CacheTTL returns the query cache TTL.
func (g GraphConfig) CacheTTL() time.Duration {
	return time.Duration(g.CacheTTLSeconds) * time.Second
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Graph: GraphConfig{
			URI:             "bolt://localhost:7687",
			Retries:         3,
			CacheSize:       256,
			CacheTTLSeconds: 60,
		},
		Plan:    PlanConfig{MinClusterWeight: 0, Format: "text"},
		Server:  ServerConfig{Addr: ":8088"},
		History: HistoryConfig{Path: Path("history.db"), Limit: 20},
		Logging: LoggingConfig{Level: "warn"},
	}
}

// SetDefaults registers default values with v.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("graph.uri", d.Graph.URI)
	v.SetDefault("graph.user", d.Graph.User)
	v.SetDefault("graph.password", d.Graph.Password)
	v.SetDefault("graph.database", d.Graph.Database)
	v.SetDefault("graph.retries", d.Graph.Retries)
	v.SetDefault("graph.cache_size", d.Graph.CacheSize)
	v.SetDefault("graph.cache_ttl_seconds", d.Graph.CacheTTLSeconds)

	v.SetDefault("plan.min_cluster_weight", d.Plan.MinClusterWeight)
	v.SetDefault("plan.format", d.Plan.Format)

	v.SetDefault("server.addr", d.Server.Addr)

	v.SetDefault("history.path", d.History.Path)
	v.SetDefault("history.limit", d.History.Limit)

	v.SetDefault("logging.level", d.Logging.Level)
}

// New returns a viper instance with defaults and environment bindings.
// MPLAN_GRAPH_URI style variables override every key; the NEO4J_*
// variables shared with other graph tools are accepted as fallbacks.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("graph.uri", EnvPrefix+"_GRAPH_URI", "NEO4J_URI")
	_ = v.BindEnv("graph.user", EnvPrefix+"_GRAPH_USER", "NEO4J_USER")
	_ = v.BindEnv("graph.password", EnvPrefix+"_GRAPH_PASSWORD", "NEO4J_PASSWORD")
	_ = v.BindEnv("graph.database", EnvPrefix+"_GRAPH_DATABASE", "NEO4J_DATABASE")
	_ = v.BindEnv("logging.level", EnvPrefix+"_LOGGING_LEVEL", EnvPrefix+"_LOG_LEVEL")
	return v
}

// ReadFile loads configFile into v, or mplan.yaml from the working
// directory or Dir() when configFile is empty. A missing default file is
// not an error.
func ReadFile(v *viper.Viper, configFile string) error {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("mplan")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(Dir())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Load reads the configuration from v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, errs
	}
	return &cfg, nil
}

// Dir returns the mplan home directory ($MPLAN_HOME or ~/.mplan).
func Dir() string {
	if home := os.Getenv(EnvPrefix + "_HOME"); home != "" {
		return home
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mplan"
	}
	return filepath.Join(home, ".mplan")
}

// Path returns a path under the mplan home directory.
func Path(parts ...string) string {
	return filepath.Join(append([]string{Dir()}, parts...)...)
}
