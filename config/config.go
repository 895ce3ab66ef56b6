// Package config provides configuration management for PCSC using Viper.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/percona/percona-clustersync-couchdb/errors"
)

// Config holds all PCSC configuration.
type Config struct {
	Source      string `mapstructure:"source"`
	Destination string `mapstructure:"destination"`
	// ConfigFile is the INI file read when source or destination is not set.
	ConfigFile string `mapstructure:"config"`

	Log LogConfig `mapstructure:",squash"`

	Client ClientConfig `mapstructure:",squash"`

	NumParallelDatabases int `mapstructure:"num-parallel-databases" validate:"gte=1,lte=64"`

	IncludeDatabases []string `mapstructure:"include-databases" validate:"dive,dbpattern"`
	ExcludeDatabases []string `mapstructure:"exclude-databases" validate:"dive,dbpattern"`

	// CloneSyncUsers replicates the content of the users database during clone.
	CloneSyncUsers bool `mapstructure:"clone-sync-users"`

	MetricsPushURL string `mapstructure:"metrics-push-url" validate:"omitempty,url"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level   string `mapstructure:"log-level" validate:"omitempty,oneof=trace debug info warn error"`
	JSON    bool   `mapstructure:"log-json"`
	NoColor bool   `mapstructure:"log-no-color"`
}

// ClientConfig holds CouchDB client configuration.
type ClientConfig struct {
	// RequestTimeout bounds every API call. 0 keeps the transport default.
	RequestTimeout time.Duration `mapstructure:"request-timeout" validate:"gte=0"`
	// ReplicateTimeout bounds a one-shot clone replication. 0 keeps the transport default.
	ReplicateTimeout time.Duration `mapstructure:"replicate-timeout" validate:"gte=0"`
	// RequestRetries is the number of retries of idempotent reads.
	RequestRetries int `mapstructure:"request-retries" validate:"gte=0,lte=10"`
}

// Load initializes Viper and returns the Config. Endpoints missing from flags and
// environment are read from the rc file.
func Load(cmd *cobra.Command) (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("PCSC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if cmd.PersistentFlags() != nil {
		_ = v.BindPFlags(cmd.PersistentFlags())
	}

	if cmd.Flags() != nil {
		_ = v.BindPFlags(cmd.Flags())
	}

	bindEnvVars(v)

	var cfg Config

	err := v.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	))
	if err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	cfg.IncludeDatabases = compact(cfg.IncludeDatabases)
	cfg.ExcludeDatabases = compact(cfg.ExcludeDatabases)

	if cfg.Source != "" && cfg.Destination != "" {
		return &cfg, nil
	}

	if cfg.ConfigFile == "" {
		cfg.ConfigFile, err = DefaultConfigFile()
		if err != nil {
			return nil, err
		}
	}

	rc, err := ReadRCFile(cfg.ConfigFile)
	if err != nil {
		return nil, err
	}

	if cfg.Source == "" {
		cfg.Source = rc.Source
	}

	if cfg.Destination == "" {
		cfg.Destination = rc.Destination
	}

	return &cfg, nil
}

// DefaultConfigFile returns $HOME/.couchrc.
func DefaultConfigFile() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", ConfigurationError{Cause: CauseMissingFile, Key: "config", Err: err}
	}

	return filepath.Join(home, DefaultConfigFileName), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log-level", DefaultLogLevel)
	v.SetDefault("num-parallel-databases", DefaultNumParallelDatabases)
	v.SetDefault("request-retries", DefaultRequestRetries)
	v.SetDefault("clone-sync-users", true)
}

func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("source", "PCSC_SOURCE_URI", "PCSC_SOURCE")
	_ = v.BindEnv("destination", "PCSC_DESTINATION_URI", "PCSC_DESTINATION")
	_ = v.BindEnv("config", "PCSC_CONFIG")

	_ = v.BindEnv("log-level", "PCSC_LOG_LEVEL")
	_ = v.BindEnv("log-json", "PCSC_LOG_JSON")
	_ = v.BindEnv("log-no-color", "PCSC_LOG_NO_COLOR", "PCSC_NO_COLOR")

	_ = v.BindEnv("num-parallel-databases", "PCSC_NUM_PARALLEL_DATABASES")
	_ = v.BindEnv("request-timeout", "PCSC_REQUEST_TIMEOUT")
	_ = v.BindEnv("replicate-timeout", "PCSC_REPLICATE_TIMEOUT")
	_ = v.BindEnv("request-retries", "PCSC_REQUEST_RETRIES")

	_ = v.BindEnv("include-databases", "PCSC_INCLUDE_DATABASES")
	_ = v.BindEnv("exclude-databases", "PCSC_EXCLUDE_DATABASES")

	_ = v.BindEnv("clone-sync-users", "PCSC_CLONE_SYNC_USERS")
	_ = v.BindEnv("metrics-push-url", "PCSC_METRICS_PUSH_URL")
}

func compact(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	rv := make([]string, 0, len(values))

	for _, s := range values {
		s = strings.TrimSpace(s)
		if s != "" {
			rv = append(rv, s)
		}
	}

	if len(rv) == 0 {
		return nil
	}

	return rv
}
