// Package config provides a reusable loader for chorad/choractl
// configuration files and environment variables: a viper
// config-name/config-path setup, an optional per-environment merge
// layer, then AutomaticEnv overrides.
//
// Version: v0.1.0
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"chora/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config is the unified configuration for a chora node, mirroring the
// structure of the YAML files under cmd/config.
type Config struct {
	Store struct {
		Path string `mapstructure:"path" json:"path"`
	} `mapstructure:"store" json:"store"`

	VM struct {
		StepBudget     int `mapstructure:"step_budget" json:"step_budget"`
		DeadlineMillis int `mapstructure:"deadline_millis" json:"deadline_millis"`
	} `mapstructure:"vm" json:"vm"`

	Pulse struct {
		Enabled         bool `mapstructure:"enabled" json:"enabled"`
		IntervalSeconds int  `mapstructure:"interval_seconds" json:"interval_seconds"`
	} `mapstructure:"pulse" json:"pulse"`

	Sync struct {
		KeyringPath string `mapstructure:"keyring_path" json:"keyring_path"`
	} `mapstructure:"sync" json:"sync"`

	Semantic struct {
		VectorDim int `mapstructure:"vector_dim" json:"vector_dim"`
	} `mapstructure:"semantic" json:"semantic"`

	HTTP struct {
		ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`
	} `mapstructure:"http" json:"http"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

func setDefaults() {
	viper.SetDefault("store.path", "chora.db")
	viper.SetDefault("vm.step_budget", 10_000)
	viper.SetDefault("vm.deadline_millis", 0)
	viper.SetDefault("pulse.enabled", true)
	viper.SetDefault("pulse.interval_seconds", 60)
	viper.SetDefault("sync.keyring_path", "keyring.json")
	viper.SetDefault("semantic.vector_dim", 64)
	viper.SetDefault("http.listen_addr", ":8080")
	viper.SetDefault("logging.level", "info")
}

// Load reads configuration files and merges any environment-specific
// overrides. The resulting configuration is stored in AppConfig and
// returned. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	setDefaults()
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, utils.Wrap(err, "load config")
		}
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.SetEnvPrefix("CHORA")
	viper.AutomaticEnv()

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the CHORA_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("CHORA_ENV", ""))
}
