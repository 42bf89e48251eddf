// Package config loads the application configuration from flags, an
// optional conductor.yaml and environment variables, in that order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	// Target is the simulator's UDP endpoint.
	Target string `mapstructure:"target"`
	// Listen is the address of the local status/control HTTP server.
	Listen string `mapstructure:"listen"`
	// Mappings is the CSV file the mapping table persists to.
	Mappings string `mapstructure:"mappings"`

	PollInterval time.Duration `mapstructure:"poll_interval"`
	SendInterval time.Duration `mapstructure:"send_interval"`

	// Autostart begins polling as soon as the program launches.
	Autostart bool `mapstructure:"autostart"`
}

const envPrefix = "CONDUCTOR"

// Load parses the command line and merges it over conductor.yaml and
// CONDUCTOR_* environment variables.
func Load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("conductor", pflag.ContinueOnError)
	cfgFile := fs.String("config", "", "path to config file")
	fs.String("target", "127.0.0.1:18888", "simulator UDP address")
	fs.String("listen", "127.0.0.1:8080", "status server listen address")
	fs.String("mappings", "mappings.csv", "mapping table CSV path")
	fs.Bool("autostart", false, "start polling immediately")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetDefault("target", "127.0.0.1:18888")
	v.SetDefault("listen", "127.0.0.1:8080")
	v.SetDefault("mappings", "mappings.csv")
	v.SetDefault("poll_interval", 20*time.Millisecond)
	v.SetDefault("send_interval", 20*time.Millisecond)
	v.SetDefault("autostart", false)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if *cfgFile != "" {
		v.SetConfigFile(*cfgFile)
	} else {
		v.SetConfigName("conductor")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/conductor")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Target == "" {
		return errors.New("config: target address is empty")
	}
	if c.Mappings == "" {
		return errors.New("config: mappings path is empty")
	}
	if c.PollInterval <= 0 || c.SendInterval <= 0 {
		return errors.New("config: intervals must be positive")
	}
	return nil
}
