package main

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/sarchlab/llcprefetch/internal/config"
)

// loadConfig reads from v (to which the caller has already bound its flags),
// layers an optional YAML file under them, and unmarshals into a config.Config
// seeded with config.Default() (spec.md §9's "pass them explicitly as a
// configuration record"). Flags take precedence over the file; the file
// takes precedence over the defaults.
func loadConfig(v *viper.Viper, configFile string) (config.Config, error) {
	cfg := config.Default()

	v.SetEnvPrefix("PREFETCHSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}
