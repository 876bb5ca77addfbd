package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// NumberingConfig controls how debit-note numbers are formatted.
type NumberingConfig struct {
	Prefix  string `mapstructure:"prefix"`
	Padding int    `mapstructure:"padding"`
}

func DefaultNumberingConfig() NumberingConfig {
	return NumberingConfig{
		Prefix:  "DN",
		Padding: 6,
	}
}

// NumberingConfigHolder hot-reloads numbering policy from numbering.yml.
type NumberingConfigHolder struct {
	current atomic.Value // holds NumberingConfig
}

func NewNumberingConfigHolder() (*NumberingConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("numbering")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/portflow/config")
	v.AddConfigPath("/etc/portflow")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PORTFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		defaults := DefaultNumberingConfig()
		v.SetDefault("numbering.prefix", defaults.Prefix)
		v.SetDefault("numbering.padding", defaults.Padding)
	}

	var cfg NumberingConfig
	if err := v.UnmarshalKey("numbering", &cfg); err != nil {
		return nil, err
	}
	if err := validateNumberingConfig(cfg); err != nil {
		return nil, err
	}

	holder := &NumberingConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated NumberingConfig
		if err := v.UnmarshalKey("numbering", &updated); err != nil {
			log.Printf("[numbering-config] reload failed: %v", err)
			return
		}
		if err := validateNumberingConfig(updated); err != nil {
			log.Printf("[numbering-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[numbering-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *NumberingConfigHolder) Get() NumberingConfig {
	return h.current.Load().(NumberingConfig)
}

func validateNumberingConfig(cfg NumberingConfig) error {
	if strings.TrimSpace(cfg.Prefix) == "" {
		return errors.New("numbering.prefix cannot be empty")
	}
	if cfg.Padding < 1 || cfg.Padding > 12 {
		return errors.New("numbering.padding must be between 1 and 12")
	}
	return nil
}
