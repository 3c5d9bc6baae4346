package config

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// RelayConfig tunes the event relay worker. It is reloaded from relay.yml without restart.
type RelayConfig struct {
	BatchSize     int           `mapstructure:"batchSize"`
	PollInterval  time.Duration `mapstructure:"pollInterval"`
	RatePerSecond int           `mapstructure:"ratePerSecond"`
	Paused        bool          `mapstructure:"paused"`
}

func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		BatchSize:     100,
		PollInterval:  2 * time.Second,
		RatePerSecond: 200,
	}
}

type RelayConfigHolder struct {
	current atomic.Value // holds RelayConfig
}

// NewStaticRelayConfigHolder returns a holder that never reloads.
func NewStaticRelayConfigHolder(cfg RelayConfig) *RelayConfigHolder {
	holder := &RelayConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewRelayConfigHolder(log *zap.Logger) (*RelayConfigHolder, error) {
	log = log.Named("config.relay")
	v := viper.New()

	v.SetConfigName("relay")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/quotaledger")
	v.AddConfigPath(".")

	v.SetEnvPrefix("QUOTALEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultRelayConfig()
	v.SetDefault("relay.batchSize", defaults.BatchSize)
	v.SetDefault("relay.pollInterval", defaults.PollInterval)
	v.SetDefault("relay.ratePerSecond", defaults.RatePerSecond)
	v.SetDefault("relay.paused", defaults.Paused)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg RelayConfig
	if err := v.UnmarshalKey("relay", &cfg); err != nil {
		return nil, err
	}
	if err := validateRelayConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticRelayConfigHolder(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated RelayConfig
		if err := v.UnmarshalKey("relay", &updated); err != nil {
			log.Warn("relay config reload failed", zap.Error(err))
			return
		}
		if err := validateRelayConfig(updated); err != nil {
			log.Warn("invalid relay config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("relay config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *RelayConfigHolder) Get() RelayConfig {
	return h.current.Load().(RelayConfig)
}

func validateRelayConfig(cfg RelayConfig) error {
	if cfg.BatchSize <= 0 {
		return errors.New("relay.batchSize must be positive")
	}
	if cfg.PollInterval <= 0 {
		return errors.New("relay.pollInterval must be positive")
	}
	if cfg.RatePerSecond <= 0 {
		return errors.New("relay.ratePerSecond must be positive")
	}
	return nil
}
