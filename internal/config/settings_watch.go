package config

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// SettingsSource yields the settings in effect for the next order.
type SettingsSource interface {
	Current() Settings
}

// Current lets a fixed Settings value act as its own source.
func (s Settings) Current() Settings {
	return s
}

// SettingsHolder keeps the latest valid settings document. With
// SETTINGS_WATCH enabled the file is re-read on change; a document that
// fails validation is ignored and the previous one stays in effect.
type SettingsHolder struct {
	current atomic.Value // holds Settings
}

func NewSettingsHolder(cfg Config, log *zap.Logger) (*SettingsHolder, error) {
	v := newSettingsViper(cfg)
	initial, err := readSettings(v)
	if err != nil {
		return nil, err
	}

	holder := &SettingsHolder{}
	holder.current.Store(initial)

	if !cfg.SettingsWatch {
		return holder, nil
	}

	log = log.Named("settings")
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := readSettings(v)
		if err != nil {
			log.Warn("settings reload ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("settings reloaded", zap.String("file", e.Name))
		warnPeriodPoint(updated, log)
	})
	v.WatchConfig()

	return holder, nil
}

func (h *SettingsHolder) Current() Settings {
	return h.current.Load().(Settings)
}

func newSettingsViper(cfg Config) *viper.Viper {
	v := viper.New()
	v.SetConfigType("json")
	if path := strings.TrimSpace(cfg.SettingsFile); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("settings")
		v.AddConfigPath("/var/lib/periodpay/config") // Volume-mounted config
		v.AddConfigPath("/etc/periodpay")
		v.AddConfigPath(".")
	}
	return v
}

// readSettings locates the document through v and validates the raw bytes.
func readSettings(v *viper.Viper) (Settings, error) {
	if err := v.ReadInConfig(); err != nil {
		return Settings{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	raw, err := os.ReadFile(v.ConfigFileUsed())
	if err != nil {
		return Settings{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	return ParseSettings(raw)
}
