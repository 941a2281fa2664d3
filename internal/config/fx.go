package config

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewSettingsHolder),
	fx.Provide(func(h *SettingsHolder) SettingsSource { return h }),
	fx.Invoke(warnSettings),
)

func warnSettings(s SettingsSource, log *zap.Logger) {
	warnPeriodPoint(s.Current(), log)
}

func warnPeriodPoint(s Settings, log *zap.Logger) {
	if !s.PeriodPointInRange() {
		log.Warn("settings periodPoint out of range for periodType",
			zap.String("period_type", s.PeriodType),
			zap.String("period_point", s.PeriodPoint),
		)
	}
}
