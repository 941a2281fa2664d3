package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Settings is the static product/period document that drives order
// construction. The raw bytes are kept so the document can be served
// back unchanged.
type Settings struct {
	ProductDesc     string `mapstructure:"productDesc"`
	PeriodType      string `mapstructure:"periodType"`
	PeriodAmt       int    `mapstructure:"periodAmt"`
	PeriodPoint     string `mapstructure:"periodPoint"`
	PeriodStartType int    `mapstructure:"periodStartType"`
	PeriodTimes     int    `mapstructure:"periodTimes"`
	WithOrderInfo   bool   `mapstructure:"withOrderInfo"`
	WithPaymentInfo bool   `mapstructure:"withPaymentInfo"`
	CanModifyEmail  bool   `mapstructure:"canModifyEmail"`
	LangType        string `mapstructure:"langType"`

	raw json.RawMessage
}

// LoadSettings locates and parses the settings document. An explicit path
// wins; otherwise settings.json is searched in the usual config locations.
func LoadSettings(cfg Config) (Settings, error) {
	return readSettings(newSettingsViper(cfg))
}

// ParseSettings validates and decodes a settings document. The document must
// be a non-empty JSON object without empty keys.
func ParseSettings(raw []byte) (Settings, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Settings{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if len(doc) == 0 {
		return Settings{}, fmt.Errorf("%w: empty settings document", ErrInvalidSettings)
	}
	for key := range doc {
		if key == "" {
			return Settings{}, fmt.Errorf("%w: empty key", ErrInvalidSettings)
		}
	}

	v := viper.New()
	v.SetConfigType("json")
	if err := v.ReadConfig(bytes.NewReader(raw)); err != nil {
		return Settings{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	s.PeriodType = normalizePeriodType(s.PeriodType)
	s.raw = append(json.RawMessage(nil), bytes.TrimSpace(raw)...)
	return s, nil
}

// Document returns the settings exactly as they were read.
func (s Settings) Document() json.RawMessage {
	return s.raw
}

// PeriodPointInRange reports whether PeriodPoint is valid for PeriodType:
// D 2-999, W 1-7, M 01-31, Y MMDD. The gateway rejects orders otherwise.
func (s Settings) PeriodPointInRange() bool {
	point := strings.TrimSpace(s.PeriodPoint)
	switch s.PeriodType {
	case "D":
		return intInRange(point, 2, 999)
	case "W":
		return intInRange(point, 1, 7)
	case "M":
		return intInRange(point, 1, 31)
	case "Y":
		if len(point) != 4 {
			return false
		}
		return intInRange(point[:2], 1, 12) && intInRange(point[2:], 1, 31)
	default:
		return false
	}
}

func intInRange(value string, lo, hi int) bool {
	n, err := strconv.Atoi(value)
	if err != nil {
		return false
	}
	return n >= lo && n <= hi
}

func normalizePeriodType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "d", "day":
		return "D"
	case "w", "week":
		return "W"
	case "m", "month":
		return "M"
	case "y", "year":
		return "Y"
	default:
		return strings.TrimSpace(raw)
	}
}
