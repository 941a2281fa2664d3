package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func baseEnv() map[string]string {
	return map[string]string{
		"VERSION":            "1.2.3",
		"PORT":               "8080",
		"NODE_ENV":           "development",
		"MERCHANT_ID":        "MS151500175",
		"HASHKEY":            "12345678901234567890123456789012",
		"HASHIV":             "1234567890123456",
		"NEWEBPAY_VERSION":   "1.5",
		"CLIENT_RETURN_URL":  "http://localhost:3001",
		"PAYMENT_SERVER_URL": "https://pay.example.com/",
		"PAYGATEWAY":         "https://ccore.newebpay.com/MPG/period",
		"SERVER_URL":         "https://api.example.com",
	}
}

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestFromEnvLoadsRequiredValues(t *testing.T) {
	cfg, err := FromEnv(lookupFrom(baseEnv()))
	require.NoError(t, err)

	assert.Equal(t, "1.2.3", cfg.AppVersion)
	assert.Equal(t, ":8080", cfg.ListenAddr())
	assert.Equal(t, "MS151500175", cfg.Gateway.MerchantID)
	assert.Equal(t, "1.5", cfg.Gateway.Version)
	assert.Equal(t, "https://pay.example.com", cfg.PaymentServerURL)
	assert.Equal(t, OrderNumberTimestamp, cfg.OrderNumberScheme)
	assert.Equal(t, 10*time.Second, cfg.HTTPClientTimeout)
	assert.Equal(t, []string{"http://localhost:3001"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.IsProduction())
}

func TestFromEnvFailsOnMissingVariable(t *testing.T) {
	for _, key := range requiredEnv {
		t.Run(key, func(t *testing.T) {
			env := baseEnv()
			delete(env, key)

			_, err := FromEnv(lookupFrom(env))
			require.ErrorIs(t, err, ErrMissingEnv)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestFromEnvRejectsUnknownOrderNumberScheme(t *testing.T) {
	env := baseEnv()
	env["ORDER_NUMBER_SCHEME"] = "uuid"

	_, err := FromEnv(lookupFrom(env))
	require.ErrorIs(t, err, ErrInvalidEnv)
}

func TestFromEnvSnowflakeNodeID(t *testing.T) {
	env := baseEnv()
	cfg, err := FromEnv(lookupFrom(env))
	require.NoError(t, err)
	assert.Equal(t, int64(1), cfg.SnowflakeNodeID)

	env["SNOWFLAKE_NODE_ID"] = "12"
	cfg, err = FromEnv(lookupFrom(env))
	require.NoError(t, err)
	assert.Equal(t, int64(12), cfg.SnowflakeNodeID)

	for _, bad := range []string{"-1", "1024", "node"} {
		env["SNOWFLAKE_NODE_ID"] = bad
		_, err = FromEnv(lookupFrom(env))
		require.ErrorIs(t, err, ErrInvalidEnv, bad)
	}
}

func TestParseSettings(t *testing.T) {
	raw := []byte(`{
		"productDesc": "Monthly plan",
		"periodType": "Month",
		"periodAmt": 100,
		"periodPoint": "05",
		"periodStartType": 2,
		"periodTimes": 12,
		"withOrderInfo": false,
		"withPaymentInfo": true,
		"canModifyEmail": false
	}`)

	s, err := ParseSettings(raw)
	require.NoError(t, err)

	assert.Equal(t, "Monthly plan", s.ProductDesc)
	assert.Equal(t, "M", s.PeriodType)
	assert.Equal(t, 100, s.PeriodAmt)
	assert.Equal(t, "05", s.PeriodPoint)
	assert.Equal(t, 2, s.PeriodStartType)
	assert.Equal(t, 12, s.PeriodTimes)
	assert.True(t, s.WithPaymentInfo)
	assert.False(t, s.CanModifyEmail)
	assert.True(t, s.PeriodPointInRange())
	assert.JSONEq(t, string(raw), string(s.Document()))
}

func TestParseSettingsRejectsEmptyDocument(t *testing.T) {
	_, err := ParseSettings([]byte(`{}`))
	require.ErrorIs(t, err, ErrInvalidSettings)
}

func TestParseSettingsRejectsEmptyKey(t *testing.T) {
	_, err := ParseSettings([]byte(`{"productDesc":"x","":"y"}`))
	require.ErrorIs(t, err, ErrInvalidSettings)
}

func TestParseSettingsRejectsNonObject(t *testing.T) {
	_, err := ParseSettings([]byte(`["productDesc"]`))
	require.ErrorIs(t, err, ErrInvalidSettings)
}

func TestPeriodPointInRange(t *testing.T) {
	cases := []struct {
		periodType string
		point      string
		want       bool
	}{
		{"D", "2", true},
		{"D", "1", false},
		{"W", "7", true},
		{"W", "8", false},
		{"M", "31", true},
		{"M", "0", false},
		{"Y", "0229", true},
		{"Y", "1301", false},
		{"Y", "101", false},
	}
	for _, tc := range cases {
		s := Settings{PeriodType: tc.periodType, PeriodPoint: tc.point}
		assert.Equal(t, tc.want, s.PeriodPointInRange(), "%s %s", tc.periodType, tc.point)
	}
}

func TestLoadSettingsFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"productDesc":"Plan","periodType":"W","periodPoint":"3"}`), 0o600))

	s, err := LoadSettings(Config{SettingsFile: path})
	require.NoError(t, err)
	assert.Equal(t, "Plan", s.ProductDesc)
	assert.Equal(t, "W", s.PeriodType)
}

func TestLoadSettingsMissingFile(t *testing.T) {
	_, err := LoadSettings(Config{SettingsFile: filepath.Join(t.TempDir(), "missing.json")})
	require.ErrorIs(t, err, ErrInvalidSettings)
}

func TestFromEnvSettingsWatch(t *testing.T) {
	env := baseEnv()
	env["SETTINGS_WATCH"] = "true"

	cfg, err := FromEnv(lookupFrom(env))
	require.NoError(t, err)
	assert.True(t, cfg.SettingsWatch)
}

func TestSettingsHolderReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"productDesc":"Plan","periodType":"M","periodPoint":"01"}`), 0o600))

	holder, err := NewSettingsHolder(Config{SettingsFile: path, SettingsWatch: true}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "Plan", holder.Current().ProductDesc)

	require.NoError(t, os.WriteFile(path, []byte(`{"productDesc":"Plan v2","periodType":"M","periodPoint":"01"}`), 0o600))
	require.Eventually(t, func() bool {
		return holder.Current().ProductDesc == "Plan v2"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestSettingsHolderKeepsLastValidDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"productDesc":"Plan","periodType":"M","periodPoint":"01"}`), 0o600))

	holder, err := NewSettingsHolder(Config{SettingsFile: path, SettingsWatch: true}, zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, "Plan", holder.Current().ProductDesc)
}

func TestSettingsHolderWithoutWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"productDesc":"Plan"}`), 0o600))

	holder, err := NewSettingsHolder(Config{SettingsFile: path}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "Plan", holder.Current().ProductDesc)

	var src SettingsSource = holder.Current()
	assert.Equal(t, "Plan", src.Current().ProductDesc)
}
