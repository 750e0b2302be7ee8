package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, "100", cfg.Affiliate.StartCode)
	assert.Equal(t, "aid", cfg.Affiliate.ParamName)
	assert.Equal(t, "affiliate", cfg.Affiliate.BannerPath)
	assert.Equal(t, "1.00", cfg.Affiliate.MinRequestAmount.StringFixed(2))
	assert.Equal(t, "USD", cfg.Affiliate.DefaultCurrency)
	assert.Equal(t, 30, cfg.Affiliate.StatsDays)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
}

func TestLoadJSONSections(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	path := writeConfig(t, `{
		"app": {"AppPort": "9000", "JWTSecret": "from-file", "AdminUsernames": ["Root"]},
		"affiliate": {"StartAID": "5000", "ParamName": "ref", "MinRequestAmount": "25.50", "DefaultCurrency": "EUR"},
		"site": {"Domain": "https://shop.test/", "Name": "Shop"}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.AppPort)
	assert.Equal(t, "from-file", cfg.JWTSecret)
	assert.Equal(t, "5000", cfg.Affiliate.StartCode)
	assert.Equal(t, "ref", cfg.Affiliate.ParamName)
	assert.Equal(t, "25.50", cfg.Affiliate.MinRequestAmount.StringFixed(2))
	assert.Equal(t, "EUR", cfg.Affiliate.DefaultCurrency)
	assert.Equal(t, "https://shop.test/", cfg.Site.Domain)
	assert.True(t, cfg.IsAdmin("root"))
	assert.False(t, cfg.IsAdmin("guest"))
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `{"app": {"JWTSecret": "from-file"}, "affiliate": {"ParamName": "ref"}}`)
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("AFFILIATE_PARAM_NAME", "partner")
	t.Setenv("AFFILIATE_MIN_BALANCE_FOR_REQUEST", "3.25")
	t.Setenv("AFFILIATE_STATS_DAYS", "7")
	t.Setenv("ADMIN_USERNAMES", "alice, bob")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.JWTSecret)
	assert.Equal(t, "partner", cfg.Affiliate.ParamName)
	assert.Equal(t, "3.25", cfg.Affiliate.MinRequestAmount.StringFixed(2))
	assert.Equal(t, 7, cfg.Affiliate.StatsDays)
	assert.Equal(t, []string{"alice", "bob"}, cfg.AdminUsernames)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		env      map[string]string
		errorMsg string
	}{
		{
			name:     "missing jwt secret",
			body:     `{}`,
			env:      map[string]string{"JWT_SECRET": ""},
			errorMsg: "JWT_SECRET",
		},
		{
			name:     "invalid json",
			body:     `{"app":`,
			env:      map[string]string{"JWT_SECRET": "x"},
			errorMsg: "config: read",
		},
		{
			name:     "invalid decimal in file",
			body:     `{"affiliate": {"MinRequestAmount": "lots"}}`,
			env:      map[string]string{"JWT_SECRET": "x"},
			errorMsg: "MinRequestAmount",
		},
		{
			name:     "invalid integer in env",
			body:     `{}`,
			env:      map[string]string{"JWT_SECRET": "x", "REDIS_PORT": "six"},
			errorMsg: "REDIS_PORT",
		},
		{
			name:     "non numeric start code",
			body:     `{"affiliate": {"StartAID": "abc"}}`,
			env:      map[string]string{"JWT_SECRET": "x"},
			errorMsg: "start affiliate code",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}
