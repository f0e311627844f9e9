package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("GHL_API_KEY", "ghl_key")
	t.Setenv("GHL_LOCATION_ID", "loc_1")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "sk_test_123", cfg.StripeSecretKey)
	assert.Empty(t, cfg.Coupon3ID)
	assert.Empty(t, cfg.InstallmentPriceMap)
	assert.Equal(t, 120, cfg.RateLimit)
	assert.Equal(t, time.Minute, cfg.RateWindow)
	assert.Contains(t, cfg.SuccessURL, "{CHECKOUT_SESSION_ID}")
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("STRIPE_SECRET_KEY", "")
	t.Setenv("GHL_API_KEY", "")
	t.Setenv("GHL_LOCATION_ID", "loc_1")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STRIPE_SECRET_KEY")
	assert.Contains(t, err.Error(), "GHL_API_KEY")
	assert.NotContains(t, err.Error(), "GHL_LOCATION_ID")
}

func TestLoadInstallmentMap(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("INSTALLMENT_PRICE_MAP", "price_a:price_a_m, price_b:price_b_m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"price_a": "price_a_m",
		"price_b": "price_b_m",
	}, cfg.InstallmentPriceMap)
}

func TestLoadInstallmentMapMalformed(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("INSTALLMENT_PRICE_MAP", "price_a=price_a_m")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INSTALLMENT_PRICE_MAP")
}

func TestLoadInvalidRateLimit(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CHECKOUT_RATE_LIMIT", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHECKOUT_RATE_LIMIT")
}

func TestLoadRateWindowParse(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CHECKOUT_RATE_WINDOW", "30s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.RateWindow)
}
