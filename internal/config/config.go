package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultSuccessURL = "https://www.ecole-de-massotherapie.com/merci-pack?session_id={CHECKOUT_SESSION_ID}"
	defaultCancelURL  = "https://www.ecole-de-massotherapie.com/masterclass"
)

// Config holds all configuration for the checkout API.
type Config struct {
	ListenAddr string

	StripeSecretKey string

	GHLAPIKey     string
	GHLLocationID string

	// Automatic bundle coupons. Either may be empty, in which case the
	// matching tier falls through to manual promotion codes.
	Coupon3ID   string
	CouponAllID string

	// One-time price ID -> recurring (monthly) price ID, used by the 3x
	// installment branch.
	InstallmentPriceMap map[string]string

	SuccessURL string
	CancelURL  string

	LogLevel  string
	LogFormat string

	RateLimit  int
	RateWindow time.Duration
}

// Load loads configuration from environment variables.
// A .env file is loaded if present but not required.
func Load() (*Config, error) {
	// Best-effort .env loading (not required)
	_ = godotenv.Load()

	rateLimit, err := envOrDefaultInt("CHECKOUT_RATE_LIMIT", 120)
	if err != nil {
		return nil, err
	}
	rateWindow, err := envOrDefaultDuration("CHECKOUT_RATE_WINDOW", time.Minute)
	if err != nil {
		return nil, err
	}
	installments, err := parseInstallmentMap(os.Getenv("INSTALLMENT_PRICE_MAP"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ListenAddr:          envOrDefault("CHECKOUT_LISTEN_ADDR", ":8080"),
		StripeSecretKey:     strings.TrimSpace(os.Getenv("STRIPE_SECRET_KEY")),
		GHLAPIKey:           strings.TrimSpace(os.Getenv("GHL_API_KEY")),
		GHLLocationID:       strings.TrimSpace(os.Getenv("GHL_LOCATION_ID")),
		Coupon3ID:           strings.TrimSpace(os.Getenv("COUPON_3_ID")),
		CouponAllID:         strings.TrimSpace(os.Getenv("COUPON_ALL_ID")),
		InstallmentPriceMap: installments,
		SuccessURL:          envOrDefault("CHECKOUT_SUCCESS_URL", defaultSuccessURL),
		CancelURL:           envOrDefault("CHECKOUT_CANCEL_URL", defaultCancelURL),
		LogLevel:            envOrDefault("LOG_LEVEL", "info"),
		LogFormat:           envOrDefault("LOG_FORMAT", "auto"),
		RateLimit:           rateLimit,
		RateWindow:          rateWindow,
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate checkout config: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var missing []string
	if c.StripeSecretKey == "" {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}
	if c.GHLAPIKey == "" {
		missing = append(missing, "GHL_API_KEY")
	}
	if c.GHLLocationID == "" {
		missing = append(missing, "GHL_LOCATION_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if c.RateLimit <= 0 {
		return fmt.Errorf("CHECKOUT_RATE_LIMIT must be greater than 0, got %d", c.RateLimit)
	}
	if c.RateWindow <= 0 {
		return fmt.Errorf("CHECKOUT_RATE_WINDOW must be greater than 0, got %s", c.RateWindow)
	}
	return nil
}

// parseInstallmentMap parses "price_src:price_monthly,price_src2:price_monthly2".
func parseInstallmentMap(raw string) (map[string]string, error) {
	result := make(map[string]string)
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return result, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		src, dst, ok := strings.Cut(pair, ":")
		src = strings.TrimSpace(src)
		dst = strings.TrimSpace(dst)
		if !ok || src == "" || dst == "" {
			return nil, fmt.Errorf("INSTALLMENT_PRICE_MAP entry %q must be \"oneTimePrice:monthlyPrice\"", pair)
		}
		result[src] = dst
	}
	return result, nil
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, raw)
	}
	return v, nil
}

func envOrDefaultDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration (e.g. \"1m\"), got %q", key, raw)
	}
	return v, nil
}
