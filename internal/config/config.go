// Package config reads service settings from the environment.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-grocery-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-grocery-orderflow/internal/pricing"
)

const (
	defaultTxTimeout  = 10 * time.Second
	defaultListenAddr = ":8080"
	defaultNamespace  = "GroceryOrderflow"
)

// Tables names every DynamoDB table the service touches.
type Tables struct {
	Orders       string
	OrderHistory string
	Products     string
	Carts        string
	Promotions   string
	Idempotency  string
}

// Config is the full service configuration.
type Config struct {
	Tables           Tables
	QueueURL         string
	MetricsNamespace string
	Pricing          pricing.Config
	IdempotencyTTL   time.Duration
	TxTimeout        time.Duration
	LogLevel         string
	RunLocal         bool
	ListenAddr       string
}

// Load reads the configuration from environment variables. Table names and
// the queue URL are required; everything else has a default.
func Load() (Config, error) {
	cfg := Config{
		Tables: Tables{
			Orders:       env("ORDERS_TABLE", ""),
			OrderHistory: env("ORDER_HISTORY_TABLE", ""),
			Products:     env("PRODUCTS_TABLE", ""),
			Carts:        env("CARTS_TABLE", ""),
			Promotions:   env("PROMOTIONS_TABLE", ""),
			Idempotency:  env("IDEMPOTENCY_TABLE", ""),
		},
		QueueURL:         env("ORDERS_QUEUE_URL", ""),
		MetricsNamespace: env("METRICS_NAMESPACE", defaultNamespace),
		Pricing:          pricing.DefaultConfig(),
		LogLevel:         env("LOG_LEVEL", "info"),
		ListenAddr:       env("LISTEN_ADDR", defaultListenAddr),
	}

	missing := []string{}
	for name, v := range map[string]string{
		"ORDERS_TABLE":        cfg.Tables.Orders,
		"ORDER_HISTORY_TABLE": cfg.Tables.OrderHistory,
		"PRODUCTS_TABLE":      cfg.Tables.Products,
		"CARTS_TABLE":         cfg.Tables.Carts,
		"PROMOTIONS_TABLE":    cfg.Tables.Promotions,
		"IDEMPOTENCY_TABLE":   cfg.Tables.Idempotency,
		"ORDERS_QUEUE_URL":    cfg.QueueURL,
	} {
		if v == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return Config{}, fmt.Errorf("config: missing required variables: %s", strings.Join(missing, ", "))
	}

	var err error
	if cfg.Pricing.DeliveryFee, err = money("DELIVERY_FEE", cfg.Pricing.DeliveryFee); err != nil {
		return Config{}, err
	}
	if cfg.Pricing.TaxRate, err = money("TAX_RATE", cfg.Pricing.TaxRate); err != nil {
		return Config{}, err
	}
	if cfg.Pricing.ClampFixedDiscount, err = boolean("CLAMP_FIXED_DISCOUNT", cfg.Pricing.ClampFixedDiscount); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = duration("IDEMPOTENCY_TTL", idempotency.DefaultTTL); err != nil {
		return Config{}, err
	}
	if cfg.TxTimeout, err = duration("TX_TIMEOUT", defaultTxTimeout); err != nil {
		return Config{}, err
	}
	if cfg.RunLocal, err = boolean("RUN_LOCAL", false); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func env(name, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return fallback
}

func money(name string, fallback decimal.Decimal) (decimal.Decimal, error) {
	raw := env(name, "")
	if raw == "" {
		return fallback, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return decimal.Zero, fmt.Errorf("config: %s must be a non-negative decimal, got %q", name, raw)
	}
	return d, nil
}

func boolean(name string, fallback bool) (bool, error) {
	raw := env(name, "")
	if raw == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("config: %s must be a boolean, got %q", name, raw)
	}
	return b, nil
}

func duration(name string, fallback time.Duration) (time.Duration, error) {
	raw := env(name, "")
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("config: %s must be a positive duration, got %q", name, raw)
	}
	return d, nil
}
