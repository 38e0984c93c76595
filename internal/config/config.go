package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Ledger   Ledger   `mapstructure:"ledger"`
	Backtest Backtest `mapstructure:"backtest"`
	Market   Market   `mapstructure:"market"`
	Logger   Logger   `mapstructure:"logger"`
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
}

// Ledger holds the configuration for the virtual trading account.
type Ledger struct {
	AccountName    string  `mapstructure:"account_name"`
	BaseCurrency   string  `mapstructure:"base_currency"`
	QuoteCurrency  string  `mapstructure:"quote_currency"`
	InitialDeposit float64 `mapstructure:"initial_deposit"`
	Leverage       float64 `mapstructure:"leverage"`
}

// Backtest holds the configuration for backtest runs.
type Backtest struct {
	Strategy        string  `mapstructure:"strategy"`
	FeeRate         float64 `mapstructure:"fee_rate"`
	MinNotional     float64 `mapstructure:"min_notional"`
	BarsPerYear     float64 `mapstructure:"bars_per_year"`
	DataFile        string  `mapstructure:"data_file"`
	EMAWindow       int     `mapstructure:"ema_window"`
	BuyBelow        float64 `mapstructure:"buy_below"`
	SellAbove       float64 `mapstructure:"sell_above"`
	AccumulateEvery int     `mapstructure:"accumulate_every"`
}

// Market holds the configuration for the exchange market data API. When
// DataFile is set in the backtest section the market API is not contacted.
type Market struct {
	BaseURL        string  `mapstructure:"base_url"`
	Symbol         string  `mapstructure:"symbol"`
	Interval       string  `mapstructure:"interval"`
	Limit          int     `mapstructure:"limit"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Server holds the configuration for the web server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")    // or yaml, json

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("ledger.account_name", "backtest")
	viper.SetDefault("ledger.base_currency", "BTC")
	viper.SetDefault("ledger.quote_currency", "USDT")
	viper.SetDefault("ledger.initial_deposit", 10000)
	viper.SetDefault("ledger.leverage", 1.0)
	viper.SetDefault("backtest.strategy", "ema-cross")
	viper.SetDefault("backtest.fee_rate", 0.001)
	viper.SetDefault("backtest.min_notional", 10)
	viper.SetDefault("backtest.bars_per_year", 8760) // hourly bars
	viper.SetDefault("backtest.ema_window", 50)
	viper.SetDefault("backtest.accumulate_every", 24)
	viper.SetDefault("market.base_url", "https://api.binance.com")
	viper.SetDefault("market.symbol", "BTCUSDT")
	viper.SetDefault("market.interval", "1h")
	viper.SetDefault("market.limit", 500)
	viper.SetDefault("market.rate_limit", 20)      // requests per second
	viper.SetDefault("market.rate_limit_burst", 5) // burst size

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
