package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"paper-trading-go/internal/backtest"
	"paper-trading-go/internal/config"
	"paper-trading-go/internal/database"
	"paper-trading-go/internal/ledger"
	"paper-trading-go/internal/logger"
	"paper-trading-go/internal/market"
	"paper-trading-go/internal/money"
	"paper-trading-go/internal/strategy"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, cancelling run...")
		cancel()
	}()

	if err := run(ctx, &cfg, log); err != nil {
		log.Fatal("Backtest failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	base, err := money.ParseCurrency(cfg.Ledger.BaseCurrency)
	if err != nil {
		return fmt.Errorf("base currency: %w", err)
	}
	quote, err := money.ParseCurrency(cfg.Ledger.QuoteCurrency)
	if err != nil {
		return fmt.Errorf("quote currency: %w", err)
	}

	bars, err := loadBars(cfg, log)
	if err != nil {
		return err
	}
	log.Info("Bar series loaded", zap.Int("bars", len(bars)))

	strat, err := buildStrategy(&cfg.Backtest)
	if err != nil {
		return err
	}

	minNotional, err := money.FromFloat(cfg.Backtest.MinNotional, quote)
	if err != nil {
		return fmt.Errorf("min notional: %w", err)
	}
	deposit, err := money.FromFloat(cfg.Ledger.InitialDeposit, quote)
	if err != nil {
		return fmt.Errorf("initial deposit: %w", err)
	}

	service := ledger.NewService(log)
	account := ledger.NewAccount(cfg.Ledger.AccountName, decimal.NewFromFloat(cfg.Ledger.Leverage))
	if err := service.Deposit(account, deposit, "initial funding"); err != nil {
		return fmt.Errorf("fund account: %w", err)
	}

	engine := backtest.NewEngine(log, base, quote, backtest.Policy{
		FeeRate:     decimal.NewFromFloat(cfg.Backtest.FeeRate),
		MinNotional: minNotional,
	})

	result := engine.Run(ctx, bars, strat, account)
	metrics := backtest.CalculateMetrics(result, cfg.Backtest.BarsPerYear)

	var baselines []backtest.BaselineComparison
	if result.State == backtest.StateCompleted {
		baselines, err = engine.RunBaselines(ctx, bars, deposit,
			cfg.Backtest.AccumulateEvery, cfg.Backtest.BarsPerYear)
		if err != nil {
			return fmt.Errorf("baselines: %w", err)
		}
	}

	backtest.WriteReport(os.Stdout, result, metrics, baselines)

	// Persist the account so the UI can inspect balances and the audit trail.
	if cfg.Database.DSN != "" {
		db, err := database.NewDatabase(cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		repo := database.NewRepository(db, log)
		if err := repo.Save(account); err != nil {
			return fmt.Errorf("save account: %w", err)
		}
		log.Info("Account persisted", zap.String("account", account.ID().String()))
	}

	if result.State == backtest.StateFailed {
		return result.Err
	}
	return nil
}

// loadBars reads the bar series from the configured CSV file, or fetches it
// from the exchange REST API when no file is set.
func loadBars(cfg *config.Config, log *zap.Logger) ([]market.Bar, error) {
	if cfg.Backtest.DataFile != "" {
		bars, err := market.LoadCSVFile(cfg.Backtest.DataFile)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", cfg.Backtest.DataFile, err)
		}
		return bars, nil
	}

	client := market.NewRestClient(&cfg.Market, log)
	if _, err := client.GetServerTime(); err != nil {
		return nil, fmt.Errorf("connect to market API: %w", err)
	}
	bars, err := client.GetKlines(cfg.Market.Symbol, cfg.Market.Interval, cfg.Market.Limit)
	if err != nil {
		return nil, err
	}
	return bars, nil
}

func buildStrategy(cfg *config.Backtest) (strategy.Strategy, error) {
	switch cfg.Strategy {
	case "ema-cross":
		return strategy.NewEMACross(cfg.EMAWindow), nil
	case "threshold":
		return strategy.NewThreshold(
			decimal.NewFromFloat(cfg.BuyBelow),
			decimal.NewFromFloat(cfg.SellAbove),
		), nil
	case "buy-and-hold":
		return strategy.NewBuyAndHold(), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", cfg.Strategy)
	}
}
