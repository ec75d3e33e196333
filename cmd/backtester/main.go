package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/ridopark/JonBuhReplay/internal/data"
	"github.com/ridopark/JonBuhReplay/pkg/backtester"
	"github.com/ridopark/JonBuhReplay/pkg/feed"
	"github.com/ridopark/JonBuhReplay/pkg/logging"
	"github.com/ridopark/JonBuhReplay/pkg/strategy"
	"github.com/ridopark/JonBuhReplay/pkg/strategy/examples"
)

func main() {
	// Command line flags. Precedence: explicitly set flag > config file >
	// default; the engine only ever sees the resolved values. The environment
	// (.env) supplies only the database connection settings.
	var (
		configPath   = flag.String("config", "", "YAML run configuration (optional)")
		symbolsFlag  = flag.String("symbols", "", "Comma-separated symbols, first is the signal symbol")
		strategyFlag = flag.String("strategy", "buy_and_hold", "Strategy: buy_and_hold, sma_crossover, macd_trend")
		startDate    = flag.String("start", "2024-01-01", "Start date (YYYY-MM-DD)")
		endDate      = flag.String("end", "2024-12-31", "End date (YYYY-MM-DD, inclusive)")
		capital      = flag.String("capital", "", "Initial capital")
		commission   = flag.String("commission", "", "Commission per share")
		slippageBps  = flag.Int64("slippage-bps", 0, "Slippage in basis points")
		fillPolicy   = flag.String("fill-policy", "", "close_of_bar or next_bar_open")
		timeframe    = flag.String("timeframe", "", "Timeframe (1D, 1H, ...)")
		warmupBars   = flag.Int("warmup", -1, "Warm-up bars (-1 derives from the strategy)")
		journalPath  = flag.String("journal", "", "Write the trade journal CSV to this path")
		sqlitePath   = flag.String("sqlite", "", "Use a SQLite bar store instead of Postgres")
		logLevel     = flag.String("log-level", "info", "Log level")
	)
	flag.Parse()
	setFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })

	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()

	logConfig := logging.DefaultConfig()
	logConfig.Level = logging.LogLevel(*logLevel)
	logging.Initialize(logConfig)

	config := backtester.DefaultConfig()
	if *configPath != "" {
		loaded, err := backtester.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Invalid config file: %v", err)
		}
		config = *loaded
	}

	if *symbolsFlag != "" {
		config.Symbols = strings.Split(*symbolsFlag, ",")
	}
	if *timeframe != "" {
		config.Timeframe = *timeframe
	}
	if *capital != "" {
		value, err := decimal.NewFromString(*capital)
		if err != nil {
			log.Fatalf("Invalid capital: %v", err)
		}
		config.InitialCapital = value
	}
	if *commission != "" {
		value, err := decimal.NewFromString(*commission)
		if err != nil {
			log.Fatalf("Invalid commission: %v", err)
		}
		config.CommissionPerShare = value
	}
	if setFlags["slippage-bps"] {
		config.SlippageBps = *slippageBps
	}
	if *fillPolicy != "" {
		config.FillPolicy = backtester.FillPolicy(*fillPolicy)
	}
	if *warmupBars >= 0 {
		config.WarmupBars = *warmupBars
	}
	if config.StartDate.IsZero() || setFlags["start"] {
		start, err := time.Parse("2006-01-02", *startDate)
		if err != nil {
			log.Fatalf("Invalid start date: %v", err)
		}
		config.StartDate = start.UTC()
	}
	if config.EndDate.IsZero() || setFlags["end"] {
		end, err := time.Parse("2006-01-02", *endDate)
		if err != nil {
			log.Fatalf("Invalid end date: %v", err)
		}
		config.EndDate = end.UTC().Add(24*time.Hour - time.Nanosecond)
	}

	if err := config.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	provider, closer, err := buildProvider(*sqlitePath)
	if err != nil {
		log.Fatalf("Failed to create data provider: %v", err)
	}
	defer closer()

	strategyInstance, err := buildStrategy(*strategyFlag, config)
	if err != nil {
		log.Fatalf("%v", err)
	}

	fmt.Printf("Running %s on %s from %s to %s...\n",
		strategyInstance.Name(),
		strings.Join(config.Symbols, ","),
		config.StartDate.Format("2006-01-02"),
		config.EndDate.Format("2006-01-02"))

	runner := backtester.NewRunner(provider, 1)
	result, err := runner.Run(backtester.RunSpec{
		Name:     strategyInstance.Name(),
		Config:   config,
		Strategy: strategyInstance,
	})
	if err != nil {
		log.Fatalf("Backtest failed: %v", err)
	}

	fmt.Println(result.Summary())

	if *journalPath != "" {
		file, err := os.Create(*journalPath)
		if err != nil {
			log.Fatalf("Failed to create journal file: %v", err)
		}
		defer file.Close()
		if err := backtester.WriteJournalCSV(file, result); err != nil {
			log.Fatalf("Failed to write journal CSV: %v", err)
		}
		fmt.Printf("Journal written to %s\n", *journalPath)
	}
}

func buildProvider(sqlitePath string) (feed.BarProvider, func(), error) {
	if sqlitePath != "" {
		provider, err := data.NewSQLiteProvider(sqlitePath)
		if err != nil {
			return nil, nil, err
		}
		return provider, func() { provider.Close() }, nil
	}

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_PORT", "5432"),
		getEnv("DB_USER", "postgres"),
		getEnv("DB_PASSWORD", ""),
		getEnv("DB_NAME", "trading_data"),
	)
	provider, err := data.NewPostgresProvider(connStr)
	if err != nil {
		return nil, nil, err
	}
	return provider, func() { provider.Close() }, nil
}

func buildStrategy(name string, config backtester.Config) (strategy.Strategy, error) {
	switch name {
	case "buy_and_hold":
		return examples.NewBuyAndHold(config.SignalSymbol(), decimal.NewFromInt(1)), nil

	case "sma_crossover":
		return examples.NewSMACrossover(config.SignalSymbol(), 5, 20, decimal.NewFromFloat(0.95))

	case "macd_trend":
		if len(config.Symbols) < 4 {
			return nil, fmt.Errorf("macd_trend needs symbols: signal,bull,defense,bear[,vix]")
		}
		cfg := examples.DefaultMACDTrendConfig(
			config.Symbols[0], config.Symbols[1], config.Symbols[2], config.Symbols[3])
		if len(config.Symbols) > 4 {
			cfg.RegimeSymbol = config.Symbols[4]
		}
		return examples.NewMACDTrend(cfg), nil

	default:
		return nil, fmt.Errorf("unknown strategy %q; available: buy_and_hold, sma_crossover, macd_trend", name)
	}
}

// getEnv returns the environment value or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
