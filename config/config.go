package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Port        string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	RedisAddr   string
	RedisDB     int
	Environment string

	SchedulerTimezone string

	// Provider settings
	HistoricalBaseURL string
	QuoteBaseURL      string
	ProviderAPIKey    string
	RateLimitEnabled  bool
	BulkJitterMin     time.Duration
	BulkJitterMax     time.Duration
	DailyJitterMin    time.Duration
	DailyJitterMax    time.Duration

	// Sync settings
	SeedSymbols           []string
	SeedSymbolsFile       string
	BackfillBatchSize     int
	DeltaBatchSize        int
	FundamentalsBatchSize int
	HistoryYears          int
	RotationCycleDays     int

	// Cache TTLs
	StockDetailTTL time.Duration
	PriceViewTTL   time.Duration
	ScreenerTTL    time.Duration
	IntradayTTL    time.Duration
}

var AppConfig *Config
var DB *gorm.DB

// LoadConfig loads environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Port:        getEnv("PORT", "8080"),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBUser:      getEnv("DB_USER", "postgres"),
		DBPassword:  getEnv("DB_PASSWORD", ""),
		DBName:      getEnv("DB_NAME", "screener_db"),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:     getEnvInt("REDIS_DB", 0),
		Environment: getEnv("ENVIRONMENT", "development"),

		SchedulerTimezone: getEnv("SCHEDULER_TIMEZONE", "America/New_York"),

		HistoricalBaseURL: getEnv("HISTORICAL_BASE_URL", "https://query1.finance.yahoo.com"),
		QuoteBaseURL:      getEnv("QUOTE_BASE_URL", "https://query1.finance.yahoo.com"),
		ProviderAPIKey:    getEnv("PROVIDER_API_KEY", ""),
		RateLimitEnabled:  getEnvBool("RATE_LIMIT_ENABLED", true),
		BulkJitterMin:     getEnvSeconds("BULK_JITTER_MIN_SECONDS", 15),
		BulkJitterMax:     getEnvSeconds("BULK_JITTER_MAX_SECONDS", 25),
		DailyJitterMin:    getEnvSeconds("DAILY_JITTER_MIN_SECONDS", 2),
		DailyJitterMax:    getEnvSeconds("DAILY_JITTER_MAX_SECONDS", 5),

		SeedSymbols:           getEnvList("SEED_SYMBOLS"),
		SeedSymbolsFile:       getEnv("SEED_SYMBOLS_FILE", ""),
		BackfillBatchSize:     getEnvInt("BACKFILL_BATCH_SIZE", 100),
		DeltaBatchSize:        getEnvInt("DELTA_BATCH_SIZE", 100),
		FundamentalsBatchSize: getEnvInt("FUNDAMENTALS_BATCH_SIZE", 50),
		HistoryYears:          getEnvInt("STOCK_HISTORY_YEARS", 5),
		RotationCycleDays:     getEnvInt("FUNDAMENTALS_CYCLE_DAYS", 7),

		StockDetailTTL: getEnvSeconds("STOCK_DETAIL_TTL_SECONDS", 86400),
		PriceViewTTL:   getEnvSeconds("PRICE_VIEW_TTL_SECONDS", 7200),
		ScreenerTTL:    getEnvSeconds("SCREENER_TTL_SECONDS", 3600),
		IntradayTTL:    getEnvSeconds("INTRADAY_TTL_SECONDS", 1800),
	}

	AppConfig = config
	return config, nil
}

// InitDB initializes database connection
func InitDB() (*gorm.DB, error) {
	// Log connection info (masked for security)
	log.Printf("Connecting to database: host=%s port=%s user=%s dbname=%s",
		maskHost(AppConfig.DBHost),
		AppConfig.DBPort,
		AppConfig.DBUser,
		AppConfig.DBName,
	)

	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=require TimeZone=UTC",
		AppConfig.DBHost,
		AppConfig.DBUser,
		AppConfig.DBPassword,
		AppConfig.DBName,
		AppConfig.DBPort,
	)

	var logLevel logger.LogLevel
	if AppConfig.Environment == "production" {
		logLevel = logger.Error
	} else {
		logLevel = logger.Info
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})

	if err != nil {
		log.Printf("Database connection error: %v", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection with ping
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("Failed to get underlying database: %v", err)
		return nil, fmt.Errorf("failed to get database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		log.Printf("Database ping failed: %v", err)
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	log.Printf("Database connection verified successfully")
	DB = db
	return db, nil
}

// maskHost masks host for logging, preserving domain structure
func maskHost(host string) string {
	if len(host) <= 3 {
		return "***"
	}
	if len(host) <= 15 {
		return host[:3] + "***"
	}
	return host[:8] + "***" + host[len(host)-10:]
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid value for %s: %q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Invalid value for %s: %q, using default %v", key, value, defaultValue)
		return defaultValue
	}
	return b
}

func getEnvSeconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, defaultSeconds)) * time.Second
}

// getEnvList parses a comma-separated environment variable into uppercase
// trimmed symbols.
func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		item = strings.ToUpper(strings.TrimSpace(item))
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

// LoadSeedSymbols returns the configured seed universe: the SEED_SYMBOLS
// list plus, when set, one symbol per line from SEED_SYMBOLS_FILE.
func (c *Config) LoadSeedSymbols() ([]string, error) {
	symbols := append([]string(nil), c.SeedSymbols...)
	if c.SeedSymbolsFile == "" {
		return symbols, nil
	}
	data, err := os.ReadFile(c.SeedSymbolsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed symbols file: %w", err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.ToUpper(strings.TrimSpace(line))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		symbols = append(symbols, line)
	}
	return symbols, nil
}
