package library

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config carries the runtime settings read from the environment.
type Config struct {
	DBPath         string
	LoanPeriodDays int
	DailyFineRate  decimal.Decimal
	LogMode        string
}

// LoadConfig reads settings from a .env file (if present) and the process
// environment, falling back to defaults.
func LoadConfig() *Config {
	// A missing .env file is fine; system env vars still apply.
	_ = godotenv.Load()

	return &Config{
		DBPath:         getEnv("LIBRARY_DB_PATH", "library.db"),
		LoanPeriodDays: getEnvInt("LOAN_PERIOD_DAYS", DefaultLoanPeriodDays),
		DailyFineRate:  getEnvDecimal("DAILY_FINE_RATE", DefaultDailyFineRate),
		LogMode:        getEnv("LOG_MODE", "production"),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return defaultValue
}
