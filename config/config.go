package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	DatabaseURL       string `mapstructure:"DATABASE_URL"`
	DatabaseName      string `mapstructure:"DATABASE_NAME"`
	Env               string `mapstructure:"ENV"`
	JWTSecret         string `mapstructure:"JWT_SECRET"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Redis configuration.
	RedisAddr       string `mapstructure:"REDIS_ADDR"`
	RedisPassword   string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB    int    `mapstructure:"REDIS_CACHE_DB"`
	RedisAuthDB     int    `mapstructure:"REDIS_AUTH_DB"`
	RedisEventsDB   int    `mapstructure:"REDIS_EVENTS_DB"`
	RedisReminderDB int    `mapstructure:"REDIS_REMINDER_DB"`

	// Commission and lifecycle tunables.
	CommissionJobCap      int     `mapstructure:"COMMISSION_JOB_CAP"`
	DefaultCommissionRate float64 `mapstructure:"DEFAULT_COMMISSION_RATE"`
	CancelWindowMin       int     `mapstructure:"CANCEL_WINDOW_MIN"`
	DefaultBrokerName     string  `mapstructure:"DEFAULT_BROKER_NAME"`

	// Payments.
	StripeKey string `mapstructure:"STRIPE_KEY"`
}

var AppConfig Config

// FirebaseServiceAccountKeyPath points at the service account JSON used for FCM.
var FirebaseServiceAccountKeyPath = "config/serviceAccountKey.json"

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	// Set default values.
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_CACHE_DB", 0)
	viper.SetDefault("REDIS_AUTH_DB", 1)
	viper.SetDefault("REDIS_EVENTS_DB", 2)
	viper.SetDefault("REDIS_REMINDER_DB", 3)
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("DATABASE_NAME", "handyhub")
	viper.SetDefault("COMMISSION_JOB_CAP", 10)
	viper.SetDefault("DEFAULT_COMMISSION_RATE", 5)
	viper.SetDefault("CANCEL_WINDOW_MIN", 10)
	viper.SetDefault("DEFAULT_BROKER_NAME", "HandyHub")
	viper.SetDefault("STRIPE_KEY", "")

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}
