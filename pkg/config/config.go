package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variable.
type Config struct {
	// Database Configurations
	DBDriver   string `mapstructure:"DB_DRIVER"` // "sqlite" or "postgres"
	DBPath     string `mapstructure:"DB_PATH"`   // sqlite file path
	DBHost     string `mapstructure:"DB_HOST"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`
	DBPort     string `mapstructure:"DB_PORT"`

	// Server Configurations
	ServerAddress string `mapstructure:"SERVER_ADDRESS"`

	// OCR Configurations
	TesseractPath string `mapstructure:"TESSERACT_PATH"`

	// Recovery engine
	AutomaticRecovery bool `mapstructure:"AUTOMATIC_RECOVERY"`

	// Sweep cadences (how often each control loop ticks)
	RuleWorkSweepSeconds         int `mapstructure:"RULE_WORK_SWEEP_SECONDS"`
	ZombieScreenshotSweepSeconds int `mapstructure:"ZOMBIE_SCREENSHOT_SWEEP_SECONDS"`
	MarkZombieSweepSeconds       int `mapstructure:"MARK_ZOMBIE_SWEEP_SECONDS"`
	PendingWorkSweepSeconds      int `mapstructure:"PENDING_WORK_SWEEP_SECONDS"`

	// Sweep thresholds
	RetryRuleMinutes      int `mapstructure:"RETRY_RULE_MINUTES"`
	StateLookbackMinutes  int `mapstructure:"STATE_LOOKBACK_MINUTES"`
	PendingWorkTimeoutMin int `mapstructure:"PENDING_WORK_TIMEOUT_MINUTES"`
	BecomeZombieMinutes   int `mapstructure:"BECOME_ZOMBIE_MINUTES"`

	// Security/Encryption Configurations
	JWTSecret            string `mapstructure:"JWT_SECRET"`
	EncryptionKey        string `mapstructure:"REBOOTO_SECRET"`
	AdminUser            string `mapstructure:"REBOOTO_ADMIN_USER"`
	AdminHash            string `mapstructure:"REBOOTO_ADMIN_HASH"`
	SessionDurationHours int    `mapstructure:"SESSION_DURATION_HOURS"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// 1. Set Defaults
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_PATH", "rebooto.db")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_USER", "rebooto")
	v.SetDefault("DB_PASSWORD", "rebooto")
	v.SetDefault("DB_NAME", "rebooto")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("SERVER_ADDRESS", ":5000")
	v.SetDefault("TESSERACT_PATH", "/usr/bin/tesseract")
	v.SetDefault("AUTOMATIC_RECOVERY", false)
	v.SetDefault("RULE_WORK_SWEEP_SECONDS", 300)
	v.SetDefault("ZOMBIE_SCREENSHOT_SWEEP_SECONDS", 300)
	v.SetDefault("MARK_ZOMBIE_SWEEP_SECONDS", 60)
	v.SetDefault("PENDING_WORK_SWEEP_SECONDS", 60)
	v.SetDefault("RETRY_RULE_MINUTES", 60)
	v.SetDefault("STATE_LOOKBACK_MINUTES", 60)
	v.SetDefault("PENDING_WORK_TIMEOUT_MINUTES", 30)
	v.SetDefault("BECOME_ZOMBIE_MINUTES", 120)
	v.SetDefault("JWT_SECRET", "default-insecure-secret-change-me")
	v.SetDefault("REBOOTO_SECRET", "1234567890123456789012345678901212345678901234567890123456789012")
	v.SetDefault("REBOOTO_ADMIN_USER", "admin")
	v.SetDefault("REBOOTO_ADMIN_HASH", "$2a$10$BST/uOdLLXUyqO4fN.b9cuwVwoXEJWWFzpc4iirHiu3GcgbuJqtdu")
	v.SetDefault("SESSION_DURATION_HOURS", 24)

	// 2. Read app.yaml if exists
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// 3. Read .env if exists (overriding app.yaml)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	if err := v.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Ignore if .env is missing
		}
	}

	// 4. Allow Viper to read Environment Variables (highest priority)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
