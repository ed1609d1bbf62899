package config

import (
	"strings"
	"time"

	"crewdispatch/internal/logger"

	"github.com/spf13/viper"
)

type Config struct {
	GeneralVersion string `mapstructure:"GENERAL_VERSION"`
	Environment    string `mapstructure:"ENVIRONMENT"`
	ServerPort     int    `mapstructure:"SERVER_PORT"`

	DatabaseHost     string `mapstructure:"DB_HOST"`
	DatabasePort     int    `mapstructure:"DB_PORT"`
	DatabaseName     string `mapstructure:"DB_NAME"`
	DatabaseUser     string `mapstructure:"DB_USER"`
	DatabasePassword string `mapstructure:"DB_PASSWORD"`

	EventBusAddress string `mapstructure:"EVENT_BUS_ADDRESS"`
	EventBusPort    int    `mapstructure:"EVENT_BUS_PORT"`

	CorsAllowOrigins string `mapstructure:"CORS_ALLOW_ORIGINS"`

	// Workflow tunables. The scheduler reads these at tick time.
	ReminderHours        int    `mapstructure:"REMINDER_HOURS"`
	AutoCloseHours       int    `mapstructure:"AUTO_CLOSE_HOURS"`
	ArchiveAfterDays     int    `mapstructure:"ARCHIVE_AFTER_DAYS"`
	SurveyWeekday        string `mapstructure:"SURVEY_WEEKDAY"`
	SchedulerTickMinutes int    `mapstructure:"SCHEDULER_TICK_MINUTES"`
	SchedulerEnabled     bool   `mapstructure:"SCHEDULER_ENABLED"`

	// Comma-separated single-use admin registration codes created at
	// migration time.
	AdminBootstrapCodes string `mapstructure:"ADMIN_BOOTSTRAP_CODES"`
}

var ConfigInstance Config

func InitConfig() (Config, error) {
	log := logger.New("config").Function("InitConfig")
	log.Info("Initializing config")

	viper.AutomaticEnv()

	envVars := []string{
		"GENERAL_VERSION", "ENVIRONMENT", "SERVER_PORT",
		"DB_HOST", "DB_PORT", "DB_NAME", "DB_USER", "DB_PASSWORD",
		"EVENT_BUS_ADDRESS", "EVENT_BUS_PORT",
		"CORS_ALLOW_ORIGINS",
		"REMINDER_HOURS", "AUTO_CLOSE_HOURS", "ARCHIVE_AFTER_DAYS",
		"SURVEY_WEEKDAY", "SCHEDULER_TICK_MINUTES", "SCHEDULER_ENABLED",
		"ADMIN_BOOTSTRAP_CODES",
	}

	for _, env := range envVars {
		if err := viper.BindEnv(env); err != nil {
			log.Warn("Failed to bind environment variable", "env", env, "error", err)
		}
	}

	viper.SetDefault("REMINDER_HOURS", 24)
	viper.SetDefault("AUTO_CLOSE_HOURS", 72)
	viper.SetDefault("ARCHIVE_AFTER_DAYS", 90)
	viper.SetDefault("SURVEY_WEEKDAY", "Sunday")
	viper.SetDefault("SCHEDULER_TICK_MINUTES", 30)
	viper.SetDefault("SCHEDULER_ENABLED", true)

	envVarsSet := viper.IsSet("SERVER_PORT") && viper.IsSet("DB_HOST")

	if envVarsSet {
		log.Info("Environment variables detected, skipping file loading")
	} else {
		log.Info("Environment variables not found, attempting to load from files")

		viper.SetConfigFile(".env")
		viper.SetConfigType("env")

		if err := viper.ReadInConfig(); err != nil {
			log.Warn("Could not find .env file", "error", err)
		} else {
			log.Info("Loaded .env file")
		}

		viper.SetConfigFile(".env.local")
		if err := viper.MergeInConfig(); err != nil {
			log.Debug("No .env.local file found", "error", err)
		} else {
			log.Info("Loaded .env.local overrides")
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return Config{}, log.Err("Fatal error: could not unmarshal config", err)
	}

	if err := validateConfig(config, log); err != nil {
		return Config{}, err
	}

	log.Info("Successfully initialized config", "environment", config.Environment)
	return ConfigInstance, nil
}

func GetConfig() Config {
	return ConfigInstance
}

// SchedulerTick returns the follow-up scan interval.
func (c Config) SchedulerTick() time.Duration {
	return time.Duration(c.SchedulerTickMinutes) * time.Minute
}

// SurveyDay parses SURVEY_WEEKDAY, defaulting to Sunday on bad input.
func (c Config) SurveyDay() time.Weekday {
	switch strings.ToLower(c.SurveyWeekday) {
	case "monday":
		return time.Monday
	case "tuesday":
		return time.Tuesday
	case "wednesday":
		return time.Wednesday
	case "thursday":
		return time.Thursday
	case "friday":
		return time.Friday
	case "saturday":
		return time.Saturday
	default:
		return time.Sunday
	}
}

// BootstrapCodes splits ADMIN_BOOTSTRAP_CODES into trimmed, non-empty codes.
func (c Config) BootstrapCodes() []string {
	var codes []string
	for _, code := range strings.Split(c.AdminBootstrapCodes, ",") {
		if trimmed := strings.TrimSpace(code); trimmed != "" {
			codes = append(codes, trimmed)
		}
	}
	return codes
}

func validateConfig(config Config, log logger.Logger) error {
	if config.ServerPort <= 0 {
		return log.Error(
			"Fatal error: invalid server port",
			"port", config.ServerPort,
		)
	}

	if config.ReminderHours <= 0 || config.AutoCloseHours <= 0 {
		return log.Error(
			"Fatal error: reminder and auto-close thresholds must be positive",
			"reminderHours", config.ReminderHours,
			"autoCloseHours", config.AutoCloseHours,
		)
	}

	if config.AutoCloseHours <= config.ReminderHours {
		log.Warn(
			"Auto-close threshold is not after the reminder threshold",
			"reminderHours", config.ReminderHours,
			"autoCloseHours", config.AutoCloseHours,
		)
	}

	if config.SchedulerTickMinutes <= 0 {
		return log.Error(
			"Fatal error: invalid scheduler tick",
			"minutes", config.SchedulerTickMinutes,
		)
	}

	ConfigInstance = config
	return nil
}
