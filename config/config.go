package config

import (
	"fmt"
	"strings"
	"time"

	"example.com/backstage/services/erpgateway/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Environment string                 `mapstructure:"environment"`
	Logging     LoggingConfig          `mapstructure:"logging"`
	ERP         ERPConfig              `mapstructure:"erp"`
	ItemGroups  []models.GroupProperty `mapstructure:"item_groups" validate:"dive"`
	Redis       RedisConfig            `mapstructure:"redis"`
	Elastic     ElasticConfig          `mapstructure:"elastic"`
	Azure       AzureConfig            `mapstructure:"azure"`
	DB          DatabaseConfig         `mapstructure:"database"`
	Tracing     TracingConfig          `mapstructure:"tracing"`
	Sync        SyncConfig             `mapstructure:"sync"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ERPConfig holds the Service Layer connection settings
type ERPConfig struct {
	BaseURL   string        `mapstructure:"base_url" validate:"required,url"`
	CompanyDB string        `mapstructure:"company_db" validate:"required"`
	Username  string        `mapstructure:"username" validate:"required"`
	Password  string        `mapstructure:"password" validate:"required"`
	Timeout   time.Duration `mapstructure:"timeout"`
	PageSize  int           `mapstructure:"page_size" validate:"gte=0"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Enabled  bool          `mapstructure:"enabled"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// ElasticConfig holds Elasticsearch configuration
type ElasticConfig struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Prefix   string `mapstructure:"prefix"`
	Index    string `mapstructure:"index"`
	Enabled  bool   `mapstructure:"enabled"`
}

// AzureConfig holds Azure Service Bus configuration
type AzureConfig struct {
	QueueConnStr string `mapstructure:"queue_conn_str"`
	QueueName    string `mapstructure:"queue_name"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// TracingConfig holds tracing configuration
type TracingConfig struct {
	LicenseKey     string `mapstructure:"license_key"`
	AppName        string `mapstructure:"app_name"`
	LogEnabled     bool   `mapstructure:"log_enabled"`
	DistribTracing bool   `mapstructure:"distributed_tracing_enabled"`
}

// SyncConfig holds the incremental item sync settings
type SyncConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Since    string        `mapstructure:"since"`
	Location string        `mapstructure:"location"`
}

var validate = validator.New()

// LoadConfig reads configuration from file or environment variables
func LoadConfig(path string) (Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" && strings.HasSuffix(path, ".yaml") {
		v.SetConfigFile(path)
	} else {
		if path != "" {
			v.AddConfigPath(path)
		}
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Try to read the YAML config first
	if err := v.ReadInConfig(); err != nil {
		// If YAML not found, try ENV file
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			v.SetConfigName("app")
			v.SetConfigType("env")
			if err := v.ReadInConfig(); err != nil {
				// Continue with ENV vars and defaults
				fmt.Printf("Warning: No configuration file found: %v\n", err)
			}
		} else {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("ERPGW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("unable to unmarshal config: %w", err)
	}

	return config, nil
}

// Validate checks the settings every command needs to reach the ERP
func (c Config) Validate() error {
	if err := validate.Struct(c.ERP); err != nil {
		return fmt.Errorf("invalid erp configuration: %w", err)
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	// Core settings
	v.SetDefault("environment", "development")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	// ERP settings
	v.SetDefault("erp.base_url", "https://localhost:50000/b1s/v1")
	v.SetDefault("erp.company_db", "")
	v.SetDefault("erp.username", "")
	v.SetDefault("erp.password", "")
	v.SetDefault("erp.timeout", "60s")
	v.SetDefault("erp.page_size", 100)

	// Redis settings
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.ttl", "5m")

	// Elasticsearch settings
	v.SetDefault("elastic.url", "http://localhost:9200")
	v.SetDefault("elastic.username", "")
	v.SetDefault("elastic.password", "")
	v.SetDefault("elastic.prefix", "erp")
	v.SetDefault("elastic.index", "items")
	v.SetDefault("elastic.enabled", false)

	// Azure settings
	v.SetDefault("azure.queue_conn_str", "")
	v.SetDefault("azure.queue_name", "erp-events")

	// Database settings
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "1h")

	// Tracing settings
	v.SetDefault("tracing.license_key", "")
	v.SetDefault("tracing.app_name", "ERP Gateway")
	v.SetDefault("tracing.log_enabled", true)
	v.SetDefault("tracing.distributed_tracing_enabled", true)

	// Sync settings
	v.SetDefault("sync.interval", "5m")
	v.SetDefault("sync.since", "2000-01-01T00:00:00Z")
	v.SetDefault("sync.location", "Europe/Helsinki")
}

// SyncStart returns the instant a first sync pass starts from, in the configured location
func (s SyncConfig) SyncStart() (time.Time, *time.Location, error) {
	loc := time.UTC
	if s.Location != "" {
		l, err := time.LoadLocation(s.Location)
		if err != nil {
			return time.Time{}, nil, fmt.Errorf("invalid sync location: %w", err)
		}
		loc = l
	}
	since, err := time.Parse(time.RFC3339, s.Since)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("invalid sync start: %w", err)
	}
	return since.In(loc), loc, nil
}

// FormatIndex formats an Elasticsearch index name with the configured prefix
func FormatIndex(cfg ElasticConfig, index string) string {
	return cfg.Prefix + "-" + index
}
