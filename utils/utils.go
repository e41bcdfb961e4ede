package utils

import (
	"fmt"
	"strings"
	"time"

	"casetrack-backend/models"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-super-secret-jwt-key-change-this-in-production"

// nestedKeys maps config.json sections onto the flat keys Config is decoded from
var nestedKeys = map[string]string{
	"app.name":                  "app_name",
	"app.version":               "app_version",
	"app.env":                   "app_env",
	"app.host":                  "app_host",
	"app.port":                  "app_port",
	"jwt.secret":                "jwt_secret",
	"store.backend":             "store_backend",
	"mongo.uri":                 "mongo_uri",
	"mongo.database":            "mongo_database",
	"aws.region":                "aws_region",
	"aws.access_key_id":         "aws_access_key_id",
	"aws.secret_access_key":     "aws_secret_access_key",
	"aws.dynamodb_endpoint":     "dynamodb_endpoint",
	"aws.dynamodb_table_prefix": "dynamodb_table_prefix",
	"redis.addr":                "redis_addr",
	"redis.password":            "redis_password",
	"redis.db":                  "redis_db",
	"smtp.host":                 "smtp_host",
	"smtp.port":                 "smtp_port",
	"smtp.username":             "smtp_username",
	"smtp.password":             "smtp_password",
	"smtp.from":                 "smtp_from",
	"smtp.recipients":           "notify_recipients",
	"import.max_rows":           "import_max_rows",
	"import.batch_size":         "import_batch_size",
	"import.timeout":            "import_timeout",
	"import.error_cap":          "import_error_cap",
	"conversion.retry_attempts": "conversion_retry_attempts",
	"conversion.retry_delay":    "conversion_retry_delay",
	"conversion.lease_ttl":      "conversion_lease_ttl",
	"logging.level":             "log_level",
	"logging.format":            "log_format",
	"logging.file":              "log_file",
	"logging.max_size_mb":       "log_max_size_mb",
	"logging.max_backups":       "log_max_backups",
	"logging.max_age_days":      "log_max_age_days",
	"logging.compress":          "log_compress",
	"cors.origins":              "cors_origins",
	"provisioning.schedule":     "provision_schedule",
	"provisioning.tables":       "tables",
}

// GetConfig read the configuration from environment variables or config files
func GetConfig() (*models.Config, error) {
	config, err := Load()
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	return config, nil
}

// Load initializes and returns the application configuration using Viper.
// A .env file, when present, is loaded into the environment first.
func Load() (*models.Config, error) {
	if err := godotenv.Load(); err == nil {
		fmt.Println("Loaded environment from .env")
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../")
	v.AddConfigPath("../../")

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Config file not found (%v), using defaults and environment variables\n", err)
	} else {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	flattenNestedConfig(v)

	var config models.Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Application defaults
	v.SetDefault("app_name", "CaseTrack Backend")
	v.SetDefault("app_version", "1.0.0")
	v.SetDefault("app_env", "development")
	v.SetDefault("app_host", "0.0.0.0")
	v.SetDefault("app_port", "8081")

	v.SetDefault("jwt_secret", defaultJWTSecret)

	// Store defaults
	v.SetDefault("store_backend", "dynamodb")
	v.SetDefault("mongo_uri", "")
	v.SetDefault("mongo_database", "casetrack")

	// AWS defaults
	v.SetDefault("aws_region", "us-east-1")
	v.SetDefault("aws_access_key_id", "")
	v.SetDefault("aws_secret_access_key", "")
	v.SetDefault("dynamodb_endpoint", "")
	v.SetDefault("dynamodb_table_prefix", "dev")

	// Redis is optional
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)

	// SMTP notifications are optional
	v.SetDefault("smtp_host", "")
	v.SetDefault("smtp_port", 587)
	v.SetDefault("smtp_username", "")
	v.SetDefault("smtp_password", "")
	v.SetDefault("smtp_from", "casetrack@localhost")
	v.SetDefault("notify_recipients", []string{})

	// Bulk import defaults
	v.SetDefault("import_max_rows", 1000)
	v.SetDefault("import_batch_size", 100)
	v.SetDefault("import_timeout", 5*time.Minute)
	v.SetDefault("import_error_cap", 50)

	// Conversion defaults
	v.SetDefault("conversion_retry_attempts", 3)
	v.SetDefault("conversion_retry_delay", 200*time.Millisecond)
	v.SetDefault("conversion_lease_ttl", 30*time.Second)

	v.SetDefault("bulk_delete_max_ids", 500)

	// Logging defaults
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("log_file", "")
	v.SetDefault("log_max_size_mb", 100)
	v.SetDefault("log_max_backups", 5)
	v.SetDefault("log_max_age_days", 30)
	v.SetDefault("log_compress", true)

	v.SetDefault("cors_origins", []string{"*"})

	v.SetDefault("basePath", "/api/v1")

	// Provisioning defaults; empty tables means every entity
	v.SetDefault("provision_schedule", "")
	v.SetDefault("tables", []string{})
}

// validate checks if all required configuration is provided
func validate(c *models.Config) error {
	if c.JWTSecret == defaultJWTSecret && c.AppEnv == "production" {
		return fmt.Errorf("JWT_SECRET must be set in production environment")
	}

	switch c.StoreBackend {
	case "dynamodb":
		if c.DynamoDBTablePrefix == "" {
			return fmt.Errorf("DYNAMODB_TABLE_PREFIX is required for the dynamodb store")
		}
	case "mongo":
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for the mongo store")
		}
	case "memory":
		if c.AppEnv == "production" {
			return fmt.Errorf("the memory store cannot be used in production")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}

	if c.ImportMaxRows < 1 || c.ImportBatchSize < 1 {
		return fmt.Errorf("import row limits must be positive")
	}
	if c.ImportTimeout <= 0 {
		return fmt.Errorf("import timeout must be positive")
	}
	if c.ConversionRetryAttempts < 1 {
		return fmt.Errorf("conversion retry attempts must be at least 1")
	}

	if c.StoreBackend == "dynamodb" && c.AppEnv == "production" && c.AWSAccessKeyID == "" {
		fmt.Println("No AWS credentials provided, assuming IAM role is used")
	}

	return nil
}

// flattenNestedConfig copies nested config.json keys onto their flat names
func flattenNestedConfig(v *viper.Viper) {
	for nested, flat := range nestedKeys {
		if v.IsSet(nested) {
			v.Set(flat, v.Get(nested))
		}
	}
}
