package models

import "time"

// Config holds all configuration for the application
type Config struct {
	// Application
	AppName    string `mapstructure:"app_name"`
	AppVersion string `mapstructure:"app_version"`
	AppEnv     string `mapstructure:"app_env"`
	AppHost    string `mapstructure:"app_host"`
	AppPort    string `mapstructure:"app_port"`

	// JWT
	JWTSecret string `mapstructure:"jwt_secret"`

	// Store
	StoreBackend  string `mapstructure:"store_backend"` // dynamodb, mongo, memory
	MongoURI      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database"`

	// AWS
	AWSRegion           string `mapstructure:"aws_region"`
	AWSAccessKeyID      string `mapstructure:"aws_access_key_id"`
	AWSSecretAccessKey  string `mapstructure:"aws_secret_access_key"`
	DynamoDBEndpoint    string `mapstructure:"dynamodb_endpoint"`
	DynamoDBTablePrefix string `mapstructure:"dynamodb_table_prefix"`

	// Redis (sequences and conversion leases); empty address disables it
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	// SMTP notifications; empty host disables them
	SMTPHost         string   `mapstructure:"smtp_host"`
	SMTPPort         int      `mapstructure:"smtp_port"`
	SMTPUsername     string   `mapstructure:"smtp_username"`
	SMTPPassword     string   `mapstructure:"smtp_password"`
	SMTPFrom         string   `mapstructure:"smtp_from"`
	NotifyRecipients []string `mapstructure:"notify_recipients"`

	// Bulk import
	ImportMaxRows   int           `mapstructure:"import_max_rows"`
	ImportBatchSize int           `mapstructure:"import_batch_size"`
	ImportTimeout   time.Duration `mapstructure:"import_timeout"`
	ImportErrorCap  int           `mapstructure:"import_error_cap"`

	// Conversion
	ConversionRetryAttempts int           `mapstructure:"conversion_retry_attempts"`
	ConversionRetryDelay    time.Duration `mapstructure:"conversion_retry_delay"`
	ConversionLeaseTTL      time.Duration `mapstructure:"conversion_lease_ttl"`

	BulkDeleteMaxIDs int `mapstructure:"bulk_delete_max_ids"`

	// Logging
	LogLevel      string `mapstructure:"log_level"`
	LogFormat     string `mapstructure:"log_format"`
	LogFile       string `mapstructure:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups"`
	LogMaxAgeDays int    `mapstructure:"log_max_age_days"`
	LogCompress   bool   `mapstructure:"log_compress"`

	// CORS
	CORSOrigins []string `mapstructure:"cors_origins"`

	// Base Path
	BasePath string `mapstructure:"basePath"`

	// Provisioning worker
	ProvisionSchedule string   `mapstructure:"provision_schedule"`
	Tables            []string `mapstructure:"tables"`
}
