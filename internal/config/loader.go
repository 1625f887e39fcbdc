package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CLASSCHECK_DATABASE_HOST.
const EnvPrefix = "CLASSCHECK"

// Load reads config.yaml from configPath (if present), applies environment
// overrides on top of the defaults and validates the result.
func Load(configPath string) (Config, error) {
	// Start with default
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv() // allow environment overrides
	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found? Use defaults + env
		slog.Debug("no config.yaml found, using defaults and env vars", "path", configPath)
	} else {
		slog.Debug("loaded config file", "file", v.ConfigFileUsed())
	}

	cfg.Host.Address = v.GetString("host.address")
	cfg.Host.Port = v.GetInt("host.port")
	cfg.Host.Timeout = v.GetDuration("host.timeout")
	cfg.Host.CommandTimeout = v.GetDuration("host.command_timeout")
	cfg.Host.MaxRetries = v.GetInt("host.max_retries")
	cfg.Host.RateLimit = v.GetFloat64("host.rate_limit")
	cfg.Host.RateBurst = v.GetInt("host.rate_burst")
	cfg.Host.BatchSize = v.GetInt("host.batch_size")

	cfg.Database.Host = v.GetString("database.host")
	cfg.Database.Port = v.GetInt("database.port")
	cfg.Database.User = v.GetString("database.user")
	cfg.Database.Password = v.GetString("database.password")
	cfg.Database.DBName = v.GetString("database.dbname")
	cfg.Database.SSLMode = v.GetString("database.sslmode")
	cfg.Database.Timeout = v.GetDuration("database.timeout")

	cfg.Classification.SystemName = v.GetString("classification.system_name")
	cfg.Classification.UnresolvedPolicy = v.GetString("classification.unresolved_policy")

	cfg.Properties.ID = v.GetString("properties.id")
	cfg.Properties.Type = v.GetString("properties.type")

	cfg.Logging.Level = v.GetString("logging.level")
	cfg.Logging.Format = v.GetString("logging.format")

	cfg.Export.S3.Endpoint = v.GetString("export.s3.endpoint")
	cfg.Export.S3.Bucket = v.GetString("export.s3.bucket")
	cfg.Export.S3.AccessKey = v.GetString("export.s3.access_key")
	cfg.Export.S3.SecretKey = v.GetString("export.s3.secret_key")
	cfg.Export.S3.Region = v.GetString("export.s3.region")
	cfg.Export.S3.UseSSL = v.GetBool("export.s3.use_ssl")
	cfg.Export.S3.Prefix = v.GetString("export.s3.prefix")

	cfg.Metrics.PushgatewayURL = v.GetString("metrics.pushgateway_url")
	cfg.Metrics.Job = v.GetString("metrics.job")

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so that env overrides apply even without a file.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("host.address", cfg.Host.Address)
	v.SetDefault("host.port", cfg.Host.Port)
	v.SetDefault("host.timeout", cfg.Host.Timeout)
	v.SetDefault("host.command_timeout", cfg.Host.CommandTimeout)
	v.SetDefault("host.max_retries", cfg.Host.MaxRetries)
	v.SetDefault("host.rate_limit", cfg.Host.RateLimit)
	v.SetDefault("host.rate_burst", cfg.Host.RateBurst)
	v.SetDefault("host.batch_size", cfg.Host.BatchSize)

	v.SetDefault("database.host", cfg.Database.Host)
	v.SetDefault("database.port", cfg.Database.Port)
	v.SetDefault("database.user", cfg.Database.User)
	v.SetDefault("database.password", cfg.Database.Password)
	v.SetDefault("database.dbname", cfg.Database.DBName)
	v.SetDefault("database.sslmode", cfg.Database.SSLMode)
	v.SetDefault("database.timeout", cfg.Database.Timeout)

	v.SetDefault("classification.system_name", cfg.Classification.SystemName)
	v.SetDefault("classification.unresolved_policy", cfg.Classification.UnresolvedPolicy)

	v.SetDefault("properties.id", cfg.Properties.ID)
	v.SetDefault("properties.type", cfg.Properties.Type)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("export.s3.endpoint", "")
	v.SetDefault("export.s3.bucket", "")
	v.SetDefault("export.s3.access_key", "")
	v.SetDefault("export.s3.secret_key", "")
	v.SetDefault("export.s3.region", "")
	v.SetDefault("export.s3.use_ssl", false)
	v.SetDefault("export.s3.prefix", "")

	v.SetDefault("metrics.pushgateway_url", cfg.Metrics.PushgatewayURL)
	v.SetDefault("metrics.job", cfg.Metrics.Job)
}
