// =============================================================================
// 📦 Default configuration
// =============================================================================
// Provides sane defaults for every configuration group.
// =============================================================================
package config

import "time"

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Telegram:  DefaultTelegramConfig(),
		Database:  DefaultDatabaseConfig(),
		Redis:     DefaultRedisConfig(),
		LLM:       DefaultLLMConfig(),
		Catalog:   DefaultCatalogConfig(),
		Search:    DefaultSearchConfig(),
		CostGuard: DefaultCostGuardConfig(),
		Lead:      DefaultLeadConfig(),
		Notify:    DefaultNotifyConfig(),
		CRM:       DefaultCRMConfig(),
		Server:    DefaultServerConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultTelegramConfig returns the default Telegram configuration.
func DefaultTelegramConfig() TelegramConfig {
	return TelegramConfig{
		DisableBot: false,
	}
}

// DefaultServerConfig returns the default HTTP server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    20,
		RateLimitBurst:  40,
	}
}

// DefaultRedisConfig returns the default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultDatabaseConfig returns the default database configuration.
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:             "sqlite://salesbot.db",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultLLMConfig returns the default LLM routing configuration.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		DefaultProvider:    "openai",
		OpenAIDefaultModel: "gpt-4o-mini",
		YandexDefaultModel: "yandexgpt-lite",
		Timeout:            2 * time.Minute,
		MaxRetries:         3,
	}
}

// DefaultCatalogConfig returns the default catalog ingestion configuration.
func DefaultCatalogConfig() CatalogConfig {
	return CatalogConfig{
		ChromaPersistDir: "./data/chroma",
		UploadDir:        "./data/uploads",
		EmbeddingModel:   "text-embedding-3-small",
	}
}

// DefaultSearchConfig returns the default catalog search tuning.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		MinScore:     0.45,
		NameBoost:    0.20,
		ArticleBoost: 0.30,
		MaxResults:   10,
	}
}

// DefaultCostGuardConfig returns the default LLM spend guard configuration.
func DefaultCostGuardConfig() CostGuardConfig {
	return CostGuardConfig{
		MonthlyTokenLimit:   0, // 0 = unlimited
		MonthlyCostLimitUSD: 0,
		AlertThreshold:      0.8,
		AutoDisableOnLimit:  false,
		AlertEnabled:        true,
		WeeklyUsageReport:   true,
	}
}

// DefaultLeadConfig returns the default lead-tracking configuration.
func DefaultLeadConfig() LeadConfig {
	return LeadConfig{
		InactivityThreshold: 30 * time.Minute,
	}
}

// DefaultNotifyConfig returns the default notification configuration.
func DefaultNotifyConfig() NotifyConfig {
	return NotifyConfig{}
}

// DefaultCRMConfig returns the default CRM adapter configuration.
func DefaultCRMConfig() CRMConfig {
	return CRMConfig{
		Timeout:    10 * time.Second,
		RetryDelay: 30 * time.Minute,
	}
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig returns the default telemetry configuration.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "salesbot",
		SampleRate:   0.1,
	}
}
