// Package config provides configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Ethereum  EthereumConfig  `mapstructure:"ethereum"`
	Contracts ContractsConfig `mapstructure:"contracts"`
	Signer    SignerConfig    `mapstructure:"signer"`
	Pricing   PricingConfig   `mapstructure:"pricing"`
	Backend   BackendConfig   `mapstructure:"backend"`
	Redis     RedisConfig     `mapstructure:"redis"`
	API       APIConfig       `mapstructure:"api"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
}

// EthereumConfig holds Ethereum node configuration.
type EthereumConfig struct {
	HTTPURL         string        `mapstructure:"http_url"`
	WSURL           string        `mapstructure:"ws_url"` // optional newHeads subscription
	ChainID         uint64        `mapstructure:"chain_id"`
	CallTimeout     time.Duration `mapstructure:"call_timeout"`
	GasPriceTTL     time.Duration `mapstructure:"gas_price_ttl"`
	MaxGasPriceGwei uint64        `mapstructure:"max_gas_price_gwei"`
	GasBufferPct    uint64        `mapstructure:"gas_buffer_pct"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
}

// MaxGasPriceWei returns the gas price cap in wei, or nil when uncapped.
func (c *EthereumConfig) MaxGasPriceWei() *big.Int {
	if c.MaxGasPriceGwei == 0 {
		return nil
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(c.MaxGasPriceGwei), big.NewInt(1e9))
}

// ContractsConfig holds the ETF contract addresses.
type ContractsConfig struct {
	FactoryAddress string `mapstructure:"factory_address"`
	DepositToken   string `mapstructure:"deposit_token"`
}

// FactoryAddressHex returns the factory address as common.Address.
func (c *ContractsConfig) FactoryAddressHex() common.Address {
	return common.HexToAddress(c.FactoryAddress)
}

// DepositTokenHex returns the deposit token address as common.Address.
func (c *ContractsConfig) DepositTokenHex() common.Address {
	return common.HexToAddress(c.DepositToken)
}

// SignerConfig holds the transaction signing key. An empty key puts the
// trade service in read-only mode.
type SignerConfig struct {
	PrivateKey string `mapstructure:"private_key"`
	DryRun     bool   `mapstructure:"dry_run"`
}

// PricingConfig holds the market data API settings.
type PricingConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
	StaleTTL          time.Duration `mapstructure:"stale_ttl"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	MaxRetries        uint          `mapstructure:"max_retries"`
	StrictSymbols     bool          `mapstructure:"strict_symbols"`
}

// BackendConfig holds the ETF backend REST API settings.
type BackendConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// RedisConfig holds the optional shared price cache.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Enabled reports whether a redis address is configured.
func (c *RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// APIConfig holds the HTTP API server settings.
type APIConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	Exporter       string `mapstructure:"exporter"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
	HealthPort     int    `mapstructure:"health_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("ETF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	_ = v.BindEnv("app.name", "ETF_APP_NAME", "SERVICE_NAME")
	_ = v.BindEnv("app.environment", "ETF_ENVIRONMENT", "ENVIRONMENT")
	_ = v.BindEnv("app.log_level", "ETF_LOG_LEVEL", "LOG_LEVEL")

	// Ethereum
	_ = v.BindEnv("ethereum.http_url", "ETF_ETH_HTTP_URL", "ETH_HTTP_URL", "RPC_URL")
	_ = v.BindEnv("ethereum.ws_url", "ETF_ETH_WS_URL", "ETH_WS_URL")
	_ = v.BindEnv("ethereum.chain_id", "ETF_ETH_CHAIN_ID", "ETH_CHAIN_ID")
	_ = v.BindEnv("ethereum.max_gas_price_gwei", "ETF_MAX_GAS_PRICE_GWEI")

	// Contracts
	_ = v.BindEnv("contracts.factory_address", "ETF_FACTORY_ADDRESS", "FACTORY_ADDRESS")
	_ = v.BindEnv("contracts.deposit_token", "ETF_DEPOSIT_TOKEN", "DEPOSIT_TOKEN")

	// Signer
	_ = v.BindEnv("signer.private_key", "ETF_SIGNER_KEY")
	_ = v.BindEnv("signer.dry_run", "ETF_DRY_RUN")

	// Pricing
	_ = v.BindEnv("pricing.base_url", "ETF_COINGECKO_URL", "COINGECKO_URL")
	_ = v.BindEnv("pricing.api_key", "ETF_COINGECKO_API_KEY", "COINGECKO_API_KEY")
	_ = v.BindEnv("pricing.cache_ttl", "ETF_PRICE_CACHE_TTL")
	_ = v.BindEnv("pricing.strict_symbols", "ETF_STRICT_SYMBOLS")

	// Backend
	_ = v.BindEnv("backend.base_url", "ETF_BACKEND_URL", "BACKEND_URL")

	// Redis
	_ = v.BindEnv("redis.addr", "ETF_REDIS_ADDR", "REDIS_ADDR")
	_ = v.BindEnv("redis.password", "ETF_REDIS_PASSWORD", "REDIS_PASSWORD")
	_ = v.BindEnv("redis.db", "ETF_REDIS_DB")

	// API
	_ = v.BindEnv("api.port", "ETF_API_PORT", "PORT")

	// Telemetry
	_ = v.BindEnv("telemetry.enabled", "ETF_OTEL_ENABLED", "OTEL_ENABLED")
	_ = v.BindEnv("telemetry.service_name", "ETF_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	_ = v.BindEnv("telemetry.exporter", "ETF_OTEL_EXPORTER", "OTEL_TRACES_EXPORTER")
	_ = v.BindEnv("telemetry.otlp_endpoint", "ETF_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "etfkit")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("ethereum.chain_id", 1)
	v.SetDefault("ethereum.call_timeout", "15s")
	v.SetDefault("ethereum.gas_price_ttl", "12s")
	v.SetDefault("ethereum.max_gas_price_gwei", 0)
	v.SetDefault("ethereum.gas_buffer_pct", 20)
	v.SetDefault("ethereum.poll_interval", "12s")

	v.SetDefault("signer.dry_run", false)

	v.SetDefault("pricing.base_url", "https://api.coingecko.com")
	v.SetDefault("pricing.cache_ttl", "60s")
	v.SetDefault("pricing.stale_ttl", "1h")
	v.SetDefault("pricing.request_timeout", "10s")
	v.SetDefault("pricing.requests_per_minute", 30)
	v.SetDefault("pricing.max_retries", 3)
	v.SetDefault("pricing.strict_symbols", false)

	v.SetDefault("backend.base_url", "http://localhost:3001")
	v.SetDefault("backend.request_timeout", "10s")

	v.SetDefault("redis.db", 0)

	v.SetDefault("api.port", 8080)
	v.SetDefault("api.read_timeout", "10s")
	v.SetDefault("api.write_timeout", "30s")
	v.SetDefault("api.shutdown_timeout", "10s")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "etfkit")
	v.SetDefault("telemetry.exporter", "stdout")
	v.SetDefault("telemetry.prometheus_port", 9090)
	v.SetDefault("telemetry.health_port", 8081)
}

// Validate validates the configuration. Settings that only some commands
// need (node URL, signer) are checked by RequireChain and HasSigner.
func (c *Config) Validate() error {
	if c.Contracts.FactoryAddress != "" && !common.IsHexAddress(c.Contracts.FactoryAddress) {
		return fmt.Errorf("invalid contracts.factory_address: %s", c.Contracts.FactoryAddress)
	}
	if c.Contracts.DepositToken != "" && !common.IsHexAddress(c.Contracts.DepositToken) {
		return fmt.Errorf("invalid contracts.deposit_token: %s", c.Contracts.DepositToken)
	}
	if c.Pricing.BaseURL == "" {
		return fmt.Errorf("pricing.base_url is required")
	}
	if c.Pricing.CacheTTL <= 0 {
		return fmt.Errorf("pricing.cache_ttl must be positive")
	}
	if c.Pricing.RequestsPerMinute <= 0 {
		return fmt.Errorf("pricing.requests_per_minute must be positive")
	}
	if c.Ethereum.GasBufferPct > 100 {
		return fmt.Errorf("ethereum.gas_buffer_pct must be at most 100")
	}
	switch c.Telemetry.Exporter {
	case "stdout", "zipkin", "otlp-grpc", "otlp-http":
	default:
		return fmt.Errorf("unknown telemetry.exporter: %s", c.Telemetry.Exporter)
	}
	return nil
}

// RequireChain checks the settings needed to talk to a node.
func (c *Config) RequireChain() error {
	if c.Ethereum.HTTPURL == "" {
		return fmt.Errorf("ethereum.http_url is required")
	}
	if c.Ethereum.ChainID == 0 {
		return fmt.Errorf("ethereum.chain_id is required")
	}
	return nil
}

// HasSigner reports whether a signing key is configured.
func (c *Config) HasSigner() bool {
	return strings.TrimSpace(c.Signer.PrivateKey) != ""
}
