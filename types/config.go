package types

import "time"

// Config is a struct to hold the configuration data
type Config struct {
	Logging struct {
		OutputLevel  string `yaml:"outputLevel" envconfig:"LOGGING_OUTPUT_LEVEL"`
		OutputStderr bool   `yaml:"outputStderr" envconfig:"LOGGING_OUTPUT_STDERR"`

		FilePath       string `yaml:"filePath" envconfig:"LOGGING_FILE_PATH"`
		FileLevel      string `yaml:"fileLevel" envconfig:"LOGGING_FILE_LEVEL"`
		FileMaxSize    int    `yaml:"fileMaxSize" envconfig:"LOGGING_FILE_MAX_SIZE"`
		FileMaxBackups int    `yaml:"fileMaxBackups" envconfig:"LOGGING_FILE_MAX_BACKUPS"`
	} `yaml:"logging"`

	Server struct {
		Port string `yaml:"port" envconfig:"SERVER_PORT"`
		Host string `yaml:"host" envconfig:"SERVER_HOST"`

		HttpReadTimeout  time.Duration `yaml:"httpReadTimeout" envconfig:"SERVER_HTTP_READ_TIMEOUT"`
		HttpWriteTimeout time.Duration `yaml:"httpWriteTimeout" envconfig:"SERVER_HTTP_WRITE_TIMEOUT"`
		HttpIdleTimeout  time.Duration `yaml:"httpIdleTimeout" envconfig:"SERVER_HTTP_IDLE_TIMEOUT"`
	} `yaml:"server"`

	Chain struct {
		// default chain for requests that do not carry a chain id
		DefaultChainId uint64 `yaml:"defaultChainId" envconfig:"CHAIN_DEFAULT_CHAIN_ID"`

		// optional yaml file with additional or overridden chain registry entries
		RegistryPath string                  `yaml:"registryPath" envconfig:"CHAIN_REGISTRY_PATH"`
		Chains       map[string]*ChainConfig `yaml:"chains" ignored:"true"`
	} `yaml:"chain"`

	ExecutionApi struct {
		Endpoints []EndpointConfig `yaml:"endpoints" ignored:"true"`
	} `yaml:"executionapi"`

	ValidatorApi struct {
		Endpoint string            `yaml:"endpoint" envconfig:"VALIDATORAPI_ENDPOINT"`
		Headers  map[string]string `yaml:"headers" ignored:"true"`
		Timeout  time.Duration     `yaml:"timeout" envconfig:"VALIDATORAPI_TIMEOUT"`

		// local cache bytes, a single address entry is limited to CacheSize/1024
		CacheSize int           `yaml:"cacheSize" envconfig:"VALIDATORAPI_CACHE_SIZE"`
		CacheTTL  time.Duration `yaml:"cacheTtl" envconfig:"VALIDATORAPI_CACHE_TTL"`

		RedisCacheAddr   string `yaml:"redisCacheAddr" envconfig:"VALIDATORAPI_REDIS_CACHE_ADDR"`
		RedisCachePrefix string `yaml:"redisCachePrefix" envconfig:"VALIDATORAPI_REDIS_CACHE_PREFIX"`
	} `yaml:"validatorapi"`

	Signer struct {
		// "offline" hands unsigned transactions to an external signer, "wallet" signs with PrivateKey
		Mode            string        `yaml:"mode" envconfig:"SIGNER_MODE"`
		PrivateKey      string        `yaml:"privateKey" envconfig:"SIGNER_PRIVATE_KEY"`
		ReceiptInterval time.Duration `yaml:"receiptInterval" envconfig:"SIGNER_RECEIPT_INTERVAL"`
	} `yaml:"signer"`

	Api struct {
		Enabled     bool     `yaml:"enabled" envconfig:"API_ENABLED"`
		CorsOrigins []string `yaml:"corsOrigins" envconfig:"API_CORS_ORIGINS"`

		// Rate limiting and authentication
		AuthSecret              string   `yaml:"authSecret" envconfig:"API_AUTH_SECRET"`
		RequireAuth             bool     `yaml:"requireAuth" envconfig:"API_REQUIRE_AUTH"`
		DefaultRateLimit        uint     `yaml:"defaultRateLimit" envconfig:"API_DEFAULT_RATE_LIMIT"`
		DefaultRateLimitBurst   uint     `yaml:"defaultRateLimitBurst" envconfig:"API_DEFAULT_RATE_LIMIT_BURST"`
		DisableDefaultRateLimit bool     `yaml:"disableDefaultRateLimit" envconfig:"API_DISABLE_DEFAULT_RATE_LIMIT"`
		WhitelistedIPs          []string `yaml:"whitelistedIPs" envconfig:"API_WHITELISTED_IPS"`
		ProxyCount              uint     `yaml:"proxyCount" envconfig:"API_PROXY_COUNT"`
	} `yaml:"api"`

	// optional archive of finished batches
	Database DatabaseConfig `yaml:"database"`

	Metrics struct {
		Enabled bool   `yaml:"enabled" envconfig:"METRICS_ENABLED"`
		Public  bool   `yaml:"public" envconfig:"METRICS_PUBLIC"`
		Host    string `yaml:"host" envconfig:"METRICS_HOST"`
		Port    string `yaml:"port" envconfig:"METRICS_PORT"`
	} `yaml:"metrics"`
}

type EndpointConfig struct {
	Url     string            `yaml:"url"`
	Name    string            `yaml:"name"`
	ChainId uint64            `yaml:"chainId"`
	Headers map[string]string `yaml:"headers"`
}

// ChainConfig is a single chain registry entry.
type ChainConfig struct {
	Name                  string `yaml:"name"`
	ChainId               uint64 `yaml:"chainId"`
	GenesisForkVersion    string `yaml:"genesisForkVersion"`
	DepositContract       string `yaml:"depositContract"`
	WithdrawalContract    string `yaml:"withdrawalContract"`
	ConsolidationContract string `yaml:"consolidationContract"`
	ExplorerTxUrl         string `yaml:"explorerTxUrl"`
	ExplorerAddressUrl    string `yaml:"explorerAddressUrl"`
	BeaconExplorerUrl     string `yaml:"beaconExplorerUrl"`
}

type DatabaseConfig struct {
	// "sqlite", "pgsql" or empty to disable the batch archive
	Engine      string                    `yaml:"engine" envconfig:"DATABASE_ENGINE"`
	Sqlite      SqliteDatabaseConfig      `yaml:"sqlite"`
	Pgsql       PgsqlDatabaseConfig       `yaml:"pgsql"`
	PgsqlWriter PgsqlWriterDatabaseConfig `yaml:"pgsqlWriter"`
}

type SqliteDatabaseConfig struct {
	File         string `yaml:"file" envconfig:"DATABASE_SQLITE_FILE"`
	MaxOpenConns int    `yaml:"maxOpenConns" envconfig:"DATABASE_SQLITE_MAX_OPEN_CONNS"`
	MaxIdleConns int    `yaml:"maxIdleConns" envconfig:"DATABASE_SQLITE_MAX_IDLE_CONNS"`
}

type PgsqlDatabaseConfig struct {
	Username     string `yaml:"user" envconfig:"DATABASE_PGSQL_USERNAME"`
	Password     string `yaml:"password" envconfig:"DATABASE_PGSQL_PASSWORD"`
	Name         string `yaml:"name" envconfig:"DATABASE_PGSQL_NAME"`
	Host         string `yaml:"host" envconfig:"DATABASE_PGSQL_HOST"`
	Port         string `yaml:"port" envconfig:"DATABASE_PGSQL_PORT"`
	MaxOpenConns int    `yaml:"maxOpenConns" envconfig:"DATABASE_PGSQL_MAX_OPEN_CONNS"`
	MaxIdleConns int    `yaml:"maxIdleConns" envconfig:"DATABASE_PGSQL_MAX_IDLE_CONNS"`
}

type PgsqlWriterDatabaseConfig struct {
	Username     string `yaml:"user" envconfig:"DATABASE_PGSQL_WRITER_USERNAME"`
	Password     string `yaml:"password" envconfig:"DATABASE_PGSQL_WRITER_PASSWORD"`
	Name         string `yaml:"name" envconfig:"DATABASE_PGSQL_WRITER_NAME"`
	Host         string `yaml:"host" envconfig:"DATABASE_PGSQL_WRITER_HOST"`
	Port         string `yaml:"port" envconfig:"DATABASE_PGSQL_WRITER_PORT"`
	MaxOpenConns int    `yaml:"maxOpenConns" envconfig:"DATABASE_PGSQL_WRITER_MAX_OPEN_CONNS"`
	MaxIdleConns int    `yaml:"maxIdleConns" envconfig:"DATABASE_PGSQL_WRITER_MAX_IDLE_CONNS"`
}
