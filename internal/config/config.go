package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"txcrawler/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v2"
)

// ErrInvalid marks configuration problems that must abort startup.
var ErrInvalid = errors.New("invalid configuration")

const (
	DatabasePostgres = "postgres"
	DatabaseMysql    = "mysql"
	DatabaseSqlite   = "sqlite"

	DefaultTable = "transactions"
)

const (
	DefaultMaxBlockRange         uint64 = 100
	DefaultPushJobInterval              = time.Second
	DefaultQueryInterval                = 3 * time.Second
	DefaultLoopInterval                 = time.Second
	DefaultExecuteJobConcurrency        = 3
	DefaultChunkSize                    = 100
	DefaultRetryAttempts                = 3
	DefaultMinRetryInterval             = 500 * time.Millisecond
	DefaultMaxRetryInterval             = 3 * time.Second
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type Config struct {
	Log      LogConfig      `yaml:"log"`
	RPC      RPCConfig      `yaml:"rpc"`
	Retry    RetryConfig    `yaml:"retry"`
	HTTP     HTTPConfig     `yaml:"http"`
	Otel     OtelConfig     `yaml:"otel"`
	Redis    RedisConfig    `yaml:"redis"`
	Stream   StreamConfig   `yaml:"stream"`
	Crawler  CrawlerConfig  `yaml:"crawler"`
	Database DatabaseConfig `yaml:"database"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // tint, text, json
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

type RPCConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type RetryConfig struct {
	Attempts    int           `yaml:"attempts"`
	MinInterval time.Duration `yaml:"min_interval"`
	MaxInterval time.Duration `yaml:"max_interval"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type OtelConfig struct {
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

type RedisConfig struct {
	Addr string        `yaml:"addr"`
	TTL  time.Duration `yaml:"ttl"`
}

type StreamConfig struct {
	Enable  bool     `yaml:"enable"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type CrawlerConfig struct {
	Enable                bool          `yaml:"enable"`
	TxType                []string      `yaml:"tx_type"`
	Address               string        `yaml:"address"`
	Callback              string        `yaml:"callback"`
	FromBlock             uint64        `yaml:"from_block"`
	ToBlock               uint64        `yaml:"to_block"`
	MaxBlockRange         uint64        `yaml:"max_block_range"`
	PushJobInterval       time.Duration `yaml:"push_job_interval"`
	QueryInterval         time.Duration `yaml:"query_interval"`
	LoopInterval          time.Duration `yaml:"loop_interval"`
	ExecuteJobConcurrency int           `yaml:"execute_job_concurrency"`
	KeepRunning           bool          `yaml:"keep_running"`
	ForceUpdate           bool          `yaml:"force_update"`
	ChunkSize             int           `yaml:"chunk_size"`
	DB                    string        `yaml:"db"`
}

type DatabaseConfig struct {
	Postgres StoreConfig `yaml:"postgres"`
	Mysql    StoreConfig `yaml:"mysql"`
	Sqlite   StoreConfig `yaml:"sqlite"`
}

type StoreConfig struct {
	URI   string `yaml:"uri"`
	Table string `yaml:"table"`
}

// Store returns the storage settings selected by crawler.db.
func (c Config) Store() (StoreConfig, error) {
	var store StoreConfig
	switch c.Crawler.DB {
	case DatabasePostgres:
		store = c.Database.Postgres
	case DatabaseMysql:
		store = c.Database.Mysql
	case DatabaseSqlite:
		store = c.Database.Sqlite
	default:
		return StoreConfig{}, fmt.Errorf("%w: unknown crawler.db %q", ErrInvalid, c.Crawler.DB)
	}
	if store.Table == "" {
		store.Table = DefaultTable
	}
	return store, nil
}

// Parse decodes a YAML document, expanding ${VAR} references from the
// environment, and fills in defaults.
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadFile reads and parses the YAML file at path.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

func (c *Config) applyDefaults() {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Otel.ServiceName == "" {
		c.Otel.ServiceName = "txcrawler"
	}
	if c.Log.Format == "" {
		c.Log.Format = "tint"
	}
	if c.Retry.Attempts == 0 {
		c.Retry.Attempts = DefaultRetryAttempts
	}
	if c.Retry.MinInterval == 0 {
		c.Retry.MinInterval = DefaultMinRetryInterval
	}
	if c.Retry.MaxInterval == 0 {
		c.Retry.MaxInterval = DefaultMaxRetryInterval
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = 24 * time.Hour
	}
	if c.Stream.Topic == "" {
		c.Stream.Topic = "txcrawler-transactions"
	}

	crawler := &c.Crawler
	if len(crawler.TxType) == 0 {
		crawler.TxType = []string{domain.TxTypeTransfer}
	}
	if crawler.MaxBlockRange == 0 {
		crawler.MaxBlockRange = DefaultMaxBlockRange
	}
	if crawler.PushJobInterval == 0 {
		crawler.PushJobInterval = DefaultPushJobInterval
	}
	if crawler.QueryInterval == 0 {
		crawler.QueryInterval = DefaultQueryInterval
	}
	if crawler.LoopInterval == 0 {
		crawler.LoopInterval = DefaultLoopInterval
	}
	if crawler.ExecuteJobConcurrency == 0 {
		crawler.ExecuteJobConcurrency = DefaultExecuteJobConcurrency
	}
	if crawler.ChunkSize == 0 {
		crawler.ChunkSize = DefaultChunkSize
	}
}

// ApplyEnv overrides selected settings from the environment.
func (c *Config) ApplyEnv(source EnvSource) {
	if source == nil {
		return
	}
	override := func(key string, target *string) {
		if raw, ok := source.Lookup(key); ok && strings.TrimSpace(raw) != "" {
			*target = strings.TrimSpace(raw)
		}
	}
	override("RPC_URL", &c.RPC.URL)
	override("HTTP_ADDR", &c.HTTP.Addr)
	override("LOG_LEVEL", &c.Log.Level)
	override("LOG_FILE", &c.Log.File)
	override("REDIS_ADDR", &c.Redis.Addr)
	override("OTEL_EXPORTER_OTLP_ENDPOINT", &c.Otel.Endpoint)
	override("CRAWLER_CALLBACK", &c.Crawler.Callback)
	override("CRAWLER_DB", &c.Crawler.DB)
}

// Validate reports settings the crawler cannot run with. Every returned error wraps ErrInvalid.
func (c Config) Validate() error {
	if !c.Crawler.Enable {
		return nil
	}
	if strings.TrimSpace(c.RPC.URL) == "" {
		return fmt.Errorf("%w: rpc.url is required", ErrInvalid)
	}
	if c.Crawler.ExecuteJobConcurrency < 1 {
		return fmt.Errorf("%w: crawler.execute_job_concurrency must be >= 1", ErrInvalid)
	}
	if c.Crawler.ChunkSize < 1 {
		return fmt.Errorf("%w: crawler.chunk_size must be >= 1", ErrInvalid)
	}
	if c.Crawler.ToBlock != 0 && c.Crawler.ToBlock < c.Crawler.FromBlock {
		return fmt.Errorf("%w: crawler.to_block %d is below from_block %d", ErrInvalid, c.Crawler.ToBlock, c.Crawler.FromBlock)
	}
	for _, txType := range c.Crawler.TxType {
		if txType != domain.TxTypeTransfer {
			return fmt.Errorf("%w: unsupported crawler.tx_type %q", ErrInvalid, txType)
		}
	}
	if c.Crawler.Address != "" && !common.IsHexAddress(c.Crawler.Address) {
		return fmt.Errorf("%w: crawler.address %q is not a hex address", ErrInvalid, c.Crawler.Address)
	}
	if c.Retry.Attempts < 1 {
		return fmt.Errorf("%w: retry.attempts must be >= 1", ErrInvalid)
	}
	if c.Retry.MaxInterval < c.Retry.MinInterval {
		return fmt.Errorf("%w: retry.max_interval is below retry.min_interval", ErrInvalid)
	}
	if c.Stream.Enable && len(c.Stream.Brokers) == 0 {
		return fmt.Errorf("%w: stream.brokers is required when streaming is enabled", ErrInvalid)
	}
	if c.Crawler.DB == "" {
		return fmt.Errorf("%w: crawler.db is required", ErrInvalid)
	}
	store, err := c.Store()
	if err != nil {
		return err
	}
	if strings.TrimSpace(store.URI) == "" {
		return fmt.Errorf("%w: database.%s.uri is required", ErrInvalid, c.Crawler.DB)
	}
	if !tableNamePattern.MatchString(store.Table) {
		return fmt.Errorf("%w: database.%s.table %q is not a valid identifier", ErrInvalid, c.Crawler.DB, store.Table)
	}
	return nil
}

type EnvSource interface {
	Lookup(key string) (string, bool)
}

type EnvMap map[string]string

func (e EnvMap) Lookup(key string) (string, bool) {
	value, ok := e[key]
	return value, ok
}

func FromEnviron() EnvSource {
	env := make(EnvMap)
	for _, entry := range os.Environ() {
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		env[parts[0]] = parts[1]
	}
	return env
}
