package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"dadchain/internal/models"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ilyakaznacheev/cleanenv"
)

var (
	ErrInvalidOwner    = errors.New("ledger owner must be a hex address")
	ErrInvalidTiers    = errors.New("badge tiers must have unique positive ids")
	ErrUnknownStorage  = errors.New("storage driver must be memory or postgres")
	ErrEmptyBotToken   = errors.New("telegram bot token is required")
	ErrEmptyDBPassword = errors.New("database password is required")
	ErrInvalidSeeder   = errors.New("parser account must be a non-zero hex address")
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Config struct {
	App      AppConfig      `yaml:"app" env-prefix:"APP_"`
	Ledger   LedgerConfig   `yaml:"ledger" env-prefix:"LEDGER_"`
	Storage  StorageConfig  `yaml:"storage" env-prefix:"STORAGE_"`
	Database DatabaseConfig `yaml:"database" env-prefix:"DB_"`
	NATS     NATSConfig     `yaml:"nats" env-prefix:"NATS_"`
	HTTP     HTTPConfig     `yaml:"http" env-prefix:"HTTP_"`
	Bot      BotConfig      `yaml:"bot" env-prefix:"BOT_"`
	Indexer  IndexerConfig  `yaml:"indexer" env-prefix:"INDEXER_"`
	Parser   ParserConfig   `yaml:"parser" env-prefix:"PARSER_"`
}

type AppConfig struct {
	Name        string `yaml:"name" env:"NAME" env-default:"dadchain"`
	Environment string `yaml:"environment" env:"ENVIRONMENT" env-default:"production"`
	LogLevel    string `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
}

type LedgerConfig struct {
	Owner            string             `yaml:"owner" env:"OWNER"`
	MaxContentLength int                `yaml:"max_content_length" env:"MAX_CONTENT_LENGTH" env-default:"280"`
	Tiers            []models.BadgeTier `yaml:"tiers"`
	TokenName        string             `yaml:"token_name" env:"TOKEN_NAME" env-default:"Mock USDC"`
	TokenSymbol      string             `yaml:"token_symbol" env:"TOKEN_SYMBOL" env-default:"mUSDC"`
	TokenDecimals    uint8              `yaml:"token_decimals" env:"TOKEN_DECIMALS" env-default:"6"`
	BadgeBaseURI     string             `yaml:"badge_base_uri" env:"BADGE_BASE_URI" env-default:"ipfs://dadchain-badges/"`
}

// OwnerAddress is only meaningful after Validate succeeded.
func (l LedgerConfig) OwnerAddress() common.Address {
	return common.HexToAddress(l.Owner)
}

// BadgeTiers falls back to the default milestones when none are configured.
func (l LedgerConfig) BadgeTiers() []models.BadgeTier {
	if len(l.Tiers) == 0 {
		return models.DefaultBadgeTiers()
	}
	return l.Tiers
}

type StorageConfig struct {
	Driver string `yaml:"driver" env:"DRIVER" env-default:"memory"`
}

type DatabaseConfig struct {
	Host           string `yaml:"host" env:"HOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PORT" env-default:"5432"`
	User           string `yaml:"user" env:"USER" env-default:"dadchain"`
	Password       string `yaml:"password" env:"PASSWORD"`
	Name           string `yaml:"name" env:"NAME" env-default:"dadchain"`
	MaxConnections int    `yaml:"max_connections" env:"MAX_CONNECTIONS" env-default:"25"`
	MinConnections int    `yaml:"min_connections" env:"MIN_CONNECTIONS" env-default:"5"`
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

type NATSConfig struct {
	Enabled    bool          `yaml:"enabled" env:"ENABLED" env-default:"false"`
	URL        string        `yaml:"url" env:"URL" env-default:"nats://localhost:4222"`
	StreamName string        `yaml:"stream_name" env:"STREAM_NAME" env-default:"DADCHAIN"`
	FetchWait  time.Duration `yaml:"fetch_wait" env:"FETCH_WAIT" env-default:"500ms"`
}

type HTTPConfig struct {
	Port           int      `yaml:"port" env:"PORT" env-default:"8080"`
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" env-separator:"," env-default:"http://localhost:3000"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS" env-default:"5"`
	RateLimitBurst int      `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST" env-default:"10"`
	// AdminRoutes registers the owner-only mint and wiring endpoints.
	AdminRoutes    bool     `yaml:"admin_routes" env:"ADMIN_ROUTES" env-default:"true"`
}

type BotConfig struct {
	Enabled        bool   `yaml:"enabled" env:"ENABLED" env-default:"false"`
	Token          string `yaml:"token" env:"TOKEN"`
	ParseMode      string `yaml:"parse_mode" env:"PARSE_MODE" env-default:"Markdown"`
	AnnounceChatID int64  `yaml:"announce_chat_id" env:"ANNOUNCE_CHAT_ID"`
}

type IndexerConfig struct {
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL" env-default:"sqlite://dadchain-index.db"`
	Port        int    `yaml:"port" env:"PORT" env-default:"8081"`
	PageLimit   int    `yaml:"page_limit" env:"PAGE_LIMIT" env-default:"100"`
}

// ParserConfig drives the seeder that submits jokes scraped from Reddit
// under a dedicated account.
type ParserConfig struct {
	Enabled    bool          `yaml:"enabled" env:"ENABLED" env-default:"false"`
	Account    string        `yaml:"account" env:"ACCOUNT"`
	Interval   time.Duration `yaml:"interval" env:"INTERVAL" env-default:"30m"`
	BaseURL    string        `yaml:"base_url" env:"BASE_URL" env-default:"https://www.reddit.com"`
	Subreddits []string      `yaml:"subreddits" env:"SUBREDDITS" env-separator:"," env-default:"dadjokes"`
	Limit      int           `yaml:"limit" env:"LIMIT" env-default:"25"`
}

func (p ParserConfig) AccountAddress() common.Address {
	return common.HexToAddress(p.Account)
}

func Load() (*Config, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from %s: %w", configPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadDatabase fills db from the DB_* environment only, for tools that
// need a connection without a full node configuration.
func LoadDatabase(db *DatabaseConfig) error {
	var env struct {
		Database DatabaseConfig `env-prefix:"DB_"`
	}

	if err := cleanenv.ReadEnv(&env); err != nil {
		return fmt.Errorf("failed to read database config: %w", err)
	}
	*db = env.Database
	return nil
}

func (c *Config) Validate() error {
	if !common.IsHexAddress(c.Ledger.Owner) || c.Ledger.OwnerAddress() == (common.Address{}) {
		return ErrInvalidOwner
	}

	seen := make(map[uint64]struct{}, len(c.Ledger.Tiers))
	for _, tier := range c.Ledger.Tiers {
		if _, dup := seen[tier.ID]; dup || tier.ID == 0 {
			return fmt.Errorf("%w: badge %d", ErrInvalidTiers, tier.ID)
		}
		seen[tier.ID] = struct{}{}
	}

	switch c.Storage.Driver {
	case StorageMemory:
	case StoragePostgres:
		if c.Database.Password == "" {
			return ErrEmptyDBPassword
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStorage, c.Storage.Driver)
	}

	if c.Bot.Enabled && c.Bot.Token == "" {
		return ErrEmptyBotToken
	}

	if c.Parser.Enabled && (!common.IsHexAddress(c.Parser.Account) || c.Parser.AccountAddress() == (common.Address{})) {
		return ErrInvalidSeeder
	}

	return nil
}
