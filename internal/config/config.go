// Package config defines configuration for the market-making engine.
//
// Two files are loaded: the MM config (wallet, group, inventory/order
// manager tuning, market name) and the cluster/group config (RPC
// endpoints, and per-group token/market/oracle metadata). Sensitive fields
// are overridable via MM_* environment variables; an optional .env file is
// loaded first so local development doesn't require exporting real env
// vars by hand.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"mm-engine/internal/mmerr"
)

// InventoryManagerConfig tunes quote sizing around inventory delta.
type InventoryManagerConfig struct {
	InitialCapital uint64 `mapstructure:"initial_capital"`
	MaxQuote       int64  `mapstructure:"max_quote"`
	ShapeNum       uint32 `mapstructure:"shape_num"`
	ShapeDenom     uint32 `mapstructure:"shape_denom"`
	Spread         uint8  `mapstructure:"spread"`
}

// OrderManagerConfig tunes order-book reconciliation.
type OrderManagerConfig struct {
	Layers          int     `mapstructure:"layers"`
	SpacingBps      float64 `mapstructure:"spacing_bps"`
	StepAmount      uint64  `mapstructure:"step_amount"`
	MaxMessageBytes int     `mapstructure:"max_message_bytes"`
	// MaxInflightTracked bounds InflightOrders per Open Question 2: once
	// exceeded, the oldest tracked ID is evicted to make room.
	MaxInflightTracked int `mapstructure:"max_inflight_tracked"`
}

// MarketConfig names the single market this instance quotes.
type MarketConfig struct {
	Name string `mapstructure:"name"`
}

// RefreshConfig tunes the periodic polling loops.
type RefreshConfig struct {
	IngestInterval    time.Duration `mapstructure:"ingest_interval"`
	ChainMetaInterval time.Duration `mapstructure:"chain_meta_interval"`
	WorkerTick        time.Duration `mapstructure:"worker_tick"`
}

// WatchdogConfig tunes the supplemental risk watchdog (SPEC_FULL.md §9).
type WatchdogConfig struct {
	Enabled                  bool          `mapstructure:"enabled"`
	MaxChainMetaStaleness    time.Duration `mapstructure:"max_chain_meta_staleness"`
	MaxConsecutiveSubmitFail int           `mapstructure:"max_consecutive_submit_fail"`
}

// LoggingConfig matches the teacher's slog setup.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config is the top-level MM config file.
type Config struct {
	DryRun           bool                   `mapstructure:"dry_run"`
	KeypairPath      string                 `mapstructure:"wallet"`
	Group            string                 `mapstructure:"group"`
	Cluster          string                 `mapstructure:"cluster"`
	InventoryManager InventoryManagerConfig `mapstructure:"inventory_manager_config"`
	OrderManager     OrderManagerConfig     `mapstructure:"order_manager_config"`
	Market           MarketConfig           `mapstructure:"market"`
	Refresh          RefreshConfig          `mapstructure:"refresh"`
	Watchdog         WatchdogConfig         `mapstructure:"watchdog"`
	Logging          LoggingConfig          `mapstructure:"logging"`
}

// ClusterConfig is one named cluster's RPC endpoint pair.
type ClusterConfig struct {
	RPCURL    string `mapstructure:"rpc_url"`
	PubsubURL string `mapstructure:"pubsub_url"`
}

// TokenConfig names a token's mint address within a group.
type TokenConfig struct {
	Symbol string `mapstructure:"symbol"`
	Mint   string `mapstructure:"mint"`
}

// OracleConfig names a price oracle account within a group.
type OracleConfig struct {
	Symbol  string `mapstructure:"symbol"`
	Address string `mapstructure:"address"`
}

// GroupMarketConfig describes one tradeable market within a group.
type GroupMarketConfig struct {
	Name          string `mapstructure:"name"`
	BaseSymbol    string `mapstructure:"base_symbol"`
	QuoteSymbol   string `mapstructure:"quote_symbol"`
	Address       string `mapstructure:"address"`
	BaseDecimals  uint8  `mapstructure:"base_decimals"`
	QuoteDecimals uint8  `mapstructure:"quote_decimals"`
	MarketIndex   int    `mapstructure:"market_index"`
	Bids          string `mapstructure:"bids"`
	Asks          string `mapstructure:"asks"`
	EventQueue    string `mapstructure:"event_queue"`
	PcLotSize     uint64 `mapstructure:"pc_lot_size"`
	CoinLotSize   uint64 `mapstructure:"coin_lot_size"`
}

// GroupConfig is one margin group's full metadata.
type GroupConfig struct {
	Cluster     string              `mapstructure:"cluster"`
	Name        string              `mapstructure:"name"`
	QuoteSymbol string              `mapstructure:"quote_symbol"`
	Address     string              `mapstructure:"address"`
	ProgramID   string              `mapstructure:"program_id"`
	Tokens      []TokenConfig       `mapstructure:"tokens"`
	Oracles     []OracleConfig      `mapstructure:"oracles"`
	Markets     []GroupMarketConfig `mapstructure:"markets"`
}

// GroupMarket returns the named market within this group, if present.
func (g GroupConfig) GroupMarket(name string) (GroupMarketConfig, bool) {
	for _, m := range g.Markets {
		if m.Name == name {
			return m, true
		}
	}
	return GroupMarketConfig{}, false
}

// ClusterConfigFile is the second JSON config: clusters + groups.
type ClusterConfigFile struct {
	Clusters struct {
		Devnet  ClusterConfig `mapstructure:"devnet"`
		Mainnet ClusterConfig `mapstructure:"mainnet"`
	} `mapstructure:"clusters"`
	Groups []GroupConfig `mapstructure:"groups"`
}

// ClusterFor resolves the RPC endpoint for the given cluster name, matching
// the original's get_config_for_cluster: "mainnet" -> mainnet, anything
// else (including empty) -> devnet.
func (c ClusterConfigFile) ClusterFor(name string) ClusterConfig {
	if strings.EqualFold(name, "mainnet") {
		return c.Clusters.Mainnet
	}
	return c.Clusters.Devnet
}

// Group looks up a group by name.
func (c ClusterConfigFile) Group(name string) (GroupConfig, bool) {
	for _, g := range c.Groups {
		if g.Name == name {
			return g, true
		}
	}
	return GroupConfig{}, false
}

// Load reads the MM config JSON file with MM_* env var overrides. An
// optional .env file in the working directory is loaded first (missing
// .env is not an error).
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetEnvPrefix("MM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, mmerr.New(mmerr.KindConfigLoad, fmt.Errorf("read config %s: %w", path, err))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, mmerr.New(mmerr.KindConfigLoad, fmt.Errorf("unmarshal config: %w", err))
	}

	if kp := os.Getenv("MM_WALLET"); kp != "" {
		cfg.KeypairPath = kp
	}
	if os.Getenv("MM_DRY_RUN") == "true" || os.Getenv("MM_DRY_RUN") == "1" {
		cfg.DryRun = true
	}

	return &cfg, nil
}

// LoadClusterConfig reads the cluster/group JSON file.
func LoadClusterConfig(path string) (*ClusterConfigFile, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		return nil, mmerr.New(mmerr.KindConfigLoad, fmt.Errorf("read cluster config %s: %w", path, err))
	}

	var cfg ClusterConfigFile
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, mmerr.New(mmerr.KindConfigLoad, fmt.Errorf("unmarshal cluster config: %w", err))
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("refresh.ingest_interval", 500*time.Millisecond)
	v.SetDefault("refresh.chain_meta_interval", 2500*time.Millisecond)
	v.SetDefault("refresh.worker_tick", 750*time.Millisecond)
	v.SetDefault("order_manager_config.max_message_bytes", 1000)
	v.SetDefault("order_manager_config.max_inflight_tracked", 4096)
	v.SetDefault("watchdog.enabled", true)
	v.SetDefault("watchdog.max_chain_meta_staleness", 10*time.Second)
	v.SetDefault("watchdog.max_consecutive_submit_fail", 5)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.KeypairPath == "" {
		return fmt.Errorf("wallet (keypair path) is required (set MM_WALLET)")
	}
	if c.Group == "" {
		return fmt.Errorf("group is required")
	}
	if c.Market.Name == "" {
		return fmt.Errorf("market.name is required")
	}
	if c.InventoryManager.MaxQuote <= 0 {
		return fmt.Errorf("inventory_manager_config.max_quote must be > 0")
	}
	if c.InventoryManager.ShapeDenom == 0 {
		return fmt.Errorf("inventory_manager_config.shape_denom must be > 0")
	}
	if c.OrderManager.Layers <= 0 {
		return fmt.Errorf("order_manager_config.layers must be > 0")
	}
	if c.OrderManager.MaxMessageBytes <= 0 {
		return fmt.Errorf("order_manager_config.max_message_bytes must be > 0")
	}
	return nil
}
