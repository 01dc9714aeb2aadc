// Package config defines all configuration for the market-making engine.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// secrets overridable via environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// QuantityMode selects which sizing strategy the Sizer uses.
type QuantityMode string

const (
	QuantityFixed      QuantityMode = "fixed"
	QuantityPercentage QuantityMode = "percentage"
	QuantityTiered     QuantityMode = "tiered"
)

// Config is the top-level configuration. Maps directly to the YAML file
// structure.
type Config struct {
	DryRun    bool            `mapstructure:"dry_run"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	Venue     VenueConfig     `mapstructure:"venue"`
	Sizing    SizingConfig    `mapstructure:"sizing"`
	Spread    SpreadConfig    `mapstructure:"spread"`
	Risk      RiskConfig      `mapstructure:"risk"`
	MaxLevels int             `mapstructure:"max_levels"`
	AutoHedge AutoHedgeConfig `mapstructure:"auto_hedge"`

	RequoteIntervalMs    int     `mapstructure:"requote_interval_ms"`
	InventorySkewEnabled bool    `mapstructure:"inventory_skew_enabled"`
	InventorySkewFactor  float64 `mapstructure:"inventory_skew_factor"`
	RequoteThreshold     float64 `mapstructure:"requote_threshold"`

	DefaultBias float64                `mapstructure:"default_bias"`
	Assets      map[int64]AssetConfig  `mapstructure:"assets"`

	Oracle    OracleConfig    `mapstructure:"oracle"`
	Cluster   ClusterConfig   `mapstructure:"cluster"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Backtest  BacktestConfig  `mapstructure:"backtest"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
}

// WalletConfig holds the Solana-style keypair used to sign venue orders.
// PrivateKeyBase58 is normally supplied via the PRIVATE_KEY_BASE58 env var
// rather than the YAML file.
type WalletConfig struct {
	PrivateKeyBase58 string `mapstructure:"private_key_base58"`
	RPCEndpoint      string `mapstructure:"rpc_endpoint"`
}

// VenueConfig holds the venue connection endpoints.
type VenueConfig struct {
	WebServerURL string        `mapstructure:"web_server_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// SizingConfig configures the Sizer (C4).
type SizingConfig struct {
	QuantityMode      QuantityMode `mapstructure:"quantity_mode"`
	FixedSize         float64      `mapstructure:"fixed_size"`
	PercentPerLevel   float64      `mapstructure:"percent_per_level"`
	TieredMultipliers []float64    `mapstructure:"tiered_multipliers"`
	StepSize          float64      `mapstructure:"step_size"`
}

// SpreadConfig configures the SpreadEngine (C3).
type SpreadConfig struct {
	Min         float64 `mapstructure:"min"`
	Max         float64 `mapstructure:"max"`
	DepthLevels int     `mapstructure:"depth_levels"`
}

// RiskConfig sets the limits enforced by the RiskGate (C2) and consumed by
// the Sizer's validateSizes.
type RiskConfig struct {
	MinMarginFraction   float64 `mapstructure:"min_margin_fraction"`
	MaxExposurePerSide  float64 `mapstructure:"max_exposure_per_side"`
	MaxExposurePerMarket float64 `mapstructure:"max_exposure_per_market"`
	MaxTotalExposure    float64 `mapstructure:"max_total_exposure"`
	MinFreeCollateral   float64 `mapstructure:"min_free_collateral"`
}

// AutoHedgeConfig configures the HedgeExecutor (C7).
type AutoHedgeConfig struct {
	Enabled            bool    `mapstructure:"enabled"`
	ImbalanceThreshold float64 `mapstructure:"imbalance_threshold"`
}

// AssetConfig is the per-market override block under `assets`.
type AssetConfig struct {
	Bias float64 `mapstructure:"bias"`
}

// OracleConfig configures the PriceOracle (C6).
type OracleConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	Sources             []string      `mapstructure:"sources"`
	UpdateInterval      time.Duration `mapstructure:"update_interval"`
	FallbackToOrderbook bool          `mapstructure:"fallback_to_orderbook"`
	CacheTimeout        time.Duration `mapstructure:"cache_timeout"`
}

// ClusterConfig describes the external worker-supervision layer. The core
// pipeline only validates these fields; no supervisor process runs inside
// this binary (see spec §5/§6).
type ClusterConfig struct {
	Enabled            bool      `mapstructure:"enabled"`
	ProcessGroups      [][]int64 `mapstructure:"process_groups"`
	WorkerRestartDelay time.Duration `mapstructure:"worker_restart_delay"`
	MaxRestarts        int       `mapstructure:"max_restarts"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DashboardConfig controls the optional read-only observability server.
type DashboardConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// BacktestConfig configures the BacktestEngine (C9).
type BacktestConfig struct {
	InitialBalance     float64 `mapstructure:"initial_balance"`
	MaxOrderAgeSeconds int     `mapstructure:"max_order_age_seconds"`
}

// SimulatorConfig configures synthetic bar generation for the Simulator (C10).
type SimulatorConfig struct {
	StartPrice    float64 `mapstructure:"start_price"`
	Volatility    float64 `mapstructure:"volatility"`
	TrendStrength float64 `mapstructure:"trend_strength"`
	SpreadMin     float64 `mapstructure:"spread_min"`
	SpreadMax     float64 `mapstructure:"spread_max"`
	DepthMin      float64 `mapstructure:"depth_min"`
	DepthMax      float64 `mapstructure:"depth_max"`
}

// Load reads config from a YAML file with environment-variable overrides for
// the fields named in spec §6.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("PERPMM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// PRIVATE_KEY_BASE58 — the Solana-style signing key, required.
	if key := os.Getenv("PRIVATE_KEY_BASE58"); key != "" {
		cfg.Wallet.PrivateKeyBase58 = key
	}
	// RPC_ENDPOINT — defaults to mainnet when unset.
	if rpc := os.Getenv("RPC_ENDPOINT"); rpc != "" {
		cfg.Wallet.RPCEndpoint = rpc
	}
	// WEB_SERVER_URL — the venue's websocket base URL.
	if url := os.Getenv("WEB_SERVER_URL"); url != "" {
		cfg.Venue.WebServerURL = url
	}
	// LOG_LEVEL — overrides logging.level.
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		cfg.Logging.Level = lvl
	}

	if cfg.Venue.WebServerURL == "" {
		cfg.Venue.WebServerURL = "wss://venue.example/ws"
	}
	if cfg.Wallet.RPCEndpoint == "" {
		cfg.Wallet.RPCEndpoint = "https://api.mainnet-beta.solana.com"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Backtest.InitialBalance == 0 {
		cfg.Backtest.InitialBalance = 10000
	}
	if cfg.Backtest.MaxOrderAgeSeconds == 0 {
		cfg.Backtest.MaxOrderAgeSeconds = 60
	}
	if cfg.Simulator.StartPrice == 0 {
		cfg.Simulator.StartPrice = 100
	}
	if cfg.Simulator.Volatility == 0 {
		cfg.Simulator.Volatility = 0.002
	}
	if cfg.Simulator.SpreadMax == 0 {
		cfg.Simulator.SpreadMax = 0.0125
	}
	if cfg.Simulator.DepthMin == 0 {
		cfg.Simulator.DepthMin = 10
	}
	if cfg.Simulator.DepthMax == 0 {
		cfg.Simulator.DepthMax = 200
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges, returning the first
// violated invariant.
func (c *Config) Validate() error {
	if c.Wallet.PrivateKeyBase58 == "" {
		return fmt.Errorf("wallet.private_key_base58 is required (set PRIVATE_KEY_BASE58)")
	}
	switch c.Sizing.QuantityMode {
	case QuantityFixed, QuantityPercentage, QuantityTiered:
	default:
		return fmt.Errorf("sizing.quantity_mode must be one of: fixed, percentage, tiered")
	}
	if c.MaxLevels < 1 || c.MaxLevels > 10 {
		return fmt.Errorf("max_levels must be in [1,10]")
	}
	if c.Sizing.QuantityMode == QuantityTiered {
		if len(c.Sizing.TieredMultipliers) < c.MaxLevels {
			return fmt.Errorf("sizing.tiered_multipliers length must be >= max_levels")
		}
		var sum float64
		for _, m := range c.Sizing.TieredMultipliers {
			sum += m
		}
		if sum < 0.99 || sum > 1.01 {
			return fmt.Errorf("sizing.tiered_multipliers must sum to 1.0 +/- 0.01, got %.4f", sum)
		}
	}
	if c.Spread.Min < 0 || c.Spread.Max <= c.Spread.Min {
		return fmt.Errorf("spread.min must be >= 0 and spread.max must be > spread.min")
	}
	if c.Spread.DepthLevels <= 0 {
		return fmt.Errorf("spread.depth_levels must be a positive integer")
	}
	if c.Risk.MinMarginFraction <= 0 || c.Risk.MinMarginFraction >= 1 {
		return fmt.Errorf("risk.min_margin_fraction must be in (0,1)")
	}
	if c.Risk.MaxExposurePerSide <= 0 || c.Risk.MaxExposurePerMarket <= 0 || c.Risk.MaxTotalExposure <= 0 {
		return fmt.Errorf("risk.max_exposure_per_side, max_exposure_per_market, max_total_exposure must be > 0")
	}
	if c.Risk.MinFreeCollateral < 0 {
		return fmt.Errorf("risk.min_free_collateral must be >= 0")
	}
	if c.AutoHedge.Enabled {
		if c.AutoHedge.ImbalanceThreshold <= 0 || c.AutoHedge.ImbalanceThreshold >= 1 {
			return fmt.Errorf("auto_hedge.imbalance_threshold must be in (0,1)")
		}
	}
	if c.RequoteThreshold < 0 || c.RequoteThreshold > 0.01 {
		return fmt.Errorf("requote_threshold must be in [0, 0.01]")
	}
	for marketID, asset := range c.Assets {
		if asset.Bias < -0.01 || asset.Bias > 0.01 {
			return fmt.Errorf("assets[%d].bias must be in [-0.01, 0.01]", marketID)
		}
	}
	if c.DefaultBias < -0.01 || c.DefaultBias > 0.01 {
		return fmt.Errorf("default_bias must be in [-0.01, 0.01]")
	}
	if c.Oracle.Enabled {
		if len(c.Oracle.Sources) == 0 {
			return fmt.Errorf("oracle.sources must be non-empty when oracle.enabled is true")
		}
		for _, s := range c.Oracle.Sources {
			switch s {
			case "binance", "bybit", "coinbase":
			default:
				return fmt.Errorf("oracle.sources contains unsupported source %q", s)
			}
		}
	}
	if c.Cluster.Enabled && len(c.Cluster.ProcessGroups) == 0 {
		return fmt.Errorf("cluster.process_groups must be non-empty when cluster.enabled is true")
	}
	if c.Venue.WebServerURL == "" {
		return fmt.Errorf("venue.web_server_url is required")
	}
	return nil
}

// Bias returns the configured per-market bias, falling back to DefaultBias.
func (c *Config) Bias(marketID int64) float64 {
	if a, ok := c.Assets[marketID]; ok {
		return a.Bias
	}
	return c.DefaultBias
}
