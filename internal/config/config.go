package config

import (
	_ "embed"
	"os"
	"strings"
	"time"

	"priceoracle/pkg/types/prices"

	"github.com/joeshaw/envdecode"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrInvalidAssets = errors.New("invalid asset config")
)

//go:embed assets.yaml
var defaultAssets []byte

type Config struct {
	Port               string `env:"API_PORT,default=3001"`
	UpdateIntervalMS   int    `env:"UPDATE_INTERVAL,default=30000"`
	MinRequestInterval int    `env:"MIN_REQUEST_INTERVAL,default=250"`
	DexScreenerURL     string `env:"DEXSCREENER_URL,default=https://api.dexscreener.com"`

	StellarNetwork string `env:"STELLAR_NETWORK,default=testnet"`
	StellarRPCURL  string `env:"STELLAR_RPC_URL,default=http://localhost:8000"`
	ProviderSecret string `env:"PROVIDER_SECRET"`
	ContractID     string `env:"ORACLE_CONTRACT_ID"`

	AssetsFile string `env:"ASSETS_FILE"`
	DBPath     string `env:"DB_PATH,default=./data/oracle.db"`
	RedisAddr  string `env:"REDIS_ADDR"`

	LogLevel string `env:"LOG_LEVEL,default=info"`
	LogFile  string `env:"LOG_FILE"`

	Assets []prices.AssetConfig
}

// Load decodes the environment and the tracked asset list. Call
// utils.LoadEnv first to pick up a .env file.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, errors.Wrap(err, "decode environment")
	}

	assets, err := LoadAssets(cfg.AssetsFile)
	if err != nil {
		return nil, err
	}
	cfg.Assets = assets

	return cfg, cfg.IsValid()
}

func (c *Config) IsValid() error {
	switch {
	case c.Port == "":
		return errors.Wrap(ErrInvalidConfig, "API_PORT cannot be empty")
	case c.UpdateIntervalMS <= 0:
		return errors.Wrap(ErrInvalidConfig, "UPDATE_INTERVAL must be positive")
	case c.MinRequestInterval <= 0:
		return errors.Wrap(ErrInvalidConfig, "MIN_REQUEST_INTERVAL must be positive")
	case c.DexScreenerURL == "":
		return errors.Wrap(ErrInvalidConfig, "DEXSCREENER_URL cannot be empty")
	case len(c.Assets) == 0:
		return errors.Wrap(ErrInvalidConfig, "no assets configured")
	default:
		return nil
	}
}

func (c *Config) UpdateInterval() time.Duration {
	return time.Duration(c.UpdateIntervalMS) * time.Millisecond
}

func (c *Config) RequestInterval() time.Duration {
	return time.Duration(c.MinRequestInterval) * time.Millisecond
}

// LoadAssets reads the asset list from path, or the embedded defaults when
// path is empty.
func LoadAssets(path string) ([]prices.AssetConfig, error) {
	data := defaultAssets
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read assets file %s", path)
		}
		data = b
	}
	return ParseAssets(data)
}

func ParseAssets(data []byte) ([]prices.AssetConfig, error) {
	var assets []prices.AssetConfig
	if err := yaml.Unmarshal(data, &assets); err != nil {
		return nil, errors.Wrap(ErrInvalidAssets, err.Error())
	}

	seen := make(map[string]bool, len(assets))
	for i := range assets {
		a := &assets[i]
		a.Symbol = strings.ToUpper(strings.TrimSpace(a.Symbol))
		switch {
		case a.Symbol == "":
			return nil, errors.Wrapf(ErrInvalidAssets, "asset #%d has no symbol", i)
		case seen[a.Symbol]:
			return nil, errors.Wrapf(ErrInvalidAssets, "duplicate symbol %s", a.Symbol)
		case a.MinLiquidity < 0:
			return nil, errors.Wrapf(ErrInvalidAssets, "%s: minLiquidity cannot be negative", a.Symbol)
		case len(a.Addresses) == 0 && len(a.SearchTerms) == 0:
			return nil, errors.Wrapf(ErrInvalidAssets, "%s: needs at least one address or search term", a.Symbol)
		}
		for _, addr := range a.Addresses {
			if addr.Chain == "" || addr.Address == "" {
				return nil, errors.Wrapf(ErrInvalidAssets, "%s: address entries need chain and address", a.Symbol)
			}
		}
		seen[a.Symbol] = true
	}
	return assets, nil
}

func Symbols(assets []prices.AssetConfig) []string {
	out := make([]string, len(assets))
	for i, a := range assets {
		out[i] = a.Symbol
	}
	return out
}
