package store

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/openr/kvstored/lib/kv"
)

// AreaConfig is one configured flooding domain, per spec.md §6:
// "list of areas each with areaId, includeInterfaceRegexes,
// neighborRegexes."
type AreaConfig struct {
	AreaID                  kv.AreaID `mapstructure:"areaId"`
	IncludeInterfaceRegexes []string  `mapstructure:"includeInterfaceRegexes"`
	NeighborRegexes         []string  `mapstructure:"neighborRegexes"`
}

// KVOptions is the Store's tuning surface, per spec.md §6: "syncIntervalSec,
// enableFloodOptimization, isFloodRoot, ttlDecrementMs, keyPrefixFilters,
// originatorIdFilters, filterOperator."
type KVOptions struct {
	SyncIntervalSec         int      `mapstructure:"syncIntervalSec"`
	EnableFloodOptimization bool     `mapstructure:"enableFloodOptimization"`
	IsFloodRoot             bool     `mapstructure:"isFloodRoot"`
	TTLDecrementMs          int64    `mapstructure:"ttlDecrementMs"`
	KeyPrefixFilters        []string `mapstructure:"keyPrefixFilters"`
	OriginatorIDFilters     []string `mapstructure:"originatorIdFilters"`
	FilterOperator          string   `mapstructure:"filterOperator"`
}

// NodeConfig is the Store's full construction-time configuration, per
// spec.md §6.
type NodeConfig struct {
	NodeName string       `mapstructure:"nodeName"`
	Domain   string       `mapstructure:"domain"`
	Areas    []AreaConfig `mapstructure:"areas"`
	KV       KVOptions    `mapstructure:"kvOptions"`
	LogLevel string       `mapstructure:"logLevel"`
}

// AdmissionFilter compiles the node-wide keyPrefixFilters/
// originatorIdFilters/filterOperator into a kv.Filters, per spec.md
// §4.2. A config with no filters configured returns a nil Filters,
// which kv.Filters.Matches treats as match-everything.
func (o KVOptions) AdmissionFilter() (*kv.Filters, error) {
	if len(o.KeyPrefixFilters) == 0 && len(o.OriginatorIDFilters) == 0 {
		return nil, nil
	}
	op := kv.OperatorOR
	if strings.EqualFold(o.FilterOperator, "AND") {
		op = kv.OperatorAND
	}
	return kv.NewFilters(o.KeyPrefixFilters, o.OriginatorIDFilters, op)
}

// LoadNodeConfig reads the node configuration the way dKV's
// cmd/serve/root.go processConfig does: .env files loaded first via
// godotenv, then viper reads the JSON file at path and layers
// OPENR_-prefixed environment variables over it, per spec.md §6's
// "Environment: NODE_NAME, OPENR_CONFIG" contract. configPath, if
// empty, falls back to the OPENR_CONFIG environment variable; NodeName,
// if unset in the file, falls back to NODE_NAME.
func LoadNodeConfig(configPath string) (*NodeConfig, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	if configPath == "" {
		configPath = os.Getenv("OPENR_CONFIG")
	}
	if configPath == "" {
		return nil, errors.New("config: no config path given and OPENR_CONFIG is unset")
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	v.SetEnvPrefix("openr")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "config: reading %s", configPath)
	}

	var cfg NodeConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "config: unmarshal")
	}

	if cfg.NodeName == "" {
		cfg.NodeName = os.Getenv("NODE_NAME")
	}
	if cfg.NodeName == "" {
		return nil, errors.New("config: nodeName is required (config file or NODE_NAME)")
	}
	if len(cfg.Areas) == 0 {
		return nil, errors.New("config: at least one area is required")
	}

	return &cfg, nil
}
