package cmd

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sensorledger/integrity/engine/verification/normalizer"
	"github.com/sensorledger/integrity/model/commitment"
	"github.com/sensorledger/integrity/module/chain"
	"github.com/sensorledger/integrity/module/content"
)

// Config keys. Each key is also read from the upper-cased environment variable.
const (
	keyProviderURL     = "provider_url"
	keyRPCKey          = "rpc_key"
	keyChainID         = "chain_id"
	keyContractAddress = "contract_address"
	keyTemperatureUnit = "temperature_unit"
	keyHumidityUnit    = "humidity_unit"
	keyDataAPIURL      = "default_data_api_url"
	keyGateway         = "ipfs_gateway"
	keyGatewayRate     = "ipfs_rate_limit"
	keyCacheDir        = "cache_dir"
	keyWorkers         = "workers"
	keyStartBlock      = "start_block"
	keyPageSize        = "page_size"
)

// Config holds the settings shared by all commands.
type Config struct {
	ProviderURL     string
	RPCKey          string
	ChainID         uint64
	ContractAddress string
	TemperatureUnit string
	HumidityUnit    string
	DataAPIURL      string
	Gateway         string
	GatewayRate     float64
	CacheDir        string
	Workers         int
	StartBlock      uint64
	PageSize        uint64
}

func initDeploymentFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("provider-url", "", "ledger RPC endpoint (PROVIDER_URL)")
	flags.String("rpc-key", "", "key appended to the RPC endpoint (RPC_KEY)")
	flags.Uint64("chain-id", 0, "chain id of the deployment (CHAIN_ID)")
	flags.String("contract-address", "", "address of the commitment contract (CONTRACT_ADDRESS)")
	flags.String("temperature-unit", "", "temperature unit written into leaves (TEMPERATURE_UNIT)")
	flags.String("humidity-unit", "", "humidity unit written into leaves (HUMIDITY_UNIT)")
	flags.String("data-api-url", "", "data API serving the stored readings (DEFAULT_DATA_API_URL)")
	flags.String("ipfs-gateway", content.DefaultGateway, "content gateway, a URL template containing {cid} or a path gateway (IPFS_GATEWAY)")
	flags.Float64("ipfs-rate-limit", content.DefaultRequestsPerSecond, "maximum gateway requests per second, 0 for no limit (IPFS_RATE_LIMIT)")
	flags.String("cache-dir", "", "directory of the persistent content cache, in-memory if empty (CACHE_DIR)")
	flags.Int("workers", normalizer.DefaultWorkers, "number of concurrent ledger and storage requests (WORKERS)")
	flags.Uint64("start-block", 0, "first block scanned for contract events (START_BLOCK)")
	flags.Uint64("page-size", chain.DefaultPageSize, "number of blocks per log query (PAGE_SIZE)")

	bindFlags(flags, map[string]string{
		keyProviderURL:     "provider-url",
		keyRPCKey:          "rpc-key",
		keyChainID:         "chain-id",
		keyContractAddress: "contract-address",
		keyTemperatureUnit: "temperature-unit",
		keyHumidityUnit:    "humidity-unit",
		keyDataAPIURL:      "data-api-url",
		keyGateway:         "ipfs-gateway",
		keyGatewayRate:     "ipfs-rate-limit",
		keyCacheDir:        "cache-dir",
		keyWorkers:         "workers",
		keyStartBlock:      "start-block",
		keyPageSize:        "page-size",
	})
}

// bindFlags binds each config key to the flag of the given name.
func bindFlags(flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		err := viper.BindPFlag(key, flags.Lookup(name))
		if err != nil {
			panic(fmt.Sprintf("could not bind flag %s: %v", name, err))
		}
	}
}

// LoadConfig reads the settings from flags, environment and config file.
func LoadConfig() (Config, error) {
	config := Config{
		ProviderURL:     viperString(keyProviderURL),
		RPCKey:          viperString(keyRPCKey),
		ChainID:         viper.GetUint64(keyChainID),
		ContractAddress: viperString(keyContractAddress),
		TemperatureUnit: viper.GetString(keyTemperatureUnit),
		HumidityUnit:    viper.GetString(keyHumidityUnit),
		DataAPIURL:      viperString(keyDataAPIURL),
		Gateway:         viperString(keyGateway),
		GatewayRate:     viper.GetFloat64(keyGatewayRate),
		CacheDir:        viper.GetString(keyCacheDir),
		Workers:         viper.GetInt(keyWorkers),
		StartBlock:      viper.GetUint64(keyStartBlock),
		PageSize:        viper.GetUint64(keyPageSize),
	}
	return config, config.Validate()
}

func viperString(key string) string {
	return strings.TrimSpace(viper.GetString(key))
}

// Validate checks all settings and reports every problem at once.
func (c Config) Validate() error {
	var result *multierror.Error
	if c.ProviderURL == "" {
		result = multierror.Append(result, fmt.Errorf("provider url is required"))
	}
	if c.ChainID == 0 {
		result = multierror.Append(result, fmt.Errorf("chain id is required"))
	}
	if !common.IsHexAddress(c.ContractAddress) {
		result = multierror.Append(result, fmt.Errorf("invalid contract address %q", c.ContractAddress))
	}
	if c.TemperatureUnit == "" {
		result = multierror.Append(result, fmt.Errorf("temperature unit is required"))
	}
	if c.HumidityUnit == "" {
		result = multierror.Append(result, fmt.Errorf("humidity unit is required"))
	}
	if c.Gateway == "" {
		result = multierror.Append(result, fmt.Errorf("content gateway is required"))
	}
	if c.GatewayRate < 0 {
		result = multierror.Append(result, fmt.Errorf("gateway rate limit must not be negative"))
	}
	if c.Workers <= 0 {
		result = multierror.Append(result, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.PageSize == 0 {
		result = multierror.Append(result, fmt.Errorf("page size must be positive"))
	}
	return result.ErrorOrNil()
}

// Endpoint returns the RPC endpoint including the key.
func (c Config) Endpoint() string {
	return c.ProviderURL + c.RPCKey
}

// Deployment returns the immutable run context for the configured deployment.
func (c Config) Deployment() commitment.Deployment {
	return commitment.Deployment{
		ChainID:         c.ChainID,
		ContractAddress: c.ContractAddress,
		TemperatureUnit: c.TemperatureUnit,
		HumidityUnit:    c.HumidityUnit,
		ProviderURL:     c.Endpoint(),
	}
}
