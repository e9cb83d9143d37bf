package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"depositdapp/internal/contracts"
	"depositdapp/internal/wallet"

	"github.com/spf13/viper"
)

// AppConfig ties together settings and the deployed contract addresses.
type AppConfig struct {
	Log       LogConfig       `mapstructure:"log"`
	Chain     ChainConfig     `mapstructure:"chain"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	Session   SessionConfig   `mapstructure:"session"`
	Service   ServiceConfig   `mapstructure:"service"`

	Addresses contracts.Addresses `mapstructure:"-"`
}

type LogConfig struct {
	Env   string `mapstructure:"env"`
	Level string `mapstructure:"level"`
}

type ChainConfig struct {
	RPCURL           string `mapstructure:"rpc_url"`
	PrivateKey       string `mapstructure:"private_key"`
	KeystorePath     string `mapstructure:"keystore_path"`
	KeystorePassword string `mapstructure:"keystore_password"`
	ExpectedChainID  int64  `mapstructure:"expected_chain_id"`
}

type ArtifactsConfig struct {
	// AddressesPath is contract-address.json as written by the deploy script.
	AddressesPath string `mapstructure:"addresses"`
	// Dir optionally holds compiled artifacts that replace the embedded ABIs.
	Dir string `mapstructure:"dir"`
}

type SessionConfig struct {
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout"`
	DepositAmount  string        `mapstructure:"deposit_amount"`
}

type ServiceConfig struct {
	HTTPPort          int           `mapstructure:"http_port"`
	HMACSecret        string        `mapstructure:"hmac_secret"`
	HMACClockSkew     time.Duration `mapstructure:"hmac_clock_skew"`
	IdempotencyWindow time.Duration `mapstructure:"idempotency_window"`
}

const (
	envPrefix            = "DAPP"
	defaultConfigName    = "depositdapp"
	defaultAddressesPath = "contracts/contract-address.json"
)

// Load reads the optional config file at path (or ./depositdapp.yaml), applies
// DAPP_* environment overrides, then loads the contract addresses.
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(defaultConfigName)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(path == "" && os.IsNotExist(err)) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	addrs, err := contracts.LoadAddresses(cfg.Artifacts.AddressesPath)
	if err != nil {
		return nil, fmt.Errorf("load addresses: %w", err)
	}
	cfg.Addresses = *addrs

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.env", "development")
	v.SetDefault("log.level", "")

	v.SetDefault("chain.rpc_url", "http://127.0.0.1:8545")
	v.SetDefault("chain.private_key", "")
	v.SetDefault("chain.keystore_path", "")
	v.SetDefault("chain.keystore_password", "")
	v.SetDefault("chain.expected_chain_id", 0)

	v.SetDefault("artifacts.addresses", defaultAddressesPath)
	v.SetDefault("artifacts.dir", "")

	v.SetDefault("session.poll_interval", 2*time.Second)
	v.SetDefault("session.confirm_timeout", time.Duration(0))
	v.SetDefault("session.deposit_amount", "10000")

	v.SetDefault("service.http_port", 3000)
	v.SetDefault("service.hmac_secret", "")
	v.SetDefault("service.hmac_clock_skew", 60*time.Second)
	v.SetDefault("service.idempotency_window", 10*time.Minute)
}

// Wallet returns the provider settings.
func (c *AppConfig) Wallet() wallet.Config {
	return wallet.Config{
		RPCURL:           c.Chain.RPCURL,
		PrivateKeyHex:    c.Chain.PrivateKey,
		KeystorePath:     c.Chain.KeystorePath,
		KeystorePassword: c.Chain.KeystorePassword,
	}
}
