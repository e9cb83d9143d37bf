// Package contracts holds the ABIs and deployed addresses of the token,
// vault and collectible contracts.
package contracts

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Default ABIs, used when no artifact directory is configured.
var (
	//go:embed abi/Token.json
	TokenABI []byte
	//go:embed abi/Vault.json
	VaultABI []byte
	//go:embed abi/Collectible.json
	CollectibleABI []byte
)

// Artifact names as written by the deployment scripts.
const (
	TokenArtifact       = "MyERC20Token"
	VaultArtifact       = "DepositContract"
	CollectibleArtifact = "MyERC721"
)

var ErrMissingAddress = errors.New("contract address missing")

// Addresses mirrors contract-address.json.
type Addresses struct {
	Token       string `json:"MyERC20Token"`
	Vault       string `json:"DepositContract"`
	Collectible string `json:"MyERC721"`
}

// Set is everything needed to bind the three endpoints.
type Set struct {
	TokenAddress       common.Address
	VaultAddress       common.Address
	CollectibleAddress common.Address
	TokenABI           abi.ABI
	VaultABI           abi.ABI
	CollectibleABI     abi.ABI
}

// hardhatArtifact is the subset of a compiled artifact we read.
type hardhatArtifact struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
}

// Load reads contract-address.json and, when artifactDir is non-empty, the
// compiled artifacts next to it. Missing artifacts fall back to the embedded ABIs.
func Load(addressesPath, artifactDir string) (*Set, error) {
	addrs, err := LoadAddresses(addressesPath)
	if err != nil {
		return nil, fmt.Errorf("load addresses: %w", err)
	}
	return Bind(*addrs, artifactDir)
}

// LoadAddresses parses a contract-address.json file.
func LoadAddresses(path string) (*Addresses, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var addrs Addresses
	if err := json.Unmarshal(raw, &addrs); err != nil {
		return nil, err
	}
	return &addrs, nil
}

// Bind validates the addresses and parses the three ABIs.
func Bind(addrs Addresses, artifactDir string) (*Set, error) {
	set := &Set{}
	var err error

	if set.TokenAddress, err = parseAddress(TokenArtifact, addrs.Token); err != nil {
		return nil, err
	}
	if set.VaultAddress, err = parseAddress(VaultArtifact, addrs.Vault); err != nil {
		return nil, err
	}
	if set.CollectibleAddress, err = parseAddress(CollectibleArtifact, addrs.Collectible); err != nil {
		return nil, err
	}

	if set.TokenABI, err = loadABI(artifactDir, TokenArtifact, TokenABI); err != nil {
		return nil, err
	}
	if set.VaultABI, err = loadABI(artifactDir, VaultArtifact, VaultABI); err != nil {
		return nil, err
	}
	if set.CollectibleABI, err = loadABI(artifactDir, CollectibleArtifact, CollectibleABI); err != nil {
		return nil, err
	}
	return set, nil
}

func parseAddress(name, value string) (common.Address, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return common.Address{}, fmt.Errorf("%w: %s", ErrMissingAddress, name)
	}
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid %s address %q", name, value)
	}
	return common.HexToAddress(value), nil
}

func loadABI(dir, name string, fallback []byte) (abi.ABI, error) {
	source := fallback
	if dir != "" {
		raw, err := os.ReadFile(filepath.Join(dir, name+".json"))
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return abi.ABI{}, fmt.Errorf("read %s artifact: %w", name, err)
		default:
			var art hardhatArtifact
			if err := json.Unmarshal(raw, &art); err != nil {
				return abi.ABI{}, fmt.Errorf("decode %s artifact: %w", name, err)
			}
			if len(art.ABI) == 0 {
				return abi.ABI{}, fmt.Errorf("%s artifact has no abi", name)
			}
			source = art.ABI
		}
	}

	parsed, err := abi.JSON(strings.NewReader(string(source)))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse %s abi: %w", name, err)
	}
	return parsed, nil
}
