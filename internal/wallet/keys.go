package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// KeySource yields the signing key when account access is requested.
type KeySource interface {
	Unlock() (*ecdsa.PrivateKey, error)
}

func keySourceFor(cfg Config) (KeySource, error) {
	if cfg.PrivateKeyHex != "" {
		return HexKey(cfg.PrivateKeyHex), nil
	}
	if _, err := os.Stat(cfg.KeystorePath); err != nil {
		return nil, fmt.Errorf("keystore: %w", err)
	}
	return KeystoreFile{Path: cfg.KeystorePath, Password: cfg.KeystorePassword}, nil
}

// HexKey is a raw hex-encoded private key, with or without 0x.
type HexKey string

func (h HexKey) Unlock() (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(string(h)), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

// KeystoreFile is an encrypted Web3 Secret Storage file. A wrong password
// surfaces as go-ethereum's own decryption error.
type KeystoreFile struct {
	Path     string
	Password string
}

func (k KeystoreFile) Unlock() (*ecdsa.PrivateKey, error) {
	raw, err := os.ReadFile(k.Path)
	if err != nil {
		return nil, err
	}
	key, err := keystore.DecryptKey(raw, k.Password)
	if err != nil {
		return nil, err
	}
	return key.PrivateKey, nil
}

func addressOf(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}
