package confidential

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/crypto/ecies"
)

const keyFileName = "value_key.hex"

func keyFile(dir string) string {
	return filepath.Join(dir, keyFileName)
}

// KeysExist reports whether key material is present under dir.
func KeysExist(dir string) bool {
	_, err := os.Stat(keyFile(dir))
	return err == nil
}

func loadKey(dir string) (*ecies.PrivateKey, error) {
	prv, err := crypto.LoadECDSA(keyFile(dir))
	if err != nil {
		return nil, err
	}
	return ecies.ImportECDSA(prv), nil
}

func generateAndSaveKey(dir string) (*ecies.PrivateKey, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create key directory: %w", err)
	}
	prv, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	if err := crypto.SaveECDSA(keyFile(dir), prv); err != nil {
		return nil, fmt.Errorf("save key: %w", err)
	}
	return ecies.ImportECDSA(prv), nil
}
