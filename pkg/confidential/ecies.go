package confidential

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/crypto/ecies"
)

// ECIESService seals values with ECIES over secp256k1. Comparisons unseal
// both operands with the private key and compare the plaintexts; callers see
// only the boolean, so the scheme is interchangeable with a homomorphic
// backend that compares without unsealing.
type ECIESService struct {
	mu  sync.RWMutex
	dir string
	prv *ecies.PrivateKey
}

// NewECIESService loads key material from dir if present. A missing key file
// is not an error: the service starts with Ready() == false and keys can be
// generated later via Generate.
func NewECIESService(dir string) (*ECIESService, error) {
	s := &ECIESService{dir: dir}
	if !KeysExist(dir) {
		return s, nil
	}
	prv, err := loadKey(dir)
	if err != nil {
		return nil, fmt.Errorf("load key material: %w", err)
	}
	s.prv = prv
	return s, nil
}

// Generate creates a fresh key pair, persists it under the service's key
// directory, and swaps it in for all subsequent operations.
func (s *ECIESService) Generate() error {
	prv, err := generateAndSaveKey(s.dir)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.prv = prv
	s.mu.Unlock()
	return nil
}

func (s *ECIESService) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.prv != nil
}

func (s *ECIESService) Encrypt(value uint32) (Ciphertext, error) {
	s.mu.RLock()
	prv := s.prv
	s.mu.RUnlock()
	if prv == nil {
		return nil, ErrNoKeyMaterial
	}

	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], value)
	ct, err := ecies.Encrypt(rand.Reader, &prv.PublicKey, buf[:], nil, nil)
	if err != nil {
		return nil, fmt.Errorf("seal value: %w", err)
	}
	return ct, nil
}

func (s *ECIESService) Decrypt(ct Ciphertext) (uint32, error) {
	s.mu.RLock()
	prv := s.prv
	s.mu.RUnlock()
	if prv == nil {
		return 0, ErrNoKeyMaterial
	}

	plain, err := prv.Decrypt(ct, nil, nil)
	if err != nil {
		return 0, fmt.Errorf("unseal value: %w", err)
	}
	if len(plain) != 4 {
		return 0, fmt.Errorf("unseal value: unexpected plaintext length %d", len(plain))
	}
	return binary.BigEndian.Uint32(plain), nil
}

func (s *ECIESService) CompareGE(a, b Ciphertext) (bool, error) {
	av, err := s.Decrypt(a)
	if err != nil {
		return false, err
	}
	bv, err := s.Decrypt(b)
	if err != nil {
		return false, err
	}
	return av >= bv, nil
}

// PublicKeyHex returns the uncompressed public key as a hex string, or ""
// when no key material is loaded.
func (s *ECIESService) PublicKeyHex() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.prv == nil {
		return ""
	}
	return fmt.Sprintf("%x", crypto.FromECDSAPub(s.prv.PublicKey.ExportECDSA()))
}

var _ Service = (*ECIESService)(nil)
