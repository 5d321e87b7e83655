package confidential

import (
	"errors"
	"math"
	"testing"
)

func newReadyService(t *testing.T) *ECIESService {
	t.Helper()
	svc, err := NewECIESService(t.TempDir())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := svc.Generate(); err != nil {
		t.Fatalf("generate: %v", err)
	}
	return svc
}

func TestSealUnsealRoundtrip(t *testing.T) {
	svc := newReadyService(t)

	for _, v := range []uint32{0, 1, 90, 100, math.MaxUint32} {
		ct, err := svc.Encrypt(v)
		if err != nil {
			t.Fatalf("encrypt %d: %v", v, err)
		}
		got, err := svc.Decrypt(ct)
		if err != nil {
			t.Fatalf("decrypt %d: %v", v, err)
		}
		if got != v {
			t.Errorf("roundtrip %d = %d", v, got)
		}
	}
}

func TestCiphertextsDiffer(t *testing.T) {
	svc := newReadyService(t)

	a, err := svc.Encrypt(42)
	if err != nil {
		t.Fatal(err)
	}
	b, err := svc.Encrypt(42)
	if err != nil {
		t.Fatal(err)
	}
	// ECIES uses an ephemeral key per encryption, so equal plaintexts must
	// not produce equal ciphertexts.
	if string(a) == string(b) {
		t.Error("two encryptions of the same value produced identical ciphertexts")
	}
}

func TestCompareGE(t *testing.T) {
	svc := newReadyService(t)

	tests := []struct {
		a, b uint32
		want bool
	}{
		{100, 90, true},
		{90, 100, false},
		{100, 100, true},
		{0, 0, true},
		{0, 1, false},
		{math.MaxUint32, 0, true},
	}
	for _, tt := range tests {
		ca, err := svc.Encrypt(tt.a)
		if err != nil {
			t.Fatal(err)
		}
		cb, err := svc.Encrypt(tt.b)
		if err != nil {
			t.Fatal(err)
		}
		got, err := svc.CompareGE(ca, cb)
		if err != nil {
			t.Fatalf("CompareGE(%d, %d): %v", tt.a, tt.b, err)
		}
		if got != tt.want {
			t.Errorf("CompareGE(%d, %d) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestNotReadyWithoutKeys(t *testing.T) {
	svc, err := NewECIESService(t.TempDir())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if svc.Ready() {
		t.Fatal("service ready without key material")
	}
	if _, err := svc.Encrypt(1); !errors.Is(err, ErrNoKeyMaterial) {
		t.Errorf("Encrypt err = %v, want ErrNoKeyMaterial", err)
	}
	if _, err := svc.Decrypt(Ciphertext("junk")); !errors.Is(err, ErrNoKeyMaterial) {
		t.Errorf("Decrypt err = %v, want ErrNoKeyMaterial", err)
	}
	if _, err := svc.CompareGE(nil, nil); !errors.Is(err, ErrNoKeyMaterial) {
		t.Errorf("CompareGE err = %v, want ErrNoKeyMaterial", err)
	}
	if got := svc.PublicKeyHex(); got != "" {
		t.Errorf("PublicKeyHex = %q, want empty", got)
	}
}

func TestKeyMaterialPersists(t *testing.T) {
	dir := t.TempDir()

	if KeysExist(dir) {
		t.Fatal("keys reported before generation")
	}

	first, err := NewECIESService(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Generate(); err != nil {
		t.Fatal(err)
	}
	if !KeysExist(dir) {
		t.Fatal("keys not reported after generation")
	}

	ct, err := first.Encrypt(77)
	if err != nil {
		t.Fatal(err)
	}

	// A fresh service over the same directory must load the same key pair.
	second, err := NewECIESService(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !second.Ready() {
		t.Fatal("reloaded service not ready")
	}
	got, err := second.Decrypt(ct)
	if err != nil {
		t.Fatalf("decrypt with reloaded key: %v", err)
	}
	if got != 77 {
		t.Errorf("decrypt = %d, want 77", got)
	}
	if first.PublicKeyHex() != second.PublicKeyHex() {
		t.Error("reloaded public key differs")
	}
}

func TestDecryptGarbage(t *testing.T) {
	svc := newReadyService(t)
	if _, err := svc.Decrypt(Ciphertext("not a ciphertext")); err == nil {
		t.Error("decrypting garbage succeeded")
	}
}
