package confidential

import "errors"

// Ciphertext is an opaque sealed value. The matching engine stores and passes
// these around without ever inspecting the bytes.
type Ciphertext []byte

// Service provides the confidential-value operations the matching engine
// consumes: sealing plaintext ticks/quantities, unsealing them for rendering,
// and ordering comparisons over sealed values. Implementations hold the
// process-wide key pair; the engine never touches key material itself.
type Service interface {
	// Encrypt seals a plaintext value.
	Encrypt(value uint32) (Ciphertext, error)
	// Decrypt unseals a ciphertext produced by Encrypt.
	Decrypt(ct Ciphertext) (uint32, error)
	// CompareGE reports whether the plaintext of a is >= the plaintext of b.
	CompareGE(a, b Ciphertext) (bool, error)
	// Ready reports whether usable key material is loaded.
	Ready() bool
}

// ErrNoKeyMaterial is returned by every operation on a service that has no
// key pair loaded. Callers recover by generating keys and retrying.
var ErrNoKeyMaterial = errors.New("confidential: no key material loaded")
