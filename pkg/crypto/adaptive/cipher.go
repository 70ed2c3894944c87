package adaptive

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"
	"runtime"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the only accepted key length. Vault keys and snapshot keys
// are always 256-bit.
const KeySize = 32

// Algorithm names a supported AEAD construction. The names double as
// configuration values.
type Algorithm string

const (
	AES256GCM        Algorithm = "aes-256-gcm"
	ChaCha20Poly1305 Algorithm = "chacha20-poly1305"
)

var (
	// ErrKeySize is returned for keys that are not exactly KeySize bytes.
	ErrKeySize = errors.New("adaptive: key must be 32 bytes")

	// ErrCiphertextShort is returned when a sealed blob is too small to
	// contain a nonce.
	ErrCiphertextShort = errors.New("adaptive: ciphertext shorter than nonce")

	// ErrUnknownAlgorithm is returned for an unrecognized algorithm name.
	ErrUnknownAlgorithm = errors.New("adaptive: unknown algorithm")
)

// Cipher seals and opens byte blobs under a fixed key.
type Cipher struct {
	aead cipher.AEAD
	algo Algorithm
}

// New selects the preferred algorithm for the current hardware.
func New(key []byte) (*Cipher, error) {
	return NewWithAlgorithm(key, Preferred())
}

// NewWithAlgorithm builds a cipher for an explicit algorithm. An empty
// name means Preferred().
func NewWithAlgorithm(key []byte, algo Algorithm) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, ErrKeySize
	}
	if algo == "" {
		algo = Preferred()
	}

	var (
		aead cipher.AEAD
		err  error
	)
	switch algo {
	case AES256GCM:
		var block cipher.Block
		block, err = aes.NewCipher(key)
		if err == nil {
			aead, err = cipher.NewGCM(block)
		}
	case ChaCha20Poly1305:
		aead, err = chacha20poly1305.New(key)
	default:
		return nil, ErrUnknownAlgorithm
	}
	if err != nil {
		return nil, err
	}

	return &Cipher{aead: aead, algo: algo}, nil
}

// Preferred reports the algorithm this build would pick on its own.
// Go's crypto/aes uses AES-NI on amd64 and the ARMv8 crypto extensions
// on arm64; everywhere else software ChaCha20 is the safer default.
func Preferred() Algorithm {
	switch runtime.GOARCH {
	case "amd64", "arm64":
		return AES256GCM
	default:
		return ChaCha20Poly1305
	}
}

// Algorithm reports which construction the cipher uses.
func (c *Cipher) Algorithm() Algorithm {
	return c.algo
}

// Seal encrypts plaintext, binding additionalData into the tag. The
// returned blob is nonce || ciphertext || tag with a fresh random nonce.
func (c *Cipher) Seal(plaintext, additionalData []byte) ([]byte, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return c.aead.Seal(nonce, nonce, plaintext, additionalData), nil
}

// Open decrypts a blob produced by Seal. Authentication failure and a
// truncated blob are both decryption failures to the caller.
func (c *Cipher) Open(blob, additionalData []byte) ([]byte, error) {
	if len(blob) < c.aead.NonceSize() {
		return nil, ErrCiphertextShort
	}
	nonce, ciphertext := blob[:c.aead.NonceSize()], blob[c.aead.NonceSize():]
	return c.aead.Open(nil, nonce, ciphertext, additionalData)
}

// Overhead returns the number of bytes Seal adds beyond the plaintext.
func (c *Cipher) Overhead() int {
	return c.aead.NonceSize() + c.aead.Overhead()
}
