package domain

// Algorithm represents the cryptographic algorithm used for encryption.
//
// All supported algorithms provide Authenticated Encryption with Associated Data (AEAD),
// so a payload that was modified or encrypted under another secret fails tag verification
// instead of decrypting to garbage.
//
// Algorithm selection guidelines:
//   - Use AESGCM on modern CPUs with AES-NI hardware acceleration
//   - Use ChaCha20 on mobile devices or systems without AES-NI
type Algorithm string

const (
	// AESGCM represents the AES-256-GCM authenticated encryption algorithm.
	//
	// Key features:
	//   - 256-bit key size
	//   - 12-byte nonce (96 bits)
	//   - 16-byte authentication tag
	AESGCM Algorithm = "aes-gcm"

	// ChaCha20 represents the ChaCha20-Poly1305 authenticated encryption algorithm.
	//
	// Key features:
	//   - 256-bit key size
	//   - 12-byte nonce (96 bits)
	//   - 16-byte authentication tag
	ChaCha20 Algorithm = "chacha20-poly1305"
)

// ParseAlgorithm converts a configuration string into a supported Algorithm.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case AESGCM, ChaCha20:
		return Algorithm(s), nil
	case "":
		return AESGCM, nil
	default:
		return "", ErrUnsupportedAlgorithm
	}
}

// Payload layout and key material sizes.
const (
	// SaltSize is the length of the per-record PBKDF2 salt prefixed to the ciphertext.
	SaltSize = 16
	// NonceSize is the AEAD nonce length for both supported algorithms.
	NonceSize = 12
	// TagSize is the AEAD authentication tag length for both supported algorithms.
	TagSize = 16
	// KeySize is the length of every derived record key.
	KeySize = 32
	// GeneratedSecretSize is the number of random bytes in a generated master secret.
	GeneratedSecretSize = 32
)

// Secret generation and strength thresholds.
const (
	// MaxGenerateAttempts bounds how many times a secret is regenerated when its entropy is low.
	MaxGenerateAttempts = 10
	// MinGeneratedEntropy is the normalized entropy a generated secret must reach.
	MinGeneratedEntropy = 7.5
	// WeakEntropyThreshold marks secrets below it as weak (and invalid).
	WeakEntropyThreshold = 6.0
	// StrongEntropyThreshold marks secrets at or above it as strong.
	StrongEntropyThreshold = 7.0
	// MinIterationCount is the lowest accepted PBKDF2 iteration count.
	MinIterationCount = 1000
	// DefaultIterationCount is the PBKDF2 iteration count used when none is configured.
	DefaultIterationCount = 210000
	// DefaultMinKeyLength is the minimum decoded secret length in bytes.
	DefaultMinKeyLength = 32
)
