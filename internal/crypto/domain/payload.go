package domain

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// PayloadPrefix identifies the encoding of a stored payload.
const PayloadPrefix = "fc1"

// EncryptedPayload is the stored form of one encrypted value.
//
// Wire encoding (standard base64):
//
//	fc1:<keyVersion>:<algorithm>:<b64(salt||ciphertext)>:<b64(iv)>:<b64(tag)>
//
// KeyVersion is a label used to select records for migration. Whether a payload can be
// decrypted is decided only by tag verification against the held secrets.
type EncryptedPayload struct {
	// Ciphertext holds the 16-byte salt followed by the AEAD ciphertext without its tag.
	Ciphertext []byte
	IV         []byte
	AuthTag    []byte
	KeyVersion uint
	Algorithm  Algorithm
	// SearchHash is the keyed lookup hash. It travels in the <field>_search companion
	// and is not part of String().
	SearchHash string
}

// Salt returns the key derivation salt embedded in the ciphertext.
func (p *EncryptedPayload) Salt() []byte {
	if len(p.Ciphertext) < SaltSize {
		return nil
	}
	return p.Ciphertext[:SaltSize]
}

// Body returns the AEAD ciphertext without the salt prefix.
func (p *EncryptedPayload) Body() []byte {
	if len(p.Ciphertext) < SaltSize {
		return nil
	}
	return p.Ciphertext[SaltSize:]
}

// Validate checks the structural invariants of the payload.
func (p *EncryptedPayload) Validate() error {
	if len(p.Ciphertext) < SaltSize {
		return fmt.Errorf("%w: salt shorter than %d bytes", ErrInvalidPayload, SaltSize)
	}
	if len(p.AuthTag) == 0 {
		return fmt.Errorf("%w: empty authentication tag", ErrInvalidPayload)
	}
	if len(p.IV) == 0 {
		return fmt.Errorf("%w: empty nonce", ErrInvalidPayload)
	}
	return nil
}

// String encodes the payload in its wire format.
func (p *EncryptedPayload) String() string {
	enc := base64.StdEncoding
	return strings.Join([]string{
		PayloadPrefix,
		strconv.FormatUint(uint64(p.KeyVersion), 10),
		string(p.Algorithm),
		enc.EncodeToString(p.Ciphertext),
		enc.EncodeToString(p.IV),
		enc.EncodeToString(p.AuthTag),
	}, ":")
}

// ParsePayload decodes the wire format produced by EncryptedPayload.String.
func ParsePayload(s string) (*EncryptedPayload, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 6 || parts[0] != PayloadPrefix {
		return nil, fmt.Errorf("%w: unrecognized format", ErrInvalidPayload)
	}

	version, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: key version: %v", ErrInvalidPayload, err)
	}

	alg, err := ParseAlgorithm(parts[2])
	if err != nil || parts[2] == "" {
		return nil, fmt.Errorf("%w: algorithm %q", ErrInvalidPayload, parts[2])
	}

	enc := base64.StdEncoding
	ciphertext, err := enc.DecodeString(parts[3])
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext: %v", ErrInvalidPayload, err)
	}
	iv, err := enc.DecodeString(parts[4])
	if err != nil {
		return nil, fmt.Errorf("%w: iv: %v", ErrInvalidPayload, err)
	}
	tag, err := enc.DecodeString(parts[5])
	if err != nil {
		return nil, fmt.Errorf("%w: tag: %v", ErrInvalidPayload, err)
	}

	payload := &EncryptedPayload{
		Ciphertext: ciphertext,
		IV:         iv,
		AuthTag:    tag,
		KeyVersion: uint(version),
		Algorithm:  alg,
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	return payload, nil
}

// IsPayload reports whether s looks like an encoded payload.
func IsPayload(s string) bool {
	return strings.HasPrefix(s, PayloadPrefix+":")
}

// VersionMarker returns the prefix shared by every payload written under the given key version.
// Record stores use it to tell migrated values from pending ones.
func VersionMarker(version uint) string {
	return PayloadPrefix + ":" + strconv.FormatUint(uint64(version), 10) + ":"
}
