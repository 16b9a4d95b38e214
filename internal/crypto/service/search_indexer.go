package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// HMACSearchIndexer computes HMAC-SHA256 lookup hashes over canonicalized plaintext.
//
// The hash is a pure function of (canonical plaintext, field name, index secret): equal
// values produce equal hashes so callers can run equality queries without decrypting.
type HMACSearchIndexer struct {
	keyStore KeyStore
}

// NewHMACSearchIndexer creates an indexer keyed by keyStore.IndexKey().
func NewHMACSearchIndexer(keyStore KeyStore) *HMACSearchIndexer {
	return &HMACSearchIndexer{
		keyStore: keyStore,
	}
}

// Hash returns the hex-encoded lookup hash of plaintext for fieldName.
func (s *HMACSearchIndexer) Hash(plaintext []byte, fieldName string) string {
	canonical := s.Canonicalize(string(plaintext))

	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(fieldName)))

	mac := hmac.New(sha256.New, s.keyStore.IndexKey())
	mac.Write(length[:])
	mac.Write([]byte(fieldName))
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}

// Canonicalize applies NFKC normalization, Unicode case folding and whitespace trimming.
func (s *HMACSearchIndexer) Canonicalize(value string) string {
	// cases.Caser is stateful and not safe for concurrent use
	folder := cases.Fold()
	return strings.TrimSpace(folder.String(norm.NFKC.String(value)))
}
