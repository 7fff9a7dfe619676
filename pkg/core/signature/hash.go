package signature

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
)

// Signature is a content hash: the lowercase hex encoding of a SHA-256 digest.
type Signature string

// Short returns the first 12 characters of the signature for display.
func (s Signature) Short() string {
	if len(s) <= 12 {
		return string(s)
	}
	return string(s[:12])
}

// Content is the ordered list of attributes a module or connection contributes
// to its signature. Values must be JSON-encodable; order is significant.
type Content []any

// Hash computes a domain-separated SHA-256 over the JSON encoding of parts.
// The domain keeps module, connection and sub-pipeline digests from colliding
// even when their parts happen to encode identically.
func Hash(domain string, parts ...any) (Signature, error) {
	data, err := json.Marshal(parts)
	if err != nil {
		return "", fmt.Errorf("encode %s signature: %w", domain, err)
	}
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{':'})
	h.Write(data)
	return Signature(hex.EncodeToString(h.Sum(nil))), nil
}

// Combine hashes a module signature together with the signatures of its
// upstream branches. Upstream order does not matter: the branches are sorted
// before hashing.
func Combine(module Signature, upstream []string) (Signature, error) {
	sorted := append([]string{}, upstream...)
	slices.Sort(sorted)
	return Hash(LayerSubpipeline, string(module), sorted)
}
