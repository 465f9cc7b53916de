// Package namespace resolves the DA namespace a node reads and writes batches under.
package namespace

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/celestiaorg/go-square/v3/share"
)

// FromString creates a version 0 namespace from a human readable identifier.
// The identifier is hashed and the first 10 bytes of the hash become the namespace ID.
func FromString(s string) (share.Namespace, error) {
	hash := sha256.Sum256([]byte(s))
	return share.NewV0Namespace(hash[:share.NamespaceVersionZeroIDSize])
}

// ParseHex parses a full namespace encoded as hex, with or without the 0x prefix.
func ParseHex(hexStr string) (share.Namespace, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(hexStr, "0x"))
	if err != nil {
		return share.Namespace{}, fmt.Errorf("invalid hex string: %w", err)
	}
	return share.NewNamespaceFromBytes(b)
}

// Resolve returns the namespace configured by s. Values prefixed with 0x are parsed as a full
// hex encoded namespace, any other non-empty value is hashed with FromString.
func Resolve(s string) (share.Namespace, error) {
	if s == "" {
		return share.Namespace{}, fmt.Errorf("namespace cannot be empty")
	}
	if strings.HasPrefix(s, "0x") {
		return ParseHex(s)
	}
	return FromString(s)
}

// HexString returns the 0x prefixed hex encoding of ns.
func HexString(ns share.Namespace) string {
	return "0x" + hex.EncodeToString(ns.Bytes())
}
