package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainCommand = "parorch/command/v1"
	DomainWorkset = "parorch/workset/v1"
	DomainTrace   = "parorch/trace/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// CommandID computes the content-addressed ID of a normalized command.
// The ID is stable across runs for the same identity text.
func CommandID(identity string) (string, error) {
	canonical, err := MarshalCanonical(map[string]any{"identity": identity})
	if err != nil {
		return "", fmt.Errorf("CommandID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainCommand, canonical), nil
}

// WorksetDigest identifies the ordered workset executed in a round.
// Two rounds with the same digest executed the same commands in the same order.
func WorksetDigest(identities []string) (string, error) {
	canonical, err := MarshalCanonical(identities)
	if err != nil {
		return "", fmt.Errorf("WorksetDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainWorkset, canonical), nil
}

// TraceDigest identifies the raw log of a round.
func TraceDigest(lines []string) (string, error) {
	canonical, err := MarshalCanonical(lines)
	if err != nil {
		return "", fmt.Errorf("TraceDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainTrace, canonical), nil
}

// MustCommandID is like CommandID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustCommandID(identity string) string {
	id, err := CommandID(identity)
	if err != nil {
		panic(err)
	}
	return id
}
