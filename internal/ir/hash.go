package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Domain prefixes for content hashes.
// Version suffix enables future algorithm migration.
const (
	DomainGraph = "varsys/graph/v1"
	DomainTrace = "varsys/trace/v1"
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

// GraphHash identifies a compiled graph by content. Two definitions that
// compile to the same IR hash the same regardless of formatting.
func GraphHash(g *GraphSpec) (string, error) {
	canonical, err := canonicalStruct(g)
	if err != nil {
		return "", fmt.Errorf("GraphHash: %w", err)
	}
	return hashWithDomain(DomainGraph, canonical), nil
}

// TraceHash identifies a recorded sequence of evaluations.
func TraceHash(trace any) (string, error) {
	canonical, err := canonicalStruct(trace)
	if err != nil {
		return "", fmt.Errorf("TraceHash: %w", err)
	}
	return hashWithDomain(DomainTrace, canonical), nil
}

// MustGraphHash is like GraphHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustGraphHash(g *GraphSpec) string {
	h, err := GraphHash(g)
	if err != nil {
		panic(err)
	}
	return h
}

// canonicalStruct round-trips v through encoding/json so struct tags apply,
// then re-encodes the generic form canonically.
func canonicalStruct(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	return MarshalCanonical(generic)
}

// MarshalCanonicalStruct is MarshalCanonical for arbitrary JSON-taggable
// values.
func MarshalCanonicalStruct(v any) ([]byte, error) {
	return canonicalStruct(v)
}
