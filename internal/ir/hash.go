package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainDefinitions = "choreo/definitions/v1"
	DomainSignal      = "choreo/signal/v1"
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

// DefinitionsHash computes a content hash of a definition list in
// registration order. Two lists hash equal only if they would register the
// same definitions in the same order.
func DefinitionsHash(defs []Definition) (string, error) {
	list := make([]any, len(defs))
	for i, d := range defs {
		list[i] = d.ToMap()
	}
	canonical, err := MarshalCanonical(list)
	if err != nil {
		return "", fmt.Errorf("DefinitionsHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainDefinitions, canonical), nil
}

// SignalHash computes a content hash of a signal and its correlation ID.
func SignalHash(sig Signal, correlationID string) (string, error) {
	payload := sig.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	obj := map[string]any{
		"type":           sig.Type,
		"payload":        payload,
		"correlation_id": correlationID,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("SignalHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSignal, canonical), nil
}
