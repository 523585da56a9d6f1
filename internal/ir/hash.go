package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainEvent = "dishm/event/v1"
	DomainRun   = "dishm/run/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// EventID computes the content-addressed ID of a trace event.
// The ID is stable across runs given identical run ID, kind, payload and seq.
func EventID(runID, kind string, payload Value, seq int64) (string, error) {
	obj := Struct{
		"run_id":  String(runID),
		"kind":    String(kind),
		"payload": payload,
		"seq":     Int(seq),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("EventID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEvent, canonical), nil
}

// RunDigest summarizes a whole run (test case, outcome and event IDs in
// order). Two runs with the same digest exchanged identical traffic with the
// device and ended the same way.
func RunDigest(testCase, outcome string, eventIDs []string) (string, error) {
	ids := make(List, len(eventIDs))
	for i, id := range eventIDs {
		ids[i] = String(id)
	}
	obj := Struct{
		"test_case": String(testCase),
		"outcome":   String(outcome),
		"events":    ids,
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("RunDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRun, canonical), nil
}
