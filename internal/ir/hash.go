package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for algorithm migration.
const (
	DomainState      = "absim/state/v1"
	DomainTransition = "absim/transition/v1"
	DomainModel      = "absim/model/v1"
	DomainFinding    = "absim/finding/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// StateKey computes the content-addressed key of a canonical state encoding.
// Two considered states are equal exactly when their keys are equal.
func StateKey(encoded IRObject) (string, error) {
	canonical, err := MarshalCanonical(encoded)
	if err != nil {
		return "", fmt.Errorf("StateKey: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainState, canonical), nil
}

// StateKeyFromCanonical is StateKey for an already canonical encoding.
func StateKeyFromCanonical(canonical []byte) string {
	return hashWithDomain(DomainState, canonical)
}

// TransitionID computes the identity of a recorded exploration edge.
// The label distinguishes which big step produced it ("process:<name>" or
// "scheduler").
func TransitionID(fromKey, toKey, label string) string {
	obj := IRObject{
		"from":  IRString(fromKey),
		"to":    IRString(toKey),
		"label": IRString(label),
	}
	// Only strings: canonical marshaling cannot fail.
	canonical, _ := MarshalCanonical(obj)
	return hashWithDomain(DomainTransition, canonical)
}

// FindingID computes the identity of a finding reported at a state.
func FindingID(stateKey, thread, code, message string) string {
	obj := IRObject{
		"state":   IRString(stateKey),
		"thread":  IRString(thread),
		"code":    IRString(code),
		"message": IRString(message),
	}
	canonical, _ := MarshalCanonical(obj)
	return hashWithDomain(DomainFinding, canonical)
}

// ModelHash identifies a model by its JSON encoding.
// Struct field order is fixed by the type definitions, so encoding/json output
// is stable for a given model value.
func ModelHash(m *Model) (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("ModelHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainModel, data), nil
}

// MustStateKey is like StateKey but panics on error.
// Use only in tests or when the encoding is known to be valid.
func MustStateKey(encoded IRObject) string {
	key, err := StateKey(encoded)
	if err != nil {
		panic(err)
	}
	return key
}
