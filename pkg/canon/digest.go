// Copyright 2025 Certen Protocol
//
// Package canon implements the canonical-bytes and content-digest pipeline.
// It is the sole construction path for every hash in the system: receipts,
// checkpoints, VC proofs, tensor commitments, and attestations all route
// through CanonicalBytes and Digest, never a raw byte buffer.
package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// Digest is a tagged 32-byte SHA-256 value. Equality, display, and
// serialization are defined only over this tagged form.
type Digest [32]byte

// ErrCanonicalization is returned when a value cannot be canonicalized:
// a floating-point number is present, a datetime string cannot be parsed,
// or a non-string key appears in a mapping.
var ErrCanonicalization = errors.New("canon: canonicalization failed")

// CanonicalizationError wraps ErrCanonicalization with a reason.
type CanonicalizationError struct {
	Reason string
}

func (e *CanonicalizationError) Error() string {
	return fmt.Sprintf("canon: canonicalization failed: %s", e.Reason)
}

func (e *CanonicalizationError) Unwrap() error { return ErrCanonicalization }

func canonErr(format string, args ...any) error {
	return &CanonicalizationError{Reason: fmt.Sprintf(format, args...)}
}

// String renders the digest as "sha256:" + lowercase hex, the only display
// form the spec defines.
func (d Digest) String() string {
	return "sha256:" + hex.EncodeToString(d[:])
}

// Hex returns the bare lowercase hex form, without the "sha256:" tag.
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// IsZero reports whether the digest is the all-zero value (never a real
// SHA-256 output but used as an explicit "no digest yet" sentinel).
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// DigestFromHex parses a 64-character lowercase hex string into a Digest.
func DigestFromHex(s string) (Digest, error) {
	var d Digest
	if len(s) != 64 {
		return d, fmt.Errorf("canon: digest hex must be 64 chars, got %d", len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("canon: invalid digest hex: %w", err)
	}
	copy(d[:], b)
	return d, nil
}

// Sha256Digest computes the content digest of canonical bytes. It is the
// only function that hashes structured values into a Digest (SumRaw below
// is the raw-blob exception), and it only
// accepts a CanonicalBytes value — never a raw []byte — so it is
// structurally impossible to hash a value without going through
// canonicalization first.
func Sha256Digest(b CanonicalBytes) Digest {
	return sha256.Sum256(b.raw)
}

// SumRaw computes the digest of a raw byte buffer with no canonicalization
// pass. It exists only for the content-addressed store's raw-blob path
// (§6.3: "{hex_digest}" objects with no ".json" suffix), where the caller
// has already decided the bytes are not a structured, canonicalizable
// value. Every other digest in the system must go through Sha256Digest.
func SumRaw(data []byte) Digest {
	return sha256.Sum256(data)
}
