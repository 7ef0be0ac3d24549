package vc

import (
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/zonetrust/compliance-core/pkg/apierrors"
)

func newKeyPair(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, sk, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return pub, sk
}

func TestSignThenVerifyRoundTrip(t *testing.T) {
	pub, sk := newKeyPair(t)
	cred := Credential{
		Context:           []string{"https://www.w3.org/2018/credentials/v1"},
		Type:              []string{"VerifiableCredential"},
		IssuanceDate:      "2026-07-30T00:00:00Z",
		CredentialSubject: map[string]any{"corridorId": "pk-ae-01", "status": "Compliant"},
	}

	signed, err := Sign(sk, "did:zone:pk", "did:zone:pk#key-1", cred, time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if signed.Proof == nil {
		t.Fatal("signed credential has no proof")
	}
	if signed.Proof.Type != Ed25519Signature2020 {
		t.Fatalf("proof type = %q, want default Ed25519Signature2020", signed.Proof.Type)
	}

	err = Verify(signed, func(vm string) (ed25519.PublicKey, error) {
		if vm != "did:zone:pk#key-1" {
			t.Fatalf("unexpected verification method %q", vm)
		}
		return pub, nil
	})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	pub, sk := newKeyPair(t)
	cred := Credential{
		IssuanceDate:      "2026-07-30T00:00:00Z",
		CredentialSubject: map[string]any{"status": "Compliant"},
	}
	signed, err := Sign(sk, "did:zone:pk", "did:zone:pk#key-1", cred, time.Now().UTC())
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	signed.CredentialSubject["status"] = "NonCompliant"

	err = Verify(signed, func(string) (ed25519.PublicKey, error) { return pub, nil })
	if err == nil {
		t.Fatal("expected verification to fail after tampering with the credential body")
	}
	if apierrors.KindOf(err) != apierrors.KindValidation {
		t.Fatalf("kind = %v, want Validation", apierrors.KindOf(err))
	}
}

func TestMezAliasVerifiesIdentically(t *testing.T) {
	pub, sk := newKeyPair(t)
	cred := Credential{CredentialSubject: map[string]any{"x": 1.0}}
	signed, err := Sign(sk, "did:zone:pk", "did:zone:pk#key-1", cred, time.Now().UTC())
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	signed.Proof.Type = MezEd25519Signature2025

	if err := Verify(signed, func(string) (ed25519.PublicKey, error) { return pub, nil }); err != nil {
		t.Fatalf("Verify with interop alias: %v", err)
	}
}

func TestValidateProofFieldsRejectsExtraField(t *testing.T) {
	raw := map[string]any{
		"type":               "Ed25519Signature2020",
		"created":            "2026-07-30T00:00:00Z",
		"verificationMethod": "did:zone:pk#key-1",
		"proofPurpose":       "assertionMethod",
		"proofValue":         "deadbeef",
		"extra":              "not allowed",
	}
	if err := ValidateProofFields(raw); err == nil {
		t.Fatal("expected rejection of a proof object with an unexpected field")
	}
}

func TestValidateProofFieldsAcceptsFixedFive(t *testing.T) {
	raw := map[string]any{
		"type":               "Ed25519Signature2020",
		"created":            "2026-07-30T00:00:00Z",
		"verificationMethod": "did:zone:pk#key-1",
		"proofPurpose":       "assertionMethod",
		"proofValue":         "deadbeef",
	}
	if err := ValidateProofFields(raw); err != nil {
		t.Fatalf("expected the fixed five fields to pass, got %v", err)
	}
}
