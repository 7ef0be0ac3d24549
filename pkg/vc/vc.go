// Package vc implements the verifiable credential layer: Ed25519 proof
// construction and verification over the canonical digest of a credential
// body, with a rigid fixed-field proof object.
package vc

import (
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/zonetrust/compliance-core/pkg/apierrors"
	"github.com/zonetrust/compliance-core/pkg/canon"
)

// ProofType identifies the signature suite. Ed25519Signature2020 is the
// default; MezEd25519Signature2025 is accepted as an interoperability
// alias — both verify identically.
type ProofType string

const (
	Ed25519Signature2020    ProofType = "Ed25519Signature2020"
	MezEd25519Signature2025 ProofType = "MezEd25519Signature2025"
)

// Proof is the fixed five-field proof object. No other field may appear.
type Proof struct {
	Type               ProofType `json:"type"`
	Created            string    `json:"created"`
	VerificationMethod string    `json:"verificationMethod"`
	ProofPurpose       string    `json:"proofPurpose"`
	ProofValue         string    `json:"proofValue"`
}

// Credential is a verifiable credential: an arbitrary JSON body plus
// exactly one proof object.
type Credential struct {
	Context           []string       `json:"@context"`
	Type              []string       `json:"type"`
	Issuer             string        `json:"issuer"`
	IssuanceDate       string        `json:"issuanceDate"`
	CredentialSubject  map[string]any `json:"credentialSubject"`
	Proof              *Proof         `json:"proof,omitempty"`
}

const proofPurposeAssertionMethod = "assertionMethod"

// fixedProofKeys is used to reject any proof object carrying extra fields
// when decoded from a loosely-typed source (e.g. a request body captured
// as map[string]any before being bound into a Credential).
var fixedProofKeys = map[string]bool{
	"type":               true,
	"created":            true,
	"verificationMethod": true,
	"proofPurpose":       true,
	"proofValue":         true,
}

// Resolver maps a verificationMethod URL to the Ed25519 public key that
// should verify signatures produced under it.
type Resolver func(verificationMethod string) (ed25519.PublicKey, error)

func bodyDigest(c Credential) (canon.Digest, error) {
	body := Credential{
		Context:           c.Context,
		Type:              c.Type,
		Issuer:            c.Issuer,
		IssuanceDate:      c.IssuanceDate,
		CredentialSubject: c.CredentialSubject,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return canon.Digest{}, apierrors.Wrap(apierrors.KindValidation, "marshal credential body", err)
	}
	cb, err := canon.NewFromJSON(data)
	if err != nil {
		return canon.Digest{}, err
	}
	return canon.Sha256Digest(cb), nil
}

// Sign builds and attaches a proof to credential, signing the canonical
// digest of the credential body (the credential with proof stripped) with
// sk, under verificationMethod, at issuedAt.
func Sign(sk ed25519.PrivateKey, issuerDID, verificationMethod string, credential Credential, issuedAt time.Time) (Credential, error) {
	credential.Proof = nil
	credential.Issuer = issuerDID
	digest, err := bodyDigest(credential)
	if err != nil {
		return Credential{}, err
	}

	sig := ed25519.Sign(sk, digest[:])

	credential.Proof = &Proof{
		Type:               Ed25519Signature2020,
		Created:            issuedAt.UTC().Truncate(time.Second).Format(time.RFC3339),
		VerificationMethod: verificationMethod,
		ProofPurpose:       proofPurposeAssertionMethod,
		ProofValue:         hex.EncodeToString(sig),
	}
	return credential, nil
}

// Verify recomputes the canonical digest of credential with its proof
// stripped and checks the Ed25519 signature in proofValue against the
// public key resolve returns for the proof's verificationMethod.
func Verify(credential Credential, resolve Resolver) error {
	if credential.Proof == nil {
		return apierrors.Validation("credential has no proof")
	}
	proof := *credential.Proof
	if proof.Type != Ed25519Signature2020 && proof.Type != MezEd25519Signature2025 {
		return apierrors.Validation("unsupported proof type %q", proof.Type)
	}

	withoutProof := credential
	withoutProof.Proof = nil
	digest, err := bodyDigest(withoutProof)
	if err != nil {
		return err
	}

	sig, err := hex.DecodeString(proof.ProofValue)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return apierrors.Validation("proofValue is not a valid %d-byte hex signature", ed25519.SignatureSize)
	}

	pub, err := resolve(proof.VerificationMethod)
	if err != nil {
		return apierrors.Wrap(apierrors.KindValidation, "resolve verification method", err)
	}

	if !ed25519.Verify(pub, digest[:], sig) {
		return apierrors.Validation("credential signature verification failed")
	}
	return nil
}

// ValidateProofFields rejects a raw (pre-decode) proof object carrying any
// field outside the fixed five, per the layer's proof field rigidity rule.
func ValidateProofFields(raw map[string]any) error {
	for k := range raw {
		if !fixedProofKeys[k] {
			return apierrors.Validation("proof object carries unexpected field %q", k)
		}
	}
	return nil
}
