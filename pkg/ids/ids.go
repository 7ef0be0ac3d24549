// Package ids implements the string-validated identifier types of the
// data model: DID, CNIC, NTN, Passport, Emirates-ID, TRN, UEN, and NRIC.
// Each is a distinct Go type with no implicit conversion between them or
// to a bare string, and construction is the only validation point — once
// constructed, a value is known-valid.
package ids

import (
	"regexp"
	"strings"

	"github.com/zonetrust/compliance-core/pkg/apierrors"
)

// DID is a decentralized identifier of the form "did:<method>:<id>".
type DID string

var didPattern = regexp.MustCompile(`^did:[a-z0-9]+:.+$`)

func NewDID(s string) (DID, error) {
	if !didPattern.MatchString(s) {
		return "", apierrors.Validation("invalid DID %q: must match did:<method>:<id>", s)
	}
	return DID(s), nil
}

func (d DID) String() string { return string(d) }

// CNIC is a Pakistani national identity number, 13 digits in canonical
// no-dash form. The dashed form "XXXXX-XXXXXXX-X" is accepted on input
// and normalized away.
type CNIC string

var cnicDashed = regexp.MustCompile(`^\d{5}-\d{7}-\d$`)
var cnicPlain = regexp.MustCompile(`^\d{13}$`)

func NewCNIC(s string) (CNIC, error) {
	if cnicDashed.MatchString(s) {
		s = strings.ReplaceAll(s, "-", "")
	}
	if !cnicPlain.MatchString(s) {
		return "", apierrors.Validation("invalid CNIC %q: must be 13 digits", s)
	}
	return CNIC(s), nil
}

func (c CNIC) String() string { return string(c) }

// NTN is a Pakistani National Tax Number, exactly 7 digits.
type NTN string

var ntnPattern = regexp.MustCompile(`^\d{7}$`)

func NewNTN(s string) (NTN, error) {
	if !ntnPattern.MatchString(s) {
		return "", apierrors.Validation("invalid NTN %q: must be 7 digits", s)
	}
	return NTN(s), nil
}

func (n NTN) String() string { return string(n) }

// Passport is 5-20 alphanumeric characters, stored uppercased.
type Passport string

var passportPattern = regexp.MustCompile(`^[A-Z0-9]{5,20}$`)

func NewPassport(s string) (Passport, error) {
	u := strings.ToUpper(s)
	if !passportPattern.MatchString(u) {
		return "", apierrors.Validation("invalid passport %q: must be 5-20 alphanumeric characters", s)
	}
	return Passport(u), nil
}

func (p Passport) String() string { return string(p) }

// EmiratesID is a UAE identity number, 15 digits with a "784" prefix.
type EmiratesID string

var emiratesIDPattern = regexp.MustCompile(`^784\d{12}$`)

func NewEmiratesID(s string) (EmiratesID, error) {
	if !emiratesIDPattern.MatchString(s) {
		return "", apierrors.Validation("invalid Emirates ID %q: must be 15 digits with 784 prefix", s)
	}
	return EmiratesID(s), nil
}

func (e EmiratesID) String() string { return string(e) }

// TRN is a UAE Tax Registration Number, 15 digits.
type TRN string

var trnPattern = regexp.MustCompile(`^\d{15}$`)

func NewTRN(s string) (TRN, error) {
	if !trnPattern.MatchString(s) {
		return "", apierrors.Validation("invalid TRN %q: must be 15 digits", s)
	}
	return TRN(s), nil
}

func (t TRN) String() string { return string(t) }

// UEN is a Singapore Unique Entity Number. Format varies by registration
// era; this adapter validates a general alphanumeric shape rather than
// the full UEN grammar, matching the spec's "validated by adapter" note.
type UEN string

var uenPattern = regexp.MustCompile(`^[0-9A-Z]{9,10}$`)

func NewUEN(s string) (UEN, error) {
	u := strings.ToUpper(s)
	if !uenPattern.MatchString(u) {
		return "", apierrors.Validation("invalid UEN %q", s)
	}
	return UEN(u), nil
}

func (u UEN) String() string { return string(u) }

// NRIC is a Singapore National Registration Identity Card number, a
// 9-character code (1 letter, 7 digits, 1 checksum letter).
type NRIC string

var nricPattern = regexp.MustCompile(`^[STFG]\d{7}[A-Z]$`)

func NewNRIC(s string) (NRIC, error) {
	u := strings.ToUpper(s)
	if !nricPattern.MatchString(u) {
		return "", apierrors.Validation("invalid NRIC %q", s)
	}
	return NRIC(u), nil
}

func (n NRIC) String() string { return string(n) }
