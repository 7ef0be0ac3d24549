// Package fork implements the watcher registry, attestation
// verification, and the deterministic, symmetric fork-resolution rule
// for receipt chains.
package fork

import (
	"crypto/ed25519"
	"encoding/hex"
	"log"
	"sync"
	"time"

	"github.com/zonetrust/compliance-core/pkg/auditlog"
	"github.com/zonetrust/compliance-core/pkg/canon"
)

// MaxClockSkew is the primary resolution threshold: timestamps more than
// this far apart are resolved by earlier-wins rather than attestation
// count.
const MaxClockSkew = 300 * time.Second

// DefaultMaxFutureDrift rejects attestations claiming to have been
// issued further than this into the future relative to the resolver's
// clock.
const DefaultMaxFutureDrift = 60 * time.Second

// Registry tracks which watcher public keys are registered. Only
// registered watchers' attestations count toward fork resolution.
type Registry struct {
	mu         sync.RWMutex
	registered map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{registered: make(map[string]bool)}
}

func (r *Registry) Register(watcherPubKeyHex string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registered[watcherPubKeyHex] = true
}

func (r *Registry) IsRegistered(watcherPubKeyHex string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.registered[watcherPubKeyHex]
}

// Attestation is a watcher's signed claim about a receipt. The
// signature covers the canonical bytes of every field below except
// Signature itself.
type Attestation struct {
	WatcherPubKeyHex string    `json:"watcher_pubkey"`
	ReceiptPayload   string    `json:"receipt_payload"`
	NextRoot         string    `json:"next_root"`
	Sequence         uint64    `json:"sequence"`
	IssuedAt         time.Time `json:"issued_at"`
	SignatureHex     string    `json:"-"`
}

type signedFields struct {
	WatcherPubKeyHex string    `json:"watcher_pubkey"`
	ReceiptPayload   string    `json:"receipt_payload"`
	NextRoot         string    `json:"next_root"`
	Sequence         uint64    `json:"sequence"`
	IssuedAt         time.Time `json:"issued_at"`
}

func (a Attestation) signingDigest() (canon.Digest, error) {
	cb, err := canon.New(signedFields{
		WatcherPubKeyHex: a.WatcherPubKeyHex,
		ReceiptPayload:   a.ReceiptPayload,
		NextRoot:         a.NextRoot,
		Sequence:         a.Sequence,
		IssuedAt:         a.IssuedAt,
	})
	if err != nil {
		return canon.Digest{}, err
	}
	return canon.Sha256Digest(cb), nil
}

// VerifySignature checks the attestation's signature against its own
// watcher_pubkey, independent of registry membership.
func (a Attestation) VerifySignature() bool {
	pubBytes, err := hex.DecodeString(a.WatcherPubKeyHex)
	if err != nil || len(pubBytes) != ed25519.PublicKeySize {
		return false
	}
	sigBytes, err := hex.DecodeString(a.SignatureHex)
	if err != nil || len(sigBytes) != ed25519.SignatureSize {
		return false
	}
	digest, err := a.signingDigest()
	if err != nil {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pubBytes), digest[:], sigBytes)
}

// Sign produces the SignatureHex for an attestation under sk.
func Sign(sk ed25519.PrivateKey, a Attestation) (Attestation, error) {
	digest, err := a.signingDigest()
	if err != nil {
		return Attestation{}, err
	}
	sig := ed25519.Sign(sk, digest[:])
	a.SignatureHex = hex.EncodeToString(sig)
	return a, nil
}

// Branch is one side of a detected fork.
type Branch struct {
	ReceiptDigest canon.Digest
	Timestamp     time.Time
	Attestations  []Attestation
	NextRoot      string
	Sequence      uint64
}

// IsFork reports whether two branches are a genuine fork: their receipt
// digests differ. Identical receipt digests are not a fork.
func IsFork(a, b Branch) bool {
	return a.ReceiptDigest != b.ReceiptDigest
}

// Reason names which rule decided a resolution.
type Reason string

const (
	EarlierTimestamp      Reason = "EarlierTimestamp"
	MoreAttestations      Reason = "MoreAttestations"
	LexicographicTiebreak Reason = "LexicographicTiebreak"
)

// Resolution is the outcome of resolving a fork.
type Resolution struct {
	Winner Branch
	Loser  Branch
	Reason Reason
}

// Resolver resolves forks against a watcher registry.
type Resolver struct {
	Registry       *Registry
	MaxFutureDrift time.Duration
	Logger         *log.Logger

	// Audit, if set, receives a watcher.equivocation entry for every
	// watcher key caught attesting to both sides of a fork.
	Audit *auditlog.Trail
}

func NewResolver(registry *Registry, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.New(log.Writer(), "[ForkResolver] ", log.LstdFlags)
	}
	return &Resolver{Registry: registry, MaxFutureDrift: DefaultMaxFutureDrift, Logger: logger}
}

// Resolve applies the three-level resolution rule. It is symmetric:
// Resolve(a, b, now) and Resolve(b, a, now) agree on winner, loser, and
// reason, because the outcome is computed entirely from the branches'
// own content, never from argument position.
func (r *Resolver) Resolve(a, b Branch, now time.Time) Resolution {
	equivocators := r.detectEquivocators(a, b, now)

	countA := r.countVerified(a, now, equivocators)
	countB := r.countVerified(b, now, equivocators)

	skew := a.Timestamp.Sub(b.Timestamp)
	if skew < 0 {
		skew = -skew
	}

	if skew > MaxClockSkew {
		if a.Timestamp.Before(b.Timestamp) {
			return Resolution{Winner: a, Loser: b, Reason: EarlierTimestamp}
		}
		return Resolution{Winner: b, Loser: a, Reason: EarlierTimestamp}
	}

	if countA != countB {
		if countA > countB {
			return Resolution{Winner: a, Loser: b, Reason: MoreAttestations}
		}
		return Resolution{Winner: b, Loser: a, Reason: MoreAttestations}
	}

	if a.ReceiptDigest.Hex() <= b.ReceiptDigest.Hex() {
		return Resolution{Winner: a, Loser: b, Reason: LexicographicTiebreak}
	}
	return Resolution{Winner: b, Loser: a, Reason: LexicographicTiebreak}
}

// detectEquivocators finds watcher keys that attested to both branches,
// logs each as an equivocation, and appends a watcher.equivocation audit
// entry when an audit trail is configured.
func (r *Resolver) detectEquivocators(a, b Branch, now time.Time) map[string]bool {
	aKeys := make(map[string]bool, len(a.Attestations))
	for _, at := range a.Attestations {
		aKeys[at.WatcherPubKeyHex] = true
	}

	equivocators := make(map[string]bool)
	for _, at := range b.Attestations {
		if aKeys[at.WatcherPubKeyHex] {
			equivocators[at.WatcherPubKeyHex] = true
			r.Logger.Printf("equivocation detected: watcher %s attested both fork branches", at.WatcherPubKeyHex)
			if r.Audit != nil {
				r.Audit.Append(auditlog.Entry{
					EntryType:  "watcher.equivocation",
					At:         now,
					ResourceID: a.ReceiptDigest.Hex(),
					ActorDID:   at.WatcherPubKeyHex,
					Data: map[string]any{
						"other_branch_receipt_digest": b.ReceiptDigest.Hex(),
					},
				})
			}
		}
	}
	return equivocators
}

// countVerified counts attestations on branch that: are not from an
// equivocating watcher, are not issued further in the future than
// MaxFutureDrift, agree with the branch's (next_root, sequence), come
// from a registered watcher, and verify under that watcher's key.
func (r *Resolver) countVerified(branch Branch, now time.Time, equivocators map[string]bool) int {
	count := 0
	cutoff := now.Add(r.MaxFutureDrift)
	for _, at := range branch.Attestations {
		if equivocators[at.WatcherPubKeyHex] {
			continue
		}
		if at.IssuedAt.After(cutoff) {
			continue
		}
		if at.NextRoot != branch.NextRoot || at.Sequence != branch.Sequence {
			continue
		}
		if !r.Registry.IsRegistered(at.WatcherPubKeyHex) {
			continue
		}
		if !at.VerifySignature() {
			continue
		}
		count++
	}
	return count
}
