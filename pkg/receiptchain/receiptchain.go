// Package receiptchain implements the per-corridor, append-only receipt
// chain: an MMR over receipt payload digests, with sequence and
// prev-root enforcement on admission and periodic checkpointing for L1
// anchoring.
package receiptchain

import (
	"sync"
	"time"

	"github.com/zonetrust/compliance-core/pkg/apierrors"
	"github.com/zonetrust/compliance-core/pkg/canon"
	"github.com/zonetrust/compliance-core/pkg/mmr"
)

// Receipt is a single corridor receipt. NextRoot is the canonical digest
// of every field below except PrevRoot, NextRoot, and Sequence — it is
// computed by the chain at admission time, not supplied pre-filled by
// the caller (callers pass a Receipt with NextRoot unset; Append fills
// it in and validates any value the caller did supply).
type Receipt struct {
	Type             string    `json:"type"`
	CorridorID       string    `json:"corridor_id"`
	Sequence         uint64    `json:"sequence"`
	Timestamp        time.Time `json:"timestamp"`
	PrevRoot         string    `json:"prev_root"`
	NextRoot         string    `json:"next_root"`
	LawpackDigestSet []string  `json:"lawpack_digest_set"`
	RulesetDigestSet []string  `json:"ruleset_digest_set"`
}

// payload is the subset of Receipt fields that feed PayloadDigest:
// everything except prev_root, next_root, and sequence, per §6.4.
type payload struct {
	Type             string    `json:"type"`
	CorridorID       string    `json:"corridor_id"`
	Timestamp        time.Time `json:"timestamp"`
	LawpackDigestSet []string  `json:"lawpack_digest_set"`
	RulesetDigestSet []string  `json:"ruleset_digest_set"`
}

// PayloadDigest computes the canonical digest of the receipt body with
// prev_root, next_root, and sequence excluded. This is the value that
// must equal NextRoot for the receipt to be admitted.
func (r Receipt) PayloadDigest() (canon.Digest, error) {
	cb, err := canon.New(payload{
		Type:             r.Type,
		CorridorID:       r.CorridorID,
		Timestamp:        r.Timestamp,
		LawpackDigestSet: r.LawpackDigestSet,
		RulesetDigestSet: r.RulesetDigestSet,
	})
	if err != nil {
		return canon.Digest{}, err
	}
	return canon.Sha256Digest(cb), nil
}

// WholeDigest is the canonical digest over every field of the receipt,
// including sequence/prev_root/next_root. It is the identity used to
// tell two receipts at the same (corridor, sequence) apart for fork
// purposes.
func (r Receipt) WholeDigest() (canon.Digest, error) {
	cb, err := canon.New(r)
	if err != nil {
		return canon.Digest{}, err
	}
	return canon.Sha256Digest(cb), nil
}

// Checkpoint binds a corridor's height and MMR root at a point in time.
type Checkpoint struct {
	CorridorID string    `json:"corridor_id"`
	Height     uint64    `json:"height"`
	MMRRoot    string    `json:"mmr_root"`
	Timestamp  time.Time `json:"timestamp"`
}

// Digest computes the checkpoint's own canonical digest — the value
// submitted to the L1 anchor.
func (c Checkpoint) Digest() (canon.Digest, error) {
	cb, err := canon.New(c)
	if err != nil {
		return canon.Digest{}, err
	}
	return canon.Sha256Digest(cb), nil
}

// ForkPair is forwarded to an injected handler when two distinct valid
// receipts claim the same (corridor_id, sequence).
type ForkPair struct {
	CorridorID string
	Sequence   uint64
	Existing   Receipt
	Incoming   Receipt
}

// ForkHandler is notified of detected forks. It must not block the
// chain's write lock for long; callers typically hand off to C5
// asynchronously.
type ForkHandler func(ForkPair)

// Chain is a single corridor's receipt chain: ordered receipts, an MMR
// over their NextRoot values, and an ordered checkpoint list. Every
// operation is internally synchronized and appears atomic to callers.
type Chain struct {
	mu          sync.Mutex
	corridorID  string
	receipts    []Receipt
	tree        *mmr.Tree
	checkpoints []Checkpoint
	onFork      ForkHandler
}

// New returns an empty chain for corridorID. onFork may be nil.
func New(corridorID string, onFork ForkHandler) *Chain {
	return &Chain{
		corridorID: corridorID,
		tree:       mmr.New(),
		onFork:     onFork,
	}
}

// Height returns the number of admitted receipts.
func (c *Chain) Height() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return uint64(len(c.receipts))
}

// MMRRoot returns the chain's current bagged root.
func (c *Chain) MMRRoot() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tree.Root()
}

// Append admits receipt if, atomically with the mutation:
//   - receipt.Sequence == chain.height
//   - receipt.PrevRoot == chain.mmr_root
//   - receipt.NextRoot (if supplied) matches the computed payload digest
//
// On any failure the chain is left unchanged. A receipt whose sequence
// refers to an already-admitted slot is checked for forkhood: if its
// whole-receipt digest differs from the one already admitted, the pair
// is forwarded to onFork and the append is rejected as Conflict;
// identical digests are treated as a harmless duplicate, not a fork.
func (c *Chain) Append(r Receipt) (Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	height := uint64(len(c.receipts))

	if r.Sequence < height {
		existing := c.receipts[r.Sequence]
		existingDigest, err := existing.WholeDigest()
		if err != nil {
			return Receipt{}, apierrors.Internal(err, "hashing existing receipt")
		}
		incomingDigest, err := r.WholeDigest()
		if err != nil {
			return Receipt{}, apierrors.Internal(err, "hashing incoming receipt")
		}
		if existingDigest != incomingDigest {
			if c.onFork != nil {
				c.onFork(ForkPair{
					CorridorID: c.corridorID,
					Sequence:   r.Sequence,
					Existing:   existing,
					Incoming:   r,
				})
			}
			return Receipt{}, apierrors.Conflict("receipt chain %s: fork at sequence %d", c.corridorID, r.Sequence)
		}
		return Receipt{}, apierrors.Conflict("receipt chain %s: duplicate receipt at sequence %d", c.corridorID, r.Sequence)
	}

	if r.Sequence != height {
		return Receipt{}, apierrors.Conflict("receipt chain %s: sequence mismatch, expected %d got %d", c.corridorID, height, r.Sequence)
	}

	currentRoot := c.tree.Root()
	if r.PrevRoot != currentRoot {
		return Receipt{}, apierrors.Conflict("receipt chain %s: prev_root mismatch at sequence %d", c.corridorID, r.Sequence)
	}

	payloadDigest, err := r.PayloadDigest()
	if err != nil {
		return Receipt{}, apierrors.Validation("computing receipt payload digest: %v", err)
	}
	if r.NextRoot == "" {
		r.NextRoot = payloadDigest.Hex()
	} else if r.NextRoot != payloadDigest.Hex() {
		return Receipt{}, apierrors.Validation("receipt chain %s: next_root does not match payload digest at sequence %d", c.corridorID, r.Sequence)
	}

	if err := c.tree.Append(r.NextRoot); err != nil {
		return Receipt{}, apierrors.Internal(err, "appending to receipt chain MMR")
	}
	c.receipts = append(c.receipts, r)
	return r, nil
}

// CreateCheckpoint snapshots the chain's current height and root at the
// given instant, stores the checkpoint, and returns it.
func (c *Chain) CreateCheckpoint(at time.Time) (Checkpoint, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cp := Checkpoint{
		CorridorID: c.corridorID,
		Height:     uint64(len(c.receipts)),
		MMRRoot:    c.tree.Root(),
		Timestamp:  at,
	}
	c.checkpoints = append(c.checkpoints, cp)
	return cp, nil
}

// Checkpoints returns a copy of the ordered checkpoint list.
func (c *Chain) Checkpoints() []Checkpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Checkpoint, len(c.checkpoints))
	copy(out, c.checkpoints)
	return out
}

// Receipts returns a copy of the ordered receipt list.
func (c *Chain) Receipts() []Receipt {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Receipt, len(c.receipts))
	copy(out, c.receipts)
	return out
}

// BuildInclusionProof delegates to the underlying MMR for the receipt at
// index i.
func (c *Chain) BuildInclusionProof(i int) (mmr.Proof, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return mmr.BuildInclusionProof(c.tree.LeavesHex(), i)
}

// VerifyInclusionProof verifies a proof against its own advertised root.
// It needs only the proof, not the chain — exposed here for API symmetry
// with BuildInclusionProof.
func VerifyInclusionProof(p mmr.Proof) bool {
	return mmr.VerifyInclusionProof(p)
}
