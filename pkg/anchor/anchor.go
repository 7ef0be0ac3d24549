// Package anchor implements the sealed L1 anchor target: the trait
// checkpoint digests are submitted to for external durability, plus a
// deterministic mock and an EVM JSON-RPC implementation.
package anchor

import (
	"context"
	"encoding/hex"
	"sync"
	"time"

	"github.com/zonetrust/compliance-core/pkg/apierrors"
)

// Status is the lifecycle of a submitted anchor transaction.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusConfirmed Status = "Confirmed"
	StatusFinalized Status = "Finalized"
	StatusFailed    Status = "Failed"
)

// Receipt is what anchoring a commitment returns.
type Receipt struct {
	TxID      string
	Status    Status
	AnchoredAt time.Time
}

// Target is the sealed L1 anchor trait. It is sealed because an
// unaudited implementation could claim Finalized without durability,
// invalidating every upstream settlement assumption built on that claim;
// only the two implementations in this package can satisfy it.
type Target interface {
	Anchor(ctx context.Context, commitment [32]byte) (Receipt, error)
	CheckStatus(ctx context.Context, txID string) (Status, error)
	ChainID() string

	sealed()
}

// Mock anchors immediately and deterministically, for tests and local
// development where no real L1 is available.
type Mock struct {
	mu       sync.Mutex
	receipts map[string]Status
	chainID  string
}

func NewMock(chainID string) *Mock {
	return &Mock{receipts: make(map[string]Status), chainID: chainID}
}

func (m *Mock) sealed() {}

func (m *Mock) Anchor(_ context.Context, commitment [32]byte) (Receipt, error) {
	txID := "mock:" + hex.EncodeToString(commitment[:])

	m.mu.Lock()
	m.receipts[txID] = StatusFinalized
	m.mu.Unlock()

	return Receipt{TxID: txID, Status: StatusFinalized, AnchoredAt: time.Now().UTC()}, nil
}

func (m *Mock) CheckStatus(_ context.Context, txID string) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	status, ok := m.receipts[txID]
	if !ok {
		return "", apierrors.NotFound("no anchor transaction %q", txID)
	}
	return status, nil
}

func (m *Mock) ChainID() string { return m.chainID }
