package anchor

import (
	"context"
	"testing"
)

func TestMockAnchorIsImmediatelyFinalized(t *testing.T) {
	m := NewMock("mock-1")
	var commitment [32]byte
	commitment[0] = 0xAB

	receipt, err := m.Anchor(context.Background(), commitment)
	if err != nil {
		t.Fatalf("Anchor: %v", err)
	}
	if receipt.Status != StatusFinalized {
		t.Fatalf("status = %q, want Finalized", receipt.Status)
	}

	status, err := m.CheckStatus(context.Background(), receipt.TxID)
	if err != nil {
		t.Fatalf("CheckStatus: %v", err)
	}
	if status != StatusFinalized {
		t.Fatalf("re-checked status = %q, want Finalized", status)
	}
}

func TestMockAnchorIsDeterministic(t *testing.T) {
	m := NewMock("mock-1")
	var commitment [32]byte
	commitment[5] = 0x11

	r1, _ := m.Anchor(context.Background(), commitment)
	r2, _ := m.Anchor(context.Background(), commitment)
	if r1.TxID != r2.TxID {
		t.Fatalf("expected deterministic tx id for identical commitment, got %q vs %q", r1.TxID, r2.TxID)
	}
}

func TestMockCheckStatusUnknownTx(t *testing.T) {
	m := NewMock("mock-1")
	if _, err := m.CheckStatus(context.Background(), "mock:deadbeef"); err == nil {
		t.Fatal("expected NotFound for an unknown tx id")
	}
}

func TestTargetIsSealed(t *testing.T) {
	var _ Target = NewMock("mock-1")
}
