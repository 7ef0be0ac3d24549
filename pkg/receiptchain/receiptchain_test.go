package receiptchain

import (
	"testing"
	"time"

	"github.com/zonetrust/compliance-core/pkg/mmr"
)

func mkReceipt(seq uint64, prevRoot string, at time.Time) Receipt {
	return Receipt{
		Type:             "corridor_receipt.v1",
		CorridorID:       "pk-ae",
		Sequence:         seq,
		Timestamp:        at,
		PrevRoot:         prevRoot,
		LawpackDigestSet: []string{},
		RulesetDigestSet: []string{},
	}
}

func TestAppendAdvancesHeightAndRoot(t *testing.T) {
	chain := New("pk-ae", nil)
	base := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)

	prevRoot := chain.MMRRoot()
	for i := uint64(0); i < 10; i++ {
		heightBefore := chain.Height()
		r := mkReceipt(i, prevRoot, base.Add(time.Duration(i)*time.Minute))
		admitted, err := chain.Append(r)
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if chain.Height() != heightBefore+1 {
			t.Fatalf("height did not advance by 1 at step %d", i)
		}
		newRoot := chain.MMRRoot()
		if newRoot == prevRoot {
			t.Fatalf("mmr_root did not change at step %d", i)
		}
		if admitted.NextRoot == "" {
			t.Fatalf("admitted receipt %d missing next_root", i)
		}
		prevRoot = newRoot
	}
}

func TestAppendRejectsSequenceMismatch(t *testing.T) {
	chain := New("pk-ae", nil)
	r := mkReceipt(1, chain.MMRRoot(), time.Now().UTC())
	if _, err := chain.Append(r); err == nil {
		t.Fatal("expected sequence mismatch error, got nil")
	}
}

func TestAppendRejectsPrevRootMismatch(t *testing.T) {
	chain := New("pk-ae", nil)
	r := mkReceipt(0, "deadbeef", time.Now().UTC())
	if _, err := chain.Append(r); err == nil {
		t.Fatal("expected prev_root mismatch error, got nil")
	}
}

func TestForkDetectionForwardsPair(t *testing.T) {
	var captured *ForkPair
	chain := New("pk-ae", func(p ForkPair) {
		captured = &p
	})
	base := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)

	first := mkReceipt(0, chain.MMRRoot(), base)
	if _, err := chain.Append(first); err != nil {
		t.Fatalf("first append: %v", err)
	}

	second := mkReceipt(0, chain.MMRRoot(), base.Add(time.Hour))
	if _, err := chain.Append(second); err == nil {
		t.Fatal("expected fork rejection, got nil")
	}

	if captured == nil {
		t.Fatal("fork handler was not invoked")
	}
	if captured.Sequence != 0 {
		t.Fatalf("captured fork sequence = %d, want 0", captured.Sequence)
	}
}

func TestBuildAndVerifyInclusionProof(t *testing.T) {
	chain := New("pk-ae", nil)
	base := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)

	root := chain.MMRRoot()
	for i := uint64(0); i < 10; i++ {
		r := mkReceipt(i, root, base.Add(time.Duration(i)*time.Minute))
		admitted, err := chain.Append(r)
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		root = admitted.NextRoot
		_ = root
		root = chain.MMRRoot()
	}

	for _, idx := range []int{0, 1, 4, 7, 9} {
		proof, err := chain.BuildInclusionProof(idx)
		if err != nil {
			t.Fatalf("proof %d: %v", idx, err)
		}
		if !VerifyInclusionProof(proof) {
			t.Fatalf("proof %d failed to verify", idx)
		}
		if len(proof.Path) > 0 {
			tampered := proof
			tampered.Path = append([]mmr.ProofElem{}, proof.Path...)
			tampered.Path[0].Hash[0] ^= 0xFF
			if VerifyInclusionProof(tampered) {
				t.Fatalf("tampered proof %d unexpectedly verified", idx)
			}
		}
	}
}

func TestCreateCheckpoint(t *testing.T) {
	chain := New("pk-ae", nil)
	base := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	r := mkReceipt(0, chain.MMRRoot(), base)
	if _, err := chain.Append(r); err != nil {
		t.Fatalf("append: %v", err)
	}

	cp, err := chain.CreateCheckpoint(base.Add(time.Hour))
	if err != nil {
		t.Fatalf("checkpoint: %v", err)
	}
	if cp.Height != 1 {
		t.Fatalf("checkpoint height = %d, want 1", cp.Height)
	}
	if cp.MMRRoot != chain.MMRRoot() {
		t.Fatal("checkpoint root does not match chain root")
	}

	digest, err := cp.Digest()
	if err != nil {
		t.Fatalf("checkpoint digest: %v", err)
	}
	if digest.IsZero() {
		t.Fatal("checkpoint digest is zero")
	}
}
