package canon

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestNewKeyOrderIndependence(t *testing.T) {
	a, err := New(map[string]any{"b": 2, "a": 1})
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	b, err := New(map[string]any{"a": 1, "b": 2})
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	if a.String() != b.String() {
		t.Fatalf("key order changed canonical form: %q vs %q", a.String(), b.String())
	}
	if got, want := a.String(), `{"a":1,"b":2}`; got != want {
		t.Fatalf("canonical form = %q, want %q", got, want)
	}

	d := Sha256Digest(a)
	if got := d.String(); got[:7] != "sha256:" {
		t.Fatalf("digest missing tag: %q", got)
	}
}

func TestNewRejectsFloat(t *testing.T) {
	if _, err := New(map[string]any{"amount": 1.5}); err == nil {
		t.Fatal("expected canonicalization error for float, got nil")
	}
}

func TestNewRejectsNonStringMapKey(t *testing.T) {
	if _, err := New(map[int]string{1: "a"}); err == nil {
		t.Fatal("expected canonicalization error for non-string map key, got nil")
	}
}

func TestNewNormalizesDatetime(t *testing.T) {
	cb, err := New(map[string]any{"at": "2026-07-30T10:00:00.123456+02:00"})
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	if got, want := cb.String(), `{"at":"2026-07-30T08:00:00Z"}`; got != want {
		t.Fatalf("normalized datetime = %q, want %q", got, want)
	}
}

func TestNewFromJSONEquivalence(t *testing.T) {
	a, err := New(map[string]any{"x": 1, "y": []any{1, 2, 3}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	b, err := NewFromJSON([]byte(`{"y":[1,2,3],"x":1}`))
	if err != nil {
		t.Fatalf("NewFromJSON: %v", err)
	}
	if a.String() != b.String() {
		t.Fatalf("New and NewFromJSON diverge: %q vs %q", a.String(), b.String())
	}
}

func TestDigestFromHexRoundTrip(t *testing.T) {
	cb, err := New(map[string]any{"k": "v"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	d := Sha256Digest(cb)
	parsed, err := DigestFromHex(d.Hex())
	if err != nil {
		t.Fatalf("DigestFromHex: %v", err)
	}
	if parsed != d {
		t.Fatalf("round trip mismatch: %s vs %s", parsed, d)
	}
}

func TestCanonicalizationDeterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("same map produces same digest regardless of construction order", prop.ForAll(
		func(keys []string, vals []int64) bool {
			if len(keys) != len(vals) {
				return true
			}
			m := make(map[string]any, len(keys))
			for i, k := range keys {
				m["k"+k] = vals[i]
			}
			a, err1 := New(m)
			b, err2 := New(m)
			if err1 != nil || err2 != nil {
				return err1 != nil && err2 != nil
			}
			return Sha256Digest(a) == Sha256Digest(b)
		},
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.Int64Range(-1_000_000, 1_000_000)),
	))

	properties.TestingRun(t)
}
