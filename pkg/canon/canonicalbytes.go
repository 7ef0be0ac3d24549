package canon

import (
	"bytes"
	"encoding/json"
	"math/big"
	"reflect"
	"regexp"
	"time"

	"github.com/gowebpki/jcs"
)

// CanonicalBytes is the unique byte sequence produced by the canonicalization
// rules below. It can only be constructed by New or NewFromJSON, and exposes
// only read access to its contents — it is the sole input type accepted by
// Sha256Digest.
type CanonicalBytes struct {
	raw []byte
}

// Bytes returns a copy of the canonical byte slice. Cloning a CanonicalBytes
// is cheap and is semantically distinct from re-canonicalizing: the caller
// gets back exactly the bytes that were already produced.
func (b CanonicalBytes) Bytes() []byte {
	out := make([]byte, len(b.raw))
	copy(out, b.raw)
	return out
}

// String renders the canonical bytes as a UTF-8 string.
func (b CanonicalBytes) String() string {
	return string(b.raw)
}

var rfc3339ish = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})$`)

// New constructs CanonicalBytes from a structured Go value (struct, map,
// slice, or primitive). It applies the canonicalization rules of §4.1:
//
//  1. object keys sorted lexicographically by Unicode code point, recursively
//  2. only JCS-required characters escaped, non-ASCII left untouched
//  3. integers serialize without a fractional part; floats are rejected
//  4. RFC 3339 datetime strings are normalized to UTC, truncated to whole
//     seconds, with a trailing "Z"
//  5. null/true/false are literal; empty object/array are {}/[]
func New(v any) (CanonicalBytes, error) {
	if err := rejectNonStringKeys(reflect.ValueOf(v)); err != nil {
		return CanonicalBytes{}, err
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return CanonicalBytes{}, canonErr("marshal: %v", err)
	}
	return NewFromJSON(raw)
}

// NewFromJSON constructs CanonicalBytes from already-parsed JSON bytes
// (e.g. a request body). The bytes are decoded, validated, and normalized
// the same way as New.
func NewFromJSON(data []byte) (CanonicalBytes, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var generic any
	if err := dec.Decode(&generic); err != nil {
		return CanonicalBytes{}, canonErr("invalid JSON: %v", err)
	}

	cleaned, err := normalize(generic)
	if err != nil {
		return CanonicalBytes{}, err
	}

	intermediate, err := json.Marshal(cleaned)
	if err != nil {
		return CanonicalBytes{}, canonErr("re-marshal: %v", err)
	}

	out, err := jcs.Transform(intermediate)
	if err != nil {
		return CanonicalBytes{}, canonErr("jcs transform: %v", err)
	}
	return CanonicalBytes{raw: out}, nil
}

// normalize walks a decoded JSON value (json.Number for numbers), rejecting
// floats and normalizing RFC 3339 datetime strings. Object key ordering and
// character escaping are left to jcs.Transform.
func normalize(v any) (any, error) {
	switch t := v.(type) {
	case nil, bool:
		return t, nil
	case string:
		if rfc3339ish.MatchString(t) {
			ts, err := time.Parse(time.RFC3339Nano, t)
			if err != nil {
				return nil, canonErr("malformed RFC 3339 timestamp %q: %v", t, err)
			}
			return ts.UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z"), nil
		}
		return t, nil
	case json.Number:
		return normalizeNumber(t)
	case []any:
		out := make([]any, len(t))
		for i, elem := range t {
			n, err := normalize(elem)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, elem := range t {
			n, err := normalize(elem)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	default:
		return nil, canonErr("unsupported value type %T", v)
	}
}

// normalizeNumber rejects anything that is not an integer and re-emits it
// as json.Number with no fractional part so downstream marshaling prints
// it without a decimal point.
func normalizeNumber(n json.Number) (json.Number, error) {
	s := n.String()
	bi, ok := new(big.Int).SetString(s, 10)
	if !ok {
		// Has a fractional part or exponent — not representable as an integer.
		return "", canonErr("floating-point number %q is not permitted; carry decimals as strings", s)
	}
	return json.Number(bi.String()), nil
}

// rejectNonStringKeys walks a Go value by reflection, looking for map types
// whose key kind is not string. encoding/json would silently stringify
// integer map keys; the spec requires that mappings with non-string keys
// fail canonicalization instead.
func rejectNonStringKeys(v reflect.Value) error {
	if !v.IsValid() {
		return nil
	}
	switch v.Kind() {
	case reflect.Interface, reflect.Ptr:
		if v.IsNil() {
			return nil
		}
		return rejectNonStringKeys(v.Elem())
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return canonErr("non-string map key of kind %s", v.Type().Key().Kind())
		}
		iter := v.MapRange()
		for iter.Next() {
			if err := rejectNonStringKeys(iter.Value()); err != nil {
				return err
			}
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if err := rejectNonStringKeys(v.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			if !v.Field(i).CanInterface() {
				continue
			}
			if err := rejectNonStringKeys(v.Field(i)); err != nil {
				return err
			}
		}
	}
	return nil
}
