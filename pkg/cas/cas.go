// Package cas implements the content-addressed store: a filesystem index
// of canonical JSON artifacts and raw blobs, keyed by their SHA-256
// content digest.
package cas

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/zonetrust/compliance-core/pkg/apierrors"
	"github.com/zonetrust/compliance-core/pkg/canon"
	"github.com/zonetrust/compliance-core/pkg/kvdb"
)

// indexPrefixLen is how much of a digest the prefix index keys on —
// short enough to make legacy short-hash references usable, long enough
// that collisions within one artifact type are not a practical concern.
const indexPrefixLen = 8

var artifactTypePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`)
var hexDigestPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// DigestError is the single error variant this layer raises: invalid
// artifact-type or digest strings, and every I/O failure, collapse into
// this one type rather than a per-failure-mode taxonomy.
type DigestError struct {
	Reason string
	Cause  error
}

func (e *DigestError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("cas: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("cas: %s", e.Reason)
}

func (e *DigestError) Unwrap() error { return e.Cause }

// AsAPIError classifies a DigestError at the boundary: malformed
// identifiers are Validation, everything else (I/O, digest mismatch) is
// Internal — the store's integrity invariant failing is not something a
// caller can fix by retrying with different input.
func (e *DigestError) AsAPIError() *apierrors.Error {
	if e.Cause == nil {
		return apierrors.Validation("%s", e.Reason)
	}
	return apierrors.Internal(e.Cause, e.Reason)
}

func invalidErr(format string, args ...any) error {
	return &DigestError{Reason: fmt.Sprintf(format, args...)}
}

func ioErr(reason string, cause error) error {
	return &DigestError{Reason: reason, Cause: cause}
}

// Store is a filesystem-rooted content-addressed store.
type Store struct {
	root  string
	index *kvdb.KVAdapter
}

// New returns a Store rooted at dir. The directory need not exist yet;
// subdirectories are created on demand. The digest-prefix index cache is
// an in-process MemDB, rebuilt lazily from directory scans as prefix
// lookups occur.
func New(dir string) *Store {
	return &Store{root: dir, index: kvdb.NewMemIndex()}
}

func indexKey(artifactType, prefix string) []byte {
	return []byte(artifactType + ":" + prefix)
}

func validateType(artifactType string) error {
	if !artifactTypePattern.MatchString(artifactType) {
		return invalidErr("invalid artifact type %q", artifactType)
	}
	return nil
}

func validateDigestHex(digestHex string) error {
	if !hexDigestPattern.MatchString(digestHex) {
		return invalidErr("invalid digest hex %q", digestHex)
	}
	return nil
}

func (s *Store) jsonPath(artifactType, digestHex string) string {
	return filepath.Join(s.root, artifactType, digestHex+".json")
}

func (s *Store) rawPath(artifactType, digestHex string) string {
	return filepath.Join(s.root, artifactType, digestHex)
}

// Store canonicalizes value, computes its digest, and writes it under
// artifactType if absent. A second Store of the same value is a no-op:
// the write path is idempotent.
func (s *Store) Store(artifactType string, value any) (canon.Digest, error) {
	var zero canon.Digest
	if err := validateType(artifactType); err != nil {
		return zero, err
	}

	cb, err := canon.New(value)
	if err != nil {
		return zero, invalidErr("canonicalization failed: %v", err)
	}
	digest := canon.Sha256Digest(cb)

	dir := filepath.Join(s.root, artifactType)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return zero, ioErr("creating artifact directory", err)
	}

	path := s.jsonPath(artifactType, digest.Hex())
	if _, err := os.Stat(path); err == nil {
		return digest, nil
	} else if !os.IsNotExist(err) {
		return zero, ioErr("statting artifact file", err)
	}

	if err := os.WriteFile(path, cb.Bytes(), 0o644); err != nil {
		return zero, ioErr("writing artifact file", err)
	}
	s.indexDigest(artifactType, digest.Hex())
	return digest, nil
}

// indexDigest records a short-prefix -> full-hex mapping in the index
// cache so a later prefix lookup skips the directory scan. Cache misses
// are never fatal: resolveByPrefix falls back to the scan.
func (s *Store) indexDigest(artifactType, digestHex string) {
	if s.index == nil || len(digestHex) < indexPrefixLen {
		return
	}
	_ = s.index.Set(indexKey(artifactType, digestHex[:indexPrefixLen]), []byte(digestHex))
}

// StoreRaw writes precomputed bytes under a caller-supplied digest
// without re-verifying it. Returns the path written.
func (s *Store) StoreRaw(artifactType, digestHex string, data []byte) (string, error) {
	if err := validateType(artifactType); err != nil {
		return "", err
	}
	if err := validateDigestHex(digestHex); err != nil {
		return "", err
	}

	dir := filepath.Join(s.root, artifactType)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", ioErr("creating artifact directory", err)
	}

	path := s.rawPath(artifactType, digestHex)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", ioErr("writing raw artifact", err)
	}
	s.indexDigest(artifactType, digestHex)
	return path, nil
}

// Resolve reads the artifact at (type, digest). It recomputes the digest
// of whatever it reads and fails rather than silently returning content
// that does not match the requested digest. Returns (nil, nil) if no
// object exists — callers distinguish "absent" from an error.
func (s *Store) Resolve(artifactType, digestHex string) ([]byte, error) {
	if err := validateType(artifactType); err != nil {
		return nil, err
	}
	if err := validateDigestHex(digestHex); err != nil {
		return nil, err
	}

	path := s.jsonPath(artifactType, digestHex)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, ioErr("reading artifact file", err)
		}
		// Fall back to a raw read, then to a digest-prefix scan for
		// legacy artifacts stored without a .json suffix.
		data, err = os.ReadFile(s.rawPath(artifactType, digestHex))
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, ioErr("reading raw artifact", err)
			}
			data, err = s.resolveByPrefix(artifactType, digestHex)
			if err != nil {
				return nil, err
			}
			if data == nil {
				return nil, nil
			}
		}
	}

	if err := verifyDigest(data, digestHex); err != nil {
		return nil, err
	}
	return data, nil
}

// resolveByPrefix first consults the digest-prefix index cache, then
// falls back to scanning the artifact-type directory for a file whose
// name begins with digestHex, tolerating missing .json suffixes. It
// never returns a match whose actual on-disk digest differs from the
// requested one — the caller re-verifies unconditionally.
func (s *Store) resolveByPrefix(artifactType, digestHex string) ([]byte, error) {
	if s.index != nil && len(digestHex) >= indexPrefixLen {
		if cached, err := s.index.Get(indexKey(artifactType, digestHex[:indexPrefixLen])); err == nil && cached != nil {
			if data, err := s.readEither(artifactType, string(cached)); err == nil && data != nil {
				return data, nil
			}
		}
	}

	dir := filepath.Join(s.root, artifactType)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, ioErr("listing artifact directory", err)
	}

	for _, entry := range entries {
		name := strings.TrimSuffix(entry.Name(), ".json")
		if strings.HasPrefix(name, digestHex) {
			data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
			if err != nil {
				return nil, ioErr("reading prefix-matched artifact", err)
			}
			s.indexDigest(artifactType, name)
			return data, nil
		}
	}
	return nil, nil
}

// readEither reads either on-disk form (JSON or raw) for a full digest
// hex, returning (nil, nil) if neither exists.
func (s *Store) readEither(artifactType, digestHex string) ([]byte, error) {
	data, err := os.ReadFile(s.jsonPath(artifactType, digestHex))
	if err == nil {
		return data, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}
	data, err = os.ReadFile(s.rawPath(artifactType, digestHex))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

func verifyDigest(data []byte, wantHex string) error {
	cb, err := canon.NewFromJSON(data)
	var actual canon.Digest
	if err == nil {
		actual = canon.Sha256Digest(cb)
	} else {
		// Raw (non-JSON) blob: digest is over the bytes directly.
		actual = canon.SumRaw(data)
	}
	if actual.Hex() != wantHex {
		return ioErr("digest mismatch", fmt.Errorf("on-disk content hashes to %s, requested %s", actual.Hex(), wantHex))
	}
	return nil
}

// Exists reports whether an object is present under (type, digest).
func (s *Store) Exists(artifactType, digestHex string) bool {
	data, err := s.Resolve(artifactType, digestHex)
	return err == nil && data != nil
}
