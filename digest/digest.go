// Package digest implements the 32-byte content digest used to address every
// blob in a PuzzleFS image. v1 fixes the algorithm at SHA-256.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/fxamacker/cbor/v2"
	godigest "github.com/opencontainers/go-digest"
)

// Size is the digest length in bytes.
const Size = sha256.Size

// Digest is a fixed-size content digest. The zero value is not a valid digest
// of any content and is used as a sentinel for "absent".
type Digest [Size]byte

// String renders the digest as lowercase hex, with no algorithm prefix.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// OCI renders the digest in the "sha256:<hex>" form used by OCI descriptors
// and index.json.
func (d Digest) OCI() godigest.Digest {
	return godigest.NewDigestFromEncoded(godigest.SHA256, d.String())
}

// IsZero reports whether d is the zero digest.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// Of computes the digest of buf.
func Of(buf []byte) Digest {
	return Digest(sha256.Sum256(buf))
}

// Parse decodes a lowercase-hex digest string of exactly Size*2 characters.
func Parse(s string) (Digest, error) {
	if len(s) != Size*2 {
		return Digest{}, fmt.Errorf("digest: bad length %d, want %d", len(s), Size*2)
	}
	var d Digest
	if _, err := hex.Decode(d[:], []byte(s)); err != nil {
		return Digest{}, fmt.Errorf("digest: %w", err)
	}
	return d, nil
}

// FromOCI parses an OCI "sha256:<hex>" digest string.
func FromOCI(d godigest.Digest) (Digest, error) {
	if d.Algorithm() != godigest.SHA256 {
		return Digest{}, fmt.Errorf("digest: unsupported algorithm %q", d.Algorithm())
	}
	if err := d.Validate(); err != nil {
		return Digest{}, fmt.Errorf("digest: %w", err)
	}
	return Parse(d.Encoded())
}

// Hasher accumulates bytes and produces a Digest. It satisfies io.Writer so it
// can be composed with io.MultiWriter/io.TeeReader while streaming a blob to
// its destination, the same shape the blob store's writer uses.
type Hasher struct {
	h hash.Hash
}

// NewHasher returns a Hasher ready to accumulate bytes.
func NewHasher() *Hasher {
	return &Hasher{h: sha256.New()}
}

// Write implements io.Writer.
func (h *Hasher) Write(p []byte) (int, error) {
	return h.h.Write(p)
}

// Sum returns the digest of everything written so far without resetting the
// hasher.
func (h *Hasher) Sum() Digest {
	var d Digest
	copy(d[:], h.h.Sum(nil))
	return d
}

// Verify computes the digest of everything read from r and reports whether
// it equals want.
func Verify(r io.Reader, want Digest) (bool, error) {
	h := NewHasher()
	if _, err := io.Copy(h, r); err != nil {
		return false, err
	}
	return h.Sum() == want, nil
}

// MarshalCBOR encodes d as a CBOR byte string, so it is compact within the
// fixed-width and canonical PuzzleFS wire records that embed a Digest.
func (d Digest) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(d[:])
}

// UnmarshalCBOR decodes a CBOR byte string of exactly Size bytes into d.
func (d *Digest) UnmarshalCBOR(data []byte) error {
	var raw []byte
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("digest: %w", err)
	}
	if len(raw) != Size {
		return fmt.Errorf("digest: bad length %d, want %d", len(raw), Size)
	}
	copy(d[:], raw)
	return nil
}
