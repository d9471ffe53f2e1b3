// Package fingerprint derives short content identifiers used to cache-bust
// asset file names.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"strings"

	"github.com/zeebo/blake3"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
)

// Fingerprint is a lowercase hex digest prefix of an asset's content.
type Fingerprint string

// Algorithm selects the digest behind a Fingerprint.
type Algorithm string

const (
	BLAKE3 Algorithm = "blake3"
	SHA256 Algorithm = "sha256"
)

const (
	DefaultLength = 10
	MinLength     = 6
	MaxLength     = 64
)

// Hasher computes fingerprints with a fixed algorithm and length.
type Hasher struct {
	algorithm Algorithm
	length    int
}

// NewHasher validates the algorithm and length. An empty algorithm selects
// BLAKE3, a zero length selects DefaultLength.
func NewHasher(algorithm Algorithm, length int) (*Hasher, error) {
	if algorithm == "" {
		algorithm = BLAKE3
	}
	if length == 0 {
		length = DefaultLength
	}
	switch algorithm {
	case BLAKE3, SHA256:
	default:
		return nil, ferrors.ValidationError("unsupported fingerprint algorithm").
			WithContext("algorithm", string(algorithm)).
			Build()
	}
	if length < MinLength || length > MaxLength {
		return nil, ferrors.ValidationError("fingerprint length out of range").
			WithContext("length", length).
			WithContext("min", MinLength).
			WithContext("max", MaxLength).
			Build()
	}
	return &Hasher{algorithm: algorithm, length: length}, nil
}

// Compute returns the fingerprint of content.
func (h *Hasher) Compute(content []byte) Fingerprint {
	var sum [32]byte
	switch h.algorithm {
	case SHA256:
		sum = sha256.Sum256(content)
	default:
		sum = blake3.Sum256(content)
	}
	return Fingerprint(hex.EncodeToString(sum[:])[:h.length])
}

// Algorithm returns the configured digest algorithm.
func (h *Hasher) Algorithm() Algorithm { return h.algorithm }

var defaultHasher = &Hasher{algorithm: BLAKE3, length: DefaultLength}

// Compute fingerprints content with the default BLAKE3 hasher.
func Compute(content []byte) Fingerprint {
	return defaultHasher.Compute(content)
}

// Name inserts fp before the final extension of a slash-separated path:
// "images/logo.png" becomes "images/logo.<fp>.png". Paths without an
// extension get the fingerprint appended.
func Name(logical string, fp Fingerprint) string {
	dir, file := path.Split(logical)
	ext := path.Ext(file)
	if ext == "" || ext == file {
		return dir + file + "." + string(fp)
	}
	return dir + strings.TrimSuffix(file, ext) + "." + string(fp) + ext
}
