package descriptor

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"
)

// Algorithm names a digest family used to authenticate source artifacts.
type Algorithm string

const (
	MD5    Algorithm = "md5"
	SHA1   Algorithm = "sha1"
	SHA256 Algorithm = "sha256"
	SHA512 Algorithm = "sha512"
)

// hexLengths maps each supported algorithm to the length of its hex digest.
var hexLengths = map[Algorithm]int{
	MD5:    32,
	SHA1:   40,
	SHA256: 64,
	SHA512: 128,
}

// New returns a fresh hash.Hash for the algorithm.
func (a Algorithm) New() hash.Hash {
	switch a {
	case MD5:
		return md5.New()
	case SHA1:
		return sha1.New()
	case SHA512:
		return sha512.New()
	default:
		return sha256.New()
	}
}

// ParseChecksum splits a declared checksum into its algorithm and hex digest.
// The algorithm comes from an optional "<algo>:" prefix, or is inferred from
// the digest length.
func ParseChecksum(checksum string) (Algorithm, string, error) {
	digest := strings.TrimSpace(checksum)
	if digest == "" {
		return "", "", fmt.Errorf("checksum is required")
	}

	var algo Algorithm
	if prefix, rest, ok := strings.Cut(digest, ":"); ok {
		algo = Algorithm(strings.ToLower(prefix))
		digest = rest
		want, known := hexLengths[algo]
		if !known {
			return "", "", fmt.Errorf("unknown checksum algorithm %q", prefix)
		}
		if len(digest) != want {
			return "", "", fmt.Errorf("%s checksum must be %d hex characters, got %d", algo, want, len(digest))
		}
	} else {
		for a, n := range hexLengths {
			if n == len(digest) {
				algo = a
				break
			}
		}
		if algo == "" {
			return "", "", fmt.Errorf("cannot infer checksum algorithm from %d hex characters", len(digest))
		}
	}

	if _, err := hex.DecodeString(digest); err != nil {
		return "", "", fmt.Errorf("checksum is not valid hex: %w", err)
	}
	return algo, digest, nil
}
