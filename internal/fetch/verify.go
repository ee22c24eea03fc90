package fetch

import (
	"encoding/hex"
	"strings"

	"github.com/vk/omnibuild/internal/descriptor"
)

// Verify checks data against a declared checksum. The comparison is on the
// hex digest and ignores letter case.
func Verify(data []byte, checksum string) error {
	algo, want, err := descriptor.ParseChecksum(checksum)
	if err != nil {
		return err
	}

	h := algo.New()
	h.Write(data)
	got := hex.EncodeToString(h.Sum(nil))

	if !strings.EqualFold(got, want) {
		return &ChecksumMismatchError{Algorithm: algo, Expected: strings.ToLower(want), Actual: got}
	}
	return nil
}
