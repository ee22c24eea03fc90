// Package extract unpacks fetched source artifacts into a directory. The
// set of archive families is closed: every Method has exactly one handler,
// and anything else is rejected with an UnsupportedExtractionError.
package extract

import "strings"

// Method names an archive family.
type Method string

const (
	// Tar is a tarball whose compression, if any, is detected from magic bytes.
	Tar    Method = "tar"
	TarGz  Method = "tar.gz"
	TarBz2 Method = "tar.bz2"
	TarXz  Method = "tar.xz"
	TarZst Method = "tar.zst"
	Zip    Method = "zip"
	// SevenZip is a 7-Zip archive.
	SevenZip Method = "seven_zip"
	// None writes the artifact to the destination unchanged.
	None Method = "none"
)

// aliases maps accepted spellings to their canonical Method.
var aliases = map[string]Method{
	"tar":       Tar,
	"lax_tar":   Tar,
	"tar.gz":    TarGz,
	"tgz":       TarGz,
	"gzip":      TarGz,
	"tar.bz2":   TarBz2,
	"tbz2":      TarBz2,
	"tar.xz":    TarXz,
	"txz":       TarXz,
	"tar.zst":   TarZst,
	"zstd":      TarZst,
	"zip":       Zip,
	"seven_zip": SevenZip,
	"7z":        SevenZip,
	"none":      None,
	"raw":       None,
}

// ParseMethod resolves a declared extraction method. An empty string selects
// Tar.
func ParseMethod(s string) (Method, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return Tar, nil
	}
	if m, ok := aliases[key]; ok {
		return m, nil
	}
	return "", &UnsupportedExtractionError{Method: s}
}

// Valid reports whether m is one of the canonical methods.
func (m Method) Valid() bool {
	switch m {
	case Tar, TarGz, TarBz2, TarXz, TarZst, Zip, SevenZip, None:
		return true
	}
	return false
}

func (m Method) String() string { return string(m) }
