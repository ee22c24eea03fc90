package extract

import (
	"archive/tar"
	"bytes"
	"compress/bzip2"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"

	"github.com/vk/omnibuild/internal/ctxlog"
)

// Extract unpacks data, an artifact called name, into dest using method m.
// dest is created if it does not exist. Every write goes through an os.Root
// opened on dest, so neither entry names nor symlinks already written can
// place a file outside of it.
func Extract(ctx context.Context, m Method, name string, data []byte, dest string) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Extracting artifact.", "method", m, "artifact", name, "bytes", len(data), "dest", dest)

	if !m.Valid() {
		return &UnsupportedExtractionError{Method: string(m)}
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("create extraction directory: %w", err)
	}
	root, err := os.OpenRoot(dest)
	if err != nil {
		return fmt.Errorf("open extraction directory: %w", err)
	}
	defer root.Close()

	switch m {
	case Tar:
		err = extractTar(ctx, m, data, root, detectCompression(data))
	case TarGz, TarBz2, TarXz, TarZst:
		err = extractTar(ctx, m, data, root, m)
	case Zip:
		err = extractZip(ctx, data, root)
	case SevenZip:
		err = extractSevenZip(ctx, data, root)
	case None:
		err = writeRaw(name, data, root)
	}
	if err != nil {
		return err
	}

	logger.Debug("Artifact extracted.", "method", m, "dest", dest)
	return nil
}

// detectCompression inspects magic bytes to pick the compressed tar family.
func detectCompression(data []byte) Method {
	switch {
	case bytes.HasPrefix(data, []byte{0x1f, 0x8b}):
		return TarGz
	case bytes.HasPrefix(data, []byte("BZh")):
		return TarBz2
	case bytes.HasPrefix(data, []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}):
		return TarXz
	case bytes.HasPrefix(data, []byte{0x28, 0xb5, 0x2f, 0xfd}):
		return TarZst
	default:
		return Tar
	}
}

// decompressor wraps r according to the compression family.
func decompressor(compression Method, r io.Reader) (io.ReadCloser, error) {
	switch compression {
	case TarGz:
		return gzip.NewReader(r)
	case TarBz2:
		return io.NopCloser(bzip2.NewReader(r)), nil
	case TarXz:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, err
		}
		return io.NopCloser(xr), nil
	case TarZst:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	default:
		return io.NopCloser(r), nil
	}
}

func extractTar(ctx context.Context, m Method, data []byte, root *os.Root, compression Method) error {
	stream, err := decompressor(compression, bytes.NewReader(data))
	if err != nil {
		return &ExtractionError{Method: m, Err: err}
	}
	defer stream.Close()

	tr := tar.NewReader(stream)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return &ExtractionError{Method: m, Err: err}
		}

		switch hdr.Typeflag {
		case tar.TypeXGlobalHeader, tar.TypeXHeader:
			continue
		}

		target, err := entryPath(hdr.Name)
		if err != nil {
			return &ExtractionError{Method: m, Entry: hdr.Name, Err: err}
		}
		if target == "." {
			continue
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			err = root.MkdirAll(target, 0o755)
		case tar.TypeReg:
			err = writeFile(root, target, tr, fs.FileMode(hdr.Mode).Perm())
		case tar.TypeSymlink:
			err = writeSymlink(root, target, hdr.Linkname)
		case tar.TypeLink:
			var source string
			source, err = entryPath(hdr.Linkname)
			if err == nil {
				err = writeLink(root, source, target)
			}
		default:
			// Device nodes and fifos have no place in a source tree.
			continue
		}
		if err != nil {
			return &ExtractionError{Method: m, Entry: hdr.Name, Err: err}
		}
	}
}

func extractZip(ctx context.Context, data []byte, root *os.Root) error {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return &ExtractionError{Method: Zip, Err: err}
	}

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeEntry(root, f.Name, f.FileInfo(), f.Open); err != nil {
			return &ExtractionError{Method: Zip, Entry: f.Name, Err: err}
		}
	}
	return nil
}

func extractSevenZip(ctx context.Context, data []byte, root *os.Root) error {
	sr, err := sevenzip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return &ExtractionError{Method: SevenZip, Err: err}
	}

	for _, f := range sr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeEntry(root, f.Name, f.FileInfo(), f.Open); err != nil {
			return &ExtractionError{Method: SevenZip, Entry: f.Name, Err: err}
		}
	}
	return nil
}

// writeEntry writes one zip or 7z member.
func writeEntry(root *os.Root, name string, info fs.FileInfo, open func() (io.ReadCloser, error)) error {
	target, err := entryPath(name)
	if err != nil {
		return err
	}
	if target == "." {
		return nil
	}
	if info.IsDir() {
		return root.MkdirAll(target, 0o755)
	}

	rc, err := open()
	if err != nil {
		return err
	}
	defer rc.Close()
	return writeFile(root, target, rc, info.Mode().Perm())
}

func writeRaw(name string, data []byte, root *os.Root) error {
	base := path.Base(name)
	if base == "" || base == "." || base == "/" {
		base = "source"
	}
	target, err := entryPath(base)
	if err != nil {
		return &ExtractionError{Method: None, Entry: name, Err: err}
	}
	if err := writeFile(root, target, bytes.NewReader(data), 0o644); err != nil {
		return &ExtractionError{Method: None, Entry: name, Err: err}
	}
	return nil
}

// entryPath converts an archive entry name into a clean path relative to
// the extraction root. It returns "." for the root itself.
func entryPath(name string) (string, error) {
	if strings.HasPrefix(name, "/") || filepath.IsAbs(name) {
		return "", fmt.Errorf("absolute path not allowed")
	}
	p := filepath.Clean(filepath.FromSlash(name))
	if p == "." {
		return p, nil
	}
	if !filepath.IsLocal(p) {
		return "", fmt.Errorf("path escapes extraction directory")
	}
	return p, nil
}

// writeSymlink creates target -> linkname. The link must point inside the
// root as written; chains through earlier links are caught by os.Root when
// they are followed.
func writeSymlink(root *os.Root, target, linkname string) error {
	if strings.HasPrefix(linkname, "/") || filepath.IsAbs(linkname) {
		return fmt.Errorf("absolute symlink target %q not allowed", linkname)
	}
	resolved := filepath.Join(filepath.Dir(target), filepath.FromSlash(linkname))
	if resolved != "." && !filepath.IsLocal(resolved) {
		return fmt.Errorf("symlink target %q escapes extraction directory", linkname)
	}
	if err := mkdirParent(root, target); err != nil {
		return err
	}
	return root.Symlink(linkname, target)
}

func writeLink(root *os.Root, source, target string) error {
	if err := mkdirParent(root, target); err != nil {
		return err
	}
	return root.Link(source, target)
}

func writeFile(root *os.Root, target string, r io.Reader, perm fs.FileMode) error {
	if err := mkdirParent(root, target); err != nil {
		return err
	}
	if perm == 0 {
		perm = 0o644
	}
	f, err := root.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func mkdirParent(root *os.Root, target string) error {
	dir := filepath.Dir(target)
	if dir == "." {
		return nil
	}
	return root.MkdirAll(dir, 0o755)
}
