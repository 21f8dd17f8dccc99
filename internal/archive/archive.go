// Package archive recognizes and extracts archive files so their contents
// can be imported like an ordinary directory tree. Formats are an explicit
// ordered list of (match, open) pairs assembled at startup.
package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Entry is one file inside an archive.
type Entry struct {
	Name    string
	ModTime time.Time
	Open    func() (io.ReadCloser, error)
}

// Reader iterates an archive's file entries.
type Reader interface {
	Entries() ([]Entry, error)
	Close() error
}

// Format pairs a path predicate with an opener. Formats are checked in
// registration order; the first match wins.
type Format struct {
	Name  string
	Match func(path string) bool
	Open  func(path string) (Reader, error)
}

var formats = []Format{
	{
		Name:  "zip",
		Match: hasSuffix(".zip"),
		Open:  openZip,
	},
	{
		Name:  "tar",
		Match: hasSuffix(".tar"),
		Open:  openTar(func(r io.Reader) (io.Reader, error) { return r, nil }),
	},
	{
		Name:  "tar.gz",
		Match: hasSuffix(".tar.gz", ".tgz"),
		Open: openTar(func(r io.Reader) (io.Reader, error) {
			return gzip.NewReader(r)
		}),
	},
	{
		Name:  "tar.bz2",
		Match: hasSuffix(".tar.bz2", ".tbz2"),
		Open: openTar(func(r io.Reader) (io.Reader, error) {
			return bzip2.NewReader(r), nil
		}),
	},
}

func hasSuffix(suffixes ...string) func(string) bool {
	return func(path string) bool {
		lower := strings.ToLower(path)
		for _, s := range suffixes {
			if strings.HasSuffix(lower, s) {
				return true
			}
		}
		return false
	}
}

// IsArchive reports whether any registered format recognizes the path.
func IsArchive(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	for _, f := range formats {
		if f.Match(path) {
			return true
		}
	}
	return false
}

// Extract unpacks the archive into a fresh temporary directory and returns
// it. Original modification times are propagated from archive metadata.
// The caller owns the directory and must remove it when done.
func Extract(path string, log *slog.Logger) (string, error) {
	if log == nil {
		log = slog.Default()
	}

	var format *Format
	for i := range formats {
		if formats[i].Match(path) {
			format = &formats[i]
			break
		}
	}
	if format == nil {
		return "", fmt.Errorf("no archive format matches %s", path)
	}

	r, err := format.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s archive: %w", format.Name, err)
	}
	defer func() { _ = r.Close() }()

	dir, err := os.MkdirTemp("", "crate-extract-"+uuid.NewString()[:8]+"-")
	if err != nil {
		return "", err
	}

	entries, err := r.Entries()
	if err != nil {
		_ = os.RemoveAll(dir)
		return "", fmt.Errorf("read %s archive: %w", format.Name, err)
	}

	for _, e := range entries {
		if err := extractEntry(dir, e); err != nil {
			_ = os.RemoveAll(dir)
			return "", fmt.Errorf("extract %s: %w", e.Name, err)
		}
	}

	log.Debug("archive extracted", "path", path, "dest", dir, "entries", len(entries))
	return dir, nil
}

func extractEntry(dir string, e Entry) error {
	dest, err := securePath(dir, e.Name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	src, err := e.Open()
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	if !e.ModTime.IsZero() {
		_ = os.Chtimes(dest, e.ModTime, e.ModTime)
	}
	return nil
}

// securePath rejects entries that would escape the extraction directory.
func securePath(dir, name string) (string, error) {
	dest := filepath.Join(dir, filepath.FromSlash(name))
	if !strings.HasPrefix(dest, filepath.Clean(dir)+string(filepath.Separator)) {
		return "", errors.New("archive entry escapes extraction directory")
	}
	return dest, nil
}

type zipReader struct {
	rc *zip.ReadCloser
}

func openZip(path string) (Reader, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	return &zipReader{rc: rc}, nil
}

func (z *zipReader) Entries() ([]Entry, error) {
	var entries []Entry
	for _, f := range z.rc.File {
		if f.FileInfo().IsDir() {
			continue
		}
		f := f
		entries = append(entries, Entry{
			Name:    f.Name,
			ModTime: f.Modified,
			Open:    func() (io.ReadCloser, error) { return f.Open() },
		})
	}
	return entries, nil
}

func (z *zipReader) Close() error { return z.rc.Close() }

// tarReader buffers tar contents at Entries time: tar is a stream, so each
// entry's bytes are read once and handed out from memory.
type tarReader struct {
	f      *os.File
	unwrap func(io.Reader) (io.Reader, error)
}

func openTar(unwrap func(io.Reader) (io.Reader, error)) func(string) (Reader, error) {
	return func(path string) (Reader, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		return &tarReader{f: f, unwrap: unwrap}, nil
	}
}

func (t *tarReader) Entries() ([]Entry, error) {
	r, err := t.unwrap(t.f)
	if err != nil {
		return nil, err
	}
	tr := tar.NewReader(r)

	var entries []Entry
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, err
		}
		name, mod := hdr.Name, hdr.ModTime
		entries = append(entries, Entry{
			Name:    name,
			ModTime: mod,
			Open: func() (io.ReadCloser, error) {
				return io.NopCloser(strings.NewReader(string(data))), nil
			},
		})
	}
	return entries, nil
}

func (t *tarReader) Close() error { return t.f.Close() }
