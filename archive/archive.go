// Package archive implements the resource archive codec: packing a file
// tree into a gzipped POSIX tar stream with deterministic ordering, and
// unpacking it back into a file mapping.
package archive

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/klauspost/compress/gzip"
	digest "github.com/opencontainers/go-digest"

	"github.com/resourcex/resourcex"
)

// filePermissions is the fixed mode every packed regular file carries.
// Directory entries are never written; mtimes are always zero.
const filePermissions = 0o644

var unixEpoch = time.Unix(0, 0).UTC()

// Pack writes files as a gzip-compressed ustar stream, with entries sorted
// lexicographically by path for a reproducible byte-for-byte archive.
func Pack(files map[string][]byte) ([]byte, error) {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	gw, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if err != nil {
		return nil, resourcex.Wrap(resourcex.KindCorruptArchive, "create gzip writer", err)
	}
	tw := tar.NewWriter(gw)

	for _, name := range names {
		content := files[name]
		hdr := &tar.Header{
			Name:     name,
			Typeflag: tar.TypeReg,
			Mode:     filePermissions,
			Size:     int64(len(content)),
			ModTime:  unixEpoch,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, resourcex.Wrap(resourcex.KindCorruptArchive, "write tar header for "+name, err)
		}
		if _, err := tw.Write(content); err != nil {
			return nil, resourcex.Wrap(resourcex.KindCorruptArchive, "write tar body for "+name, err)
		}
	}
	if err := tw.Close(); err != nil {
		return nil, resourcex.Wrap(resourcex.KindCorruptArchive, "close tar writer", err)
	}
	if err := gw.Close(); err != nil {
		return nil, resourcex.Wrap(resourcex.KindCorruptArchive, "close gzip writer", err)
	}
	return buf.Bytes(), nil
}

// Unpack gunzips and parses a tar stream, returning a mapping of path to
// bytes. Only regular file entries are retained; directories and
// links are dropped.
func Unpack(archiveBytes []byte) (map[string][]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(archiveBytes))
	if err != nil {
		return nil, resourcex.Wrap(resourcex.KindCorruptArchive, "open gzip stream", err)
	}
	defer gr.Close()

	tr := tar.NewReader(gr)
	files := make(map[string][]byte)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, resourcex.Wrap(resourcex.KindCorruptArchive, "read tar header", err)
		}
		if hdr.Typeflag != tar.TypeReg && hdr.Typeflag != 0 {
			continue
		}
		content, err := io.ReadAll(tr)
		if err != nil {
			return nil, resourcex.Wrap(resourcex.KindCorruptArchive, "read tar body for "+hdr.Name, err)
		}
		files[hdr.Name] = content
	}
	return files, nil
}

// DigestFile returns the content digest of a single file's bytes, in the
// "sha256:<hex>" form.
func DigestFile(content []byte) string {
	return digest.FromBytes(content).String()
}

// DigestArchive returns the archive digest for a set of per-file digests:
// SHA-256 of the canonical concatenation of filename-sorted "name:digest\n"
// lines, regardless of map insertion order.
func DigestArchive(fileDigests map[string]string) string {
	names := make([]string, 0, len(fileDigests))
	for name := range fileDigests {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	for _, name := range names {
		fmt.Fprintf(&buf, "%s:%s\n", name, fileDigests[name])
	}
	return digest.FromBytes(buf.Bytes()).String()
}
