// Package pack stores full working-tree snapshots as compressed tar archives,
// one file per object id. Packs are the authoritative state of a commit;
// patches only describe history.
package pack

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// BlankID names the empty bootstrap pack written at init time. It is the
// fallback snapshot when no prior commit exists.
const BlankID = "blank"

// Tree is the decompressed contents of a pack: relative path to UTF-8 text.
// Iteration via Paths is lexicographic so exports are reproducible.
type Tree struct {
	files map[string]string
}

// NewTree returns an empty Tree.
func NewTree() *Tree {
	return &Tree{files: make(map[string]string)}
}

// Get returns the content stored for path.
func (t *Tree) Get(path string) (string, bool) {
	content, ok := t.files[path]
	return content, ok
}

// Paths returns every stored path in lexicographic order.
func (t *Tree) Paths() []string {
	paths := make([]string, 0, len(t.files))
	for path := range t.files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Len reports the number of files in the tree.
func (t *Tree) Len() int { return len(t.files) }

// Create writes a pack named id under objectDir holding the given paths,
// which are relative to root. Directories are archived recursively; blank
// entries are skipped. An empty path list produces a valid empty archive
// (used for the blank bootstrap object). Returns the pack file path.
func Create(objectDir, root string, paths []string, id string) (string, error) {
	dest := filepath.Join(objectDir, id)

	err := writeAtomic(dest, func(w io.Writer) error {
		gz := gzip.NewWriter(w)
		tw := tar.NewWriter(gz)

		for _, p := range paths {
			if p == "" {
				continue
			}

			full := filepath.Join(root, p)
			info, err := os.Stat(full)
			if err != nil {
				return fmt.Errorf("stat %s: %w", p, err)
			}

			if info.IsDir() {
				if err := appendDir(tw, root, full); err != nil {
					return err
				}
				continue
			}

			if err := appendFile(tw, full, p, info); err != nil {
				return err
			}
		}

		if err := tw.Close(); err != nil {
			return fmt.Errorf("finishing archive: %w", err)
		}
		return gz.Close()
	})
	if err != nil {
		return "", err
	}

	return dest, nil
}

// appendDir archives every regular file under dir, preserving paths relative
// to root.
func appendDir(tw *tar.Writer, root, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}

		rel, err := filepath.Rel(root, p)
		if err != nil {
			return fmt.Errorf("relativizing %s: %w", p, err)
		}

		return appendFile(tw, p, rel, info)
	})
}

func appendFile(tw *tar.Writer, full, rel string, info fs.FileInfo) error {
	content, err := os.ReadFile(full)
	if err != nil {
		return fmt.Errorf("reading %s: %w", rel, err)
	}

	hdr := &tar.Header{
		Name:    filepath.ToSlash(rel),
		Mode:    int64(info.Mode().Perm()),
		Size:    int64(len(content)),
		ModTime: info.ModTime(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("writing header for %s: %w", rel, err)
	}
	if _, err := tw.Write(content); err != nil {
		return fmt.Errorf("writing %s: %w", rel, err)
	}
	return nil
}

// Open fully reads a pack from r into memory. Corrupt archives and entries
// whose paths escape the pack root are hard errors; only the garden's
// blank-pack fallback softens a missing object.
func Open(r io.Reader) (*Tree, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening pack: %w", err)
	}
	defer gz.Close()

	tree := NewTree()
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading pack entry: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		name := path.Clean(hdr.Name)
		if path.IsAbs(name) || name == ".." || strings.HasPrefix(name, "../") {
			return nil, fmt.Errorf("pack entry %s: path escapes the pack root", hdr.Name)
		}

		content, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("reading pack entry %s: %w", hdr.Name, err)
		}
		tree.files[name] = string(content)
	}

	return tree, nil
}

// OpenID opens the pack stored under objectDir with the given id.
func OpenID(objectDir, id string) (*Tree, error) {
	f, err := os.Open(filepath.Join(objectDir, id))
	if err != nil {
		return nil, fmt.Errorf("opening pack %s: %w", id, err)
	}
	defer f.Close()

	return Open(f)
}

// ExportRepository archives the whole object directory plus the serialized
// export tree into a single transportable <name>.repo file, independent of
// any single commit. Returns the archive path.
func ExportRepository(objectDir, binDir, name string) (string, error) {
	dest := name + ".repo"

	err := writeAtomic(dest, func(w io.Writer) error {
		gz := gzip.NewWriter(w)
		tw := tar.NewWriter(gz)

		if err := appendPrefixed(tw, "objects", objectDir); err != nil {
			return err
		}
		// The bin tree only exists after a serialize run.
		if _, err := os.Stat(binDir); err == nil {
			if err := appendPrefixed(tw, "bin", binDir); err != nil {
				return err
			}
		}

		if err := tw.Close(); err != nil {
			return fmt.Errorf("finishing archive: %w", err)
		}
		return gz.Close()
	})
	if err != nil {
		return "", err
	}

	return dest, nil
}

// appendPrefixed archives every regular file under dir with paths rewritten
// to live under prefix.
func appendPrefixed(tw *tar.Writer, prefix, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", p, err)
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return fmt.Errorf("relativizing %s: %w", p, err)
		}

		return appendFile(tw, p, filepath.Join(prefix, rel), info)
	})
}

// Compress gzips a single blob; used to store serialized patches inside
// commit metadata rows.
func Compress(input []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(input); err != nil {
		return nil, fmt.Errorf("compressing: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("compressing: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress.
func Decompress(input []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(input))
	if err != nil {
		return nil, fmt.Errorf("decompressing: %w", err)
	}
	defer gz.Close()

	out, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("decompressing: %w", err)
	}
	return out, nil
}

// writeAtomic writes through a temp file in the destination directory and
// renames into place, so a crash never leaves a half-written pack.
func writeAtomic(dest string, fill func(io.Writer) error) error {
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if err := fill(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("renaming into place: %w", err)
	}

	success = true
	return nil
}
