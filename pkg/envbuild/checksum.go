package envbuild

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// Checksum computes a stable SHA-256 digest over the environment's file
// tree: relative paths and file contents, walked in sorted order. Two
// builds of the same formula produce the same digest, which is how rebuild
// idempotence is checked in tests.
//
// Symlinks are digested by target rather than followed, so the venv's
// interpreter links don't pull the system Python into the digest.
func (e *Environment) Checksum() (string, error) {
	var paths []string
	err := filepath.WalkDir(e.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(e.Root, path)
		if err != nil {
			return err
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walking environment %s: %w", e.Root, err)
	}
	sort.Strings(paths)

	h := sha256.New()
	for _, rel := range paths {
		full := filepath.Join(e.Root, rel)
		fmt.Fprintf(h, "%s\x00", rel)

		info, err := os.Lstat(full)
		if err != nil {
			return "", err
		}
		if info.Mode()&os.ModeSymlink != 0 {
			target, err := os.Readlink(full)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(h, "link:%s\x00", target)
			continue
		}

		f, err := os.Open(full)
		if err != nil {
			return "", err
		}
		if _, err := io.Copy(h, f); err != nil {
			f.Close()
			return "", err
		}
		f.Close()
		fmt.Fprintf(h, "\x00")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
