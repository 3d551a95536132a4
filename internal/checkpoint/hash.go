package checkpoint

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"lukechampine.com/blake3"
)

// HashPath returns the hex blake3 digest of a file. For a directory it
// digests each file's relative name and content digest in name order.
func HashPath(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("checkpoint: hashing %s: %w", path, err)
	}

	h := blake3.New(32, nil)
	if info.IsDir() {
		err = hashDir(h, path, "")
	} else {
		err = copyFile(h, path)
	}
	if err != nil {
		return "", fmt.Errorf("checkpoint: hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashDir(w io.Writer, root, rel string) error {
	entries, err := os.ReadDir(filepath.Join(root, rel))
	if err != nil {
		return err
	}
	// os.ReadDir returns entries sorted by name.
	for _, e := range entries {
		name := filepath.ToSlash(filepath.Join(rel, e.Name()))
		if e.IsDir() {
			if err := hashDir(w, root, filepath.Join(rel, e.Name())); err != nil {
				return err
			}
			continue
		}
		fh := blake3.New(32, nil)
		if err := copyFile(fh, filepath.Join(root, rel, e.Name())); err != nil {
			return err
		}
		if _, err := io.WriteString(w, name+"\x00"); err != nil {
			return err
		}
		if _, err := w.Write(fh.Sum(nil)); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("calculating blake3 hash: %w", err)
	}
	return nil
}
