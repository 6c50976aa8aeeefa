// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package relocate moves processed input files out of the input directory.
package relocate

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// maxSuffix bounds the rename-on-conflict search.
const maxSuffix = 10000

// Mover moves files into a fixed destination directory, keeping their base
// name. When the destination name is taken it appends -1, -2, ... before the
// extension, so an existing file is never overwritten.
type Mover struct {
	dir string
}

// NewMover returns a Mover targeting dir. The directory must exist when
// Relocate is called.
func NewMover(dir string) *Mover {
	return &Mover{dir: dir}
}

// Dir returns the destination directory.
func (m *Mover) Dir() string { return m.dir }

// Relocate moves src into the destination directory and returns the new
// path. It fails if src does not exist or the destination is not writable.
func (m *Mover) Relocate(src string) (string, error) {
	if _, err := os.Stat(src); err != nil {
		return "", fmt.Errorf("relocating %s: %w", src, err)
	}

	dest, err := m.freeName(filepath.Base(src))
	if err != nil {
		return "", err
	}

	if err := os.Rename(src, dest); err != nil {
		if !errors.Is(err, syscall.EXDEV) {
			return "", fmt.Errorf("moving %s to %s: %w", src, dest, err)
		}
		if err := copyThenRemove(src, dest); err != nil {
			return "", fmt.Errorf("moving %s to %s across devices: %w", src, dest, err)
		}
	}
	return dest, nil
}

// freeName returns the first unused path for name in the destination.
func (m *Mover) freeName(name string) (string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := filepath.Join(m.dir, name)
	for i := 1; ; i++ {
		_, err := os.Lstat(candidate)
		if errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", fmt.Errorf("checking %s: %w", candidate, err)
		}
		if i > maxSuffix {
			return "", fmt.Errorf("no free name for %s in %s", name, m.dir)
		}
		candidate = filepath.Join(m.dir, stem+"-"+strconv.Itoa(i)+ext)
	}
}

func copyThenRemove(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return err
	}
	return os.Remove(src)
}
