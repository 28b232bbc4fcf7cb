// Package fileutil provides hashing copies and path containment helpers
// shared by the staging and pipeline layers.
package fileutil

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const copyBufferSize = 16 * 1024

// CopyFile streams src to dst with default permissions (0o644).
func CopyFile(src, dst string) error {
	_, _, err := CopyFileHashed(src, dst)
	return err
}

// CopyFileHashed streams src to dst in fixed-size chunks, hashing both
// sides of the transfer. It returns the byte count and the hex SHA-256
// of the copied data, and removes dst when the streams disagree.
func CopyFileHashed(src, dst string) (int64, string, error) {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return 0, "", fmt.Errorf("stat source: %w", err)
	}
	srcSize := srcInfo.Size()

	in, err := os.Open(src)
	if err != nil {
		return 0, "", err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, "", err
	}
	defer func() {
		_ = out.Close()
	}()

	srcHasher := sha256.New()
	dstHasher := sha256.New()
	tee := io.TeeReader(in, srcHasher)
	multi := io.MultiWriter(out, dstHasher)

	buf := make([]byte, copyBufferSize)
	written, err := io.CopyBuffer(multi, tee, buf)
	if err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return 0, "", err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return 0, "", err
	}

	if written != srcSize {
		_ = os.Remove(dst)
		return 0, "", fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcSize, written)
	}
	if !bytes.Equal(srcHasher.Sum(nil), dstHasher.Sum(nil)) {
		_ = os.Remove(dst)
		return 0, "", fmt.Errorf("copy hash mismatch: file corrupted during copy")
	}

	return written, hex.EncodeToString(srcHasher.Sum(nil)), nil
}

// HashFile returns the hex SHA-256 digest of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hasher := sha256.New()
	buf := make([]byte, copyBufferSize)
	if _, err := io.CopyBuffer(hasher, f, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// JoinWithin joins rel onto root and rejects any result that escapes
// root. rel must be a relative path with no parent traversal.
func JoinWithin(root, rel string) (string, error) {
	cleaned := filepath.Clean(strings.TrimSpace(rel))
	if cleaned == "" || cleaned == "." {
		return "", fmt.Errorf("relative path is empty")
	}
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("path %q is absolute", rel)
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes its root", rel)
	}
	return filepath.Join(root, cleaned), nil
}
