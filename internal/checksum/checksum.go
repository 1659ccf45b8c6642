// Package checksum hashes file content. MD5 matches the md5Checksum Drive
// reports for binary files.
package checksum

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
)

// Algorithm names a supported hash
type Algorithm string

const (
	MD5    Algorithm = "md5"
	SHA256 Algorithm = "sha256"
)

// DefaultMaxSize bounds how much a Calculator reads
const DefaultMaxSize = 100 * 1024 * 1024

const chunkSize = 32 * 1024

// ErrTooLarge is returned when input exceeds the calculator's max size
var ErrTooLarge = errors.New("input exceeds checksum size limit")

// Calculator streams input through a hash in chunks, checking ctx between
// chunks
type Calculator struct {
	maxSize int64
}

// New returns a calculator that refuses input over maxSize bytes.
// maxSize <= 0 means unlimited.
func New(maxSize int64) *Calculator {
	return &Calculator{maxSize: maxSize}
}

// Default returns a calculator limited to DefaultMaxSize
func Default() *Calculator {
	return New(DefaultMaxSize)
}

// Sum returns the hex digest of everything read from r
func (c *Calculator) Sum(ctx context.Context, r io.Reader, algo Algorithm) (string, error) {
	h, err := newHash(algo)
	if err != nil {
		return "", err
	}

	if c.maxSize > 0 {
		r = io.LimitReader(r, c.maxSize+1)
	}

	buf := make([]byte, chunkSize)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		n, err := r.Read(buf)
		if n > 0 {
			total += int64(n)
			if c.maxSize > 0 && total > c.maxSize {
				return "", fmt.Errorf("%w (%d bytes)", ErrTooLarge, c.maxSize)
			}
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read error: %w", err)
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Bytes returns the hex digest of data
func (c *Calculator) Bytes(data []byte, algo Algorithm) (string, error) {
	return c.Sum(context.Background(), bytes.NewReader(data), algo)
}

// IsSupported checks if the given algorithm is supported
func IsSupported(algo Algorithm) bool {
	_, err := newHash(algo)
	return err == nil
}

func newHash(algo Algorithm) (hash.Hash, error) {
	switch algo {
	case MD5:
		return md5.New(), nil
	case SHA256:
		return sha256.New(), nil
	default:
		return nil, fmt.Errorf("unsupported algorithm: %s", algo)
	}
}
