// Copyright (c) 2020 Siemens AG
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
//
// Author(s): Jonas Plum

// Package digest computes cryptographic file digests and normalized file
// metadata for collected artifacts.
package digest

import (
	"crypto/sha1" // #nosec
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// Algorithm selects the hash function used for file digests.
type Algorithm string

const (
	// SHA1 is the default algorithm, kept for compatibility with legacy
	// collection tooling.
	SHA1 Algorithm = "sha1"
	// SHA256 is the stronger, selectable alternative.
	SHA256 Algorithm = "sha256"
)

// Parse returns the Algorithm for name.
func Parse(name string) (Algorithm, error) {
	switch Algorithm(name) {
	case SHA1, SHA256:
		return Algorithm(name), nil
	}
	return "", errors.Errorf("unsupported digest algorithm %q", name)
}

// New returns a fresh hash for the algorithm.
func (a Algorithm) New() (hash.Hash, error) {
	switch a {
	case SHA1:
		return sha1.New(), nil // #nosec
	case SHA256:
		return sha256.New(), nil
	}
	return nil, errors.Errorf("unsupported digest algorithm %q", a)
}

// Stream hashes r in a single pass and returns the hex digest and the number
// of bytes read. The content is never buffered in full, so arbitrarily large
// files can be hashed. A read error fails the whole digest, a partial read is
// never reported as a complete one.
func Stream(r io.Reader, algorithm Algorithm) (string, int64, error) {
	h, err := algorithm.New()
	if err != nil {
		return "", 0, err
	}

	size, err := io.Copy(h, r)
	if err != nil {
		return "", 0, errors.Wrap(err, "could not read stream")
	}

	return hex.EncodeToString(h.Sum(nil)), size, nil
}

// Mode returns the symbolic permission string for fi, e.g. "-rw-r--r--".
// The same representation is used on all platforms.
func Mode(fi os.FileInfo) string {
	return fi.Mode().String()
}

// Lstat stats path without following symbolic links where the filesystem
// supports it, so links are observed instead of traversed.
func Lstat(fs afero.Fs, path string) (os.FileInfo, error) {
	if lstater, ok := fs.(afero.Lstater); ok {
		fi, _, err := lstater.LstatIfPossible(path)
		return fi, err
	}
	return fs.Stat(path)
}
