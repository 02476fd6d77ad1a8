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

package digest

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestStream(t *testing.T) {
	type args struct {
		content   string
		algorithm Algorithm
	}
	tests := []struct {
		name       string
		args       args
		wantDigest string
		wantSize   int64
		wantErr    bool
	}{
		{"SHA1", args{"abc", SHA1}, "a9993e364706816aba3e25717850c26c9cd0d89d", 3, false},
		{"SHA256", args{"abc", SHA256}, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", 3, false},
		{"Empty SHA1", args{"", SHA1}, "da39a3ee5e6b4b0d3255bfef95601890afd80709", 0, false},
		{"Unknown Algorithm", args{"abc", "md4"}, "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotDigest, gotSize, err := Stream(strings.NewReader(tt.args.content), tt.args.algorithm)
			if (err != nil) != tt.wantErr {
				t.Errorf("Stream() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			assert.Equal(t, tt.wantDigest, gotDigest)
			assert.Equal(t, tt.wantSize, gotSize)
		})
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("read failed")
}

func TestStreamReadError(t *testing.T) {
	digest, size, err := Stream(failingReader{}, SHA1)
	assert.Error(t, err)
	assert.Empty(t, digest)
	assert.Zero(t, size)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		arg     string
		want    Algorithm
		wantErr bool
	}{
		{"SHA1", "sha1", SHA1, false},
		{"SHA256", "sha256", SHA256, false},
		{"Unknown", "crc32", "", true},
		{"Empty", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.arg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Parse() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
