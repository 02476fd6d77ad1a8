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

package forensiccollect

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/forensicanalysis/forensiccollect/manifest"
)

// staticResolver serves a fixed home directory in tests.
type staticResolver struct {
	home string
}

func (r staticResolver) Home(username string) (string, error) {
	if r.home == "" {
		return "", errors.Errorf("unknown user %s", username)
	}
	return r.home, nil
}

func TestExpandHome(t *testing.T) {
	entries := []manifest.Entry{
		{Path: "~/.bash_history", Kind: manifest.File, Category: "histories"},
		{Path: "/etc/hosts", Kind: manifest.File, Category: "network"},
	}

	expanded := ExpandHome(entries, "/home/alice")

	assert.Equal(t, "/home/alice/.bash_history", expanded[0].Path)
	assert.Equal(t, "/etc/hosts", expanded[1].Path)
	// the input stays untouched
	assert.Equal(t, "~/.bash_history", entries[0].Path)
}
