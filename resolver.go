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
	"os/user"
	"path"
	"strings"

	"github.com/pkg/errors"

	"github.com/forensicanalysis/forensiccollect/manifest"
)

// UserResolver maps a username to its home directory.
type UserResolver interface {
	Home(username string) (string, error)
}

// OSUserResolver looks target users up in the host user database.
type OSUserResolver struct{}

// Home returns the home directory of username.
func (OSUserResolver) Home(username string) (string, error) {
	u, err := user.Lookup(username)
	if err != nil {
		return "", err
	}
	if u.HomeDir == "" {
		return "", errors.Errorf("user %s has no home directory", username)
	}
	return u.HomeDir, nil
}

// ExpandHome rewrites "~/" entry paths below the resolved home directory.
// Entries without the prefix pass through unchanged.
func ExpandHome(entries []manifest.Entry, home string) []manifest.Entry {
	expanded := make([]manifest.Entry, len(entries))
	for i, entry := range entries {
		if strings.HasPrefix(entry.Path, "~/") {
			entry.Path = path.Join(home, entry.Path[2:])
		}
		expanded[i] = entry
	}
	return expanded
}
