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

// Package manifest loads and validates the declarative list of collection
// targets. The manifest is a json array of entries:
//
//     [
//         {"path": "/etc/hosts", "kind": "file", "category": "network", "required": true},
//         {"path": "/var/log/**/*.log", "kind": "glob", "category": "logs"}
//     ]
//
// Entry order is preserved so the audit log is written in a deterministic
// order.
package manifest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/imdario/mergo"
	"github.com/pkg/errors"
	"github.com/qri-io/jsonschema"
	"github.com/spf13/afero"
)

// Kind is the closed set of entry kinds.
type Kind string

const (
	File      Kind = "file"
	Directory Kind = "directory"
	Glob      Kind = "glob"
)

// UnmarshalJSON rejects kinds outside the closed set.
func (k *Kind) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	switch Kind(name) {
	case File, Directory, Glob:
		*k = Kind(name)
		return nil
	}
	return &Error{Reason: fmt.Sprintf("unknown kind %q", name)}
}

// Entry declares a single collection target. Entries are immutable once
// loaded, their identity is the path.
type Entry struct {
	Path     string `json:"path"`
	Kind     Kind   `json:"kind"`
	Category string `json:"category,omitempty"`
	Required bool   `json:"required,omitempty"`
}

// Error is returned for malformed or inconsistent manifests. It is fatal and
// aborts a run before any collection happens.
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return "manifest error: " + e.Reason
}

var entryDefaults = Entry{Category: "misc"}

var schemaData = []byte(`{
    "$schema": "http://json-schema.org/draft-07/schema#",
    "title": "manifest",
    "type": "array",
    "items": {
        "type": "object",
        "required": ["path", "kind"],
        "properties": {
            "path": {"type": "string", "minLength": 1},
            "kind": {"enum": ["file", "directory", "glob"]},
            "category": {"type": "string"},
            "required": {"type": "boolean"}
        },
        "additionalProperties": false
    }
}`)

// Load reads and parses a manifest file.
func Load(fs afero.Fs, path string) ([]Entry, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Wrap(err, "could not read manifest")
	}
	return Parse(data)
}

// Parse validates and decodes a manifest document.
func Parse(data []byte) ([]Entry, error) {
	schema := &jsonschema.Schema{}
	if err := json.Unmarshal(schemaData, schema); err != nil {
		return nil, errors.Wrap(err, "could not unmarshal manifest schema")
	}

	keyErrs, err := schema.ValidateBytes(context.Background(), data)
	if err != nil {
		return nil, &Error{Reason: err.Error()}
	}
	if len(keyErrs) > 0 {
		return nil, &Error{Reason: keyErrs[0].Error()}
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		var manifestErr *Error
		if errors.As(err, &manifestErr) {
			return nil, manifestErr
		}
		return nil, &Error{Reason: err.Error()}
	}

	seen := map[string]bool{}
	for i := range entries {
		if seen[entries[i].Path] {
			return nil, &Error{Reason: fmt.Sprintf("duplicate entry %q", entries[i].Path)}
		}
		seen[entries[i].Path] = true

		if err := mergo.Merge(&entries[i], entryDefaults); err != nil {
			return nil, errors.Wrap(err, "could not apply entry defaults")
		}
	}
	return entries, nil
}

// Default returns the built-in live response manifest for POSIX hosts. Paths
// starting with "~/" are resolved against the target user's home directory.
func Default() []Entry {
	return []Entry{
		{Path: "/etc/passwd", Kind: File, Category: "accounts", Required: true},
		{Path: "/etc/group", Kind: File, Category: "accounts"},
		{Path: "/etc/sudoers", Kind: File, Category: "accounts"},
		{Path: "/etc/hosts", Kind: File, Category: "network", Required: true},
		{Path: "/etc/resolv.conf", Kind: File, Category: "network"},
		{Path: "/etc/crontab", Kind: File, Category: "persistence"},
		{Path: "/etc/cron.d", Kind: Directory, Category: "persistence"},
		{Path: "/var/spool/cron", Kind: Directory, Category: "persistence"},
		{Path: "/etc/ssh", Kind: Directory, Category: "ssh"},
		{Path: "/var/log/**/*.log", Kind: Glob, Category: "logs"},
		{Path: "/var/log/wtmp", Kind: File, Category: "logins"},
		{Path: "/var/log/btmp", Kind: File, Category: "logins"},
		{Path: "~/.bash_history", Kind: File, Category: "histories"},
		{Path: "~/.zsh_history", Kind: File, Category: "histories"},
		{Path: "~/.ssh", Kind: Directory, Category: "ssh"},
	}
}
