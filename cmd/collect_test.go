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

package cmd

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectCommand(t *testing.T) {
	dir := t.TempDir()

	src := filepath.Join(dir, "hosts")
	require.NoError(t, ioutil.WriteFile(src, []byte("127.0.0.1 localhost\n"), 0644))

	manifestPath := filepath.Join(dir, "manifest.json")
	manifestData := fmt.Sprintf(
		`[{"path": %q, "kind": "file", "category": "network"}, {"path": %q, "kind": "file"}]`,
		src, filepath.Join(dir, "nosuchfile"))
	require.NoError(t, ioutil.WriteFile(manifestPath, []byte(manifestData), 0644))

	output := filepath.Join(dir, "cases")

	collectCmd := Collect()
	collectCmd.SetOut(&bytes.Buffer{})
	collectCmd.SetArgs([]string{
		"--manifest", manifestPath,
		"--output", output,
		"--no-catalog",
	})

	err := collectCmd.Execute()
	require.Error(t, err)
	exitErr, ok := err.(*ExitError)
	require.True(t, ok)
	assert.Equal(t, 1, exitErr.Code)

	runDirs, err := ioutil.ReadDir(output)
	require.NoError(t, err)
	require.Len(t, runDirs, 1)

	runDir := filepath.Join(output, runDirs[0].Name())
	_, err = os.Stat(filepath.Join(runDir, "collected_files.zip"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(runDir, "collection.log"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(runDir, "staging"))
	assert.True(t, os.IsNotExist(err))
}

func TestCollectCommandBadManifest(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "manifest.json")
	require.NoError(t, ioutil.WriteFile(manifestPath, []byte(`[{"kind": "file"}]`), 0644))

	collectCmd := Collect()
	collectCmd.SetOut(&bytes.Buffer{})
	collectCmd.SetErr(&bytes.Buffer{})
	collectCmd.SetArgs([]string{"--manifest", manifestPath, "--output", dir})

	assert.Error(t, collectCmd.Execute())
}

func TestCollectCommandBadAlgorithm(t *testing.T) {
	collectCmd := Collect()
	collectCmd.SetOut(&bytes.Buffer{})
	collectCmd.SetErr(&bytes.Buffer{})
	collectCmd.SetArgs([]string{"--hash-algo", "crc32", "--output", t.TempDir()})

	assert.Error(t, collectCmd.Execute())
}
