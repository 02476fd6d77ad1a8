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
	"archive/zip"
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forensicanalysis/forensiccollect/auditlog"
	"github.com/forensicanalysis/forensiccollect/collector"
	"github.com/forensicanalysis/forensiccollect/digest"
	"github.com/forensicanalysis/forensiccollect/manifest"
)

func fixedClock() time.Time {
	return time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
}

func sourceFs(t *testing.T) afero.Fs {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/hosts", []byte("127.0.0.1 localhost\n"), 0644))
	require.NoError(t, afero.WriteFile(fs, "/etc/passwd", []byte("root:x:0:0::/root:/bin/sh\n"), 0644))
	return fs
}

func TestRun(t *testing.T) {
	fs := sourceFs(t)

	summary, err := Run(context.Background(), Options{
		Fs: fs,
		Entries: []manifest.Entry{
			{Path: "/etc/hosts", Kind: manifest.File, Category: "network"},
			{Path: "/no/such/file", Kind: manifest.File, Category: "misc"},
		},
		Output: "/cases",
		Clock:  fixedClock,
	})
	require.NoError(t, err)

	assert.Equal(t, Done, summary.State)
	assert.Equal(t, 1, summary.Counts[collector.Found])
	assert.Equal(t, 1, summary.Counts[collector.Missing])
	assert.Equal(t, 1, summary.ExitCode())
	assert.True(t, summary.Archived)

	// archive and log remain, staging is cleaned up
	exists, err := afero.Exists(fs, summary.ArchivePath)
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = afero.Exists(fs, summary.LogPath)
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = afero.DirExists(fs, summary.StagingDir)
	require.NoError(t, err)
	assert.False(t, exists)

	// exactly one terminal record per entry
	records, err := auditlog.Read(fs, summary.LogPath)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "found", records[0].Status)
	assert.NotEqual(t, auditlog.NA, records[0].Digest)
	assert.Equal(t, "missing", records[1].Status)

	// round trip: the digest in the log matches the bytes inside the archive
	data, err := afero.ReadFile(fs, summary.ArchivePath)
	require.NoError(t, err)
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	found := false
	for _, f := range reader.File {
		if f.Name == records[0].StagingPath {
			r, err := f.Open()
			require.NoError(t, err)
			hexdigest, _, err := digest.Stream(r, digest.SHA1)
			r.Close()
			require.NoError(t, err)
			assert.Equal(t, records[0].Digest, hexdigest)
			found = true
		}
	}
	assert.True(t, found)
}

func TestRunFullSuccess(t *testing.T) {
	fs := sourceFs(t)

	summary, err := Run(context.Background(), Options{
		Fs:      fs,
		Entries: []manifest.Entry{{Path: "/etc/hosts", Kind: manifest.File, Category: "network"}},
		Output:  "/cases",
		Clock:   fixedClock,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ExitCode())
}

func TestRunDeterministicArchives(t *testing.T) {
	fs := sourceFs(t)
	opts := Options{
		Fs: fs,
		Entries: []manifest.Entry{
			{Path: "/etc/hosts", Kind: manifest.File, Category: "network"},
			{Path: "/etc/passwd", Kind: manifest.File, Category: "accounts"},
		},
		Output: "/cases",
		Clock:  fixedClock,
	}

	first, err := Run(context.Background(), opts)
	require.NoError(t, err)
	second, err := Run(context.Background(), opts)
	require.NoError(t, err)

	firstData, err := afero.ReadFile(fs, first.ArchivePath)
	require.NoError(t, err)
	secondData, err := afero.ReadFile(fs, second.ArchivePath)
	require.NoError(t, err)
	assert.Equal(t, firstData, secondData)
}

func TestRunDryRun(t *testing.T) {
	fs := sourceFs(t)

	summary, err := Run(context.Background(), Options{
		Fs:      fs,
		Entries: []manifest.Entry{{Path: "/etc/hosts", Kind: manifest.File, Category: "network"}},
		Output:  "/cases",
		DryRun:  true,
		Clock:   fixedClock,
	})
	require.NoError(t, err)

	assert.Equal(t, Done, summary.State)
	assert.False(t, summary.Archived)
	assert.Equal(t, 1, summary.Counts[collector.Found])

	exists, err := afero.Exists(fs, summary.ArchivePath)
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = afero.Exists(fs, summary.LogPath)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRunCancelled(t *testing.T) {
	fs := sourceFs(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := Run(ctx, Options{
		Fs:      fs,
		Entries: []manifest.Entry{{Path: "/etc/hosts", Kind: manifest.File, Category: "network"}},
		Output:  "/cases",
		Clock:   fixedClock,
	})
	require.Error(t, err)

	assert.Equal(t, Failed, summary.State)
	assert.Equal(t, 2, summary.ExitCode())

	// the partial log is still written for forensic value
	records, err := auditlog.Read(fs, summary.LogPath)
	require.NoError(t, err)
	assert.Empty(t, records)
}

// cancelFs cancels the run when the trigger path is opened for collection.
type cancelFs struct {
	afero.Fs
	trigger string
	cancel  context.CancelFunc
}

func (c *cancelFs) Open(name string) (afero.File, error) {
	if name == c.trigger {
		c.cancel()
	}
	return c.Fs.Open(name)
}

func TestRunCancelledMidCollection(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fs := &cancelFs{Fs: sourceFs(t), trigger: "/etc/hosts", cancel: cancel}

	summary, err := Run(ctx, Options{
		Fs: fs,
		Entries: []manifest.Entry{
			{Path: "/etc/hosts", Kind: manifest.File, Category: "network"},
			{Path: "/etc/passwd", Kind: manifest.File, Category: "accounts"},
		},
		Output:  "/cases",
		Workers: 1,
		Clock:   fixedClock,
	})
	require.Error(t, err)
	assert.Equal(t, Failed, summary.State)
	assert.False(t, summary.Archived)

	// the entry in flight at cancellation finishes and is recorded, entries
	// that never started leave no record and no staged bytes
	records, err := auditlog.Read(fs, summary.LogPath)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "/etc/hosts", records[0].Path)
	assert.Equal(t, "found", records[0].Status)
	assert.NotEqual(t, auditlog.NA, records[0].Digest)

	exists, err := afero.Exists(fs, summary.StagingDir+"/accounts/etc/passwd")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRunResolvesTargetUser(t *testing.T) {
	fs := sourceFs(t)
	require.NoError(t, afero.WriteFile(fs, "/home/alice/.bash_history", []byte("ls\n"), 0600))

	summary, err := Run(context.Background(), Options{
		Fs:       fs,
		Entries:  []manifest.Entry{{Path: "~/.bash_history", Kind: manifest.File, Category: "histories"}},
		Output:   "/cases",
		User:     "alice",
		Resolver: staticResolver{home: "/home/alice"},
		Clock:    fixedClock,
	})
	require.NoError(t, err)

	assert.Equal(t, 0, summary.ExitCode())
	records, err := auditlog.Read(fs, summary.LogPath)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "/home/alice/.bash_history", records[0].Path)
}

func TestRunUnknownUser(t *testing.T) {
	summary, err := Run(context.Background(), Options{
		Fs:       sourceFs(t),
		Entries:  []manifest.Entry{{Path: "~/.bash_history", Kind: manifest.File, Category: "histories"}},
		Output:   "/cases",
		User:     "nobodyatall",
		Resolver: staticResolver{},
		Clock:    fixedClock,
	})
	require.Error(t, err)
	assert.Equal(t, Failed, summary.State)
	assert.Equal(t, 2, summary.ExitCode())
}

func TestSummaryPrint(t *testing.T) {
	summary := &Summary{
		RunContext: RunContext{RunID: "20200102T030405Z-1a2b3c4d", ArchivePath: "/cases/x/collected_files.zip"},
		State:      Done,
		Counts:     map[collector.Status]int{collector.Found: 2, collector.Missing: 1},
		Archived:   true,
	}

	var buf strings.Builder
	summary.Print(&buf)
	out := buf.String()
	assert.Contains(t, out, "run 20200102T030405Z-1a2b3c4d: done")
	assert.Contains(t, out, "found")
	assert.Contains(t, out, "archive: /cases/x/collected_files.zip")
}
