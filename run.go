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
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/forensicanalysis/forensiccollect/archive"
	"github.com/forensicanalysis/forensiccollect/auditlog"
	"github.com/forensicanalysis/forensiccollect/catalog"
	"github.com/forensicanalysis/forensiccollect/collector"
	"github.com/forensicanalysis/forensiccollect/digest"
	"github.com/forensicanalysis/forensiccollect/manifest"
)

// State is the phase of a collection run.
type State string

const (
	Init       State = "init"
	Staging    State = "staging"
	Collecting State = "collecting"
	Archiving  State = "archiving"
	CleaningUp State = "cleaning_up"
	Done       State = "done"
	Failed     State = "failed"
)

// RunContext holds the working paths of a single collection run. Its fields
// are set once at run start and never change afterwards.
type RunContext struct {
	RunID       string
	StagingDir  string
	LogPath     string
	ArchivePath string
}

// Options configure a collection run.
type Options struct {
	// Fs is the filesystem to collect from and write to, the os filesystem
	// if nil.
	Fs afero.Fs
	// Entries is the loaded manifest.
	Entries []manifest.Entry
	// Output is the directory that receives the run directory.
	Output string
	// Algorithm defaults to sha1 for compatibility with legacy tooling.
	Algorithm digest.Algorithm
	// Workers bounds the collection worker pool.
	Workers int
	// DryRun resolves and records all entries but stages and archives
	// nothing.
	DryRun bool
	// User is the target user whose home directory resolves "~/" manifest
	// paths. Resolution happens once, before any collection.
	User     string
	Resolver UserResolver
	// Catalog writes a sqlite results catalog next to the archive.
	Catalog bool
	// RemoveLog drops the standalone audit log during cleanup. The log stays
	// available inside the archive.
	RemoveLog bool
	// Clock is used for the run id and all collection timestamps. Runs with
	// a fixed clock over identical inputs produce byte comparable archives.
	Clock func() time.Time
}

// Summary is the final outcome of a run.
type Summary struct {
	RunContext
	State    State
	Counts   map[collector.Status]int
	Results  int
	Archived bool
}

// ExitCode maps the summary to the process exit code: 0 full success, 1 one
// or more entries not collected but the archive was produced, 2 fatal.
func (s *Summary) ExitCode() int {
	if s.State != Done {
		return 2
	}
	for status, count := range s.Counts {
		if status != collector.Found && count > 0 {
			return 1
		}
	}
	return 0
}

// Print writes the human readable summary. Per entry detail stays in the
// audit log.
func (s *Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "run %s: %s\n", s.RunID, s.State)
	statuses := []collector.Status{collector.Found, collector.Missing, collector.PermissionDenied, collector.IOError}
	for _, status := range statuses {
		fmt.Fprintf(w, "  %-18s %d\n", status, s.Counts[status])
	}
	if s.Archived {
		fmt.Fprintf(w, "archive: %s\n", s.ArchivePath)
	}
}

// Run executes a full collection: resolve the target user, create the run
// directories, collect all manifest entries, write the audit log, build and
// verify the archive and clean up the staging area.
//
// Individual entry failures never abort the run, only manifest, archive and
// archive integrity failures do. On cancellation the results gathered so far
// are still written to the audit log, collected data is never discarded.
func Run(ctx context.Context, opts Options) (*Summary, error) {
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	algorithm := opts.Algorithm
	if algorithm == "" {
		algorithm = digest.SHA1
	}

	summary := &Summary{State: Init, Counts: map[collector.Status]int{}}

	entries := opts.Entries
	if opts.User != "" {
		resolver := opts.Resolver
		if resolver == nil {
			resolver = OSUserResolver{}
		}
		home, err := resolver.Home(opts.User)
		if err != nil {
			summary.State = Failed
			return summary, errors.Wrap(err, "could not resolve target user")
		}
		entries = ExpandHome(entries, home)
	}

	started := clock().UTC()
	runID := started.Format("20060102T150405Z") + "-" + uuid.New().String()[:8]
	runDir := filepath.Join(opts.Output, runID)
	summary.RunContext = RunContext{
		RunID:       runID,
		StagingDir:  filepath.Join(runDir, "staging"),
		LogPath:     filepath.Join(runDir, "collection.log"),
		ArchivePath: filepath.Join(runDir, "collected_files.zip"),
	}

	summary.State = Staging
	if err := fs.MkdirAll(runDir, 0750); err != nil {
		summary.State = Failed
		return summary, errors.Wrap(err, "could not create run directory")
	}
	if !opts.DryRun {
		if err := fs.MkdirAll(summary.StagingDir, 0750); err != nil {
			summary.State = Failed
			return summary, errors.Wrap(err, "could not create staging directory")
		}
	}

	summary.State = Collecting
	c := &collector.Collector{
		Source:    fs,
		Staging:   afero.NewBasePathFs(fs, summary.StagingDir),
		Algorithm: algorithm,
		Workers:   opts.Workers,
		DryRun:    opts.DryRun,
		Clock:     clock,
	}
	results := c.Collect(ctx, entries)

	for _, result := range results {
		summary.Counts[result.Status]++
		if result.Entry.Required && result.Path == result.Entry.Path && result.Status != collector.Found {
			log.Printf("required entry %s: %s", result.Path, result.Status)
		}
	}
	summary.Results = len(results)

	// The log is written even for cancelled runs, partial collections keep
	// their forensic value.
	if err := auditlog.Write(fs, summary.LogPath, results); err != nil {
		summary.State = Failed
		return summary, errors.Wrap(err, "could not write audit log")
	}

	if opts.Catalog {
		if err := writeCatalog(filepath.Join(runDir, "results.db"), results); err != nil {
			log.Printf("could not write results catalog: %v", err)
		}
	}

	if err := ctx.Err(); err != nil {
		summary.State = Failed
		return summary, errors.Wrap(err, "collection cancelled")
	}

	if opts.DryRun {
		summary.State = Done
		return summary, nil
	}

	summary.State = Archiving
	if err := archive.Build(fs, summary.StagingDir, summary.LogPath, summary.ArchivePath); err != nil {
		summary.State = Failed
		return summary, errors.Wrap(err, "could not build archive")
	}

	records, err := auditlog.Read(fs, summary.LogPath)
	if err != nil {
		summary.State = Failed
		return summary, err
	}
	if err := archive.Verify(fs, summary.ArchivePath, records, algorithm); err != nil {
		summary.State = Failed
		return summary, err
	}
	summary.Archived = true

	// Cleanup failures never flip a verified archive to failed.
	summary.State = CleaningUp
	if err := fs.RemoveAll(summary.StagingDir); err != nil {
		log.Printf("could not remove staging directory: %v", err)
	}
	if opts.RemoveLog {
		if err := fs.Remove(summary.LogPath); err != nil {
			log.Printf("could not remove audit log: %v", err)
		}
	}

	summary.State = Done
	return summary, nil
}

func writeCatalog(path string, results []collector.Result) error {
	c, err := catalog.New(path)
	if err != nil {
		return err
	}

	for _, result := range results {
		if _, err := c.Insert(auditlog.FromResult(result)); err != nil {
			c.Close() // nolint:errcheck
			return err
		}
	}
	return c.Close()
}
