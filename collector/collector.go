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

// Package collector resolves manifest entries against a filesystem and copies
// matched files into a staging area while streaming their digest. Every
// manifest entry yields exactly one result, directory and glob entries
// additionally yield one result per contained file. Entries are collected
// concurrently, results are restored to manifest order.
package collector

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/forensicanalysis/fsdoublestar"
	"github.com/spf13/afero"
	"github.com/stoewer/go-strcase"

	"github.com/forensicanalysis/forensiccollect/digest"
	"github.com/forensicanalysis/forensiccollect/manifest"
)

// Status is the terminal outcome of a single collection attempt.
type Status string

const (
	// Found means the object was collected and staged.
	Found Status = "found"
	// Missing means the object does not exist. Missing is recorded, it is
	// not an error.
	Missing Status = "missing"
	// PermissionDenied means the object exists but could not be read.
	PermissionDenied Status = "permission_denied"
	// IOError means reading or staging the object failed mid-way.
	IOError Status = "io_error"
)

// Result records one collection attempt. Explicit manifest entries and
// implicit children (files below a directory entry, glob matches) each
// produce one Result.
type Result struct {
	Entry       manifest.Entry
	Path        string
	Kind        string
	Status      Status
	StagingPath string
	SizeBytes   int64
	Permissions string
	Digest      string
	Algorithm   digest.Algorithm
	CollectedAt time.Time
	Reason      string
}

// Collector copies manifest targets from Source into Staging. Staging is
// expected to be rooted at the run's staging directory.
type Collector struct {
	Source    afero.Fs
	Staging   afero.Fs
	Algorithm digest.Algorithm
	Workers   int
	DryRun    bool
	Clock     func() time.Time

	mu      sync.Mutex
	claimed map[string]bool
}

// Collect processes all entries and returns their results in manifest order.
// Entries are independent, so they are distributed over a bounded worker
// pool. On cancellation in-flight entries finish their current file, entries
// that never started produce no result.
func (c *Collector) Collect(ctx context.Context, entries []manifest.Entry) []Result {
	workers := c.Workers
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan int)
	grouped := make([][]Result, len(entries))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				grouped[i] = c.collectEntry(ctx, entries[i])
			}
		}()
	}

dispatch:
	for i := range entries {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	var results []Result
	for _, group := range grouped {
		results = append(results, group...)
	}
	return results
}

func (c *Collector) collectEntry(ctx context.Context, entry manifest.Entry) []Result {
	if ctx.Err() != nil {
		return nil
	}

	switch entry.Kind {
	case manifest.File:
		return []Result{c.collectFile(entry, entry.Path)}
	case manifest.Directory:
		return c.collectDirectory(ctx, entry)
	case manifest.Glob:
		return c.collectGlob(ctx, entry)
	}

	result := c.newResult(entry, entry.Path, string(entry.Kind))
	result.Status = IOError
	result.Reason = fmt.Sprintf("unknown kind %q", entry.Kind)
	return []Result{result}
}

func (c *Collector) collectFile(entry manifest.Entry, srcPath string) Result {
	result := c.newResult(entry, srcPath, "file")

	fi, err := digest.Lstat(c.Source, srcPath)
	switch {
	case err != nil && os.IsNotExist(err):
		result.Status = Missing
		return result
	case err != nil && os.IsPermission(err):
		result.Status = PermissionDenied
		return result
	case err != nil:
		result.Status = IOError
		result.Reason = err.Error()
		return result
	}

	if fi.Mode()&os.ModeSymlink != 0 {
		return c.recordSymlink(entry, srcPath, fi)
	}

	result.Permissions = digest.Mode(fi)

	if c.DryRun {
		result.Status = Found
		result.SizeBytes = fi.Size()
		return result
	}

	src, err := c.Source.Open(srcPath)
	if err != nil {
		if os.IsPermission(err) {
			result.Status = PermissionDenied
		} else {
			result.Status = IOError
			result.Reason = err.Error()
		}
		return result
	}
	defer src.Close()

	dest := c.stagingPath(entry.Category, srcPath)
	hexdigest, size, err := c.stage(src, dest)
	if err != nil {
		result.Status = IOError
		result.Reason = err.Error()
		return result
	}

	result.Status = Found
	result.StagingPath = dest
	result.SizeBytes = size
	result.Digest = hexdigest
	return result
}

func (c *Collector) collectDirectory(ctx context.Context, entry manifest.Entry) []Result {
	parent := c.newResult(entry, entry.Path, "directory")

	fi, err := digest.Lstat(c.Source, entry.Path)
	switch {
	case err != nil && os.IsNotExist(err):
		parent.Status = Missing
		return []Result{parent}
	case err != nil && os.IsPermission(err):
		parent.Status = PermissionDenied
		return []Result{parent}
	case err != nil:
		parent.Status = IOError
		parent.Reason = err.Error()
		return []Result{parent}
	}
	parent.Permissions = digest.Mode(fi)

	var children []Result
	_ = afero.Walk(c.Source, entry.Path, func(walkPath string, info os.FileInfo, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			child := c.newResult(entry, walkPath, "file")
			if os.IsPermission(err) {
				child.Status = PermissionDenied
			} else {
				child.Status = IOError
				child.Reason = err.Error()
			}
			children = append(children, child)
			return nil
		}
		if info.IsDir() {
			return nil
		}
		if info.Mode()&os.ModeSymlink != 0 {
			// links are recorded, never followed
			children = append(children, c.recordSymlink(entry, walkPath, info))
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		children = append(children, c.collectFile(entry, walkPath))
		return nil
	})

	sortResults(children)
	parent.Status = parentStatus(children)
	return append([]Result{parent}, children...)
}

func (c *Collector) collectGlob(ctx context.Context, entry manifest.Entry) []Result {
	parent := c.newResult(entry, entry.Path, "glob")

	// expanded at collection time, not manifest load time
	matches, err := c.glob(entry.Path)
	if err != nil {
		parent.Status = IOError
		parent.Reason = err.Error()
		return []Result{parent}
	}
	if len(matches) == 0 {
		log.Printf("no matches for pattern %s", entry.Path)
		parent.Status = Missing
		return []Result{parent}
	}

	sort.Strings(matches)
	var children []Result
	for _, match := range matches {
		if ctx.Err() != nil {
			break
		}
		if fi, err := digest.Lstat(c.Source, match); err == nil && fi.IsDir() {
			continue
		}
		children = append(children, c.collectFile(entry, match))
	}

	if len(children) == 0 {
		parent.Status = Missing
		return []Result{parent}
	}
	parent.Status = parentStatus(children)
	return append([]Result{parent}, children...)
}

// glob expands a manifest pattern against the source filesystem.
// fsdoublestar globs over an io/fs view, which takes slash paths relative to
// the filesystem root, so the leading slash is stripped from the pattern and
// restored on every match.
func (c *Collector) glob(pattern string) ([]string, error) {
	root := afero.NewIOFS(afero.NewBasePathFs(c.Source, "/"))

	matches, err := fsdoublestar.Glob(root, strings.TrimPrefix(path.Clean(pattern), "/"))
	if err != nil {
		return nil, err
	}

	rooted := make([]string, len(matches))
	for i, match := range matches {
		rooted[i] = "/" + match
	}
	return rooted, nil
}

func (c *Collector) recordSymlink(entry manifest.Entry, srcPath string, fi os.FileInfo) Result {
	result := c.newResult(entry, srcPath, "symlink")
	result.Status = Found
	result.Permissions = digest.Mode(fi)
	return result
}

func (c *Collector) newResult(entry manifest.Entry, srcPath, kind string) Result {
	return Result{
		Entry:       entry,
		Path:        srcPath,
		Kind:        kind,
		Algorithm:   c.Algorithm,
		CollectedAt: c.now(),
	}
}

// stage copies src to dest below the staging filesystem while hashing the
// written bytes, so the digest always matches the staged copy. A failed copy
// never leaves partial bytes behind.
func (c *Collector) stage(src io.Reader, dest string) (string, int64, error) {
	h, err := c.Algorithm.New()
	if err != nil {
		return "", 0, err
	}

	if err := c.Staging.MkdirAll(path.Dir(dest), 0750); err != nil {
		return "", 0, err
	}

	file, err := c.Staging.Create(dest)
	if err != nil {
		return "", 0, err
	}

	size, err := io.Copy(io.MultiWriter(file, h), src)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = c.Staging.Remove(dest)
		return "", 0, err
	}

	return fmt.Sprintf("%x", h.Sum(nil)), size, nil
}

// stagingPath reserves a unique destination below the category directory.
// Workers stage concurrently, so reservations are serialized.
func (c *Collector) stagingPath(category, srcPath string) string {
	dest := path.Join(strcase.SnakeCase(category), normalizePath(srcPath))

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.claimed == nil {
		c.claimed = map[string]bool{}
	}

	ext := path.Ext(dest)
	stem := dest[:len(dest)-len(ext)]
	for i := 0; c.claimed[dest]; i++ {
		dest = fmt.Sprintf("%s_%d%s", stem, i, ext)
	}
	c.claimed[dest] = true
	return dest
}

func (c *Collector) now() time.Time {
	if c.Clock != nil {
		return c.Clock().UTC()
	}
	return time.Now().UTC()
}

func parentStatus(children []Result) Status {
	for _, child := range children {
		if child.Status == Found {
			return Found
		}
	}
	return Missing
}

func sortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		return results[i].Path < results[j].Path
	})
}
