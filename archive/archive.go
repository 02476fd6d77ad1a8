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

// Package archive packages a staging tree and its audit log into a single
// zip archive and verifies the written archive against the digests recorded
// in the log. Members are written in sorted order with normalized timestamps,
// so identical inputs produce byte comparable archives.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/forensicanalysis/forensiccollect/auditlog"
	"github.com/forensicanalysis/forensiccollect/digest"
)

// LogName is the archive member holding the audit log.
const LogName = "collection.log"

// memberTime is the normalized modification time of all archive members.
var memberTime = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// IntegrityError reports an archive that does not match its audit log. It is
// fatal, a run must not report success on an archive that cannot be trusted.
type IntegrityError struct {
	Member string
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("archive integrity: %s: %s", e.Member, e.Reason)
}

type member struct {
	srcPath string
	name    string
}

// Build writes the archive at archivePath containing all files below
// stagingDir under their staging paths plus the audit log as LogName.
func Build(fs afero.Fs, stagingDir, logPath, archivePath string) error {
	members := []member{{srcPath: logPath, name: LogName}}

	prefix := filepath.ToSlash(stagingDir)
	err := afero.Walk(fs, stagingDir, func(walkPath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		name := strings.TrimPrefix(strings.TrimPrefix(filepath.ToSlash(walkPath), prefix), "/")
		members = append(members, member{srcPath: walkPath, name: name})
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "could not walk staging directory")
	}

	sort.Slice(members, func(i, j int) bool { return members[i].name < members[j].name })

	file, err := fs.Create(archivePath)
	if err != nil {
		return errors.Wrap(err, "could not create archive")
	}

	writer := zip.NewWriter(file)
	writer.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	for _, m := range members {
		if err := addMember(fs, writer, m); err != nil {
			writer.Close() // nolint:errcheck
			file.Close()   // nolint:errcheck
			return errors.Wrap(err, fmt.Sprintf("could not add member %s", m.name))
		}
	}

	if err := writer.Close(); err != nil {
		file.Close() // nolint:errcheck
		return errors.Wrap(err, "could not finish archive")
	}
	return file.Close()
}

func addMember(fs afero.Fs, writer *zip.Writer, m member) error {
	header := &zip.FileHeader{
		Name:     m.name,
		Method:   zip.Deflate,
		Modified: memberTime,
	}
	dst, err := writer.CreateHeader(header)
	if err != nil {
		return err
	}

	src, err := fs.Open(m.srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	_, err = io.Copy(dst, src)
	return err
}

// Verify reopens the archive and checks that every record with a digest is
// present and hashes to the digest recorded in the audit log. The audit log
// member itself must be present as well.
func Verify(fs afero.Fs, archivePath string, records []auditlog.Record, algorithm digest.Algorithm) error {
	file, err := fs.Open(archivePath)
	if err != nil {
		return errors.Wrap(err, "could not open archive")
	}
	defer file.Close()

	fi, err := file.Stat()
	if err != nil {
		return errors.Wrap(err, "could not stat archive")
	}

	readerAt, ok := file.(io.ReaderAt)
	if !ok {
		return errors.New("archive filesystem does not support random access")
	}

	reader, err := zip.NewReader(readerAt, fi.Size())
	if err != nil {
		return errors.Wrap(err, "could not read archive")
	}

	index := map[string]*zip.File{}
	for _, f := range reader.File {
		index[f.Name] = f
	}

	if _, ok := index[LogName]; !ok {
		return &IntegrityError{Member: LogName, Reason: "missing from archive"}
	}

	for _, record := range records {
		if record.Digest == "" || record.Digest == auditlog.NA {
			continue
		}
		if record.StagingPath == "" || record.StagingPath == auditlog.NA {
			continue
		}

		f, ok := index[record.StagingPath]
		if !ok {
			return &IntegrityError{Member: record.StagingPath, Reason: "missing from archive"}
		}

		rc, err := f.Open()
		if err != nil {
			return &IntegrityError{Member: record.StagingPath, Reason: err.Error()}
		}
		hexdigest, _, err := digest.Stream(rc, algorithm)
		rc.Close() // nolint:errcheck
		if err != nil {
			return &IntegrityError{Member: record.StagingPath, Reason: err.Error()}
		}

		if hexdigest != record.Digest {
			reason := fmt.Sprintf("digest mismatch (log %s, archive %s)", record.Digest, hexdigest)
			return &IntegrityError{Member: record.StagingPath, Reason: reason}
		}
	}
	return nil
}
