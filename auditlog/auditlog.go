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

// Package auditlog writes the evidentiary record of a collection run: one
// json object per line, one line per collection attempt. Every record always
// contains the full field set, fields without a value hold the literal "N/A"
// so the log stays mechanically parseable.
package auditlog

import (
	"bufio"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/structs"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/tidwall/gjson"

	"github.com/forensicanalysis/forensiccollect/collector"
)

// NA marks fields that have no value for a record.
const NA = "N/A"

// ErrLogExists is returned when the log file for a run already exists. The
// log is write once per run, it is never appended to across runs.
var ErrLogExists = errors.New("audit log already exists")

// Record is a single line of the audit log.
type Record struct {
	Path            string `json:"path" structs:"path"`
	Kind            string `json:"kind" structs:"kind"`
	Status          string `json:"status" structs:"status"`
	SizeBytes       string `json:"size_bytes" structs:"size_bytes"`
	Permissions     string `json:"permissions" structs:"permissions"`
	Digest          string `json:"digest" structs:"digest"`
	DigestAlgorithm string `json:"digest_algorithm" structs:"digest_algorithm"`
	CollectedAt     string `json:"collected_at" structs:"collected_at"`
	StagingPath     string `json:"staging_path" structs:"staging_path"`
}

// FromResult converts a collection result into its audit record.
func FromResult(r collector.Result) Record {
	record := Record{
		Path:            r.Path,
		Kind:            r.Kind,
		Status:          string(r.Status),
		Permissions:     r.Permissions,
		Digest:          r.Digest,
		DigestAlgorithm: string(r.Algorithm),
		CollectedAt:     r.CollectedAt.UTC().Format(time.RFC3339),
		StagingPath:     r.StagingPath,
	}
	if r.Status == collector.Found && r.Kind == "file" {
		record.SizeBytes = strconv.FormatInt(r.SizeBytes, 10)
	}
	if record.Digest == "" {
		record.DigestAlgorithm = ""
	}
	return record
}

// Rendered returns the record as a single json line. Empty fields are
// replaced with "N/A", keys are emitted in a stable order.
func (r Record) Rendered() ([]byte, error) {
	fields := structs.Map(r)
	for key, value := range fields {
		if s, ok := value.(string); ok && s == "" {
			fields[key] = NA
		}
	}
	return json.Marshal(fields)
}

// Write creates the audit log for a run. It fails with ErrLogExists if path
// is already present.
func Write(fs afero.Fs, path string, results []collector.Result) error {
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return err
	}
	if exists {
		return errors.Wrap(ErrLogExists, path)
	}

	file, err := fs.Create(path)
	if err != nil {
		return errors.Wrap(err, "could not create audit log")
	}

	writer := bufio.NewWriter(file)
	for _, result := range results {
		line, err := FromResult(result).Rendered()
		if err != nil {
			file.Close() // nolint:errcheck
			return err
		}
		writer.Write(line)       // nolint:errcheck
		writer.WriteByte('\n')   // nolint:errcheck
	}
	if err := writer.Flush(); err != nil {
		file.Close() // nolint:errcheck
		return errors.Wrap(err, "could not write audit log")
	}
	return file.Close()
}

// Read parses an audit log back into records.
func Read(fs afero.Fs, path string) ([]Record, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Wrap(err, "could not read audit log")
	}

	var records []Record
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !gjson.Valid(line) {
			return nil, errors.Errorf("malformed audit record: %s", line)
		}
		parsed := gjson.Parse(line)
		records = append(records, Record{
			Path:            parsed.Get("path").String(),
			Kind:            parsed.Get("kind").String(),
			Status:          parsed.Get("status").String(),
			SizeBytes:       parsed.Get("size_bytes").String(),
			Permissions:     parsed.Get("permissions").String(),
			Digest:          parsed.Get("digest").String(),
			DigestAlgorithm: parsed.Get("digest_algorithm").String(),
			CollectedAt:     parsed.Get("collected_at").String(),
			StagingPath:     parsed.Get("staging_path").String(),
		})
	}
	return records, nil
}
