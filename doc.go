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

// Package forensiccollect collects forensic artifacts from a host into a
// verified archive. Collection is driven by a declarative manifest of files,
// directories and glob patterns. Every collection attempt is recorded in an
// audit log, the evidentiary record of the run.
//
// A run follows the conventions below:
//     - Every run gets its own directory below the output directory, named
//       after the run id, which is derived from the start timestamp.
//     - Collected files are staged below category subdirectories and keep
//       their source path structure.
//     - The audit log contains one json record per collection attempt. All
//       records carry the full field set, absent values hold "N/A".
//     - The archive collected_files.zip contains the staged files plus the
//       audit log as collection.log. Members are sorted and timestamps
//       normalized, identical inputs produce byte comparable archives.
//     - After the archive is written it is reopened and every member is
//       verified against the digest recorded in the audit log.
//
// A finished run directory:
//     20200102T030405Z-1a2b3c4d/
//     ├── collected_files.zip
//     ├── collection.log
//     └── results.db
package forensiccollect
