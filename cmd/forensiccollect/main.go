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

// Package main implements the forensiccollect command line tool.
//     collect   Collect artifacts into a verified archive
//     results   Query the results catalog of a finished run
//
// Usage
//
// Collect with the built-in manifest
//     forensiccollect collect --output /cases
// Collect with a custom manifest and stronger digests
//     forensiccollect collect --manifest manifest.json --output /cases --hash-algo sha256
// Inspect a finished run
//     forensiccollect results /cases/20200102T030405Z-1a2b3c4d/results.db --status missing
//
// Exit codes: 0 all entries collected, 1 one or more entries not collected
// but the archive was produced, 2 fatal.
package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/forensicanalysis/forensiccollect/cmd"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "forensiccollect",
		Short: "Collect forensic artifacts into verified archives",
	}
	rootCmd.AddCommand(cmd.Collect(), cmd.Results())
	if err := rootCmd.Execute(); err != nil {
		var exitErr *cmd.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		fmt.Println("Error:", err)
		os.Exit(2)
	}
}
