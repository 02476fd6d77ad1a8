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
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/forensicanalysis/forensiccollect"
	"github.com/forensicanalysis/forensiccollect/digest"
	"github.com/forensicanalysis/forensiccollect/manifest"
)

// ExitError carries the process exit code of a finished collection run.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// Collect is the forensiccollect collect commandline subcommand.
func Collect() *cobra.Command {
	var manifestPath, output, hashAlgo, targetUser string
	var workers int
	var dryRun, removeLog, noCatalog bool

	collectCmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect artifacts into a verified archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := afero.NewOsFs()

			entries := manifest.Default()
			if manifestPath != "" {
				var err error
				entries, err = manifest.Load(fs, manifestPath)
				if err != nil {
					return err
				}
			}

			algorithm, err := digest.Parse(hashAlgo)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			summary, runErr := forensiccollect.Run(ctx, forensiccollect.Options{
				Fs:        fs,
				Entries:   entries,
				Output:    output,
				Algorithm: algorithm,
				Workers:   workers,
				DryRun:    dryRun,
				User:      targetUser,
				Catalog:   !noCatalog && !dryRun,
				RemoveLog: removeLog,
			})
			summary.Print(cmd.OutOrStdout())
			if runErr != nil {
				log.Print(runErr)
			}

			if code := summary.ExitCode(); code != 0 {
				cmd.SilenceUsage = true
				cmd.SilenceErrors = true
				return &ExitError{Code: code}
			}
			return nil
		},
	}

	collectCmd.Flags().StringVar(&manifestPath, "manifest", "", "manifest file, the built-in manifest if unset")
	collectCmd.Flags().StringVar(&output, "output", ".", "directory that receives the run directory")
	collectCmd.Flags().StringVar(&hashAlgo, "hash-algo", "sha1", "digest algorithm (sha1|sha256)")
	collectCmd.Flags().IntVar(&workers, "workers", 4, "number of collection workers")
	collectCmd.Flags().BoolVar(&dryRun, "dry-run", false, "resolve and record entries without staging or archiving")
	collectCmd.Flags().StringVar(&targetUser, "user", "", "target user whose home resolves '~/' manifest paths")
	collectCmd.Flags().BoolVar(&removeLog, "remove-log", false, "remove the standalone audit log after archiving")
	collectCmd.Flags().BoolVar(&noCatalog, "no-catalog", false, "skip writing the sqlite results catalog")

	return collectCmd
}
