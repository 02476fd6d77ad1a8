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
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/forensicanalysis/forensiccollect/auditlog"
	"github.com/forensicanalysis/forensiccollect/catalog"
)

// Results is the forensiccollect results commandline subcommand. It queries
// the sqlite results catalog of a finished run.
func Results() *cobra.Command {
	var status string

	resultsCmd := &cobra.Command{
		Use:   "results <results.db>",
		Short: "Query the results catalog of a finished run",
		Args:  requireOneCatalog,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := catalog.Open(args[0])
			if err != nil {
				return err
			}
			defer c.Close()

			var records []auditlog.Record
			if status != "" {
				records, err = c.Select(status)
			} else {
				records, err = c.All()
			}
			if err != nil {
				return err
			}

			for _, record := range records {
				line, err := record.Rendered()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", line)
			}
			return nil
		},
	}
	resultsCmd.Flags().StringVar(&status, "status", "", "only return records with this status")

	return resultsCmd
}

func requireOneCatalog(_ *cobra.Command, args []string) error {
	if len(args) != 1 {
		return errors.New("requires exactly one results catalog")
	}
	for _, arg := range args {
		if _, err := os.Stat(arg); os.IsNotExist(err) {
			return errors.Wrap(os.ErrNotExist, arg)
		}
	}
	return nil
}
