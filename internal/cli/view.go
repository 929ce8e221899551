/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"mangashelf/internal/tui"
	"mangashelf/internal/ui"
)

func (c *CLI) tuiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Browse the library in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := c.open(ctx)
			if err != nil {
				return err
			}
			// the alternate screen owns the terminal; logs go to the file only
			c.initLogging(io.Discard)
			defer c.initLogging(c.errOut)

			it, ok, err := tui.Run(ctx, s.Catalog, tui.Options{
				Title: "mangashelf  " + s.Root(ctx),
				Progress: func(path string) (int, int, bool) {
					return s.ProgressOf(ctx, path)
				},
				PreserveOffset: c.cfg.Grid.PreserveOffset,
			})
			if err != nil || !ok {
				return err
			}
			_, err = fmt.Fprintln(c.out, it.Entry.Path)
			return err
		},
	}
}

func (c *CLI) uiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ui",
		Short: "Open the desktop cover grid and reader",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			return ui.Run(cmd.Context(), s)
		},
	}
}
