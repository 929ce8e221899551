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
	"os"

	"github.com/spf13/cobra"

	"mangashelf/internal/remote"
	"mangashelf/internal/shelf"
)

func (c *CLI) syncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Exchange reading progress with the shared PostgreSQL table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if !c.cfg.Remote.Enabled {
				return remote.ErrNotConfigured
			}
			s, err := c.open(ctx)
			if err != nil {
				return err
			}
			root := s.Root(ctx)
			if root == "" {
				return shelf.ErrNoRoot
			}
			device, _ := os.Hostname()
			store, err := remote.Connect(ctx, c.cfg.Remote.DSN, remote.Options{Password: c.secret, Device: device})
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Migrate(ctx); err != nil {
				return err
			}
			st, err := remote.Sync(ctx, store, s.DB, root)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(c.out, "pushed %d, pulled %d, skipped %d\n", st.Pushed, st.Pulled, st.Skipped)
			return err
		},
	}
}
