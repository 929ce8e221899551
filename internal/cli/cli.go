/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package cli implements the mangashelf command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"mangashelf/internal/config"
	"mangashelf/internal/library"
	applog "mangashelf/internal/log"
	"mangashelf/internal/metadata"
	"mangashelf/internal/shelf"
	"mangashelf/internal/version"
)

// CLI holds state shared by all commands of one invocation.
type CLI struct {
	out    io.Writer
	errOut io.Writer

	cfg     config.AppConfig
	secret  string
	dataDir string
	root    string
	verbose bool
	log     *slog.Logger
	shelf   *shelf.Shelf
}

// New creates a CLI writing results to out and logs to errOut.
func New(out, errOut io.Writer) *CLI {
	return &CLI{out: out, errOut: errOut}
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "mangashelf",
		Short:         "MangaShelf is a library and reader for manga archives",
		Long:          "MangaShelf scans folders of manga and book archives, shows them as a virtualized cover grid and pages through them.",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.setup(); err != nil {
				return err
			}
			cmd.SetContext(applog.ContextWith(cmd.Context(), slog.String("cmd", cmd.Name())))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return c.close()
		},
	}
	root.SetOut(c.out)
	root.SetErr(c.errOut)
	root.SetVersionTemplate("mangashelf {{.Version}}\n")

	pf := root.PersistentFlags()
	pf.StringVar(&c.dataDir, "data-dir", "", "directory of the library database (default: per-user data dir, or "+config.EnvDataDir+")")
	pf.StringVar(&c.root, "root", "", "library root folder (overrides library.root)")
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(c.scanCommand())
	root.AddCommand(c.listCommand())
	root.AddCommand(c.metaCommand())
	root.AddCommand(c.tuiCommand())
	root.AddCommand(c.uiCommand())
	root.AddCommand(c.packCommand())
	root.AddCommand(c.catalogCommand())
	root.AddCommand(c.importCommand())
	root.AddCommand(c.scrapeCommand())
	root.AddCommand(c.syncCommand())
	root.AddCommand(c.versionCommand())
	return root
}

// Execute runs the CLI with args.
func (c *CLI) Execute(ctx context.Context, args []string) error {
	root := c.RootCommand()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	// PostRun is skipped when a command fails
	if cerr := c.close(); err == nil {
		err = cerr
	}
	return err
}

// setup loads the configuration and initializes logging.
func (c *CLI) setup() error {
	cfg, secret, err := config.Load()
	c.cfg, c.secret = cfg, secret
	c.initLogging(c.errOut)
	if err != nil {
		c.log.Warn("config file ignored", slog.Any("err", err))
	}
	if c.root != "" {
		c.cfg.Library.Root = c.root
	}
	if c.dataDir == "" {
		if c.dataDir, err = config.DataDir(); err != nil {
			return fmt.Errorf("resolve data dir: %w", err)
		}
	}
	return nil
}

func (c *CLI) initLogging(w io.Writer) {
	over := applog.Options{Writer: w}
	if c.verbose {
		over.Level = "debug"
	}
	applog.Init(applog.Merge(applog.Options{
		Level:     c.cfg.Logging.Level,
		Format:    c.cfg.Logging.Format,
		AddSource: c.cfg.Logging.Source,
		File:      c.cfg.Logging.File,
	}, over))
	c.log = applog.WithComponent("cli")
}

// DataDir returns the resolved data directory; valid after setup.
func (c *CLI) DataDir() string { return c.dataDir }

// open returns the shelf, opening it on first use.
func (c *CLI) open(ctx context.Context) (*shelf.Shelf, error) {
	if c.shelf != nil {
		return c.shelf, nil
	}
	s, err := shelf.Open(ctx, c.cfg, c.dataDir)
	if err != nil {
		return nil, err
	}
	c.shelf = s
	return s, nil
}

func (c *CLI) close() error {
	if c.shelf == nil {
		return nil
	}
	err := c.shelf.Close()
	c.shelf = nil
	return err
}

// Flush persists open state; crash recovery calls it.
func (c *CLI) Flush() error { return c.close() }

func (c *CLI) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(c.out, "mangashelf %s\n", version.String())
			return err
		},
	}
}

// queryCriteria builds the catalog filter used by --query: title, author or
// tag containing q.
func queryCriteria(q string) metadata.Criteria {
	q = strings.TrimSpace(q)
	if q == "" {
		return metadata.Criteria{}
	}
	return metadata.Criteria{Title: q, Author: q, Tags: []string{q}, Mode: metadata.ModeOr}
}

// filtered applies q to the catalog and returns the matching items.
func filtered(s *shelf.Shelf, q string) []library.Item {
	s.Catalog.Filter(queryCriteria(q))
	return s.Catalog.Items()
}
