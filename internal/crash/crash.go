/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns panics at process entry points into a logged error,
// a report file in the data dir and a non-zero exit.
package crash

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	applog "mangashelf/internal/log"
	"mangashelf/internal/version"
)

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// ReportsDirName is the data-dir subdirectory crash reports are written to.
const ReportsDirName = "crash"

// Options tells Recover where to put the report and what to flush first.
type Options struct {
	// DataDir hosts the reports directory; empty means os.TempDir.
	DataDir string
	// Flush persists in-flight state (reading progress) before exit.
	Flush func() error
	// Context lines appended to the report, e.g. the library root.
	Context map[string]string
}

// Recover captures a panic, logs an error with stacktrace, writes an error
// report file and runs opts.Flush.
//
// Usage: defer crash.Recover(opts)
func Recover(opts Options) {
	if r := recover(); r != nil {
		l := applog.WithComponent("crash")
		stack := debug.Stack()
		l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

		reportPath, err := writeReport(opts, r, stack)
		if err != nil {
			l.Error("write crash report failed", slog.Any("err", err))
		}
		if opts.Flush != nil {
			if err := opts.Flush(); err != nil {
				l.Error("flush on crash failed", slog.Any("err", err))
			} else {
				l.Info("state flushed after crash")
			}
		}

		if _, err := fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath); err != nil {
			l.Error("failed to write crash message to stderr", slog.Any("err", err))
		}
		if _, err := fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH); err != nil {
			l.Error("failed to write version info to stderr", slog.Any("err", err))
		}
		exitFn(2)
	}
}

func reportDir(opts Options) string {
	if opts.DataDir == "" {
		return os.TempDir()
	}
	dir := filepath.Join(opts.DataDir, ReportsDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return os.TempDir()
	}
	return dir
}

func writeReport(opts Options, panicVal any, stack []byte) (string, error) {
	stamp := time.Now().Format("20060102-150405")
	path := filepath.Join(reportDir(opts), fmt.Sprintf("crash-%s-%d.log", stamp, os.Getpid()))

	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "MangaShelf Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	for k, v := range opts.Context {
		_, _ = fmt.Fprintf(&buf, "%s: %s\n", k, v)
	}
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", string(stack))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, fmt.Errorf("create crash report: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			applog.WithComponent("crash").Error("failed to close crash report file", slog.Any("err", err), slog.String("path", path))
		}
	}()
	if _, err := f.Write(buf.Bytes()); err != nil {
		return path, fmt.Errorf("write crash report: %w", err)
	}
	_ = f.Sync()
	return path, nil
}
