/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestOpenOrRebuild_OnCorruption(t *testing.T) {
	dir := t.TempDir()
	d, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = d.Close()
	// Corrupt the DB file by writing junk
	if err := os.WriteFile(Path(dir), []byte("THIS IS NOT SQLITE"), 0o644); err != nil {
		t.Fatalf("write corrupt: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	d, rebuilt, err := OpenOrRebuild(ctx, dir)
	if err != nil {
		t.Fatalf("OpenOrRebuild: %v", err)
	}
	defer d.Close()
	if !rebuilt {
		t.Fatalf("expected rebuild to occur")
	}
	if _, err := d.ListEntries(ctx); err != nil {
		t.Fatalf("rebuilt database unusable: %v", err)
	}
	entries, _ := os.ReadDir(filepath.Join(dir, BackupDirName))
	if len(entries) == 0 {
		t.Fatalf("expected backup file in %s", BackupDirName)
	}
}

func TestOpenOrRebuild_HealthyKeepsData(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	d, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := d.SetSetting(ctx, SettingLastOpened, "/lib/a.cbz"); err != nil {
		t.Fatal(err)
	}
	_ = d.Close()
	d, rebuilt, err := OpenOrRebuild(ctx, dir)
	if err != nil || rebuilt {
		t.Fatalf("rebuilt=%v err=%v", rebuilt, err)
	}
	defer d.Close()
	if v, ok, _ := d.GetSetting(ctx, SettingLastOpened); !ok || v != "/lib/a.cbz" {
		t.Fatalf("setting lost: %q %v", v, ok)
	}
}

func TestOpenRequiresDir(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatalf("expected error for blank data dir")
	}
}
