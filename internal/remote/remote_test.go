/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package remote

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangashelf/internal/storage"
)

func TestConnectRequiresDSN(t *testing.T) {
	_, err := Connect(context.Background(), "  ", Options{})
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestMigrationFilesOrdered(t *testing.T) {
	files, err := migrationFiles()
	require.NoError(t, err)
	require.NotEmpty(t, files)
	prev := int64(0)
	for _, f := range files {
		v, err := parseVersion(f)
		require.NoError(t, err)
		assert.Greater(t, v, prev, f)
		prev = v
	}
	_, err = parseVersion("nounderscore.sql")
	assert.Error(t, err)
	_, err = parseVersion("abc_x.sql")
	assert.Error(t, err)
}

func TestKeyFor(t *testing.T) {
	root := filepath.Join("/", "lib")
	k, ok := KeyFor(root, filepath.Join(root, "Series", "v01.cbz"))
	require.True(t, ok)
	assert.Equal(t, "Series/v01.cbz", k)
	assert.Equal(t, filepath.Join(root, "Series", "v01.cbz"), PathFor(root, k))

	_, ok = KeyFor(root, filepath.Join("/", "other", "a.cbz"))
	assert.False(t, ok)
	_, ok = KeyFor(root, root)
	assert.False(t, ok)
	// a sibling whose name starts with dots is still inside
	k, ok = KeyFor(root, filepath.Join(root, "..a.cbz"))
	assert.True(t, ok)
	assert.Equal(t, "..a.cbz", k)
}

type fakeRemote struct {
	rows map[string]Record
}

func (f *fakeRemote) PushProgress(_ context.Context, recs []Record) (int, error) {
	n := 0
	for _, r := range recs {
		if cur, ok := f.rows[r.Key]; ok && !r.UpdatedAt.After(cur.UpdatedAt) {
			continue
		}
		f.rows[r.Key] = r
		n++
	}
	return n, nil
}

func (f *fakeRemote) PullProgress(_ context.Context, since time.Time) ([]Record, error) {
	var out []Record
	for _, r := range f.rows {
		if r.UpdatedAt.After(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeLocal struct {
	m map[string]storage.Progress
}

func (f *fakeLocal) ListProgress(context.Context) ([]storage.Progress, error) {
	out := make([]storage.Progress, 0, len(f.m))
	for _, p := range f.m {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeLocal) MergeProgress(_ context.Context, p storage.Progress) (bool, error) {
	if cur, ok := f.m[p.Path]; ok && !p.UpdatedAt.After(cur.UpdatedAt) {
		return false, nil
	}
	f.m[p.Path] = p
	return true, nil
}

func TestSyncLastWriterWins(t *testing.T) {
	root := filepath.Join("/", "lib")
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a := filepath.Join(root, "a.cbz")
	b := filepath.Join(root, "b.cbz")
	local := &fakeLocal{m: map[string]storage.Progress{
		a:                                   {Path: a, Page: 5, UpdatedAt: t0.Add(time.Hour)},
		b:                                   {Path: b, Page: 1, UpdatedAt: t0},
		filepath.Join("/", "elsewhere.cbz"): {Path: filepath.Join("/", "elsewhere.cbz"), Page: 2, UpdatedAt: t0},
	}}
	rem := &fakeRemote{rows: map[string]Record{
		"a.cbz": {Key: "a.cbz", Page: 2, UpdatedAt: t0},
		"b.cbz": {Key: "b.cbz", Page: 9, UpdatedAt: t0.Add(2 * time.Hour)},
		"c.cbz": {Key: "c.cbz", Page: 3, UpdatedAt: t0},
	}}

	st, err := Sync(context.Background(), rem, local, root)
	require.NoError(t, err)
	assert.Equal(t, Stats{Pushed: 1, Pulled: 2, Skipped: 1}, st)
	assert.Equal(t, 5, rem.rows["a.cbz"].Page, "newer local wins remotely")
	assert.Equal(t, 9, local.m[b].Page, "newer remote wins locally")
	assert.Equal(t, 3, local.m[filepath.Join(root, "c.cbz")].Page, "remote-only book pulled")
}
