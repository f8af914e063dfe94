// Copyright The OpenTelemetry Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//       http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package retention

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func touchFile(t *testing.T, dir, name string, mtime time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}

func TestSweepDeletesNothingWhenAllFilesAreYoungerThanRetention(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	touchFile(t, dir, "a.arrows", now.Add(-time.Minute))
	touchFile(t, dir, "b.arrows", now.Add(-time.Second))

	s := New(dir, time.Hour, func() string { return "" }, zap.NewNop())
	s.now = func() time.Time { return now }

	deleted, err := s.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestSweepDeletesOldFilesButKeepsNewestAndOpenFile(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	touchFile(t, dir, "old1.arrows", now.Add(-48*time.Hour))
	touchFile(t, dir, "old2.arrows", now.Add(-30*time.Hour))
	touchFile(t, dir, "old3.arrows", now.Add(-25*time.Hour))
	touchFile(t, dir, "newest.arrows", now.Add(-time.Minute))
	openPath := touchFile(t, dir, "open.arrows", now.Add(-72*time.Hour))

	s := New(dir, 24*time.Hour, func() string { return openPath }, zap.NewNop())
	s.now = func() time.Time { return now }

	deleted, err := s.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, e := range entries {
		names[e.Name()] = true
	}
	assert.True(t, names["newest.arrows"])
	assert.True(t, names["open.arrows"], "currently-open file must survive even though it is older than retention")
	assert.False(t, names["old1.arrows"])
	assert.False(t, names["old2.arrows"])
	assert.False(t, names["old3.arrows"])
}

func TestSweepOnMissingDirReturnsNoError(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "does-not-exist"), time.Hour, nil, zap.NewNop())
	deleted, err := s.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)
}
