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

// Package retention implements the periodic directory sweep that
// deletes rolled files older than a configured retention period (§5.3).
// Grounded on the teacher's benchmark/profiler.go directory-walk style
// (os.ReadDir + os.Stat) rather than any domain-specific teacher
// component, since the teacher carries no retention sweeper of its own.
package retention

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/otelpipe/otlp-engine/pkg/werror"
)

// Sweeper deletes files in Dir older than MaxAge, skipping the single
// path returned by CurrentPath (the file a Writer may still be
// appending to, §5.3 "never delete the currently-open file").
type Sweeper struct {
	Dir         string
	MaxAge      time.Duration
	CurrentPath func() string
	Logger      *zap.Logger
	now         func() time.Time

	// OnSweep, if set, is called after every successful Sweep invoked
	// from Run with the number of files deleted (zero included), so an
	// owner can feed that count into its own observability counters
	// without Run needing to know about them.
	OnSweep func(deleted int)
}

// New constructs a Sweeper using the real wall clock.
func New(dir string, maxAge time.Duration, currentPath func() string, logger *zap.Logger) *Sweeper {
	return &Sweeper{Dir: dir, MaxAge: maxAge, CurrentPath: currentPath, Logger: logger, now: time.Now}
}

// Sweep deletes every regular file in Dir whose modification time is
// older than MaxAge, except the currently-open file. It returns the
// number of files deleted.
func (s *Sweeper) Sweep() (int, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, werror.WrapWithMsgf(err, "read dir %s", s.Dir)
	}

	current := ""
	if s.CurrentPath != nil {
		current = s.CurrentPath()
	}

	cutoff := s.now().Add(-s.MaxAge)
	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(s.Dir, entry.Name())
		if path == current {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			s.logger().Warn("retention: stat failed, skipping", zap.String("path", path), zap.Error(err))
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		if err := os.Remove(path); err != nil {
			s.logger().Warn("retention: delete failed", zap.String("path", path), zap.Error(err))
			continue
		}
		s.logger().Info("retention: deleted expired file", zap.String("path", path), zap.Time("mtime", info.ModTime()))
		deleted++
	}
	return deleted, nil
}

func (s *Sweeper) logger() *zap.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return zap.NewNop()
}

// Run sweeps on a ticker until ctx is canceled, logging but not
// returning per-tick errors (a transient sweep failure should not stop
// future ticks, §5.3).
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.Sweep()
			if err != nil {
				s.logger().Warn("retention: sweep failed", zap.Error(err))
				continue
			}
			if s.OnSweep != nil {
				s.OnSweep(deleted)
			}
		}
	}
}
