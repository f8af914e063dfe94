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

package filewriter

import (
	"os"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/otelpipe/otlp-engine/pkg/otel/arrowcodec"
	"github.com/otelpipe/otlp-engine/pkg/werror"
)

// ReadResult is the outcome of reading one rolled file: the batches
// successfully decoded, plus whether the file's tail was truncated
// (e.g. by a crash mid-write, §5.2).
type ReadResult struct {
	Batches   []arrow.Record
	Truncated bool
}

// ReadFile opens and decodes a rolled .arrows file, tolerating a
// truncated final record (§5.2): everything fully written before the
// truncation point is still returned.
func ReadFile(path string) (ReadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return ReadResult{}, werror.WrapWithMsgf(err, "open %s", path)
	}
	defer f.Close()

	batches, truncated, err := arrowcodec.ReadStreamBatches(f)
	if err != nil {
		return ReadResult{}, werror.WrapWithMsgf(err, "decode %s", path)
	}
	return ReadResult{Batches: batches, Truncated: truncated}, nil
}
