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

package werror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

var ErrTest = errors.New("test error")

func Level1a() error {
	return Wrap(Level2(1))
}

func Level1b() error {
	return Wrap(Level2(2))
}

func Level2(id int) error {
	return WrapWithContext(ErrTest, map[string]interface{}{"id": id})
}

func TestWError(t *testing.T) {
	t.Parallel()

	err := Level1a()
	require.Contains(t, err.Error(), "werror.Level1a")
	require.Contains(t, err.Error(), "werror.Level2")
	require.Contains(t, err.Error(), "id=1")
	require.Contains(t, err.Error(), "->test error")

	err2 := Level1b()
	require.Contains(t, err2.Error(), "id=2")
	require.NotEqual(t, err.Error(), err2.Error(), "distinct call sites/context must not collapse to the same message")
}

func TestWrapNilReturnsNil(t *testing.T) {
	require.NoError(t, Wrap(nil))
	require.NoError(t, WrapWithContext(nil, map[string]interface{}{"k": "v"}))
	require.NoError(t, WrapWithMsg(nil, "msg"))
	require.NoError(t, WrapWithMsgf(nil, "msg %d", 1))
}

func TestWrapUnwrapRoundTrips(t *testing.T) {
	wrapped := Wrap(ErrTest)
	require.ErrorIs(t, wrapped, ErrTest, "errors.Is must see through the Wrapper to the sentinel")

	var w Wrapper
	require.True(t, errors.As(wrapped, &w))
	require.Equal(t, ErrTest, w.Unwrap())
	require.NotEmpty(t, w.File())
	require.Greater(t, w.Line(), 0)
	require.Contains(t, w.Function(), "TestWrapUnwrapRoundTrips")
}

func TestWrapWithContextAttaches(t *testing.T) {
	err := WrapWithContext(ErrTest, map[string]interface{}{"batch": "trace"})
	require.Contains(t, err.Error(), "batch=trace")
	require.Contains(t, err.Error(), "->test error")
}

func TestWrapWithMsgAttachesMessage(t *testing.T) {
	err := WrapWithMsg(ErrTest, "encode failed")
	require.Contains(t, err.Error(), "msg=encode failed")
	require.Contains(t, err.Error(), "->test error")
}

func TestWrapWithMsgfFormatsLikeSprintf(t *testing.T) {
	err := WrapWithMsgf(ErrTest, "column %q at index %d", "resource_spans", 3)
	want := fmt.Sprintf("msg=%s", fmt.Sprintf("column %q at index %d", "resource_spans", 3))
	require.Contains(t, err.Error(), want)
	require.Contains(t, err.Error(), "->test error")
}
