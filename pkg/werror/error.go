/*
 * Copyright The OpenTelemetry Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

package werror

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
)

// Wrapper wraps an error with the file, line, and function where the error
// was wrapped and an optional context map.
type Wrapper struct {
	// The wrapped error.
	err error

	// The file, line, and function where the error was wrapped.
	file     string
	line     int
	function string

	// An optional context map.
	context map[string]interface{}
}

// Error returns the wrapping function and line, the context map if any, and
// then "->" followed by the wrapped error's message.
func (w Wrapper) Error() string {
	var msg strings.Builder

	msg.WriteString(w.function)
	msg.WriteString(":")
	msg.WriteString(strconv.Itoa(w.line))

	if w.context != nil {
		msg.WriteString("{")
		for k, v := range w.context {
			msg.WriteString(k)
			msg.WriteString("=")
			msg.WriteString(fmt.Sprintf("%v", v))
		}
		msg.WriteString("}")
	}

	if w.err != nil {
		msg.WriteString("->")
		msg.WriteString(w.err.Error())
	}

	return msg.String()
}

// Unwrap returns the wrapped error.
func (w Wrapper) Unwrap() error {
	return w.err
}

// File returns the file where the error was wrapped.
func (w Wrapper) File() string {
	return w.file
}

// Line returns the line where the error was wrapped.
func (w Wrapper) Line() int {
	return w.line
}

// Function returns the function where the error was wrapped.
func (w Wrapper) Function() string {
	return w.function
}

// Wrap wraps the given error with the current file, line, and function.
func Wrap(err error) error {
	return wrap(err, nil)
}

// WrapWithContext wraps the given error with the current file, line, function,
// and the given context.
func WrapWithContext(err error, context map[string]interface{}) error {
	return wrap(err, context)
}

// wrap builds the Wrapper for the exported Wrap* functions, recording the
// frame that called them (two frames above this one).
func wrap(err error, context map[string]interface{}) error {
	if err == nil {
		return nil
	}

	pc, file, line, _ := runtime.Caller(2)
	fn := runtime.FuncForPC(pc)

	return Wrapper{
		err:      err,
		file:     file,
		line:     line,
		function: fn.Name(),
		context:  context,
	}
}

func WrapWithMsg(err error, msg string) error {
	if err == nil {
		return nil
	}

	return wrap(err, map[string]interface{}{"msg": msg})
}

// WrapWithMsgf is WrapWithMsg with fmt.Sprintf-style formatting, used by the
// codec and forwarder to attach the offending field/column name to an error
// without allocating a context map at every call site.
func WrapWithMsgf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}

	return wrap(err, map[string]interface{}{"msg": fmt.Sprintf(format, args...)})
}
