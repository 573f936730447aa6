/*
 Licensed under the Apache License, Version 2.0 (the "License");
 you may not use this file except in compliance with the License.
 You may obtain a copy of the License at

     https://www.apache.org/licenses/LICENSE-2.0

 Unless required by applicable law or agreed to in writing, software
 distributed under the License is distributed on an "AS IS" BASIS,
 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 See the License for the specific language governing permissions and
 limitations under the License.
*/

package log

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, DebugLevel, level)
	assert.Equal(t, "debug", level.String())

	_, err = ParseLevel("verbose")
	var levelErr ErrLogLevel
	require.True(t, errors.As(err, &levelErr))
	assert.Equal(t, "verbose", levelErr.Level)
}

func TestLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, Init(buf, "warning"))
	t.Cleanup(func() {
		_ = Init(os.Stderr, "info")
	})

	Debug("debug %d", 1)
	Info("info %d", 2)
	Warning("warning %d", 3)
	Error("error %d", 4)

	out := buf.String()
	assert.NotContains(t, out, "debug 1")
	assert.NotContains(t, out, "info 2")
	assert.Contains(t, out, WarningPrefix+"warning 3")
	assert.Contains(t, out, ErrorPrefix+"error 4")
	assert.True(t, strings.HasPrefix(out, LogPrefix))
	assert.Equal(t, buf, Writer())
}

func TestInitKeepsLevelWhenEmpty(t *testing.T) {
	require.NoError(t, Init(&bytes.Buffer{}, "error"))
	require.NoError(t, Init(&bytes.Buffer{}, ""))
	t.Cleanup(func() {
		_ = Init(os.Stderr, "info")
	})
	assert.Equal(t, ErrorLevel, Level())
	assert.Error(t, Init(&bytes.Buffer{}, "loud"))
}
