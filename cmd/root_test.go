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

package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgconfig "jinr.ru/greenlab/go-encoder/pkg/config"
	"jinr.ru/greenlab/go-encoder/pkg/log"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	root := NewRootCommand(out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	t.Cleanup(func() {
		_ = log.Init(os.Stderr, "info")
	})
	err := root.Execute()
	return out.String(), err
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "go-encoder", "config")

	_, err := execute(t, "--config", path, "config", "init")
	require.NoError(t, err)
	_, err = os.Stat(path)
	require.NoError(t, err)

	_, err = execute(t, "--config", path, "config", "init")
	var exists pkgconfig.ErrConfigFileExists
	require.True(t, errors.As(err, &exists))

	_, err = execute(t, "--config", path, "config", "init", "--overwrite")
	require.NoError(t, err)

	out, err := execute(t, "--config", path, "--log-level", "debug", "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "spindle")
	assert.Contains(t, out, "log_level: debug")
}

func TestBadLogLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	_, err := execute(t, "--config", path, "--log-level", "loud", "config", "show")
	var levelErr log.ErrLogLevel
	require.True(t, errors.As(err, &levelErr))
}

func TestCardRegMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")

	out, err := execute(t, "--config", path, "card", "regmap", "--format", "csv")
	require.NoError(t, err)
	assert.Contains(t, out, "constant,encoder_count,1")
	assert.Contains(t, out, "encoder_0_counter")

	out, err = execute(t, "--config", path, "card", "regmap")
	require.NoError(t, err)
	assert.Contains(t, out, "\"encoder_index_pulse\"")

	_, err = execute(t, "--config", path, "card", "regmap", "--format", "xml")
	var bad pkgconfig.ErrBadValue
	require.True(t, errors.As(err, &bad))
}

func TestRequiredFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	_, err := execute(t, "--config", path, "reg", "write", "--card", "card0")
	assert.Error(t, err)
}

func TestCompletion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	out, err := execute(t, "--config", path, "completion")
	require.NoError(t, err)
	assert.Contains(t, out, "go-encoder")

	_, err = execute(t, "--config", path, "completion", "--shell", "tcsh")
	assert.Error(t, err)
}
