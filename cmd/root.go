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
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-encoder/cmd/card"
	"jinr.ru/greenlab/go-encoder/cmd/completion"
	"jinr.ru/greenlab/go-encoder/cmd/config"
	"jinr.ru/greenlab/go-encoder/cmd/control"
	"jinr.ru/greenlab/go-encoder/cmd/encoder"
	"jinr.ru/greenlab/go-encoder/cmd/reg"
	"jinr.ru/greenlab/go-encoder/cmd/regmap"
	pkgconfig "jinr.ru/greenlab/go-encoder/pkg/config"
	"jinr.ru/greenlab/go-encoder/pkg/log"
)

const (
	LogLevelOptionName = "log-level"
	ConfigOptionName   = "config"
)

// NewRootCommand builds the command tree. Subcommands share cfg, which is
// loaded from the config file before any of them runs.
func NewRootCommand(out io.Writer) *cobra.Command {
	var logLevel, configPath string
	cfg := pkgconfig.NewDefaultConfig()
	cmd := &cobra.Command{
		Use:           "go-encoder",
		Short:         "Tool to run and control LiteX-CNC style encoder cards",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := pkgconfig.Load(configPath)
			switch {
			case err == nil:
				*cfg = *loaded
			case errors.Is(err, fs.ErrNotExist):
				cfg.SetPath(configPath)
			default:
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if err = log.Init(cmd.ErrOrStderr(), cfg.LogLevel); err != nil {
				return err
			}
			log.Debug("Using config %s", configPath)
			return nil
		},
	}
	cmd.SetOut(out)
	cmd.AddCommand(config.NewCommand(cfg))
	cmd.AddCommand(card.NewCommand(cfg))
	cmd.AddCommand(control.NewCommand(cfg))
	cmd.AddCommand(reg.NewCommand(cfg))
	cmd.AddCommand(encoder.NewCommand(cfg))
	cmd.AddCommand(regmap.NewCommand(cfg))
	cmd.AddCommand(completion.NewCommand())
	cmd.PersistentFlags().StringVar(&logLevel, LogLevelOptionName, "", fmt.Sprintf("Log level. %s", log.HelpLevels))
	cmd.PersistentFlags().StringVar(&configPath, ConfigOptionName, pkgconfig.DefaultConfigPath(), "Config file")
	return cmd
}
