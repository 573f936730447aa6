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

package card

import (
	"fmt"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-encoder/pkg/command"
	"jinr.ru/greenlab/go-encoder/pkg/config"
	"jinr.ru/greenlab/go-encoder/pkg/regmap"
)

const (
	IPOptionName     = "ip"
	PortOptionName   = "port"
	SourceOptionName = "source"
	FormatOptionName = "format"
)

func NewCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "card",
		Short: "Emulated encoder card",
	}
	cmd.AddCommand(NewStartCommand(cfg))
	cmd.AddCommand(NewRegMapCommand(cfg))
	return cmd
}

func NewStartCommand(cfg *config.Config) *cobra.Command {
	var ip, source string
	var port int
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the card and serve its registers over Etherbone",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ip != "" {
				cfg.Card.Etherbone.IP = ip
			}
			if port != 0 {
				cfg.Card.Etherbone.Port = port
			}
			if source != "" {
				cfg.Card.Source = source
			}
			return command.StartCard(cfg)
		},
	}
	cmd.Flags().StringVar(&ip, IPOptionName, "", fmt.Sprintf("IP to bind. E.g. %s", config.DefaultCardIP))
	cmd.Flags().IntVar(&port, PortOptionName, 0, fmt.Sprintf("Etherbone UDP port. E.g. %d", config.DefaultEtherbonePort))
	cmd.Flags().StringVar(&source, SourceOptionName, "", fmt.Sprintf("Input source: %s or %s", config.SourceSim, config.SourceGPIO))
	return cmd
}

// NewRegMapCommand prints the register map of the configured card without
// starting it.
func NewRegMapCommand(cfg *config.Config) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "regmap",
		Short: "Print the register map of the configured card",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Card.Validate(); err != nil {
				return err
			}
			m, err := regmap.New(len(cfg.Card.Encoders), cfg.Card.CSRBase)
			if err != nil {
				return err
			}
			switch format {
			case "json":
				return m.WriteJSON(cmd.OutOrStdout())
			case "csv":
				return m.WriteCSV(cmd.OutOrStdout())
			}
			return config.ErrBadValue{Field: FormatOptionName, Value: format}
		},
	}
	cmd.Flags().StringVar(&format, FormatOptionName, "json", "Output format: json or csv")
	return cmd
}
