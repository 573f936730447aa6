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

package regmap

import (
	"fmt"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-encoder/pkg/command"
	"jinr.ru/greenlab/go-encoder/pkg/config"
)

const (
	CardOptionName   = "card"
	FormatOptionName = "format"
)

func NewCommand(cfg *config.Config) *cobra.Command {
	var card, format string
	cmd := &cobra.Command{
		Use:   "regmap",
		Short: "Print the register map of a card known to the control server",
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := command.NewApiClient(cfg).RegMap(card, format)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), doc)
			return nil
		},
	}
	cmd.Flags().StringVar(&card, CardOptionName, "", "Card name")
	cmd.Flags().StringVar(&format, FormatOptionName, "json", "Output format: json or csv")
	cmd.MarkFlagRequired(CardOptionName)
	return cmd
}
