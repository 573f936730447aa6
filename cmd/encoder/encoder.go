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

package encoder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-encoder/pkg/command"
	"jinr.ru/greenlab/go-encoder/pkg/config"
	"jinr.ru/greenlab/go-encoder/pkg/srv/control/ifc"
)

const (
	CardOptionName    = "card"
	IndexOptionName   = "index"
	DisableOptionName = "disable"
	ReleaseOptionName = "release"
)

func NewCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encoder",
		Short: "Read encoders and drive their index latch",
	}
	cmd.AddCommand(NewReadCommand(cfg))
	cmd.AddCommand(NewIndexEnableCommand(cfg))
	cmd.AddCommand(NewAckCommand(cfg))
	cmd.AddCommand(NewResetCommand(cfg))
	return cmd
}

func printStatus(out io.Writer, s *ifc.EncoderStatus) {
	fmt.Fprintf(out, "encoder %d: counter=%d index_enable=%t reset_index_pulse=%t index_pulse=%t\n",
		s.Index, s.Counter, s.IndexEnable, s.ResetIndexPulse, s.IndexPulse)
}

func NewReadCommand(cfg *config.Config) *cobra.Command {
	var card string
	var index int
	cmd := &cobra.Command{
		Use:   "read",
		Short: "Print the state of one encoder or, without --index, of all encoders",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := command.NewApiClient(cfg)
			if index >= 0 {
				s, err := client.Encoder(card, index)
				if err != nil {
					return err
				}
				printStatus(cmd.OutOrStdout(), s)
				return nil
			}
			all, err := client.Encoders(card)
			if err != nil {
				return err
			}
			for _, s := range all {
				printStatus(cmd.OutOrStdout(), s)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&card, CardOptionName, "", "Card name")
	cmd.Flags().IntVar(&index, IndexOptionName, -1, "Encoder ordinal")
	cmd.MarkFlagRequired(CardOptionName)
	return cmd
}

func NewIndexEnableCommand(cfg *config.Config) *cobra.Command {
	var card string
	var index int
	var disable bool
	cmd := &cobra.Command{
		Use:   "index-enable",
		Short: "Arm the counter to reset on the next index pulse",
		RunE: func(cmd *cobra.Command, args []string) error {
			return command.NewApiClient(cfg).SetIndexEnable(card, index, !disable)
		},
	}
	cmd.Flags().StringVar(&card, CardOptionName, "", "Card name")
	cmd.Flags().IntVar(&index, IndexOptionName, 0, "Encoder ordinal")
	cmd.Flags().BoolVar(&disable, DisableOptionName, false, "Disarm instead")
	cmd.MarkFlagRequired(CardOptionName)
	cmd.MarkFlagRequired(IndexOptionName)
	return cmd
}

func NewAckCommand(cfg *config.Config) *cobra.Command {
	var card string
	var index int
	cmd := &cobra.Command{
		Use:   "ack",
		Short: "Acknowledge the latched index pulse",
		RunE: func(cmd *cobra.Command, args []string) error {
			return command.NewApiClient(cfg).AckIndexPulse(card, index)
		},
	}
	cmd.Flags().StringVar(&card, CardOptionName, "", "Card name")
	cmd.Flags().IntVar(&index, IndexOptionName, 0, "Encoder ordinal")
	cmd.MarkFlagRequired(CardOptionName)
	cmd.MarkFlagRequired(IndexOptionName)
	return cmd
}

func NewResetCommand(cfg *config.Config) *cobra.Command {
	var card string
	var release bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Hold every counter of the card at its reset value",
		RunE: func(cmd *cobra.Command, args []string) error {
			return command.NewApiClient(cfg).SetReset(card, !release)
		},
	}
	cmd.Flags().StringVar(&card, CardOptionName, "", "Card name")
	cmd.Flags().BoolVar(&release, ReleaseOptionName, false, "Release the reset")
	cmd.MarkFlagRequired(CardOptionName)
	return cmd
}
