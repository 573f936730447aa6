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

package reg

import (
	"fmt"

	"github.com/spf13/cobra"

	"jinr.ru/greenlab/go-encoder/pkg/command"
	"jinr.ru/greenlab/go-encoder/pkg/config"
)

const (
	CardOptionName   = "card"
	AddrOptionName   = "addr"
	ValueOptionName  = "value"
	CachedOptionName = "cached"
)

func NewCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reg",
		Short: "Read and write card registers",
	}
	cmd.AddCommand(NewReadCommand(cfg))
	cmd.AddCommand(NewWriteCommand(cfg))
	return cmd
}

func NewReadCommand(cfg *config.Config) *cobra.Command {
	var card, addr string
	var cached bool
	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read a register or, without --addr, every register of a card",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := command.NewApiClient(cfg)
			out := cmd.OutOrStdout()
			if addr != "" {
				value, err := client.RegRead(card, addr)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s: %s\n", addr, value)
				return nil
			}
			regs, err := client.RegReadAll(card, cached)
			if err != nil {
				return err
			}
			for _, r := range regs {
				fmt.Fprintf(out, "%s: %s\n", r.Addr, r.Value)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&card, CardOptionName, "", "Card name")
	cmd.Flags().StringVar(&addr, AddrOptionName, "", "Register address (hex), e.g. 0x1000")
	cmd.Flags().BoolVar(&cached, CachedOptionName, false, "Print the values cached by the control server")
	cmd.MarkFlagRequired(CardOptionName)
	return cmd
}

func NewWriteCommand(cfg *config.Config) *cobra.Command {
	var card, addr, value string
	cmd := &cobra.Command{
		Use:   "write",
		Short: "Write a register",
		RunE: func(cmd *cobra.Command, args []string) error {
			return command.NewApiClient(cfg).RegWrite(card, addr, value)
		},
	}
	cmd.Flags().StringVar(&card, CardOptionName, "", "Card name")
	cmd.Flags().StringVar(&addr, AddrOptionName, "", "Register address (hex), e.g. 0x1008")
	cmd.Flags().StringVar(&value, ValueOptionName, "", "Register value (hex), e.g. 0x00000001")
	cmd.MarkFlagRequired(CardOptionName)
	cmd.MarkFlagRequired(AddrOptionName)
	cmd.MarkFlagRequired(ValueOptionName)
	return cmd
}
