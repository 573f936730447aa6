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

package ifc

import (
	"net/http"

	"jinr.ru/greenlab/go-encoder/pkg/layers"
	"jinr.ru/greenlab/go-encoder/pkg/regmap"
)

// EncoderStatus is the host view of one encoder of a card
type EncoderStatus struct {
	Index           int   `json:"index"`
	Counter         int32 `json:"counter"`
	IndexEnable     bool  `json:"index_enable"`
	ResetIndexPulse bool  `json:"reset_index_pulse"`
	IndexPulse      bool  `json:"index_pulse"`
}

type ControlServer interface {
	Run() error

	// Verify checks that the card answers and has the configured number of encoders
	Verify(card string) error

	RegRead(card string, addr uint32) (*layers.Reg, error)
	RegReadAll(card string) ([]*layers.Reg, error)
	// RegReadCached returns the last values read from the card
	RegReadCached(card string) ([]*layers.Reg, error)
	RegWrite(card string, reg *layers.Reg) error

	Encoder(card string, index int) (*EncoderStatus, error)
	Encoders(card string) ([]*EncoderStatus, error)
	SetIndexEnable(card string, index int, enable bool) error
	AckIndexPulse(card string, index int) error
	SetReset(card string, reset bool) error

	RegMap(card string) (*regmap.Map, error)
}

type ApiServer interface {
	Run() error
	Handler() http.Handler
}
