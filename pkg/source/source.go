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

// Package source provides the raw A, B and Z levels an encoder instance samples every tick.
package source

import (
	"sync"

	"jinr.ru/greenlab/go-encoder/pkg/config"
	"jinr.ru/greenlab/go-encoder/pkg/encoder"
)

// Source is sampled once per tick by the card tick loop
type Source interface {
	Sample() (encoder.Lines, error)
	Close() error
}

// Const always returns the same levels. An encoder without lines wired is a
// Const with every level low.
type Const encoder.Lines

func (c Const) Sample() (encoder.Lines, error) {
	return encoder.Lines(c), nil
}

func (c Const) Close() error {
	return nil
}

// Script replays a fixed sequence of levels and then holds the last one
type Script struct {
	mu    sync.Mutex
	lines []encoder.Lines
	pos   int
}

func NewScript(lines ...encoder.Lines) *Script {
	return &Script{lines: lines}
}

func (s *Script) Sample() (encoder.Lines, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.lines) == 0 {
		return encoder.Lines{}, nil
	}
	l := s.lines[s.pos]
	if s.pos < len(s.lines)-1 {
		s.pos++
	}
	return l, nil
}

func (s *Script) Close() error {
	return nil
}

// New returns the source configured for an encoder of the card
func New(card *config.CardConfig, enc *config.EncoderConfig) (Source, error) {
	switch card.Source {
	case config.SourceGPIO:
		return OpenGPIO(card.GPIORoot, enc.PinA, enc.PinB, enc.PinZ)
	default:
		sim := enc.Sim
		if sim == nil {
			sim = &config.SimConfig{}
		}
		return NewQuadrature(sim.StepTicks, sim.PPR, sim.Reverse), nil
	}
}
