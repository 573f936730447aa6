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

// State is the host visible part of an instance.
type State struct {
	Counter         int32
	IndexEnable     bool
	IndexPulse      bool
	ResetIndexPulse bool
}

// Instance is one quadrature encoder counter.
type Instance struct {
	cfg Config

	counter         int32
	indexEnable     bool
	indexPulse      bool
	resetIndexPulse bool

	a Synchronizer
	b Synchronizer
	z Synchronizer
}

func newInstance(cfg Config) *Instance {
	return &Instance{
		cfg:     cfg,
		counter: cfg.ResetValue,
	}
}

func (in *Instance) Config() Config {
	return in.cfg
}

func (in *Instance) State() State {
	return State{
		Counter:         in.counter,
		IndexEnable:     in.indexEnable,
		IndexPulse:      in.indexPulse,
		ResetIndexPulse: in.resetIndexPulse,
	}
}

// tick evaluates one clock cycle. Decisions are taken on the synchronizer
// contents of the start of the tick, the new raw samples are shifted in last.
func (in *Instance) tick(lines Lines, reset bool) {
	countEnable, up := DecodeQuadrature(&in.a, &in.b)
	indexRising := DetectIndex(&in.z)

	in.tickCounter(reset, countEnable, up, indexRising)
	in.tickLatch(indexRising)

	in.a.Sample(lines.A)
	in.b.Sample(lines.B)
	// an unbound Z pad is a constant zero
	in.z.Sample(lines.Z && in.cfg.HasIndex)
}

// tickCounter applies reset, index reset and counting in strict priority order.
// A reset in a tick suppresses a count event of the same tick.
func (in *Instance) tickCounter(reset, countEnable, up, indexRising bool) {
	if reset || (in.indexEnable && indexRising) {
		in.counter = in.cfg.ResetValue
		in.indexEnable = false
		return
	}
	if !countEnable {
		return
	}
	if up {
		if in.cfg.MaxValue != nil && in.counter >= *in.cfg.MaxValue {
			return
		}
		in.counter++
		return
	}
	if in.cfg.MinValue != nil && in.counter <= *in.cfg.MinValue {
		return
	}
	in.counter--
}

// tickLatch handles the index pulse handshake. An acknowledgement is always
// consumed in the tick it is seen and clears the pulse pending at tick start.
// An index edge of the same tick sets the pulse again.
func (in *Instance) tickLatch(indexRising bool) {
	if in.resetIndexPulse {
		in.indexPulse = false
		in.resetIndexPulse = false
	}
	if indexRising {
		in.indexPulse = true
	}
}
