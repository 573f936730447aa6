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

// Package encoder models the quadrature encoder counters of a LiteX-CNC card.
//
// Every instance is evaluated once per clock tick. All decisions taken in a
// tick read the state as it was at the start of the tick, the way clocked
// logic does, and host writes are applied only at tick boundaries.
package encoder

// SyncStages is the depth of the per line shift register.
const SyncStages = 3

// Synchronizer is the shift register every raw encoder line passes through
// before it is trusted. History()[0] is the last raw sample, [1] and [2]
// are the synchronized values of the current and the previous tick.
type Synchronizer struct {
	history [SyncStages]bool
}

// Sample shifts the raw line value into the history.
func (s *Synchronizer) Sample(raw bool) {
	s.history[2] = s.history[1]
	s.history[1] = s.history[0]
	s.history[0] = raw
}

func (s *Synchronizer) History() [SyncStages]bool {
	return s.history
}

// Now is the synchronized line value of the current tick.
func (s *Synchronizer) Now() bool {
	return s.history[1]
}

// Prev is the synchronized line value of the previous tick.
func (s *Synchronizer) Prev() bool {
	return s.history[2]
}
