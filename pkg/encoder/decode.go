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

// Lines holds the raw levels of the A, B and Z inputs of one encoder.
type Lines struct {
	A bool
	B bool
	Z bool
}

// DecodeQuadrature derives the count enable pulse and the direction from the
// synchronized A and B histories.
//
// count_enable is a1^a2^b1^b2: a change of exactly one of the lines between
// two ticks is one count event. The table does not try to recover illegal
// transitions; when A and B change in the same tick the two changes cancel
// and nothing is counted.
func DecodeQuadrature(a, b *Synchronizer) (countEnable, up bool) {
	a1, a2 := a.Now(), a.Prev()
	b1, b2 := b.Now(), b.Prev()
	countEnable = (a1 != a2) != (b1 != b2)
	up = a1 != b2
	return countEnable, up
}

// DetectIndex returns true on the tick the synchronized Z line rises.
func DetectIndex(z *Synchronizer) bool {
	return z.Now() && !z.Prev()
}
