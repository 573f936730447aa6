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

package source

import (
	"sync"

	"jinr.ru/greenlab/go-encoder/pkg/encoder"
)

// forward is the A/B sequence of a shaft turning in the counting up direction
var forward = [4]encoder.Lines{
	{A: false, B: false},
	{A: true, B: false},
	{A: true, B: true},
	{A: false, B: true},
}

// Quadrature simulates an encoder shaft turning at a constant speed.
// The shaft moves one quadrature step every stepTicks samples and raises Z
// while its position is a multiple of ppr.
type Quadrature struct {
	mu        sync.Mutex
	stepTicks int
	ppr       int
	reverse   bool
	ticks     int
	pos       int
}

func NewQuadrature(stepTicks, ppr int, reverse bool) *Quadrature {
	if stepTicks < 1 {
		stepTicks = 1
	}
	return &Quadrature{
		stepTicks: stepTicks,
		ppr:       ppr,
		reverse:   reverse,
	}
}

// SetReverse changes the direction of rotation
func (q *Quadrature) SetReverse(reverse bool) {
	q.mu.Lock()
	q.reverse = reverse
	q.mu.Unlock()
}

// Position returns the number of steps taken, negative when turning backwards
func (q *Quadrature) Position() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pos
}

func (q *Quadrature) Sample() (encoder.Lines, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	l := forward[((q.pos%4)+4)%4]
	if q.ppr > 0 {
		l.Z = ((q.pos%q.ppr)+q.ppr)%q.ppr == 0
	}
	q.ticks++
	if q.ticks == q.stepTicks {
		q.ticks = 0
		if q.reverse {
			q.pos--
		} else {
			q.pos++
		}
	}
	return l, nil
}

func (q *Quadrature) Close() error {
	return nil
}
