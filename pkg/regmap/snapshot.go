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
	"jinr.ru/greenlab/go-encoder/pkg/encoder"
)

// Snapshot is the register view of a bank after a tick.
// It is never modified once built, so it can be shared between goroutines.
type Snapshot struct {
	Tick            uint64
	Reset           bool
	IndexEnable     []uint32
	ResetIndexPulse []uint32
	IndexPulse      []uint32
	Counters        []int32
}

// Project packs the flags of every instance of the bank into words and copies
// the counters. It only reads the bank.
func Project(b *encoder.Bank) *Snapshot {
	n := b.Len()
	words := WordCount(n)
	s := &Snapshot{
		Tick:            b.Ticks(),
		Reset:           b.Reset(),
		IndexEnable:     make([]uint32, words),
		ResetIndexPulse: make([]uint32, words),
		IndexPulse:      make([]uint32, words),
		Counters:        make([]int32, n),
	}
	for i := 0; i < n; i++ {
		state := b.State(i)
		s.Counters[i] = state.Counter
		SetBit(s.IndexEnable, i, state.IndexEnable)
		SetBit(s.ResetIndexPulse, i, state.ResetIndexPulse)
		SetBit(s.IndexPulse, i, state.IndexPulse)
	}
	return s
}

// WordCount returns the number of 32-bit words holding one flag per instance.
func WordCount(n int) int {
	return (n + WordBits - 1) / WordBits
}

// WordOf returns the word index and the bit position of instance i.
func WordOf(i int) (word int, bit uint) {
	return i / WordBits, uint(i % WordBits)
}

func SetBit(words []uint32, i int, v bool) {
	word, bit := WordOf(i)
	if v {
		words[word] |= 1 << bit
	} else {
		words[word] &^= 1 << bit
	}
}

func Bit(words []uint32, i int) bool {
	word, bit := WordOf(i)
	if word >= len(words) {
		return false
	}
	return words[word]&(1<<bit) != 0
}
