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
	"sync"
)

// WordBits is the width of one packed flag word.
const WordBits = 32

// flagWrite holds the bits of one flag word the host changed since the
// last tick. Bits in neither mask keep the value the tick domain gives them.
type flagWrite struct {
	set   uint32
	clear uint32
}

func (f flagWrite) over(word uint32) uint32 {
	return (word | f.set) &^ f.clear
}

// pending holds host writes not yet seen by the tick domain.
type pending struct {
	reset           *bool
	indexEnable     map[int]flagWrite
	resetIndexPulse map[int]flagWrite
}

func (p *pending) empty() bool {
	return p.reset == nil && len(p.indexEnable) == 0 && len(p.resetIndexPulse) == 0
}

// Bank is the arena of encoder instances of a card, indexed by ordinal.
//
// Tick and State belong to the tick domain and must be called from
// one goroutine. The Write methods may be called from any goroutine: they only
// touch the pending buffer, which Tick applies as a whole at the start of the
// next tick.
type Bank struct {
	instances []*Instance
	reset     bool
	ticks     uint64

	mu      sync.Mutex
	pending pending
}

// NewBank validates every config and creates the instances. It either returns
// the complete bank or an error.
func NewBank(cfgs []Config) (*Bank, error) {
	instances := make([]*Instance, 0, len(cfgs))
	for i, cfg := range cfgs {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("encoder %d: %w", i, err)
		}
		instances = append(instances, newInstance(cfg))
	}
	return &Bank{instances: instances}, nil
}

// Len returns the number of instances.
func (b *Bank) Len() int {
	return len(b.instances)
}

// Words returns the number of packed flag words needed for the bank.
func (b *Bank) Words() int {
	return (len(b.instances) + WordBits - 1) / WordBits
}

func (b *Bank) State(i int) State {
	return b.instances[i].State()
}

// Reset returns the global reset flag as seen by the last tick.
func (b *Bank) Reset() bool {
	return b.reset
}

// Ticks returns the number of evaluated ticks.
func (b *Bank) Ticks() uint64 {
	return b.ticks
}

// WriteReset buffers a write of the global reset flag.
func (b *Bank) WriteReset(reset bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending.reset = &reset
}

// ResetView returns the reset flag published by the tick domain with a
// pending host write applied over it.
func (b *Bank) ResetView(published bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending.reset != nil {
		return *b.pending.reset
	}
	return published
}

// WriteIndexEnable buffers the bits of value that differ from seen, the word
// the writer based its value on. Other bits of the word are left alone.
func (b *Bank) WriteIndexEnable(word int, value, seen uint32) error {
	return b.writeWord(&b.pending.indexEnable, word, value, seen)
}

// WriteResetIndexPulse buffers index pulse acknowledgements the same way as
// WriteIndexEnable.
func (b *Bank) WriteResetIndexPulse(word int, value, seen uint32) error {
	return b.writeWord(&b.pending.resetIndexPulse, word, value, seen)
}

// IndexEnableView returns the published index enable word with the pending
// host writes applied over it.
func (b *Bank) IndexEnableView(word int, published uint32) uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending.indexEnable[word].over(published)
}

func (b *Bank) ResetIndexPulseView(word int, published uint32) uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending.resetIndexPulse[word].over(published)
}

func (b *Bank) writeWord(dst *map[int]flagWrite, word int, value, seen uint32) error {
	if word < 0 || word >= b.Words() {
		return ErrWordOutOfRange{Word: word, Words: b.Words()}
	}
	// bits past the last instance do not exist
	if rest := len(b.instances) - word*WordBits; rest < WordBits {
		mask := uint32(1)<<uint(rest) - 1
		value &= mask
		seen &= mask
	}
	changed := value ^ seen
	setBits := value & changed
	clearBits := ^value & changed
	b.mu.Lock()
	defer b.mu.Unlock()
	if *dst == nil {
		*dst = make(map[int]flagWrite)
	}
	f := (*dst)[word]
	f.set = (f.set | setBits) &^ clearBits
	f.clear = (f.clear | clearBits) &^ setBits
	(*dst)[word] = f
	return nil
}

// Tick applies the pending host writes and evaluates one clock cycle of every
// instance. lines[i] are the raw levels of instance i, missing entries read low.
func (b *Bank) Tick(lines []Lines) {
	b.applyPending()
	for i, in := range b.instances {
		var l Lines
		if i < len(lines) {
			l = lines[i]
		}
		in.tick(l, b.reset)
	}
	b.ticks++
}

func (b *Bank) applyPending() {
	b.mu.Lock()
	if b.pending.empty() {
		b.mu.Unlock()
		return
	}
	p := b.pending
	b.pending = pending{}
	b.mu.Unlock()

	if p.reset != nil {
		b.reset = *p.reset
	}
	for word, f := range p.indexEnable {
		b.forEachBit(word, f, func(in *Instance, set bool) {
			in.indexEnable = set
		})
	}
	for word, f := range p.resetIndexPulse {
		b.forEachBit(word, f, func(in *Instance, set bool) {
			in.resetIndexPulse = set
		})
	}
}

// forEachBit calls apply for every instance of the word whose bit is in f.
func (b *Bank) forEachBit(word int, f flagWrite, apply func(in *Instance, set bool)) {
	for bit := 0; bit < WordBits; bit++ {
		i := word*WordBits + bit
		if i >= len(b.instances) {
			return
		}
		mask := uint32(1) << uint(bit)
		if (f.set|f.clear)&mask == 0 {
			continue
		}
		apply(b.instances[i], f.set&mask != 0)
	}
}
