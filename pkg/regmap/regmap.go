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

// Package regmap lays out the host visible registers of an encoder card and
// projects the encoder bank onto them.
package regmap

import (
	"fmt"

	"jinr.ru/greenlab/go-encoder/pkg/encoder"
)

const (
	WordBits  = encoder.WordBits
	WordBytes = WordBits / 8
	// Magic is the content of the first register of every card
	Magic uint32 = 0x51454e43
)

type Access int

const (
	ReadOnly Access = iota
	ReadWrite
)

func (a Access) String() string {
	if a == ReadWrite {
		return "rw"
	}
	return "ro"
}

type Kind int

const (
	KindMagic Kind = iota
	KindEncoderCount
	KindReset
	KindIndexEnable
	KindResetIndexPulse
	KindIndexPulse
	KindCounter
)

const (
	NameMagic           = "magic"
	NameEncoderCount    = "encoder_count"
	NameReset           = "reset"
	NameIndexEnable     = "encoder_index_enable"
	NameResetIndexPulse = "encoder_reset_index_pulse"
	NameIndexPulse      = "encoder_index_pulse"
)

// CounterName returns the name of the counter register of encoder i.
func CounterName(i int) string {
	return fmt.Sprintf("encoder_%d_counter", i)
}

// Register is one named register. Flag registers span Size words, all other
// registers are one word wide.
type Register struct {
	Name        string
	Kind        Kind
	Addr        uint32
	Size        int
	Access      Access
	Encoder     int
	Description string
}

// WordAddr returns the byte address of word w of the register.
func (r *Register) WordAddr(w int) uint32 {
	return r.Addr + uint32(w*WordBytes)
}

type slot struct {
	reg  *Register
	word int
}

// Map is the register map of a card with N encoders.
type Map struct {
	Base      uint32
	N         int
	Registers []*Register
	byName    map[string]*Register
	byAddr    map[uint32]slot
	next      uint32
}

// New lays out the registers for n encoders starting at byte address base.
// With no encoders only the identification and reset registers exist.
func New(n int, base uint32) (*Map, error) {
	if n < 0 {
		return nil, ErrBadLayout{What: fmt.Sprintf("negative number of encoders %d", n)}
	}
	if base%WordBytes != 0 {
		return nil, ErrBadLayout{What: fmt.Sprintf("base 0x%x is not word aligned", base)}
	}
	m := &Map{
		Base:   base,
		N:      n,
		byName: make(map[string]*Register),
		byAddr: make(map[uint32]slot),
		next:   base,
	}
	m.add(NameMagic, KindMagic, 1, ReadOnly, -1, "Card identification, always reads the magic number")
	m.add(NameEncoderCount, KindEncoderCount, 1, ReadOnly, -1, "Number of encoders on the card")
	m.add(NameReset, KindReset, 1, ReadWrite, -1,
		"Bit 0 holds every counter at its reset value while set")
	if n == 0 {
		return m, nil
	}
	words := WordCount(n)
	m.add(NameIndexEnable, KindIndexEnable, words, ReadWrite, -1,
		"Bit i requests a reset of counter i on the next index pulse. The card clears the bit when the reset happened")
	m.add(NameResetIndexPulse, KindResetIndexPulse, words, ReadWrite, -1,
		"Writing 1 to bit i acknowledges the index pulse of encoder i. The card clears the bit on the next tick")
	m.add(NameIndexPulse, KindIndexPulse, words, ReadOnly, -1,
		"Bit i is set when encoder i has seen an index pulse that was not acknowledged yet")
	for i := 0; i < n; i++ {
		m.add(CounterName(i), KindCounter, 1, ReadOnly, i,
			fmt.Sprintf("Signed 32-bit count of encoder %d", i))
	}
	return m, nil
}

func (m *Map) add(name string, kind Kind, size int, access Access, enc int, desc string) {
	reg := &Register{
		Name:        name,
		Kind:        kind,
		Addr:        m.next,
		Size:        size,
		Access:      access,
		Encoder:     enc,
		Description: desc,
	}
	m.Registers = append(m.Registers, reg)
	m.byName[name] = reg
	for w := 0; w < size; w++ {
		m.byAddr[reg.WordAddr(w)] = slot{reg: reg, word: w}
	}
	m.next += uint32(size * WordBytes)
}

// Words returns the number of 32-bit words the map occupies.
func (m *Map) Words() int {
	return int(m.next-m.Base) / WordBytes
}

// Addrs returns the byte address of every word of the map in ascending order.
func (m *Map) Addrs() []uint32 {
	addrs := make([]uint32, 0, m.Words())
	for addr := m.Base; addr < m.next; addr += WordBytes {
		addrs = append(addrs, addr)
	}
	return addrs
}

// Lookup returns the register containing the byte address and the word index within it.
func (m *Map) Lookup(addr uint32) (*Register, int, error) {
	s, ok := m.byAddr[addr]
	if !ok {
		return nil, 0, ErrBadAddress{Addr: addr}
	}
	return s.reg, s.word, nil
}

func (m *Map) ByName(name string) (*Register, bool) {
	reg, ok := m.byName[name]
	return reg, ok
}

// Counter returns the counter register of encoder i.
func (m *Map) Counter(i int) (*Register, error) {
	if i < 0 || i >= m.N {
		return nil, ErrBadLayout{What: fmt.Sprintf("encoder %d out of range [0, %d)", i, m.N)}
	}
	return m.byName[CounterName(i)], nil
}

// FlagAddr returns the byte address of the word holding the flag of encoder i
// in a flag register and the bit of the flag in that word.
func (m *Map) FlagAddr(name string, i int) (uint32, uint, error) {
	reg, ok := m.byName[name]
	if !ok || reg.Size == 0 || (reg.Kind != KindIndexEnable && reg.Kind != KindResetIndexPulse && reg.Kind != KindIndexPulse) {
		return 0, 0, ErrBadLayout{What: fmt.Sprintf("%s is not a flag register", name)}
	}
	if i < 0 || i >= m.N {
		return 0, 0, ErrBadLayout{What: fmt.Sprintf("encoder %d out of range [0, %d)", i, m.N)}
	}
	word, bit := WordOf(i)
	return reg.WordAddr(word), bit, nil
}

// Read returns the value of the word at addr as seen in the snapshot.
func (m *Map) Read(addr uint32, s *Snapshot) (uint32, error) {
	reg, word, err := m.Lookup(addr)
	if err != nil {
		return 0, err
	}
	switch reg.Kind {
	case KindMagic:
		return Magic, nil
	case KindEncoderCount:
		return uint32(m.N), nil
	case KindReset:
		if s.Reset {
			return 1, nil
		}
		return 0, nil
	case KindIndexEnable:
		return wordAt(s.IndexEnable, word), nil
	case KindResetIndexPulse:
		return wordAt(s.ResetIndexPulse, word), nil
	case KindIndexPulse:
		return wordAt(s.IndexPulse, word), nil
	case KindCounter:
		if reg.Encoder < len(s.Counters) {
			return uint32(s.Counters[reg.Encoder]), nil
		}
	}
	return 0, nil
}

func wordAt(words []uint32, w int) uint32 {
	if w < len(words) {
		return words[w]
	}
	return 0
}

// Write routes a host write to the bank. Flag words and reset are buffered by
// the bank until its next tick. For flag words only the bits of value that
// differ from seen are written.
func (m *Map) Write(addr, value, seen uint32, b *encoder.Bank) error {
	reg, word, err := m.Lookup(addr)
	if err != nil {
		return err
	}
	if reg.Access != ReadWrite {
		return ErrReadOnly{Name: reg.Name}
	}
	switch reg.Kind {
	case KindReset:
		b.WriteReset(value&1 != 0)
		return nil
	case KindIndexEnable:
		return b.WriteIndexEnable(word, value, seen)
	case KindResetIndexPulse:
		return b.WriteResetIndexPulse(word, value, seen)
	}
	return ErrReadOnly{Name: reg.Name}
}
