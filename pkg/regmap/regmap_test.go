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
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jinr.ru/greenlab/go-encoder/pkg/encoder"
)

func newBank(t *testing.T, n int) *encoder.Bank {
	cfgs := make([]encoder.Config, n)
	for i := range cfgs {
		cfgs[i] = encoder.Config{ResetValue: int32(i), HasIndex: true}
	}
	b, err := encoder.NewBank(cfgs)
	require.NoError(t, err)
	return b
}

func TestWordCount(t *testing.T) {
	tests := []struct {
		n     int
		words int
	}{
		{0, 0}, {1, 1}, {31, 1}, {32, 1}, {33, 2}, {40, 2}, {64, 2}, {65, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.words, WordCount(tt.n), "n=%d", tt.n)
	}
}

func TestSetBit(t *testing.T) {
	words := make([]uint32, WordCount(40))
	for _, i := range []int{0, 31, 32, 39} {
		SetBit(words, i, true)
	}
	require.Len(t, words, 2)
	assert.Equal(t, uint32(0x80000001), words[0])
	assert.Equal(t, uint32(0x00000081), words[1])
	assert.True(t, Bit(words, 39))
	assert.False(t, Bit(words, 38))
	assert.False(t, Bit(words, 100))

	SetBit(words, 31, false)
	assert.Equal(t, uint32(0x00000001), words[0])

	word, bit := WordOf(39)
	assert.Equal(t, 1, word)
	assert.Equal(t, uint(7), bit)
}

func TestLayoutForFortyEncoders(t *testing.T) {
	m, err := New(40, 0x1000)
	require.NoError(t, err)

	expect := []struct {
		name   string
		addr   uint32
		size   int
		access Access
	}{
		{NameMagic, 0x1000, 1, ReadOnly},
		{NameEncoderCount, 0x1004, 1, ReadOnly},
		{NameReset, 0x1008, 1, ReadWrite},
		{NameIndexEnable, 0x100c, 2, ReadWrite},
		{NameResetIndexPulse, 0x1014, 2, ReadWrite},
		{NameIndexPulse, 0x101c, 2, ReadOnly},
		{CounterName(0), 0x1024, 1, ReadOnly},
		{CounterName(39), 0x1024 + 39*4, 1, ReadOnly},
	}
	for _, e := range expect {
		reg, ok := m.ByName(e.name)
		require.True(t, ok, e.name)
		assert.Equal(t, e.addr, reg.Addr, e.name)
		assert.Equal(t, e.size, reg.Size, e.name)
		assert.Equal(t, e.access, reg.Access, e.name)
	}
	assert.Equal(t, 3+3*2+40, m.Words())
	assert.Len(t, m.Addrs(), m.Words())

	reg, word, err := m.Lookup(0x1018)
	require.NoError(t, err)
	assert.Equal(t, NameResetIndexPulse, reg.Name)
	assert.Equal(t, 1, word)

	addr, bit, err := m.FlagAddr(NameIndexPulse, 35)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x1020), addr)
	assert.Equal(t, uint(3), bit)

	_, _, err = m.FlagAddr(NameIndexPulse, 40)
	assert.ErrorAs(t, err, &ErrBadLayout{})
	_, _, err = m.FlagAddr(NameReset, 0)
	assert.ErrorAs(t, err, &ErrBadLayout{})
}

func TestNoEncodersNoEncoderRegisters(t *testing.T) {
	m, err := New(0, 0)
	require.NoError(t, err)
	assert.Len(t, m.Registers, 3)
	for _, name := range []string{NameIndexEnable, NameResetIndexPulse, NameIndexPulse, CounterName(0)} {
		_, ok := m.ByName(name)
		assert.False(t, ok, name)
	}
	_, _, err = m.Lookup(12)
	assert.ErrorAs(t, err, &ErrBadAddress{})
	_, err = m.Counter(0)
	assert.Error(t, err)
}

func TestBadLayout(t *testing.T) {
	_, err := New(-1, 0)
	assert.ErrorAs(t, err, &ErrBadLayout{})
	_, err = New(1, 2)
	assert.ErrorAs(t, err, &ErrBadLayout{})
}

func TestProjectHighBitsReadZero(t *testing.T) {
	bank := newBank(t, 40)
	require.NoError(t, bank.WriteIndexEnable(0, 0xffffffff, 0))
	require.NoError(t, bank.WriteIndexEnable(1, 0xffffffff, 0))
	bank.Tick(nil)

	s := Project(bank)
	require.Len(t, s.IndexEnable, 2)
	assert.Equal(t, uint32(0xffffffff), s.IndexEnable[0])
	// only bits 32..39 exist in the second word
	assert.Equal(t, uint32(0x000000ff), s.IndexEnable[1])
	assert.Equal(t, []uint32{0, 0}, s.IndexPulse)
	assert.Len(t, s.Counters, 40)
	assert.Equal(t, int32(39), s.Counters[39])
	assert.Equal(t, uint64(1), s.Tick)
}

func TestProjectDoesNotChangeBank(t *testing.T) {
	bank := newBank(t, 3)
	bank.Tick(nil)
	before := []encoder.State{bank.State(0), bank.State(1), bank.State(2)}
	s := Project(bank)
	s.Counters[0] = 99
	SetBit(s.IndexEnable, 1, true)
	assert.Equal(t, before, []encoder.State{bank.State(0), bank.State(1), bank.State(2)})
}

func TestReadWriteThroughMap(t *testing.T) {
	bank := newBank(t, 2)
	m, err := New(2, 0)
	require.NoError(t, err)

	s := Project(bank)
	value, err := m.Read(0, s)
	require.NoError(t, err)
	assert.Equal(t, Magic, value)
	value, err = m.Read(4, s)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), value)

	counter1, err := m.Counter(1)
	require.NoError(t, err)
	value, err = m.Read(counter1.Addr, s)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), value)

	ie, _ := m.ByName(NameIndexEnable)
	require.NoError(t, m.Write(ie.Addr, 0b10, 0, bank))
	// buffered until the next tick
	value, err = m.Read(ie.Addr, Project(bank))
	require.NoError(t, err)
	assert.Equal(t, uint32(0), value)

	bank.Tick(nil)
	value, err = m.Read(ie.Addr, Project(bank))
	require.NoError(t, err)
	assert.Equal(t, uint32(0b10), value)

	reset, _ := m.ByName(NameReset)
	require.NoError(t, m.Write(reset.Addr, 1, 0, bank))
	bank.Tick(nil)
	s = Project(bank)
	value, err = m.Read(reset.Addr, s)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), value)
	value, err = m.Read(ie.Addr, s)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), value, "reset clears index enable")

	err = m.Write(counter1.Addr, 5, 0, bank)
	assert.ErrorAs(t, err, &ErrReadOnly{})
	err = m.Write(0, 5, 0, bank)
	assert.ErrorAs(t, err, &ErrReadOnly{})
	err = m.Write(0x4000, 5, 0, bank)
	assert.ErrorAs(t, err, &ErrBadAddress{})
}

func TestNegativeCounterReadsAsTwosComplement(t *testing.T) {
	b, err := encoder.NewBank([]encoder.Config{{ResetValue: -2}})
	require.NoError(t, err)
	m, err := New(1, 0)
	require.NoError(t, err)
	reg, err := m.Counter(0)
	require.NoError(t, err)
	value, err := m.Read(reg.Addr, Project(b))
	require.NoError(t, err)
	assert.Equal(t, uint32(0xfffffffe), value)
	assert.Equal(t, int32(-2), int32(value))
}

func TestExportJSON(t *testing.T) {
	m, err := New(33, 0x100)
	require.NoError(t, err)
	buf := &bytes.Buffer{}
	require.NoError(t, m.WriteJSON(buf))

	doc := &CSRDocument{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), doc))
	assert.Equal(t, uint32(33), doc.Constants["encoder_count"])
	assert.Equal(t, uint32(2), doc.Constants["flag_words"])
	assert.Equal(t, Magic, doc.Constants["magic"])
	require.Contains(t, doc.Registers, NameIndexPulse)
	assert.Equal(t, 2, doc.Registers[NameIndexPulse].Size)
	assert.Equal(t, "ro", doc.Registers[NameIndexPulse].Type)
	assert.Equal(t, "rw", doc.Registers[NameIndexEnable].Type)
	assert.Len(t, doc.Registers, 3+3+33)
}

func TestExportCSV(t *testing.T) {
	m, err := New(1, 0)
	require.NoError(t, err)
	buf := &bytes.Buffer{}
	require.NoError(t, m.WriteCSV(buf))

	records, err := csv.NewReader(buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2+7)
	assert.Equal(t, []string{"csr_register", NameMagic, "0x00000000", "1", "ro"}, records[2])
	assert.Equal(t, []string{"csr_register", CounterName(0), "0x00000018", "1", "ro"}, records[8])
}
