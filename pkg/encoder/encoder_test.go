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
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// upSequence is one electrical cycle of a forward turning encoder, A leads B.
var upSequence = []Lines{
	{A: false, B: false},
	{A: true, B: false},
	{A: true, B: true},
	{A: false, B: true},
}

// driver turns a single encoder of a bank one quadrature step per tick.
type driver struct {
	bank *Bank
	pos  int
	z    bool
}

func (d *driver) lines() Lines {
	l := upSequence[((d.pos%4)+4)%4]
	l.Z = d.z
	return l
}

func (d *driver) step(up bool) {
	if up {
		d.pos++
	} else {
		d.pos--
	}
	d.bank.Tick([]Lines{d.lines()})
}

func (d *driver) steps(n int, up bool) {
	for i := 0; i < n; i++ {
		d.step(up)
	}
}

// hold keeps the lines steady for n ticks. A level sampled in tick t is
// decided on in tick t+2, so two ticks flush the synchronizers.
func (d *driver) hold(n int) {
	for i := 0; i < n; i++ {
		d.bank.Tick([]Lines{d.lines()})
	}
}

func newDriver(t *testing.T, cfg Config) *driver {
	bank, err := NewBank([]Config{cfg})
	require.NoError(t, err)
	return &driver{bank: bank}
}

func syncOf(now, prev bool) *Synchronizer {
	s := &Synchronizer{}
	s.Sample(prev)
	s.Sample(now)
	s.Sample(false)
	return s
}

func TestSynchronizer(t *testing.T) {
	s := &Synchronizer{}
	assert.Equal(t, [SyncStages]bool{}, s.History())

	s.Sample(true)
	assert.Equal(t, [SyncStages]bool{true, false, false}, s.History())
	assert.False(t, s.Now())

	s.Sample(false)
	assert.Equal(t, [SyncStages]bool{false, true, false}, s.History())
	assert.True(t, s.Now())
	assert.False(t, s.Prev())

	s.Sample(false)
	assert.Equal(t, [SyncStages]bool{false, false, true}, s.History())
	assert.False(t, s.Now())
	assert.True(t, s.Prev())
}

func TestDecodeQuadrature(t *testing.T) {
	tests := []struct {
		name        string
		a, b        *Synchronizer
		countEnable bool
		up          bool
	}{
		{name: "A rises with B low", a: syncOf(true, false), b: syncOf(false, false), countEnable: true, up: true},
		{name: "A falls with B low", a: syncOf(false, true), b: syncOf(false, false), countEnable: true, up: false},
		{name: "B rises with A low", a: syncOf(false, false), b: syncOf(true, false), countEnable: true, up: false},
		{name: "B rises with A high", a: syncOf(true, true), b: syncOf(true, false), countEnable: true, up: true},
		{name: "B falls with A low", a: syncOf(false, false), b: syncOf(false, true), countEnable: true, up: true},
		{name: "no change", a: syncOf(true, true), b: syncOf(false, false), countEnable: false},
		{name: "both lines change", a: syncOf(true, false), b: syncOf(true, false), countEnable: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			countEnable, up := DecodeQuadrature(tt.a, tt.b)
			assert.Equal(t, tt.countEnable, countEnable)
			if tt.countEnable {
				assert.Equal(t, tt.up, up)
			}
		})
	}
}

func TestDetectIndex(t *testing.T) {
	assert.True(t, DetectIndex(syncOf(true, false)))
	assert.False(t, DetectIndex(syncOf(true, true)))
	assert.False(t, DetectIndex(syncOf(false, true)))
	assert.False(t, DetectIndex(syncOf(false, false)))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		valid bool
	}{
		{name: "unbounded", cfg: Config{ResetValue: -5}, valid: true},
		{name: "bounded", cfg: Config{ResetValue: 0, MinValue: Int32(-10), MaxValue: Int32(10)}, valid: true},
		{name: "reset on the limit", cfg: Config{ResetValue: 10, MaxValue: Int32(10)}, valid: true},
		{name: "min above max", cfg: Config{MinValue: Int32(5), MaxValue: Int32(4), ResetValue: 4}},
		{name: "reset below min", cfg: Config{ResetValue: -1, MinValue: Int32(0)}},
		{name: "reset above max", cfg: Config{ResetValue: 11, MaxValue: Int32(10)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			assert.ErrorAs(t, err, &ErrInvalidBounds{})
		})
	}
}

func TestNewBankFailsWithoutPartialBank(t *testing.T) {
	bank, err := NewBank([]Config{
		{ResetValue: 0},
		{ResetValue: 0, MinValue: Int32(1), MaxValue: Int32(0)},
	})
	assert.Nil(t, bank)
	assert.ErrorAs(t, err, &ErrInvalidBounds{})
}

func TestCounterFollowsNetEdges(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		moves []int
		want  int32
	}{
		{name: "forward", cfg: Config{}, moves: []int{10}, want: 10},
		{name: "forward and back", cfg: Config{ResetValue: 3}, moves: []int{10, -4}, want: 9},
		{name: "backward from reset value", cfg: Config{ResetValue: 100}, moves: []int{-7}, want: 93},
		{name: "clamped above", cfg: Config{MaxValue: Int32(5)}, moves: []int{8, -2}, want: 3},
		{name: "clamped below", cfg: Config{MinValue: Int32(-2)}, moves: []int{-6, 3}, want: 1},
		{name: "zig zag", cfg: Config{}, moves: []int{1, -1, 1, -1, 5}, want: 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDriver(t, tt.cfg)
			for _, m := range tt.moves {
				if m > 0 {
					d.steps(m, true)
				} else {
					d.steps(-m, false)
				}
			}
			d.hold(2)
			assert.Equal(t, tt.want, d.bank.State(0).Counter)
		})
	}
}

func TestCounterClampsAtMax(t *testing.T) {
	d := newDriver(t, Config{ResetValue: 0, MaxValue: Int32(10)})
	d.steps(12, true)
	d.hold(2)
	assert.Equal(t, int32(10), d.bank.State(0).Counter)

	d.steps(1, false)
	d.hold(2)
	assert.Equal(t, int32(9), d.bank.State(0).Counter)
}

func TestCounterWrapsWhenUnbounded(t *testing.T) {
	d := newDriver(t, Config{ResetValue: math.MaxInt32})
	d.steps(1, true)
	d.hold(2)
	assert.Equal(t, int32(math.MinInt32), d.bank.State(0).Counter)

	d.steps(1, false)
	d.hold(2)
	assert.Equal(t, int32(math.MaxInt32), d.bank.State(0).Counter)
}

func TestCountingWithoutBoundOnOneSide(t *testing.T) {
	d := newDriver(t, Config{ResetValue: math.MinInt32 + 1, MaxValue: Int32(0)})
	d.steps(3, false)
	d.hold(2)
	// no lower bound: wraps through the bottom of the range
	assert.Equal(t, int32(math.MaxInt32-1), d.bank.State(0).Counter)
}

func TestDoubleTransitionIsNotCounted(t *testing.T) {
	d := newDriver(t, Config{})
	d.bank.Tick([]Lines{{A: true, B: true}})
	d.bank.Tick([]Lines{{A: true, B: true}})
	d.bank.Tick([]Lines{{A: true, B: true}})
	assert.Equal(t, int32(0), d.bank.State(0).Counter)
}

func TestResetIsIdempotent(t *testing.T) {
	d := newDriver(t, Config{ResetValue: 7})
	d.steps(5, true)
	d.hold(2)
	require.Equal(t, int32(12), d.bank.State(0).Counter)

	require.NoError(t, d.bank.WriteIndexEnable(0, 1, 0))
	d.bank.WriteReset(true)
	d.hold(1)
	once := d.bank.State(0)
	d.hold(1)
	twice := d.bank.State(0)

	assert.Equal(t, int32(7), once.Counter)
	assert.False(t, once.IndexEnable)
	assert.Equal(t, once, twice)
	assert.True(t, d.bank.Reset())

	d.bank.WriteReset(false)
	d.steps(2, true)
	d.hold(2)
	assert.Equal(t, int32(9), d.bank.State(0).Counter)
	assert.False(t, d.bank.Reset())
}

func TestResetHoldsCounterWhileAsserted(t *testing.T) {
	d := newDriver(t, Config{ResetValue: -3})
	d.bank.WriteReset(true)
	d.steps(6, true)
	d.hold(2)
	assert.Equal(t, int32(-3), d.bank.State(0).Counter)
}

func TestResetBeatsCountInSameTick(t *testing.T) {
	t.Run("without reset the step counts", func(t *testing.T) {
		d := newDriver(t, Config{ResetValue: 20})
		d.step(true)
		d.hold(1)
		d.hold(1)
		assert.Equal(t, int32(21), d.bank.State(0).Counter)
	})
	t.Run("global reset", func(t *testing.T) {
		d := newDriver(t, Config{ResetValue: 20})
		d.step(true)
		d.hold(1)
		// the count event of the step is decided in the next tick
		d.bank.WriteReset(true)
		d.hold(1)
		assert.Equal(t, int32(20), d.bank.State(0).Counter)
	})
	t.Run("index reset", func(t *testing.T) {
		d := newDriver(t, Config{ResetValue: 20, HasIndex: true})
		d.steps(4, true)
		d.hold(2)
		require.Equal(t, int32(24), d.bank.State(0).Counter)
		require.NoError(t, d.bank.WriteIndexEnable(0, 1, 0))
		d.z = true
		d.step(false)
		d.hold(1)
		require.True(t, d.bank.State(0).IndexEnable)
		// index edge and count event are both decided in this tick
		d.hold(1)
		assert.Equal(t, int32(20), d.bank.State(0).Counter)
		assert.False(t, d.bank.State(0).IndexEnable)
	})
}

func TestIndexResetClearsIndexEnable(t *testing.T) {
	d := newDriver(t, Config{ResetValue: 5, HasIndex: true})
	d.steps(28, true)
	d.hold(2)
	require.Equal(t, int32(33), d.bank.State(0).Counter)

	require.NoError(t, d.bank.WriteIndexEnable(0, 1, 0))
	d.z = true
	d.hold(2)
	state := d.bank.State(0)
	require.True(t, state.IndexEnable)
	require.Equal(t, int32(33), state.Counter)

	d.hold(1)
	state = d.bank.State(0)
	assert.Equal(t, int32(5), state.Counter)
	assert.False(t, state.IndexEnable)
	assert.True(t, state.IndexPulse)
}

func TestIndexEnableIsConsumedOnce(t *testing.T) {
	d := newDriver(t, Config{HasIndex: true})
	require.NoError(t, d.bank.WriteIndexEnable(0, 1, 0))
	d.z = true
	d.hold(3)
	require.False(t, d.bank.State(0).IndexEnable)

	d.z = false
	d.steps(3, true)
	d.z = true
	d.hold(3)
	assert.Equal(t, int32(3), d.bank.State(0).Counter)
}

func TestIndexPulseWithoutIndexEnable(t *testing.T) {
	d := newDriver(t, Config{HasIndex: true})
	d.steps(4, true)
	d.z = true
	d.hold(3)
	state := d.bank.State(0)
	assert.True(t, state.IndexPulse)
	assert.Equal(t, int32(4), state.Counter)
}

func TestIndexPulseAcknowledgement(t *testing.T) {
	d := newDriver(t, Config{HasIndex: true})
	d.z = true
	d.hold(3)
	require.True(t, d.bank.State(0).IndexPulse)

	// the pulse is sticky
	d.z = false
	d.hold(5)
	require.True(t, d.bank.State(0).IndexPulse)

	require.NoError(t, d.bank.WriteResetIndexPulse(0, 1, 0))
	d.hold(1)
	state := d.bank.State(0)
	assert.False(t, state.IndexPulse)
	assert.False(t, state.ResetIndexPulse)

	require.NoError(t, d.bank.WriteResetIndexPulse(0, 1, 0))
	d.hold(1)
	state = d.bank.State(0)
	assert.False(t, state.IndexPulse)
	assert.False(t, state.ResetIndexPulse)
}

func TestAcknowledgementDoesNotSwallowNewEdge(t *testing.T) {
	d := newDriver(t, Config{HasIndex: true})
	d.z = true
	d.hold(3)
	d.z = false
	d.hold(3)
	require.True(t, d.bank.State(0).IndexPulse)

	d.z = true
	d.hold(2)
	require.NoError(t, d.bank.WriteResetIndexPulse(0, 1, 0))
	// edge and acknowledgement in the same tick
	d.hold(1)
	state := d.bank.State(0)
	assert.True(t, state.IndexPulse)
	assert.False(t, state.ResetIndexPulse)
}

func TestStaleAcknowledgementIsConsumed(t *testing.T) {
	d := newDriver(t, Config{HasIndex: true})
	require.NoError(t, d.bank.WriteResetIndexPulse(0, 1, 0))
	d.hold(1)
	require.False(t, d.bank.State(0).ResetIndexPulse)

	d.z = true
	d.hold(3)
	d.hold(3)
	assert.True(t, d.bank.State(0).IndexPulse)
}

func TestMissingIndexLine(t *testing.T) {
	d := newDriver(t, Config{ResetValue: 1, HasIndex: false})
	require.NoError(t, d.bank.WriteIndexEnable(0, 1, 0))
	d.steps(3, true)
	d.z = true
	d.hold(4)
	state := d.bank.State(0)
	assert.False(t, state.IndexPulse)
	assert.True(t, state.IndexEnable)
	assert.Equal(t, int32(4), state.Counter)
}

func TestHostWritesWaitForTick(t *testing.T) {
	bank, err := NewBank(make([]Config, 3))
	require.NoError(t, err)

	require.NoError(t, bank.WriteIndexEnable(0, 0b101, 0))
	assert.False(t, bank.State(0).IndexEnable)

	bank.Tick(nil)
	assert.True(t, bank.State(0).IndexEnable)
	assert.False(t, bank.State(1).IndexEnable)
	assert.True(t, bank.State(2).IndexEnable)

	// two writers based on the same word change different bits, both land
	require.NoError(t, bank.WriteIndexEnable(0, 0b111, 0b101))
	require.NoError(t, bank.WriteIndexEnable(0, 0b001, 0b101))
	assert.Equal(t, uint32(0b011), bank.IndexEnableView(0, 0b101))
	bank.Tick(nil)
	assert.True(t, bank.State(0).IndexEnable)
	assert.True(t, bank.State(1).IndexEnable)
	assert.False(t, bank.State(2).IndexEnable)

	// for one bit the last write before a tick wins
	require.NoError(t, bank.WriteIndexEnable(0, 0b010, 0b011))
	require.NoError(t, bank.WriteIndexEnable(0, 0b011, 0b010))
	bank.Tick(nil)
	assert.True(t, bank.State(0).IndexEnable)
	assert.Equal(t, uint64(3), bank.Ticks())
}

func TestHostViewIncludesPendingWrites(t *testing.T) {
	bank, err := NewBank(make([]Config, 2))
	require.NoError(t, err)

	assert.False(t, bank.ResetView(false))
	bank.WriteReset(true)
	assert.True(t, bank.ResetView(false))
	bank.Tick(nil)
	assert.True(t, bank.Reset())
	assert.True(t, bank.ResetView(true))
	bank.WriteReset(false)
	bank.Tick(nil)

	require.NoError(t, bank.WriteResetIndexPulse(0, 0b10, 0))
	assert.Equal(t, uint32(0b11), bank.ResetIndexPulseView(0, 0b01))
	bank.Tick(nil)
	assert.Equal(t, uint32(0), bank.ResetIndexPulseView(0, 0))

	// a bit the writer did not change keeps the tick domain value
	require.NoError(t, bank.WriteIndexEnable(0, 0b11, 0b01))
	bank.Tick(nil)
	assert.False(t, bank.State(0).IndexEnable)
	assert.True(t, bank.State(1).IndexEnable)
}

func TestWordsAndOutOfRangeWrites(t *testing.T) {
	bank, err := NewBank(make([]Config, 40))
	require.NoError(t, err)
	assert.Equal(t, 40, bank.Len())
	assert.Equal(t, 2, bank.Words())

	require.NoError(t, bank.WriteIndexEnable(1, 0xffffffff, 0))
	assert.Equal(t, uint32(0xff), bank.IndexEnableView(1, 0))
	bank.Tick(nil)
	for i := 0; i < 32; i++ {
		assert.False(t, bank.State(i).IndexEnable)
	}
	for i := 32; i < 40; i++ {
		assert.True(t, bank.State(i).IndexEnable)
	}

	err = bank.WriteResetIndexPulse(2, 1, 0)
	assert.ErrorAs(t, err, &ErrWordOutOfRange{})

	empty, err := NewBank(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Words())
	assert.Error(t, empty.WriteIndexEnable(0, 1, 0))
	empty.Tick(nil)
}

func TestInstancesAreIndependent(t *testing.T) {
	bank, err := NewBank([]Config{{ResetValue: 0}, {ResetValue: 100}})
	require.NoError(t, err)
	for i := 1; i <= 6; i++ {
		bank.Tick([]Lines{upSequence[i%4], {}})
	}
	bank.Tick([]Lines{upSequence[6%4], {}})
	bank.Tick([]Lines{upSequence[6%4], {}})
	assert.Equal(t, int32(6), bank.State(0).Counter)
	assert.Equal(t, int32(100), bank.State(1).Counter)
}

func TestConcurrentHostWrites(t *testing.T) {
	bank, err := NewBank(make([]Config, 64))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_ = bank.WriteIndexEnable(w%2, uint32(i), uint32(i-1))
				_ = bank.WriteResetIndexPulse(w%2, uint32(i), 0)
				bank.WriteReset(i%2 == 0)
			}
		}(w)
	}
	for i := 0; i < 500; i++ {
		bank.Tick(nil)
	}
	wg.Wait()
	bank.Tick(nil)
	assert.Equal(t, uint64(501), bank.Ticks())
}
