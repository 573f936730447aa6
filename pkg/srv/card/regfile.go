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

package card

import (
	"sync"
	"sync/atomic"

	"jinr.ru/greenlab/go-encoder/pkg/encoder"
	"jinr.ru/greenlab/go-encoder/pkg/layers"
	"jinr.ru/greenlab/go-encoder/pkg/log"
	"jinr.ru/greenlab/go-encoder/pkg/regmap"
)

// RegFile is the CSR bus of the card. Reads are served from the snapshot
// published after the last tick with the writes still pending in the bank
// applied over it, writes are buffered by the bank until the next tick.
//
// A write of a flag word changes only the bits that differ from the value the
// host last read from that word, so a read-modify-write of one bit neither
// drops another pending bit nor re-arms a bit the card consumed in between.
type RegFile struct {
	*regmap.Map
	bank     *encoder.Bank
	snapshot atomic.Pointer[regmap.Snapshot]

	mu   sync.Mutex
	seen map[uint32]uint32
}

func NewRegFile(m *regmap.Map, bank *encoder.Bank) *RegFile {
	r := &RegFile{
		Map:  m,
		bank: bank,
		seen: make(map[uint32]uint32),
	}
	r.Publish()
	return r
}

// Publish projects the bank. It must be called from the tick goroutine.
func (r *RegFile) Publish() {
	r.snapshot.Store(regmap.Project(r.bank))
}

func (r *RegFile) Snapshot() *regmap.Snapshot {
	return r.snapshot.Load()
}

// Read returns the word at addr. Unmapped addresses read 0.
func (r *RegFile) Read(addr uint32) uint32 {
	value, flag, err := r.view(addr)
	if err != nil {
		log.Debug("Read of unmapped address 0x%04x", addr)
		return 0
	}
	if flag {
		r.mu.Lock()
		r.seen[addr] = value
		r.mu.Unlock()
	}
	return value
}

// view returns the word at addr as the host sees it and whether it is a
// writable flag word.
func (r *RegFile) view(addr uint32) (uint32, bool, error) {
	value, err := r.Map.Read(addr, r.Snapshot())
	if err != nil {
		return 0, false, err
	}
	reg, word, err := r.Lookup(addr)
	if err != nil {
		return 0, false, err
	}
	switch reg.Kind {
	case regmap.KindReset:
		if r.bank.ResetView(value&1 != 0) {
			return 1, false, nil
		}
		return 0, false, nil
	case regmap.KindIndexEnable:
		return r.bank.IndexEnableView(word, value), true, nil
	case regmap.KindResetIndexPulse:
		return r.bank.ResetIndexPulseView(word, value), true, nil
	}
	return value, false, nil
}

// Write stores value at addr. Writes to read only or unmapped addresses are dropped.
func (r *RegFile) Write(addr, value uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen, ok := r.seen[addr]
	if ok {
		delete(r.seen, addr)
	} else {
		// a blind write is based on the current value
		seen, _, _ = r.view(addr)
	}
	err := r.Map.Write(addr, value, seen, r.bank)
	if err != nil {
		log.Warning("Dropping write 0x%08x to 0x%04x: %s", value, addr, err)
	}
	return err
}

// Apply performs the operations in order and returns the values of the reads
func (r *RegFile) Apply(ops []*layers.RegOp) []uint32 {
	var values []uint32
	for _, op := range ops {
		if op.Read {
			values = append(values, r.Read(op.Addr))
			continue
		}
		_ = r.Write(op.Addr, op.Value)
	}
	return values
}

// Handle serves one Etherbone request and returns the reply to send back.
// The reply is nil when the request needs none.
func (r *RegFile) Handle(eb *layers.EtherboneLayer, rec *layers.EtherboneRecordLayer) ([]byte, error) {
	if eb.Probe {
		reply := layers.NewEtherboneLayer()
		reply.ProbeReply = true
		return layers.SerializeEtherbone(reply, nil)
	}
	if rec == nil {
		return nil, nil
	}
	values := r.Apply(layers.RecordOps(rec))
	if len(rec.Reads) == 0 {
		return nil, nil
	}
	reply := layers.NewEtherboneLayer()
	reply.NoReads = true
	return layers.SerializeEtherbone(reply, &layers.EtherboneRecordLayer{
		WriteFIFO:  rec.ReadFIFO,
		ByteEnable: rec.ByteEnable,
		WriteBase:  rec.ReadBase,
		Writes:     values,
	})
}

// HandlePacket decodes a raw Etherbone packet and serves it
func (r *RegFile) HandlePacket(data []byte) ([]byte, error) {
	eb, rec, err := layers.DecodeEtherbone(data)
	if err != nil {
		return nil, err
	}
	return r.Handle(eb, rec)
}
