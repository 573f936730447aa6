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

package layers

import (
	"fmt"
	"strconv"
)

// Reg is a 32-bit CSR word at a byte address
type Reg struct {
	Addr  uint32
	Value uint32
}

// Hex returns the address and the value as hexadecimal strings
func (r *Reg) Hex() (string, string) {
	return fmt.Sprintf("0x%04x", r.Addr), fmt.Sprintf("0x%08x", r.Value)
}

func (r *Reg) String() string {
	addr, value := r.Hex()
	return fmt.Sprintf("%s: %s", addr, value)
}

// NewRegFromHex parses address and value. Both accept any base prefix strconv understands.
func NewRegFromHex(addr, value string) (*Reg, error) {
	a, err := strconv.ParseUint(addr, 0, 32)
	if err != nil {
		return nil, fmt.Errorf("Wrong register address %q: %w", addr, err)
	}
	v, err := strconv.ParseUint(value, 0, 32)
	if err != nil {
		return nil, fmt.Errorf("Wrong register value %q: %w", value, err)
	}
	return &Reg{Addr: uint32(a), Value: uint32(v)}, nil
}

// RegOp is a single read or write carried by an Etherbone record
type RegOp struct {
	Read bool
	*Reg
}

// RecordOps returns the operations of a record in the order a slave applies
// them: writes first, then reads.
func RecordOps(rec *EtherboneRecordLayer) []*RegOp {
	ops := make([]*RegOp, 0, len(rec.Writes)+len(rec.Reads))
	for i, value := range rec.Writes {
		ops = append(ops, &RegOp{Reg: &Reg{Addr: rec.WriteAddr(i), Value: value}})
	}
	for _, addr := range rec.Reads {
		ops = append(ops, &RegOp{Read: true, Reg: &Reg{Addr: addr}})
	}
	return ops
}

// ReplyRegs pairs the values of a read reply with the addresses that were requested
func ReplyRegs(addrs []uint32, rec *EtherboneRecordLayer) ([]*Reg, error) {
	if len(rec.Writes) != len(addrs) {
		return nil, fmt.Errorf("Etherbone reply carries %d values for %d reads", len(rec.Writes), len(addrs))
	}
	regs := make([]*Reg, len(addrs))
	for i, addr := range addrs {
		regs[i] = &Reg{Addr: addr, Value: rec.Writes[i]}
	}
	return regs, nil
}
