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
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

const (
	// EtherboneLayerNum identifies the packet header layer
	EtherboneLayerNum = 2000
	// EtherboneRecordLayerNum identifies the record layer
	EtherboneRecordLayerNum = 2001
	// EtherboneMagic is the first half word of every Etherbone packet
	EtherboneMagic   = 0x4e6f
	EtherboneVersion = 1
	// EtherboneAddrPortSize means 32-bit addresses and 32-bit data
	EtherboneAddrPortSize     = 0x44
	EtherboneByteEnable       = 0x0f
	EtherboneHeaderSize       = 8
	EtherboneRecordHeaderSize = 4
	// EtherboneMaxCount is the largest number of writes or reads in one record
	EtherboneMaxCount = 255
	EtherbonePort     = 1234
)

// ErrEtherboneTruncated returned when a packet is shorter than its header says
type ErrEtherboneTruncated struct {
	What string
}

func (e ErrEtherboneTruncated) Error() string {
	return fmt.Sprintf("Etherbone packet too short: %s", e.What)
}

// ErrEtherboneMagic returned when a packet does not start with EtherboneMagic
type ErrEtherboneMagic struct {
	Magic uint16
}

func (e ErrEtherboneMagic) Error() string {
	return fmt.Sprintf("Wrong Etherbone magic 0x%04x. Must be 0x%04x", e.Magic, EtherboneMagic)
}

// EtherboneLayer is the 8 byte Etherbone packet header
type EtherboneLayer struct {
	layers.BaseLayer
	Version uint8
	// NoReads tells the receiver the packet contains no reads
	NoReads    bool
	ProbeReply bool
	Probe      bool
	AddrSize   uint8
	PortSize   uint8
}

var EtherboneLayerType = gopacket.RegisterLayerType(EtherboneLayerNum,
	gopacket.LayerTypeMetadata{Name: "EtherboneLayerType", Decoder: gopacket.DecodeFunc(decodeEtherboneLayer)})

// NewEtherboneLayer returns a header for 32-bit wide accesses
func NewEtherboneLayer() *EtherboneLayer {
	return &EtherboneLayer{
		Version:  EtherboneVersion,
		AddrSize: EtherboneAddrPortSize >> 4,
		PortSize: EtherboneAddrPortSize & 0xf,
	}
}

func (eb *EtherboneLayer) LayerType() gopacket.LayerType {
	return EtherboneLayerType
}

func boolBit(b bool, shift uint) uint8 {
	if b {
		return 1 << shift
	}
	return 0
}

// SerializeTo prepends the packet header to the SerializeBuffer
func (eb *EtherboneLayer) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	bytes, err := b.PrependBytes(EtherboneHeaderSize)
	if err != nil {
		return err
	}
	binary.BigEndian.PutUint16(bytes[0:2], EtherboneMagic)
	bytes[2] = eb.Version<<4 | boolBit(eb.NoReads, 2) | boolBit(eb.ProbeReply, 1) | boolBit(eb.Probe, 0)
	bytes[3] = eb.AddrSize<<4 | eb.PortSize&0xf
	for i := 4; i < EtherboneHeaderSize; i++ {
		bytes[i] = 0
	}
	return nil
}

// DecodeFromBytes attempts to decode the byte slice as an Etherbone packet header
func (eb *EtherboneLayer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < EtherboneHeaderSize {
		df.SetTruncated()
		return ErrEtherboneTruncated{What: fmt.Sprintf("%d bytes header", len(data))}
	}
	if magic := binary.BigEndian.Uint16(data[0:2]); magic != EtherboneMagic {
		return ErrEtherboneMagic{Magic: magic}
	}
	eb.BaseLayer = layers.BaseLayer{
		Contents: data[:EtherboneHeaderSize],
		Payload:  data[EtherboneHeaderSize:],
	}
	eb.Version = data[2] >> 4
	eb.NoReads = data[2]&0x04 != 0
	eb.ProbeReply = data[2]&0x02 != 0
	eb.Probe = data[2]&0x01 != 0
	eb.AddrSize = data[3] >> 4
	eb.PortSize = data[3] & 0xf
	return nil
}

func (eb *EtherboneLayer) CanDecode() gopacket.LayerClass {
	return EtherboneLayerType
}

// NextLayerType returns the record layer unless the packet is a bare probe
func (eb *EtherboneLayer) NextLayerType() gopacket.LayerType {
	if len(eb.Payload) == 0 {
		return gopacket.LayerTypeZero
	}
	return EtherboneRecordLayerType
}

func decodeEtherboneLayer(data []byte, p gopacket.PacketBuilder) error {
	eb := &EtherboneLayer{}
	if err := eb.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(eb)
	return p.NextDecoder(eb.NextLayerType())
}

// EtherboneRecordLayer is one Etherbone record. Writes go to WriteBase and the
// following words, unless WriteFIFO is set. Values read from Reads are
// returned by the receiver in a write record to ReadBase.
type EtherboneRecordLayer struct {
	layers.BaseLayer
	BaseConfigAddr  bool
	ReadConfigAddr  bool
	ReadFIFO        bool
	DropCycle       bool
	WriteConfigAddr bool
	WriteFIFO       bool
	ByteEnable      uint8
	WriteBase       uint32
	Writes          []uint32
	ReadBase        uint32
	Reads           []uint32
}

var EtherboneRecordLayerType = gopacket.RegisterLayerType(EtherboneRecordLayerNum,
	gopacket.LayerTypeMetadata{Name: "EtherboneRecordLayerType", Decoder: gopacket.DecodeFunc(decodeEtherboneRecordLayer)})

func (rec *EtherboneRecordLayer) LayerType() gopacket.LayerType {
	return EtherboneRecordLayerType
}

// Len returns the serialized size of the record in bytes
func (rec *EtherboneRecordLayer) Len() int {
	size := EtherboneRecordHeaderSize
	if len(rec.Writes) > 0 {
		size += 4 + 4*len(rec.Writes)
	}
	if len(rec.Reads) > 0 {
		size += 4 + 4*len(rec.Reads)
	}
	return size
}

// WriteAddr returns the address of the i-th write of the record
func (rec *EtherboneRecordLayer) WriteAddr(i int) uint32 {
	if rec.WriteFIFO {
		return rec.WriteBase
	}
	return rec.WriteBase + uint32(4*i)
}

// SerializeTo prepends the record to the SerializeBuffer
func (rec *EtherboneRecordLayer) SerializeTo(b gopacket.SerializeBuffer, opts gopacket.SerializeOptions) error {
	if len(rec.Writes) > EtherboneMaxCount || len(rec.Reads) > EtherboneMaxCount {
		return fmt.Errorf("Etherbone record holds at most %d writes and %d reads", EtherboneMaxCount, EtherboneMaxCount)
	}
	bytes, err := b.PrependBytes(rec.Len())
	if err != nil {
		return err
	}
	bytes[0] = boolBit(rec.BaseConfigAddr, 0) | boolBit(rec.ReadConfigAddr, 1) | boolBit(rec.ReadFIFO, 2) |
		boolBit(rec.DropCycle, 4) | boolBit(rec.WriteConfigAddr, 5) | boolBit(rec.WriteFIFO, 6)
	bytes[1] = rec.ByteEnable
	bytes[2] = uint8(len(rec.Writes))
	bytes[3] = uint8(len(rec.Reads))
	offset := EtherboneRecordHeaderSize
	if len(rec.Writes) > 0 {
		binary.BigEndian.PutUint32(bytes[offset:offset+4], rec.WriteBase)
		offset += 4
		for _, v := range rec.Writes {
			binary.BigEndian.PutUint32(bytes[offset:offset+4], v)
			offset += 4
		}
	}
	if len(rec.Reads) > 0 {
		binary.BigEndian.PutUint32(bytes[offset:offset+4], rec.ReadBase)
		offset += 4
		for _, addr := range rec.Reads {
			binary.BigEndian.PutUint32(bytes[offset:offset+4], addr)
			offset += 4
		}
	}
	return nil
}

// DecodeFromBytes attempts to decode the byte slice as an Etherbone record
func (rec *EtherboneRecordLayer) DecodeFromBytes(data []byte, df gopacket.DecodeFeedback) error {
	if len(data) < EtherboneRecordHeaderSize {
		df.SetTruncated()
		return ErrEtherboneTruncated{What: fmt.Sprintf("%d bytes record header", len(data))}
	}
	rec.BaseConfigAddr = data[0]&0x01 != 0
	rec.ReadConfigAddr = data[0]&0x02 != 0
	rec.ReadFIFO = data[0]&0x04 != 0
	rec.DropCycle = data[0]&0x10 != 0
	rec.WriteConfigAddr = data[0]&0x20 != 0
	rec.WriteFIFO = data[0]&0x40 != 0
	rec.ByteEnable = data[1]
	wcount := int(data[2])
	rcount := int(data[3])
	rec.Writes = nil
	rec.Reads = nil

	offset := EtherboneRecordHeaderSize
	words := func(n int) ([]uint32, uint32, error) {
		need := 4 + 4*n
		if len(data) < offset+need {
			df.SetTruncated()
			return nil, 0, ErrEtherboneTruncated{What: fmt.Sprintf("need %d bytes at offset %d, have %d", need, offset, len(data))}
		}
		base := binary.BigEndian.Uint32(data[offset : offset+4])
		values := make([]uint32, n)
		for i := range values {
			start := offset + 4 + 4*i
			values[i] = binary.BigEndian.Uint32(data[start : start+4])
		}
		offset += need
		return values, base, nil
	}
	var err error
	if wcount > 0 {
		if rec.Writes, rec.WriteBase, err = words(wcount); err != nil {
			return err
		}
	}
	if rcount > 0 {
		if rec.Reads, rec.ReadBase, err = words(rcount); err != nil {
			return err
		}
	}
	rec.BaseLayer = layers.BaseLayer{
		Contents: data[:offset],
		Payload:  data[offset:],
	}
	return nil
}

func (rec *EtherboneRecordLayer) CanDecode() gopacket.LayerClass {
	return EtherboneRecordLayerType
}

func (rec *EtherboneRecordLayer) NextLayerType() gopacket.LayerType {
	return gopacket.LayerTypePayload
}

func decodeEtherboneRecordLayer(data []byte, p gopacket.PacketBuilder) error {
	rec := &EtherboneRecordLayer{}
	if err := rec.DecodeFromBytes(data, p); err != nil {
		return err
	}
	p.AddLayer(rec)
	if len(rec.Payload) == 0 {
		return nil
	}
	return p.NextDecoder(gopacket.LayerTypePayload)
}

// SerializeEtherbone serializes a header and an optional record to bytes
func SerializeEtherbone(eb *EtherboneLayer, rec *EtherboneRecordLayer) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{}
	var err error
	if rec == nil {
		err = gopacket.SerializeLayers(buf, opts, eb)
	} else {
		err = gopacket.SerializeLayers(buf, opts, eb, rec)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeEtherbone decodes a packet. The record is nil for bare probe packets.
func DecodeEtherbone(data []byte) (*EtherboneLayer, *EtherboneRecordLayer, error) {
	packet := gopacket.NewPacket(data, EtherboneLayerType, gopacket.Default)
	return EtherboneFromPacket(packet)
}

// EtherboneFromPacket extracts the Etherbone layers from a decoded packet
func EtherboneFromPacket(packet gopacket.Packet) (*EtherboneLayer, *EtherboneRecordLayer, error) {
	if errLayer := packet.ErrorLayer(); errLayer != nil {
		return nil, nil, errLayer.Error()
	}
	ebLayer := packet.Layer(EtherboneLayerType)
	if ebLayer == nil {
		return nil, nil, errors.New("Not an Etherbone packet")
	}
	eb := ebLayer.(*EtherboneLayer)
	recLayer := packet.Layer(EtherboneRecordLayerType)
	if recLayer == nil {
		return eb, nil, nil
	}
	return eb, recLayer.(*EtherboneRecordLayer), nil
}

// NewReadRequest builds a packet reading the words at addrs. The receiver
// answers with a write record to retBase holding the values in order.
func NewReadRequest(addrs []uint32, retBase uint32) ([]byte, error) {
	rec := &EtherboneRecordLayer{
		ByteEnable: EtherboneByteEnable,
		ReadBase:   retBase,
		Reads:      addrs,
	}
	return SerializeEtherbone(NewEtherboneLayer(), rec)
}

// NewWriteRequest builds a packet writing values to consecutive words from base.
func NewWriteRequest(base uint32, values []uint32) ([]byte, error) {
	eb := NewEtherboneLayer()
	eb.NoReads = true
	rec := &EtherboneRecordLayer{
		ByteEnable: EtherboneByteEnable,
		WriteBase:  base,
		Writes:     values,
	}
	return SerializeEtherbone(eb, rec)
}

// NewProbeRequest builds a probe packet, receivers answer with a probe reply
func NewProbeRequest() ([]byte, error) {
	eb := NewEtherboneLayer()
	eb.Probe = true
	return SerializeEtherbone(eb, nil)
}
