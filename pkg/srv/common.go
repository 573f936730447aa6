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

package srv

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/google/gopacket"

	"jinr.ru/greenlab/go-encoder/pkg/config"
)

// UDPBufferSize is large enough for any Etherbone packet
const UDPBufferSize = 65536

type InPacket struct {
	Data []byte
	gopacket.CaptureInfo
}

type OutPacket struct {
	Data []byte
	*net.UDPAddr
}

// NewInPacket copies data and attaches the peer address and name as ancillary data
func NewInPacket(data []byte, udpAddr *net.UDPAddr, peerName string) InPacket {
	buf := make([]byte, len(data))
	copy(buf, data)
	return InPacket{
		Data: buf,
		CaptureInfo: gopacket.CaptureInfo{
			Length:        len(buf),
			CaptureLength: len(buf),
			Timestamp:     time.Now(),
			AncillaryData: []interface{}{udpAddr, peerName},
		},
	}
}

// GetAddrPort returns the UDPAddr of the peer that sent the packet
func GetAddrPort(packet gopacket.Packet) (*net.UDPAddr, error) {
	meta := packet.Metadata()
	if len(meta.CaptureInfo.AncillaryData) >= 1 {
		ancillary := meta.CaptureInfo.AncillaryData[0]
		udpAddr, ok := ancillary.(*net.UDPAddr)
		if !ok {
			return nil, ErrGetAddr{}
		}
		return udpAddr, nil
	}
	return nil, ErrGetAddr{}
}

// GetPeerName returns the configured name of the peer that sent the packet
func GetPeerName(packet gopacket.Packet) (string, error) {
	meta := packet.Metadata()
	if len(meta.CaptureInfo.AncillaryData) >= 2 {
		ancillary := meta.CaptureInfo.AncillaryData[1]
		name, ok := ancillary.(string)
		if !ok {
			return "", ErrGetPeerName{What: "can not cast ancillary data to string"}
		}
		return name, nil
	}
	return "", ErrGetPeerName{What: "not enough ancillary data"}
}

type Server struct {
	context.Context
	*config.Config
	*net.UDPAddr
	ChIn  chan InPacket
	ChOut chan OutPacket
}

// NewServer returns a Server with unbuffered packet queues
func NewServer(ctx context.Context, cfg *config.Config, uaddr *net.UDPAddr) Server {
	return Server{
		Context: ctx,
		Config:  cfg,
		UDPAddr: uaddr,
		ChIn:    make(chan InPacket),
		ChOut:   make(chan OutPacket),
	}
}

// ReadPacketData reads the input queue and returns packet data and metadata.
// This method is from PacketDataSource interface. It returns io.EOF once the
// context is done so that the packet source closes its channel.
func (s *Server) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	select {
	case p := <-s.ChIn:
		return p.Data, p.CaptureInfo, nil
	case <-s.Context.Done():
		return nil, gopacket.CaptureInfo{}, io.EOF
	}
}

// Send puts a packet to the output queue unless the context is done
func (s *Server) Send(p OutPacket) error {
	select {
	case s.ChOut <- p:
		return nil
	case <-s.Context.Done():
		return s.Context.Err()
	}
}

// ReadLoop reads UDP packets from conn and puts them to the input queue.
// name returns the peer name for the packet, packets it rejects are dropped.
func (s *Server) ReadLoop(conn *net.UDPConn, name func(*net.UDPAddr) (string, bool)) error {
	buffer := make([]byte, UDPBufferSize)
	for {
		length, udpAddr, err := conn.ReadFromUDP(buffer)
		if err != nil {
			return err
		}
		peer, ok := name(udpAddr)
		if !ok {
			continue
		}
		select {
		case s.ChIn <- NewInPacket(buffer[:length], udpAddr, peer):
		case <-s.Context.Done():
			return s.Context.Err()
		}
	}
}

// WriteLoop sends packets from the output queue to the wire
func (s *Server) WriteLoop(conn *net.UDPConn) error {
	for {
		select {
		case out := <-s.ChOut:
			if _, err := conn.WriteToUDP(out.Data, out.UDPAddr); err != nil {
				return err
			}
		case <-s.Context.Done():
			return s.Context.Err()
		}
	}
}
