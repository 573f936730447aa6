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

package control

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/gopacket"

	"jinr.ru/greenlab/go-encoder/pkg/config"
	"jinr.ru/greenlab/go-encoder/pkg/layers"
	"jinr.ru/greenlab/go-encoder/pkg/log"
	"jinr.ru/greenlab/go-encoder/pkg/regmap"
	"jinr.ru/greenlab/go-encoder/pkg/srv"
	"jinr.ru/greenlab/go-encoder/pkg/srv/control/ifc"
)

// cardLink is the Etherbone master side of one card
type cardLink struct {
	peer    *config.CardPeer
	udpAddr *net.UDPAddr
	m       *regmap.Map
	// mu serializes exchanges and read-modify-write sequences on the card
	mu      sync.Mutex
	seq     uint32
	replies chan *layers.EtherboneRecordLayer
}

type ControlServer struct {
	srv.Server
	timeout time.Duration
	state   *RegState
	api     ifc.ApiServer
	cards   map[string]*cardLink
}

var _ ifc.ControlServer = &ControlServer{}

// NewControlServer ...
func NewControlServer(ctx context.Context, cfg *config.Config) (*ControlServer, error) {
	ctrlCfg := cfg.Control
	if err := ctrlCfg.Validate(); err != nil {
		return nil, err
	}
	timeout, err := ctrlCfg.RequestTimeout()
	if err != nil {
		return nil, err
	}

	log.Debug("Initializing control server with address: %s port: %d", ctrlCfg.IP, ctrlCfg.Port)
	uaddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", ctrlCfg.IP, ctrlCfg.Port))
	if err != nil {
		return nil, err
	}

	cards := make(map[string]*cardLink, len(ctrlCfg.Cards))
	for _, peer := range ctrlCfg.Cards {
		udpAddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", peer.IP, peer.Port))
		if err != nil {
			return nil, err
		}
		m, err := regmap.New(peer.Encoders, peer.CSRBase)
		if err != nil {
			return nil, fmt.Errorf("card %s: %w", peer.Name, err)
		}
		cards[peer.Name] = &cardLink{
			peer:    peer,
			udpAddr: udpAddr,
			m:       m,
			replies: make(chan *layers.EtherboneRecordLayer, 1),
		}
	}

	regState, err := NewRegState(ctx, ctrlCfg.DBPath, ctrlCfg.Cards)
	if err != nil {
		return nil, err
	}

	s := &ControlServer{
		Server:  srv.NewServer(ctx, cfg, uaddr),
		timeout: timeout,
		state:   regState,
		cards:   cards,
	}

	apiServer, err := NewApiServer(ctx, cfg, s)
	if err != nil {
		regState.Close()
		return nil, err
	}
	s.api = apiServer

	return s, nil
}

// Api returns the REST API server of the control server
func (s *ControlServer) Api() ifc.ApiServer {
	return s.api
}

// Run serves Etherbone on the configured address and the REST API
func (s *ControlServer) Run() error {
	conn, err := net.ListenUDP("udp", s.UDPAddr)
	if err != nil {
		return err
	}

	errChan := make(chan error, 2)
	go func() {
		errChan <- s.Serve(conn)
	}()
	go func() {
		errChan <- s.api.Run()
	}()
	go func() {
		for name := range s.cards {
			if verifyErr := s.Verify(name); verifyErr != nil {
				log.Warning("Card %s: %s", name, verifyErr)
				continue
			}
			log.Info("Card %s is up", name)
		}
	}()

	select {
	case <-s.Context.Done():
		return s.Context.Err()
	case err = <-errChan:
		return err
	}
}

// Serve runs the Etherbone master on conn until the context is done.
// It closes conn and the register database when it returns.
func (s *ControlServer) Serve(conn *net.UDPConn) error {
	defer conn.Close()
	defer s.state.Close()

	errChan := make(chan error, 2)

	// Read UDP packets from wire and put them to input queue
	go func() {
		errChan <- s.ReadLoop(conn, s.peerName)
	}()

	// Read captured packets from input queue, parse them and hand replies to the waiting requests
	go func() {
		source := gopacket.NewPacketSource(&s.Server, layers.EtherboneLayerType)
		for packet := range source.Packets() {
			cardName, packetErr := srv.GetPeerName(packet)
			if packetErr != nil {
				log.Error(packetErr.Error())
				continue
			}
			_, rec, packetErr := layers.EtherboneFromPacket(packet)
			if packetErr != nil {
				log.Debug("Drop packet from card %s: %s", cardName, packetErr)
				continue
			}
			if rec == nil {
				continue
			}
			s.deliver(cardName, rec)
		}
	}()

	// Read packets from output queue and send them to wire
	go func() {
		errChan <- s.WriteLoop(conn)
	}()

	select {
	case <-s.Context.Done():
		return s.Context.Err()
	case err := <-errChan:
		return err
	}
}

func (s *ControlServer) peerName(addr *net.UDPAddr) (string, bool) {
	peer, err := s.Config.Control.GetCardByAddr(addr)
	if err != nil {
		log.Debug("Drop packet. %s", err)
		return "", false
	}
	return peer.Name, true
}

func (s *ControlServer) deliver(cardName string, rec *layers.EtherboneRecordLayer) {
	link, ok := s.cards[cardName]
	if !ok {
		return
	}
	select {
	case link.replies <- rec:
	default:
		log.Warning("Drop unexpected reply from card %s", cardName)
	}
}

func (s *ControlServer) link(card string) (*cardLink, error) {
	peer, err := s.Config.Control.GetCardByName(card)
	if err != nil {
		return nil, err
	}
	return s.cards[peer.Name], nil
}

// exchange reads the words at addrs. The caller holds link.mu.
// Each request carries a fresh return address so that late replies to
// requests that timed out are recognized and dropped.
func (s *ControlServer) exchange(link *cardLink, addrs []uint32) ([]*layers.Reg, error) {
	regs := make([]*layers.Reg, 0, len(addrs))
	for start := 0; start < len(addrs); start += layers.EtherboneMaxCount {
		end := start + layers.EtherboneMaxCount
		if end > len(addrs) {
			end = len(addrs)
		}
		chunk := addrs[start:end]
		link.seq++
		retBase := link.seq * regmap.WordBytes
		data, err := layers.NewReadRequest(chunk, retBase)
		if err != nil {
			return nil, err
		}
		if err = s.Send(srv.OutPacket{Data: data, UDPAddr: link.udpAddr}); err != nil {
			return nil, err
		}
		rec, err := s.await(link, retBase)
		if err != nil {
			return nil, err
		}
		chunkRegs, err := layers.ReplyRegs(chunk, rec)
		if err != nil {
			return nil, err
		}
		regs = append(regs, chunkRegs...)
	}
	if err := s.state.SetRegs(link.peer.Name, regs); err != nil {
		log.Warning("Error while caching registers of card %s: %s", link.peer.Name, err)
	}
	return regs, nil
}

func (s *ControlServer) await(link *cardLink, retBase uint32) (*layers.EtherboneRecordLayer, error) {
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	for {
		select {
		case rec := <-link.replies:
			if rec.WriteBase == retBase {
				return rec, nil
			}
			log.Debug("Drop stale reply from card %s", link.peer.Name)
		case <-timer.C:
			return nil, ErrTimeout{Card: link.peer.Name, Timeout: s.timeout}
		case <-s.Context.Done():
			return nil, s.Context.Err()
		}
	}
}

// write sends an Etherbone write. The caller holds link.mu.
func (s *ControlServer) write(link *cardLink, addr, value uint32) error {
	if _, err := s.checkWritable(link, addr); err != nil {
		return err
	}
	log.Debug("Writing register of card %s: Addr: %x Value: %x", link.peer.Name, addr, value)
	data, err := layers.NewWriteRequest(addr, []uint32{value})
	if err != nil {
		return err
	}
	return s.Send(srv.OutPacket{Data: data, UDPAddr: link.udpAddr})
}

func (s *ControlServer) checkWritable(link *cardLink, addr uint32) (*regmap.Register, error) {
	reg, _, err := link.m.Lookup(addr)
	if err != nil {
		return nil, err
	}
	if reg.Access != regmap.ReadWrite {
		return nil, regmap.ErrReadOnly{Name: reg.Name}
	}
	return reg, nil
}

// Verify reads the identification registers of the card
func (s *ControlServer) Verify(card string) error {
	link, err := s.link(card)
	if err != nil {
		return err
	}
	link.mu.Lock()
	defer link.mu.Unlock()
	regs, err := s.exchange(link, []uint32{link.m.Base, link.m.Base + regmap.WordBytes})
	if err != nil {
		return err
	}
	if regs[0].Value != regmap.Magic {
		return ErrCardMismatch{Card: card, What: fmt.Sprintf("magic 0x%08x, expected 0x%08x", regs[0].Value, regmap.Magic)}
	}
	if int(regs[1].Value) != link.m.N {
		return ErrCardMismatch{Card: card, What: fmt.Sprintf("%d encoders, configured %d", regs[1].Value, link.m.N)}
	}
	return nil
}

func (s *ControlServer) RegRead(card string, addr uint32) (*layers.Reg, error) {
	link, err := s.link(card)
	if err != nil {
		return nil, err
	}
	if _, _, err = link.m.Lookup(addr); err != nil {
		return nil, err
	}
	link.mu.Lock()
	defer link.mu.Unlock()
	regs, err := s.exchange(link, []uint32{addr})
	if err != nil {
		return nil, err
	}
	return regs[0], nil
}

func (s *ControlServer) RegReadAll(card string) ([]*layers.Reg, error) {
	link, err := s.link(card)
	if err != nil {
		return nil, err
	}
	link.mu.Lock()
	defer link.mu.Unlock()
	return s.exchange(link, link.m.Addrs())
}

func (s *ControlServer) RegReadCached(card string) ([]*layers.Reg, error) {
	if _, err := s.link(card); err != nil {
		return nil, err
	}
	return s.state.GetRegAll(card)
}

func (s *ControlServer) RegWrite(card string, reg *layers.Reg) error {
	link, err := s.link(card)
	if err != nil {
		return err
	}
	r, err := s.checkWritable(link, reg.Addr)
	if err != nil {
		return err
	}
	link.mu.Lock()
	defer link.mu.Unlock()
	if r.Kind == regmap.KindIndexEnable || r.Kind == regmap.KindResetIndexPulse {
		// the card applies a flag word relative to the last read of it
		if _, err = s.exchange(link, []uint32{reg.Addr}); err != nil {
			return err
		}
	}
	return s.write(link, reg.Addr, reg.Value)
}

func (s *ControlServer) checkIndex(link *cardLink, index int) error {
	if index < 0 || index >= link.m.N {
		return ErrEncoderNotFound{Card: link.peer.Name, Index: index}
	}
	return nil
}

// statusAddrs returns the addresses holding the state of encoder index
func statusAddrs(m *regmap.Map, index int) ([]uint32, []uint, error) {
	counter, err := m.Counter(index)
	if err != nil {
		return nil, nil, err
	}
	addrs := []uint32{counter.Addr}
	var bits []uint
	for _, name := range []string{regmap.NameIndexEnable, regmap.NameResetIndexPulse, regmap.NameIndexPulse} {
		addr, bit, err := m.FlagAddr(name, index)
		if err != nil {
			return nil, nil, err
		}
		addrs = append(addrs, addr)
		bits = append(bits, bit)
	}
	return addrs, bits, nil
}

func newStatus(index int, values []uint32, bits []uint) *ifc.EncoderStatus {
	return &ifc.EncoderStatus{
		Index:           index,
		Counter:         int32(values[0]),
		IndexEnable:     values[1]&(1<<bits[0]) != 0,
		ResetIndexPulse: values[2]&(1<<bits[1]) != 0,
		IndexPulse:      values[3]&(1<<bits[2]) != 0,
	}
}

func (s *ControlServer) Encoder(card string, index int) (*ifc.EncoderStatus, error) {
	link, err := s.link(card)
	if err != nil {
		return nil, err
	}
	if err = s.checkIndex(link, index); err != nil {
		return nil, err
	}
	addrs, bits, err := statusAddrs(link.m, index)
	if err != nil {
		return nil, err
	}
	link.mu.Lock()
	defer link.mu.Unlock()
	regs, err := s.exchange(link, addrs)
	if err != nil {
		return nil, err
	}
	values := make([]uint32, len(regs))
	for i, reg := range regs {
		values[i] = reg.Value
	}
	return newStatus(index, values, bits), nil
}

func (s *ControlServer) Encoders(card string) ([]*ifc.EncoderStatus, error) {
	link, err := s.link(card)
	if err != nil {
		return nil, err
	}
	link.mu.Lock()
	defer link.mu.Unlock()
	regs, err := s.exchange(link, link.m.Addrs())
	if err != nil {
		return nil, err
	}
	byAddr := make(map[uint32]uint32, len(regs))
	for _, reg := range regs {
		byAddr[reg.Addr] = reg.Value
	}
	statuses := make([]*ifc.EncoderStatus, 0, link.m.N)
	for i := 0; i < link.m.N; i++ {
		addrs, bits, err := statusAddrs(link.m, i)
		if err != nil {
			return nil, err
		}
		values := make([]uint32, len(addrs))
		for j, addr := range addrs {
			values[j] = byAddr[addr]
		}
		statuses = append(statuses, newStatus(i, values, bits))
	}
	return statuses, nil
}

// setFlag sets or clears the bit of encoder index in a flag register.
// Other encoders sharing the word keep the value read back from the card.
func (s *ControlServer) setFlag(card, name string, index int, set bool) error {
	link, err := s.link(card)
	if err != nil {
		return err
	}
	if err = s.checkIndex(link, index); err != nil {
		return err
	}
	addr, bit, err := link.m.FlagAddr(name, index)
	if err != nil {
		return err
	}
	link.mu.Lock()
	defer link.mu.Unlock()
	regs, err := s.exchange(link, []uint32{addr})
	if err != nil {
		return err
	}
	value := regs[0].Value
	if set {
		value |= 1 << bit
	} else {
		value &^= 1 << bit
	}
	return s.write(link, addr, value)
}

func (s *ControlServer) SetIndexEnable(card string, index int, enable bool) error {
	return s.setFlag(card, regmap.NameIndexEnable, index, enable)
}

func (s *ControlServer) AckIndexPulse(card string, index int) error {
	return s.setFlag(card, regmap.NameResetIndexPulse, index, true)
}

func (s *ControlServer) SetReset(card string, reset bool) error {
	link, err := s.link(card)
	if err != nil {
		return err
	}
	reg, _ := link.m.ByName(regmap.NameReset)
	var value uint32
	if reset {
		value = 1
	}
	link.mu.Lock()
	defer link.mu.Unlock()
	return s.write(link, reg.Addr, value)
}

func (s *ControlServer) RegMap(card string) (*regmap.Map, error) {
	link, err := s.link(card)
	if err != nil {
		return nil, err
	}
	return link.m, nil
}
