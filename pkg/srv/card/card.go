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

// Package card emulates an encoder card: a tick loop evaluating the encoder
// bank and an Etherbone slave serving its register map over UDP.
package card

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/google/gopacket"

	"jinr.ru/greenlab/go-encoder/pkg/config"
	"jinr.ru/greenlab/go-encoder/pkg/encoder"
	"jinr.ru/greenlab/go-encoder/pkg/layers"
	"jinr.ru/greenlab/go-encoder/pkg/log"
	"jinr.ru/greenlab/go-encoder/pkg/regmap"
	"jinr.ru/greenlab/go-encoder/pkg/source"
	"jinr.ru/greenlab/go-encoder/pkg/srv"
)

type Card struct {
	srv.Server
	name    string
	bank    *encoder.Bank
	regs    *RegFile
	sources []source.Source
	lines   []encoder.Lines
	period  time.Duration
	batch   int
}

// NewCard opens the line sources of every encoder and builds the card
func NewCard(ctx context.Context, cfg *config.Config) (*Card, error) {
	if err := cfg.Card.Validate(); err != nil {
		return nil, err
	}
	encoders, err := cfg.Card.EncoderConfigs()
	if err != nil {
		return nil, err
	}
	sources := make([]source.Source, 0, len(encoders))
	for _, e := range encoders {
		s, err := source.New(cfg.Card, e)
		if err != nil {
			for _, opened := range sources {
				opened.Close()
			}
			return nil, fmt.Errorf("encoder %s: %w", e.Name, err)
		}
		sources = append(sources, s)
	}
	return NewCardWithSources(ctx, cfg, sources)
}

// NewCardWithSources builds the card with the given sources, one per
// encoder in ordinal order
func NewCardWithSources(ctx context.Context, cfg *config.Config, sources []source.Source) (*Card, error) {
	cardCfg := cfg.Card
	encoders, err := cardCfg.EncoderConfigs()
	if err != nil {
		return nil, err
	}
	if len(sources) != len(encoders) {
		return nil, fmt.Errorf("%d sources for %d encoders", len(sources), len(encoders))
	}
	cfgs := make([]encoder.Config, len(encoders))
	for i, e := range encoders {
		cfgs[i] = e.Encoder()
	}
	bank, err := encoder.NewBank(cfgs)
	if err != nil {
		return nil, err
	}
	m, err := regmap.New(bank.Len(), cardCfg.CSRBase)
	if err != nil {
		return nil, err
	}
	period, err := cardCfg.TickPeriod()
	if err != nil {
		return nil, err
	}
	batch := cardCfg.Clock.Batch
	if batch < 1 {
		batch = 1
	}

	log.Debug("Initializing card %s with address: %s port: %d", cardCfg.Name, cardCfg.Etherbone.IP, cardCfg.Etherbone.Port)
	uaddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", cardCfg.Etherbone.IP, cardCfg.Etherbone.Port))
	if err != nil {
		return nil, err
	}

	return &Card{
		Server:  srv.NewServer(ctx, cfg, uaddr),
		name:    cardCfg.Name,
		bank:    bank,
		regs:    NewRegFile(m, bank),
		sources: sources,
		lines:   make([]encoder.Lines, len(sources)),
		period:  period,
		batch:   batch,
	}, nil
}

func (c *Card) Name() string {
	return c.name
}

func (c *Card) Map() *regmap.Map {
	return c.regs.Map
}

// RegFile returns the register file the Etherbone slave serves
func (c *Card) RegFile() *RegFile {
	return c.regs
}

// Snapshot returns the registers as published after the last tick
func (c *Card) Snapshot() *regmap.Snapshot {
	return c.regs.Snapshot()
}

// Step samples every source and evaluates n ticks. It belongs to the tick
// domain: Run calls it from its tick goroutine, tests call it directly.
func (c *Card) Step(n int) error {
	for t := 0; t < n; t++ {
		for i, s := range c.sources {
			l, err := s.Sample()
			if err != nil {
				return fmt.Errorf("encoder %d: %w", i, err)
			}
			c.lines[i] = l
		}
		c.bank.Tick(c.lines)
		c.regs.Publish()
	}
	return nil
}

func (c *Card) Close() {
	for i, s := range c.sources {
		if err := s.Close(); err != nil {
			log.Warning("Error while closing source of encoder %d: %s", i, err)
		}
	}
}

// Run listens on the configured Etherbone address and serves until the context is done
func (c *Card) Run() error {
	conn, err := net.ListenUDP("udp", c.UDPAddr)
	if err != nil {
		return err
	}
	return c.Serve(conn)
}

// Serve runs the tick loop and the Etherbone slave on conn. It closes conn
// and the line sources when it returns.
func (c *Card) Serve(conn *net.UDPConn) error {
	defer conn.Close()
	defer c.Close()

	errChan := make(chan error, 4)

	// Read UDP packets from wire and put them to input queue
	go func() {
		errChan <- c.ReadLoop(conn, func(addr *net.UDPAddr) (string, bool) {
			return addr.String(), true
		})
	}()

	// Decode requests from input queue and queue the replies
	go func() {
		packets := gopacket.NewPacketSource(&c.Server, layers.EtherboneLayerType)
		for packet := range packets.Packets() {
			udpAddr, packetErr := srv.GetAddrPort(packet)
			if packetErr != nil {
				log.Error(packetErr.Error())
				continue
			}
			eb, rec, packetErr := layers.EtherboneFromPacket(packet)
			if packetErr != nil {
				log.Debug("Drop packet from %s: %s", udpAddr, packetErr)
				continue
			}
			reply, packetErr := c.regs.Handle(eb, rec)
			if packetErr != nil {
				log.Error("Error while serving request from %s: %s", udpAddr, packetErr)
				continue
			}
			if reply == nil {
				continue
			}
			if c.Send(srv.OutPacket{Data: reply, UDPAddr: udpAddr}) != nil {
				return
			}
		}
	}()

	// Read packets from output queue and send them to wire
	go func() {
		errChan <- c.WriteLoop(conn)
	}()

	// Tick loop
	go func() {
		ticker := time.NewTicker(c.period)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if stepErr := c.Step(c.batch); stepErr != nil {
					errChan <- stepErr
					return
				}
			case <-c.Context.Done():
				return
			}
		}
	}()

	log.Info("Card %s with %d encoders is listening on %s", c.name, c.bank.Len(), conn.LocalAddr())

	select {
	case <-c.Context.Done():
		return c.Context.Err()
	case err := <-errChan:
		return err
	}
}
