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
	"encoding/binary"
	"fmt"

	"go.etcd.io/bbolt"

	"jinr.ru/greenlab/go-encoder/pkg/config"
	"jinr.ru/greenlab/go-encoder/pkg/layers"
	"jinr.ru/greenlab/go-encoder/pkg/log"
)

const (
	BucketNamePrefix = "reg_"
)

// RegState caches the last register values read from every card
type RegState struct {
	context.Context
	DB *bbolt.DB
}

func NewRegState(ctx context.Context, dbPath string, cards []*config.CardPeer) (*RegState, error) {
	// open register database
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, err
	}
	// create buckets in the register database for all cards
	if err = db.Update(func(tx *bbolt.Tx) error {
		for _, card := range cards {
			_, err := tx.CreateBucketIfNotExists([]byte(bucketName(card.Name)))
			if err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}
	return &RegState{
		Context: ctx,
		DB:      db,
	}, nil
}

func uint32ToByte(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func bucketName(cardName string) string {
	return fmt.Sprintf("%s%s", BucketNamePrefix, cardName)
}

func bucket(tx *bbolt.Tx, cardName string) (*bbolt.Bucket, error) {
	b := tx.Bucket([]byte(bucketName(cardName)))
	if b == nil {
		return nil, config.ErrCardNotFound{What: fmt.Sprintf("bucket %s", bucketName(cardName))}
	}
	return b, nil
}

func (s *RegState) Close() {
	if err := s.DB.Close(); err != nil {
		log.Error("Error while closing register database: %s", err)
	}
}

// SetRegs stores the values in one transaction
func (s *RegState) SetRegs(cardName string, regs []*layers.Reg) error {
	log.Debug("Caching %d registers of card %s", len(regs), cardName)
	return s.DB.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, cardName)
		if err != nil {
			return err
		}
		for _, reg := range regs {
			if err := b.Put(uint32ToByte(reg.Addr), uint32ToByte(reg.Value)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *RegState) SetReg(cardName string, reg *layers.Reg) error {
	return s.SetRegs(cardName, []*layers.Reg{reg})
}

func (s *RegState) GetReg(cardName string, addr uint32) (*layers.Reg, error) {
	log.Debug("Getting cached register: Addr: %x", addr)
	var value uint32
	if err := s.DB.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, cardName)
		if err != nil {
			return err
		}
		valueBytes := b.Get(uint32ToByte(addr))
		if valueBytes == nil {
			return ErrNotCached{Card: cardName, Addr: addr}
		}
		value = binary.BigEndian.Uint32(valueBytes)
		return nil
	}); err != nil {
		return nil, err
	}
	return &layers.Reg{
		Addr:  addr,
		Value: value,
	}, nil
}

// GetRegAll returns every cached register of the card in address order
func (s *RegState) GetRegAll(cardName string) ([]*layers.Reg, error) {
	var regs []*layers.Reg
	if err := s.DB.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, cardName)
		if err != nil {
			return err
		}
		return b.ForEach(func(k, v []byte) error {
			regs = append(regs, &layers.Reg{
				Addr:  binary.BigEndian.Uint32(k),
				Value: binary.BigEndian.Uint32(v),
			})
			return nil
		})
	}); err != nil {
		return nil, err
	}
	return regs, nil
}
