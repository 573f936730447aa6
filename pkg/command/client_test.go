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

package command

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jinr.ru/greenlab/go-encoder/pkg/config"
	"jinr.ru/greenlab/go-encoder/pkg/layers"
	"jinr.ru/greenlab/go-encoder/pkg/regmap"
	"jinr.ru/greenlab/go-encoder/pkg/srv/control"
	"jinr.ru/greenlab/go-encoder/pkg/srv/control/ifc"
)

// fakeControl keeps registers of a single card named "card0" in memory
type fakeControl struct {
	m        *regmap.Map
	regs     map[uint32]uint32
	statuses []*ifc.EncoderStatus
	reset    bool
}

func newFakeControl(t *testing.T) *fakeControl {
	m, err := regmap.New(2, 0)
	require.NoError(t, err)
	return &fakeControl{
		m:    m,
		regs: map[uint32]uint32{0: regmap.Magic, 4: 2},
		statuses: []*ifc.EncoderStatus{
			{Index: 0, Counter: 10},
			{Index: 1, Counter: -10, IndexPulse: true},
		},
	}
}

func (f *fakeControl) card(card string) error {
	if card != "card0" {
		return config.ErrCardNotFound{What: card}
	}
	return nil
}

func (f *fakeControl) encoder(card string, index int) (*ifc.EncoderStatus, error) {
	if err := f.card(card); err != nil {
		return nil, err
	}
	if index < 0 || index >= len(f.statuses) {
		return nil, control.ErrEncoderNotFound{Card: card, Index: index}
	}
	return f.statuses[index], nil
}

func (f *fakeControl) Run() error { return nil }

func (f *fakeControl) Verify(card string) error { return f.card(card) }

func (f *fakeControl) RegRead(card string, addr uint32) (*layers.Reg, error) {
	if err := f.card(card); err != nil {
		return nil, err
	}
	return &layers.Reg{Addr: addr, Value: f.regs[addr]}, nil
}

func (f *fakeControl) RegReadAll(card string) ([]*layers.Reg, error) {
	if err := f.card(card); err != nil {
		return nil, err
	}
	var regs []*layers.Reg
	for _, addr := range f.m.Addrs() {
		regs = append(regs, &layers.Reg{Addr: addr, Value: f.regs[addr]})
	}
	return regs, nil
}

func (f *fakeControl) RegReadCached(card string) ([]*layers.Reg, error) {
	regs, err := f.RegReadAll(card)
	if err != nil {
		return nil, err
	}
	return regs[:1], nil
}

func (f *fakeControl) RegWrite(card string, reg *layers.Reg) error {
	if err := f.card(card); err != nil {
		return err
	}
	f.regs[reg.Addr] = reg.Value
	return nil
}

func (f *fakeControl) Encoder(card string, index int) (*ifc.EncoderStatus, error) {
	return f.encoder(card, index)
}

func (f *fakeControl) Encoders(card string) ([]*ifc.EncoderStatus, error) {
	if err := f.card(card); err != nil {
		return nil, err
	}
	return f.statuses, nil
}

func (f *fakeControl) SetIndexEnable(card string, index int, enable bool) error {
	status, err := f.encoder(card, index)
	if err != nil {
		return err
	}
	status.IndexEnable = enable
	return nil
}

func (f *fakeControl) AckIndexPulse(card string, index int) error {
	status, err := f.encoder(card, index)
	if err != nil {
		return err
	}
	status.IndexPulse = false
	return nil
}

func (f *fakeControl) SetReset(card string, reset bool) error {
	if err := f.card(card); err != nil {
		return err
	}
	f.reset = reset
	return nil
}

func (f *fakeControl) RegMap(card string) (*regmap.Map, error) {
	if err := f.card(card); err != nil {
		return nil, err
	}
	return f.m, nil
}

func newTestClient(t *testing.T) (*ApiClient, *fakeControl) {
	t.Helper()
	fake := newFakeControl(t)
	cfg := config.NewDefaultConfig()
	api, err := control.NewApiServer(context.Background(), cfg, fake)
	require.NoError(t, err)
	server := httptest.NewServer(api.Handler())
	t.Cleanup(server.Close)

	client := NewApiClient(cfg)
	assert.Equal(t, "http://127.0.0.1:8000/api", client.ApiPrefix)
	client.ApiPrefix = server.URL + "/api"
	return client, fake
}

func TestClientRegisters(t *testing.T) {
	client, fake := newTestClient(t)

	value, err := client.RegRead("card0", "0x0000")
	require.NoError(t, err)
	assert.Equal(t, "0x51454e43", value)

	require.NoError(t, client.RegWrite("card0", "0x8", "0x1"))
	assert.Equal(t, uint32(1), fake.regs[8])

	regs, err := client.RegReadAll("card0", false)
	require.NoError(t, err)
	assert.Len(t, regs, fake.m.Words())
	assert.Equal(t, "0x00000002", regs[1].Value)

	regs, err = client.RegReadAll("card0", true)
	require.NoError(t, err)
	assert.Len(t, regs, 1)

	_, err = client.RegRead("nope", "0x0")
	var apiErr ErrApi
	require.ErrorAs(t, err, &apiErr)
	assert.Contains(t, apiErr.Status, "404")
	assert.Contains(t, apiErr.Body, "nope")
}

func TestClientEncoders(t *testing.T) {
	client, fake := newTestClient(t)

	status, err := client.Encoder("card0", 1)
	require.NoError(t, err)
	assert.Equal(t, int32(-10), status.Counter)
	assert.True(t, status.IndexPulse)

	statuses, err := client.Encoders("card0")
	require.NoError(t, err)
	assert.Len(t, statuses, 2)

	require.NoError(t, client.SetIndexEnable("card0", 0, true))
	assert.True(t, fake.statuses[0].IndexEnable)
	require.NoError(t, client.AckIndexPulse("card0", 1))
	assert.False(t, fake.statuses[1].IndexPulse)
	require.NoError(t, client.SetReset("card0", true))
	assert.True(t, fake.reset)

	_, err = client.Encoder("card0", 5)
	assert.Error(t, err)
}

func TestClientRegMap(t *testing.T) {
	client, _ := newTestClient(t)
	doc, err := client.RegMap("card0", "json")
	require.NoError(t, err)
	assert.Contains(t, doc, regmap.CounterName(1))

	table, err := client.RegMap("card0", "csv")
	require.NoError(t, err)
	assert.Contains(t, table, "csr_register")

	_, err = client.RegMap("card0", "xml")
	assert.Error(t, err)
}
