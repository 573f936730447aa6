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
	"fmt"
	"net/http"
	"strings"

	"github.com/imroc/req"

	"jinr.ru/greenlab/go-encoder/pkg/config"
	"jinr.ru/greenlab/go-encoder/pkg/srv/control"
	"jinr.ru/greenlab/go-encoder/pkg/srv/control/ifc"
)

// ErrApi returned when the control server answers with an error status
type ErrApi struct {
	Status string
	Body   string
}

func (e ErrApi) Error() string {
	return fmt.Sprintf("%s: %s", e.Status, strings.TrimSpace(e.Body))
}

type ApiClient struct {
	*config.Config
	ApiPrefix string
}

func NewApiClient(cfg *config.Config) *ApiClient {
	host := cfg.Control.IP
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return &ApiClient{
		Config:    cfg,
		ApiPrefix: fmt.Sprintf("http://%s:%d/api", host, cfg.Control.ApiPort),
	}
}

func (c *ApiClient) regReadUrl(card, addr string) string {
	return fmt.Sprintf("%s/reg/r/%s/%s", c.ApiPrefix, card, addr)
}

func (c *ApiClient) regReadAllUrl(card string) string {
	return fmt.Sprintf("%s/reg/r/%s", c.ApiPrefix, card)
}

func (c *ApiClient) regWriteUrl(card string) string {
	return fmt.Sprintf("%s/reg/w/%s", c.ApiPrefix, card)
}

func (c *ApiClient) encoderUrl(card string, index int) string {
	return fmt.Sprintf("%s/encoder/%s/%d", c.ApiPrefix, card, index)
}

func check(r *req.Resp) error {
	if r.Response().StatusCode != http.StatusOK {
		return ErrApi{Status: r.Response().Status, Body: r.String()}
	}
	return nil
}

// RegRead sends request to get the value of a register of a card
func (c *ApiClient) RegRead(card, addr string) (string, error) {
	r, err := req.Get(c.regReadUrl(card, addr))
	if err != nil {
		return "", err
	}
	if err = check(r); err != nil {
		return "", err
	}
	reg := &control.RegHex{}
	err = r.ToJSON(reg)
	if err != nil {
		return "", err
	}
	return reg.Value, nil
}

// RegReadAll sends request to get values of all registers of a card.
// With cached set the control server answers from its register cache.
func (c *ApiClient) RegReadAll(card string, cached bool) ([]*control.RegHex, error) {
	r, err := req.Get(c.regReadAllUrl(card), req.QueryParam{"cached": cached})
	if err != nil {
		return nil, err
	}
	if err = check(r); err != nil {
		return nil, err
	}
	var regs []*control.RegHex
	err = r.ToJSON(&regs)
	if err != nil {
		return nil, err
	}
	return regs, nil
}

// RegWrite sends request to write the value to a register of a card
func (c *ApiClient) RegWrite(card, addr, value string) error {
	reg := &control.RegHex{
		Addr:  addr,
		Value: value,
	}
	r, err := req.Post(c.regWriteUrl(card), req.BodyJSON(reg))
	if err != nil {
		return err
	}
	return check(r)
}

// Encoder sends request to get the state of one encoder
func (c *ApiClient) Encoder(card string, index int) (*ifc.EncoderStatus, error) {
	r, err := req.Get(c.encoderUrl(card, index))
	if err != nil {
		return nil, err
	}
	if err = check(r); err != nil {
		return nil, err
	}
	status := &ifc.EncoderStatus{}
	if err = r.ToJSON(status); err != nil {
		return nil, err
	}
	return status, nil
}

// Encoders sends request to get the state of every encoder of a card
func (c *ApiClient) Encoders(card string) ([]*ifc.EncoderStatus, error) {
	r, err := req.Get(fmt.Sprintf("%s/encoder/%s", c.ApiPrefix, card))
	if err != nil {
		return nil, err
	}
	if err = check(r); err != nil {
		return nil, err
	}
	var statuses []*ifc.EncoderStatus
	if err = r.ToJSON(&statuses); err != nil {
		return nil, err
	}
	return statuses, nil
}

// SetIndexEnable sends request to arm or disarm the index reset of an encoder
func (c *ApiClient) SetIndexEnable(card string, index int, enable bool) error {
	setup := &control.IndexEnableSetup{Enable: enable}
	r, err := req.Post(c.encoderUrl(card, index)+"/index_enable", req.BodyJSON(setup))
	if err != nil {
		return err
	}
	return check(r)
}

// AckIndexPulse sends request to acknowledge the index pulse of an encoder
func (c *ApiClient) AckIndexPulse(card string, index int) error {
	r, err := req.Post(c.encoderUrl(card, index) + "/ack")
	if err != nil {
		return err
	}
	return check(r)
}

// SetReset sends request to set or release the global reset of a card
func (c *ApiClient) SetReset(card string, reset bool) error {
	setup := &control.ResetSetup{Reset: reset}
	r, err := req.Post(fmt.Sprintf("%s/reset/%s", c.ApiPrefix, card), req.BodyJSON(setup))
	if err != nil {
		return err
	}
	return check(r)
}

// RegMap sends request to get the register map of a card as json or csv
func (c *ApiClient) RegMap(card, format string) (string, error) {
	r, err := req.Get(fmt.Sprintf("%s/regmap/%s", c.ApiPrefix, card), req.QueryParam{"format": format})
	if err != nil {
		return "", err
	}
	if err = check(r); err != nil {
		return "", err
	}
	return r.String(), nil
}
