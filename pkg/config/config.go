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

package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"sigs.k8s.io/yaml"

	"jinr.ru/greenlab/go-encoder/pkg/encoder"
)

type EtherboneConfig struct {
	IP   string `json:"ip"`
	Port int    `json:"port"`
}

type ClockConfig struct {
	// Period is the duration of one tick, e.g. "1ms"
	Period string `json:"period"`
	// Batch is the number of ticks evaluated per timer period
	Batch int `json:"batch,omitempty"`
}

// SimConfig drives the built-in quadrature stimulus of an encoder
type SimConfig struct {
	StepTicks int  `json:"step_ticks,omitempty"`
	Reverse   bool `json:"reverse,omitempty"`
	PPR       int  `json:"ppr,omitempty"`
}

type EncoderConfig struct {
	Name string `json:"name"`
	// Index is the ordinal of the encoder. Encoders without an index
	// take the free ordinals in the order they are listed.
	Index      *int       `json:"index,omitempty"`
	PinA       string     `json:"pin_A"`
	PinB       string     `json:"pin_B"`
	PinZ       string     `json:"pin_Z,omitempty"`
	IOStandard string     `json:"io_standard,omitempty"`
	ResetValue int32      `json:"reset_value"`
	MinValue   *int32     `json:"min_value,omitempty"`
	MaxValue   *int32     `json:"max_value,omitempty"`
	Sim        *SimConfig `json:"sim,omitempty"`
}

// Encoder returns the core configuration of the instance
func (e *EncoderConfig) Encoder() encoder.Config {
	return encoder.Config{
		ResetValue: e.ResetValue,
		MinValue:   e.MinValue,
		MaxValue:   e.MaxValue,
		HasIndex:   e.PinZ != "",
	}
}

type CardConfig struct {
	Name      string           `json:"name"`
	Etherbone *EtherboneConfig `json:"etherbone"`
	CSRBase   uint32           `json:"csr_base"`
	Clock     *ClockConfig     `json:"clock"`
	// Source is either "sim" or "gpio"
	Source   string           `json:"source"`
	GPIORoot string           `json:"gpio_root,omitempty"`
	Encoders []*EncoderConfig `json:"encoders"`
}

// TickPeriod returns the parsed clock period
func (c *CardConfig) TickPeriod() (time.Duration, error) {
	d, err := time.ParseDuration(c.Clock.Period)
	if err != nil || d <= 0 {
		return 0, ErrBadValue{Field: "card.clock.period", Value: c.Clock.Period}
	}
	return d, nil
}

// EncoderConfigs returns the encoders ordered by ordinal
func (c *CardConfig) EncoderConfigs() ([]*EncoderConfig, error) {
	n := len(c.Encoders)
	ordered := make([]*EncoderConfig, n)
	for pos, e := range c.Encoders {
		if e == nil {
			return nil, ErrBadValue{Field: fmt.Sprintf("card.encoders[%d]", pos), Value: "null"}
		}
		if e.Index == nil {
			continue
		}
		i := *e.Index
		if i < 0 || i >= n {
			return nil, ErrIndexOutOfRange{Index: i, N: n}
		}
		if ordered[i] != nil {
			return nil, ErrDuplicateIndex{Index: i}
		}
		ordered[i] = e
	}
	next := 0
	for _, e := range c.Encoders {
		if e.Index != nil {
			continue
		}
		for ordered[next] != nil {
			next++
		}
		ordered[next] = e
	}
	return ordered, nil
}

// Validate checks the card section. It fails on the first problem found.
func (c *CardConfig) Validate() error {
	if c.Etherbone == nil || net.ParseIP(c.Etherbone.IP) == nil {
		return ErrBadValue{Field: "card.etherbone.ip", Value: fmt.Sprintf("%v", c.Etherbone)}
	}
	if c.Clock == nil {
		return ErrBadValue{Field: "card.clock", Value: ""}
	}
	if _, err := c.TickPeriod(); err != nil {
		return err
	}
	if c.Source != SourceSim && c.Source != SourceGPIO {
		return ErrBadValue{Field: "card.source", Value: c.Source}
	}
	names := map[string]bool{}
	for i, e := range c.Encoders {
		if e == nil {
			return ErrBadValue{Field: fmt.Sprintf("card.encoders[%d]", i), Value: "null"}
		}
		if e.PinA == "" {
			return ErrMissingPin{Encoder: e.Name, Pin: "pin_A"}
		}
		if e.PinB == "" {
			return ErrMissingPin{Encoder: e.Name, Pin: "pin_B"}
		}
		if e.Name != "" {
			if names[e.Name] {
				return ErrDuplicateName{Name: e.Name}
			}
			names[e.Name] = true
		}
		if err := e.Encoder().Validate(); err != nil {
			return fmt.Errorf("encoder %s: %w", e.Name, err)
		}
	}
	_, err := c.EncoderConfigs()
	return err
}

// CardPeer is a card as seen by the control server
type CardPeer struct {
	Name     string `json:"name"`
	IP       string `json:"ip"`
	Port     int    `json:"port"`
	CSRBase  uint32 `json:"csr_base"`
	Encoders int    `json:"encoders"`
}

type ControlConfig struct {
	IP      string      `json:"ip"`
	Port    int         `json:"port,omitempty"`
	ApiPort int         `json:"api_port"`
	DBPath  string      `json:"db_path"`
	Timeout string      `json:"timeout"`
	Cards   []*CardPeer `json:"cards"`
}

// RequestTimeout returns the parsed Etherbone request timeout
func (c *ControlConfig) RequestTimeout() (time.Duration, error) {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 0, ErrBadValue{Field: "control.timeout", Value: c.Timeout}
	}
	return d, nil
}

func (c *ControlConfig) Validate() error {
	if _, err := c.RequestTimeout(); err != nil {
		return err
	}
	names := map[string]bool{}
	for i, card := range c.Cards {
		if card == nil {
			return ErrBadValue{Field: fmt.Sprintf("control.cards[%d]", i), Value: "null"}
		}
		if names[card.Name] {
			return ErrDuplicateName{Name: card.Name}
		}
		names[card.Name] = true
		if net.ParseIP(card.IP) == nil {
			return ErrBadValue{Field: fmt.Sprintf("control.cards.%s.ip", card.Name), Value: card.IP}
		}
		if card.Encoders < 0 {
			return ErrBadValue{Field: fmt.Sprintf("control.cards.%s.encoders", card.Name), Value: fmt.Sprint(card.Encoders)}
		}
	}
	return nil
}

// GetCardByName returns the card peer with the given name
func (c *ControlConfig) GetCardByName(name string) (*CardPeer, error) {
	for _, card := range c.Cards {
		if card.Name == name {
			return card, nil
		}
	}
	return nil, ErrCardNotFound{What: fmt.Sprintf("name %s", name)}
}

// GetCardByAddr returns the card peer listening at the given UDP address
func (c *ControlConfig) GetCardByAddr(addr *net.UDPAddr) (*CardPeer, error) {
	for _, card := range c.Cards {
		if net.ParseIP(card.IP).Equal(addr.IP) && card.Port == addr.Port {
			return card, nil
		}
	}
	return nil, ErrCardNotFound{What: fmt.Sprintf("address %s", addr)}
}

type Config struct {
	LogLevel string         `json:"log_level,omitempty"`
	Card     *CardConfig    `json:"card,omitempty"`
	Control  *ControlConfig `json:"control,omitempty"`
	filepath string
}

// Validate checks every section that is present
func (c *Config) Validate() error {
	if c.Card != nil {
		if err := c.Card.Validate(); err != nil {
			return err
		}
	}
	if c.Control != nil {
		if err := c.Control.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) Path() string {
	return c.filepath
}

func (c *Config) SetPath(path string) {
	c.filepath = path
}

func (c *Config) Persist(overwrite bool) error {
	if _, err := os.Stat(c.filepath); err == nil && !overwrite {
		return ErrConfigFileExists{Path: c.filepath}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	dir := filepath.Dir(c.filepath)
	err = os.MkdirAll(dir, 0755)
	if err != nil {
		return err
	}

	return os.WriteFile(c.filepath, data, 0644)
}

// Load reads the config file at path. Sections missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := &Config{}
	if err = yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	defaults := NewDefaultConfig()
	if c.LogLevel == "" {
		c.LogLevel = defaults.LogLevel
	}
	if c.Card == nil {
		c.Card = defaults.Card
	}
	if c.Control == nil {
		c.Control = defaults.Control
	}
	c.filepath = path
	return c, nil
}

func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = ""
	}
	return filepath.Join(home, ConfigDir, ConfigFile)
}

func NewDefaultConfig() *Config {
	index := func(i int) *int { return &i }
	return &Config{
		LogLevel: DefaultLogLevel,
		Card: &CardConfig{
			Name: DefaultCardName,
			Etherbone: &EtherboneConfig{
				IP:   DefaultCardIP,
				Port: DefaultEtherbonePort,
			},
			CSRBase: DefaultCSRBase,
			Clock: &ClockConfig{
				Period: DefaultClockPeriod,
				Batch:  DefaultClockBatch,
			},
			Source:   SourceSim,
			GPIORoot: DefaultGPIORoot,
			Encoders: []*EncoderConfig{
				{
					Name:       "spindle",
					Index:      index(0),
					PinA:       "gpio17",
					PinB:       "gpio27",
					PinZ:       "gpio22",
					IOStandard: DefaultIOStandard,
					Sim: &SimConfig{
						StepTicks: DefaultSimStepTicks,
						PPR:       DefaultSimPPR,
					},
				},
			},
		},
		Control: &ControlConfig{
			IP:      DefaultControlIP,
			ApiPort: DefaultControlApiPort,
			DBPath:  DefaultDBPath,
			Timeout: DefaultTimeout,
			Cards: []*CardPeer{
				{
					Name:     DefaultCardName,
					IP:       DefaultCardIP,
					Port:     DefaultEtherbonePort,
					CSRBase:  DefaultCSRBase,
					Encoders: 1,
				},
			},
		},
		filepath: DefaultConfigPath(),
	}
}
