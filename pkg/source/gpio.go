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

package source

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"jinr.ru/greenlab/go-encoder/pkg/encoder"
	"jinr.ru/greenlab/go-encoder/pkg/log"
)

const (
	exportFile    = "export"
	unexportFile  = "unexport"
	directionFile = "direction"
	valueFile     = "value"
)

// VerifyTimeout is how long to wait for udev to make an exported pin accessible
var VerifyTimeout = 2 * time.Second

// ErrGPIO returned when a sysfs GPIO pin can not be used
type ErrGPIO struct {
	Pin  string
	What string
}

func (e ErrGPIO) Error() string {
	return fmt.Sprintf("GPIO %s: %s", e.Pin, e.What)
}

// Pin is an input line of the sysfs GPIO interface
type Pin struct {
	root     string
	number   string
	exported bool
	value    *os.File
	buf      []byte
}

// pinNumber accepts both "17" and "gpio17"
func pinNumber(name string) string {
	return strings.TrimPrefix(name, "gpio")
}

func (p *Pin) dir() string {
	return filepath.Join(p.root, "gpio"+p.number)
}

// OpenPin exports the pin if needed and opens it as an input
func OpenPin(root, name string) (*Pin, error) {
	p := &Pin{
		root:   root,
		number: pinNumber(name),
		buf:    make([]byte, 1),
	}
	if err := p.export(); err != nil {
		return nil, err
	}
	if err := writeFile(filepath.Join(p.dir(), directionFile), "in"); err != nil {
		p.unexport()
		return nil, ErrGPIO{Pin: name, What: err.Error()}
	}
	value, err := os.Open(filepath.Join(p.dir(), valueFile))
	if err != nil {
		p.unexport()
		return nil, ErrGPIO{Pin: name, What: err.Error()}
	}
	p.value = value
	return p, nil
}

func (p *Pin) export() error {
	val := filepath.Join(p.dir(), valueFile)
	if unix.Access(val, unix.R_OK) == nil {
		return nil
	}
	log.Debug("Exporting GPIO %s", p.number)
	if err := writeFile(filepath.Join(p.root, exportFile), p.number); err != nil {
		return ErrGPIO{Pin: p.number, What: err.Error()}
	}
	p.exported = true
	var waited time.Duration
	for step := time.Millisecond; waited < VerifyTimeout; waited += step {
		if unix.Access(val, unix.R_OK) == nil {
			return nil
		}
		time.Sleep(step)
	}
	return ErrGPIO{Pin: p.number, What: "value not readable after export"}
}

func (p *Pin) unexport() {
	if !p.exported {
		return
	}
	if err := writeFile(filepath.Join(p.root, unexportFile), p.number); err != nil {
		log.Warning("Error while unexporting GPIO %s: %s", p.number, err)
	}
}

// Get returns the current level of the pin
func (p *Pin) Get() (bool, error) {
	if _, err := p.value.ReadAt(p.buf, 0); err != nil {
		return false, ErrGPIO{Pin: p.number, What: err.Error()}
	}
	switch p.buf[0] {
	case '0':
		return false, nil
	case '1':
		return true, nil
	}
	return false, ErrGPIO{Pin: p.number, What: fmt.Sprintf("unknown value %q", p.buf)}
}

// Close closes the value file and unexports the pin if OpenPin exported it
func (p *Pin) Close() error {
	err := p.value.Close()
	p.unexport()
	return err
}

func writeFile(name, s string) error {
	f, err := os.OpenFile(name, os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write([]byte(s))
	return err
}

// GPIO samples the A, B and optional Z lines of an encoder from sysfs
type GPIO struct {
	a, b, z *Pin
}

// OpenGPIO opens the pins of an encoder. An empty z leaves Z low.
func OpenGPIO(root, a, b, z string) (*GPIO, error) {
	g := &GPIO{}
	var err error
	if g.a, err = OpenPin(root, a); err != nil {
		return nil, err
	}
	if g.b, err = OpenPin(root, b); err != nil {
		g.a.Close()
		return nil, err
	}
	if z != "" {
		if g.z, err = OpenPin(root, z); err != nil {
			g.a.Close()
			g.b.Close()
			return nil, err
		}
	}
	return g, nil
}

func (g *GPIO) Sample() (encoder.Lines, error) {
	var l encoder.Lines
	var err error
	if l.A, err = g.a.Get(); err != nil {
		return l, err
	}
	if l.B, err = g.b.Get(); err != nil {
		return l, err
	}
	if g.z != nil {
		if l.Z, err = g.z.Get(); err != nil {
			return l, err
		}
	}
	return l, nil
}

func (g *GPIO) Close() error {
	err := g.a.Close()
	if bErr := g.b.Close(); err == nil {
		err = bErr
	}
	if g.z != nil {
		if zErr := g.z.Close(); err == nil {
			err = zErr
		}
	}
	return err
}
