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

package regmap

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// CSRRegister is one entry of the exported register description.
type CSRRegister struct {
	Addr        uint32 `json:"addr"`
	Size        int    `json:"size"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// CSRDocument is the register description a host driver is generated from.
type CSRDocument struct {
	Constants map[string]uint32       `json:"constants"`
	Registers map[string]*CSRRegister `json:"csr_registers"`
}

func (m *Map) Document() *CSRDocument {
	doc := &CSRDocument{
		Constants: map[string]uint32{
			"csr_base":      m.Base,
			"magic":         Magic,
			"encoder_count": uint32(m.N),
			"flag_words":    uint32(WordCount(m.N)),
		},
		Registers: make(map[string]*CSRRegister, len(m.Registers)),
	}
	for _, reg := range m.Registers {
		doc.Registers[reg.Name] = &CSRRegister{
			Addr:        reg.Addr,
			Size:        reg.Size,
			Type:        reg.Access.String(),
			Description: reg.Description,
		}
	}
	return doc
}

// WriteJSON writes the register description as JSON.
func (m *Map) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(m.Document())
}

// WriteCSV writes one line per register: kind, name, address, size in words and access.
func (m *Map) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	records := [][]string{
		{"constant", "csr_base", fmt.Sprintf("0x%08x", m.Base), "", ""},
		{"constant", "encoder_count", strconv.Itoa(m.N), "", ""},
	}
	for _, reg := range m.Registers {
		records = append(records, []string{
			"csr_register", reg.Name, fmt.Sprintf("0x%08x", reg.Addr), strconv.Itoa(reg.Size), reg.Access.String(),
		})
	}
	if err := cw.WriteAll(records); err != nil {
		return err
	}
	return cw.Error()
}
