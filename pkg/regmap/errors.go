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
	"fmt"
)

// ErrBadAddress returned when an address is not part of the register map
type ErrBadAddress struct {
	Addr uint32
}

func (e ErrBadAddress) Error() string {
	return fmt.Sprintf("No register at address 0x%08x", e.Addr)
}

// ErrReadOnly returned on writes to registers the host can only read
type ErrReadOnly struct {
	Name string
}

func (e ErrReadOnly) Error() string {
	return fmt.Sprintf("Register %s is read only", e.Name)
}

// ErrBadLayout returned when a register map can not be laid out
type ErrBadLayout struct {
	What string
}

func (e ErrBadLayout) Error() string {
	return fmt.Sprintf("Wrong register layout: %s", e.What)
}
