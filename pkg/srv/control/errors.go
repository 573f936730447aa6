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
	"fmt"
	"time"
)

// ErrTimeout returned when a card does not answer an Etherbone read in time
type ErrTimeout struct {
	Card    string
	Timeout time.Duration
}

func (e ErrTimeout) Error() string {
	return fmt.Sprintf("Card %s did not answer within %s", e.Card, e.Timeout)
}

// ErrEncoderNotFound returned when a card has no encoder with the given index
type ErrEncoderNotFound struct {
	Card  string
	Index int
}

func (e ErrEncoderNotFound) Error() string {
	return fmt.Sprintf("Card %s has no encoder %d", e.Card, e.Index)
}

// ErrNotCached returned when the register cache holds nothing for a card
type ErrNotCached struct {
	Card string
	Addr uint32
}

func (e ErrNotCached) Error() string {
	return fmt.Sprintf("No cached value of register 0x%04x of card %s", e.Addr, e.Card)
}

// ErrCardMismatch returned when a card does not look like the configured one
type ErrCardMismatch struct {
	Card string
	What string
}

func (e ErrCardMismatch) Error() string {
	return fmt.Sprintf("Card %s: %s", e.Card, e.What)
}
