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

package encoder

import (
	"fmt"
)

// ErrInvalidBounds returned when the counter limits of an encoder contradict each other
type ErrInvalidBounds struct {
	What string
}

func (e ErrInvalidBounds) Error() string {
	return fmt.Sprintf("Invalid encoder bounds: %s", e.What)
}

// ErrWordOutOfRange returned when a host write addresses a flag word the bank does not have
type ErrWordOutOfRange struct {
	Word  int
	Words int
}

func (e ErrWordOutOfRange) Error() string {
	return fmt.Sprintf("Flag word %d out of range, bank has %d words", e.Word, e.Words)
}
